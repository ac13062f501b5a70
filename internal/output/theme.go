package output

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"neurochat/internal/logger"
)

// Theme is a lipgloss-backed StyleProvider.
type Theme struct {
	name   string
	styles map[SemanticType]lipgloss.Style
}

type lipglossStyle struct {
	style lipgloss.Style
}

func (s lipglossStyle) Render(text string) string {
	return s.style.Render(text)
}

func adaptive(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

// NewTheme returns the named theme: "dark", "light" or "auto".
// Unknown names and "plain" return nil, which leaves printers unstyled.
func NewTheme(name string) *Theme {
	name = strings.ToLower(strings.TrimSpace(name))

	var accent, muted, hex lipgloss.TerminalColor
	switch name {
	case "dark":
		accent, muted, hex = lipgloss.Color("39"), lipgloss.Color("245"), lipgloss.Color("213")
	case "light":
		accent, muted, hex = lipgloss.Color("25"), lipgloss.Color("242"), lipgloss.Color("127")
	case "auto", "default":
		accent, muted, hex = adaptive("25", "39"), adaptive("242", "245"), adaptive("127", "213")
	case "", "plain":
		return nil
	default:
		logger.Debug("Unknown theme, using plain output", "theme", name)
		return nil
	}

	base := lipgloss.NewStyle()
	return &Theme{
		name: name,
		styles: map[SemanticType]lipgloss.Style{
			SemanticInfo:       base.Foreground(accent),
			SemanticSuccess:    base.Foreground(adaptive("28", "42")),
			SemanticWarning:    base.Foreground(adaptive("130", "214")),
			SemanticError:      base.Foreground(adaptive("160", "203")).Bold(true),
			SemanticCommand:    base.Foreground(accent).Bold(true),
			SemanticHighlight:  base.Foreground(hex).Bold(true),
			SemanticBold:       base.Bold(true),
			SemanticComment:    base.Foreground(muted).Italic(true),
			SemanticHex:        base.Foreground(hex),
			SemanticUser:       base.Foreground(accent).Bold(true),
			SemanticAssistant:  base.Foreground(adaptive("28", "42")).Bold(true),
			SemanticErrorRole:  base.Foreground(adaptive("160", "203")).Bold(true),
			SemanticMode:       base.Foreground(adaptive("130", "214")).Bold(true),
			SemanticDiffInsert: base.Foreground(adaptive("28", "42")).Underline(true),
			SemanticDiffDelete: base.Foreground(adaptive("160", "203")).Strikethrough(true),
		},
	}
}

// GetStyle implements StyleProvider.
func (t *Theme) GetStyle(semantic string) TextStyle {
	if style, ok := t.styles[SemanticType(semantic)]; ok {
		return lipglossStyle{style: style}
	}
	return lipglossStyle{style: lipgloss.NewStyle()}
}

// IsAvailable reports whether the terminal renders colors.
func (t *Theme) IsAvailable() bool {
	return t != nil && ColorEnabled()
}

// GetThemeType implements StyleProvider.
func (t *Theme) GetThemeType() string {
	if t == nil || t.name == "default" {
		return "auto"
	}
	return t.name
}

// Name returns the theme name.
func (t *Theme) Name() string {
	return t.name
}

// ColorEnabled reports whether lipgloss detected a color profile and NO_COLOR is unset.
func ColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return lipgloss.ColorProfile() != termenv.Ascii
}

// IsTerminal reports whether stdout is a character device.
func IsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice == os.ModeCharDevice
}
