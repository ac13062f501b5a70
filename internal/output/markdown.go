package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"neurochat/internal/logger"
)

const defaultWordWrap = 80

// Renderer turns assistant markdown into terminal output with glamour.
type Renderer struct {
	term *glamour.TermRenderer
}

// NewRenderer builds a renderer for the given theme type ("dark", "light" or "auto").
// A theme that glamour cannot load falls back to auto detection.
func NewRenderer(themeType string, wordWrap int) (*Renderer, error) {
	if wordWrap <= 0 {
		wordWrap = defaultWordWrap
	}

	var term *glamour.TermRenderer
	var err error
	if themeType != "" && themeType != "auto" {
		term, err = glamour.NewTermRenderer(
			glamour.WithStylePath(themeType),
			glamour.WithWordWrap(wordWrap),
		)
		if err != nil {
			logger.Debug("Falling back to auto markdown style", "style", themeType, "error", err)
		}
	}
	if term == nil {
		term, err = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wordWrap),
			glamour.WithEnvironmentConfig(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
		}
	}
	return &Renderer{term: term}, nil
}

// Render converts markdown into styled terminal text.
func (r *Renderer) Render(markdown string) (string, error) {
	if strings.TrimSpace(markdown) == "" {
		return "", nil
	}
	rendered, err := r.term.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return strings.Trim(rendered, "\n"), nil
}
