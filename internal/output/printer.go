package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Printer writes semantic output with optional styling.
type Printer struct {
	styleProvider StyleProvider
	markdown      *Renderer
	writer        io.Writer
	mode          Mode
	forcePlain    bool
	testMode      bool
	silent        bool
	prefix        string

	mu sync.Mutex
}

// NewPrinter creates a printer writing to os.Stdout unless configured otherwise.
func NewPrinter(options ...Option) *Printer {
	p := &Printer{
		writer: os.Stdout,
		mode:   ModeAuto,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Print writes text as is.
func (p *Printer) Print(text string) {
	p.output(SemanticPlain, text, false)
}

// Printf writes formatted text.
func (p *Printer) Printf(format string, args ...interface{}) {
	p.output(SemanticPlain, fmt.Sprintf(format, args...), false)
}

// Println writes text followed by a newline.
func (p *Printer) Println(text string) {
	p.output(SemanticPlain, text, true)
}

// Info writes an informational line.
func (p *Printer) Info(text string) {
	p.output(SemanticInfo, text, true)
}

// Success writes a success line.
func (p *Printer) Success(text string) {
	p.output(SemanticSuccess, text, true)
}

// Warning writes a warning line.
func (p *Printer) Warning(text string) {
	p.output(SemanticWarning, text, true)
}

// Error writes an error line.
func (p *Printer) Error(text string) {
	p.output(SemanticError, text, true)
}

// Comment writes a dimmed line.
func (p *Printer) Comment(text string) {
	p.output(SemanticComment, text, true)
}

// Styled renders text with the style for semantic without writing it.
func (p *Printer) Styled(semantic SemanticType, text string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode == ModeJSON {
		return text
	}
	return p.style(semantic).Render(text)
}

// Markdown writes an assistant reply, rendered when a renderer is configured.
func (p *Printer) Markdown(text string) {
	if p.markdown != nil && p.mode != ModeJSON && !p.forcePlain {
		if rendered, err := p.markdown.Render(text); err == nil {
			p.output(SemanticPlain, rendered, true)
			return
		}
	}
	p.output(SemanticPlain, text, true)
}

func (p *Printer) output(semantic SemanticType, text string, addNewline bool) {
	if p.silent {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var finalText string
	switch p.mode {
	case ModeJSON:
		finalText = p.renderJSON(semantic, text)
	default:
		finalText = p.style(semantic).Render(text)
		if addNewline && !strings.HasSuffix(finalText, "\n") {
			finalText += "\n"
		}
	}

	if p.prefix != "" {
		finalText = p.prefix + finalText
	}
	_, _ = fmt.Fprint(p.writer, finalText)
}

func (p *Printer) style(semantic SemanticType) TextStyle {
	if p.IsStylable() && p.mode != ModePlain {
		return p.styleProvider.GetStyle(string(semantic))
	}
	return NewPlainStyleProvider().GetStyle(string(semantic))
}

func (p *Printer) renderJSON(semantic SemanticType, text string) string {
	data, err := json.Marshal(map[string]interface{}{
		"type":    semantic,
		"message": text,
	})
	if err != nil {
		return text + "\n"
	}
	return string(data) + "\n"
}

// Writer returns the destination writer.
func (p *Printer) Writer() io.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer
}

// SetWriter changes the destination writer.
func (p *Printer) SetWriter(writer io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer = writer
}

// SetStyleProvider replaces the style provider. Nil disables styling.
func (p *Printer) SetStyleProvider(provider StyleProvider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.styleProvider = provider
}

// IsStylable reports whether styles are applied.
func (p *Printer) IsStylable() bool {
	return !p.forcePlain && p.styleProvider != nil && p.styleProvider.IsAvailable()
}

func (p *Printer) String() string {
	hasStyles := "no"
	if p.IsStylable() {
		hasStyles = "yes"
	}
	return fmt.Sprintf("Printer{mode: %v, styles: %s, writer: %T}", p.mode, hasStyles, p.writer)
}
