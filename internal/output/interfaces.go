// Package output renders neurochat console output: status lines, transcripts and
// assistant replies. Styling is injected through a StyleProvider so callers and
// tests can fall back to plain text.
package output

// StyleProvider supplies styles for semantic output types.
type StyleProvider interface {
	// GetStyle returns the style for a semantic type such as "info" or "hex".
	GetStyle(semantic string) TextStyle

	// IsAvailable reports whether styles can be rendered. Printers fall back
	// to plain text when it returns false.
	IsAvailable() bool

	// GetThemeType returns "dark", "light" or "auto" for markdown rendering.
	GetThemeType() string
}

// TextStyle renders text with styling.
type TextStyle interface {
	Render(text string) string
}

// Mode selects how a printer renders.
type Mode int

const (
	// ModeAuto styles output when a provider is available.
	ModeAuto Mode = iota
	// ModeStyled forces styled output.
	ModeStyled
	// ModePlain forces plain output.
	ModePlain
	// ModeJSON writes one JSON object per line.
	ModeJSON
)

// SemanticType is the meaning of a piece of output.
type SemanticType string

const (
	SemanticPlain     SemanticType = "plain"
	SemanticInfo      SemanticType = "info"
	SemanticSuccess   SemanticType = "success"
	SemanticWarning   SemanticType = "warning"
	SemanticError     SemanticType = "error"
	SemanticCommand   SemanticType = "command"
	SemanticHighlight SemanticType = "highlight"
	SemanticBold      SemanticType = "bold"
	SemanticComment   SemanticType = "comment"

	// SemanticHex styles message and attempt hex ids.
	SemanticHex SemanticType = "hex"
	// SemanticUser styles the user role label.
	SemanticUser SemanticType = "user"
	// SemanticAssistant styles the assistant role label.
	SemanticAssistant SemanticType = "assistant"
	// SemanticErrorRole styles the error role label.
	SemanticErrorRole SemanticType = "error_role"
	// SemanticMode styles the retry and secret mode indicators.
	SemanticMode SemanticType = "mode"
	// SemanticDiffInsert and SemanticDiffDelete style attempt diffs.
	SemanticDiffInsert SemanticType = "diff_insert"
	SemanticDiffDelete SemanticType = "diff_delete"
)
