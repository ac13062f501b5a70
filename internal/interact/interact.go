// Package interact is the user-facing interaction gateway: free-text prompts,
// notifications, option selection and yes/no confirmation.
package interact

import (
	"fmt"
	"strconv"
	"strings"
)

// Gateway asks the user for input and shows notices.
type Gateway interface {
	// PromptText shows prompt and returns the entered line.
	PromptText(prompt string) (string, error)
	// Notify shows a message that needs no answer.
	Notify(message string)
	// PromptSelection shows options and returns the chosen index.
	// ok is false when the user picked nothing.
	PromptSelection(prompt string, options []string) (index int, ok bool, err error)
}

// Confirm asks question and reports whether the answer was y or yes.
// Any other answer, including an empty one, is a decline.
func Confirm(g Gateway, question string) (bool, error) {
	answer, err := g.PromptText(question + " [y/N] ")
	if err != nil {
		return false, err
	}
	return IsYes(answer), nil
}

// IsYes reports whether answer is an affirmative y or yes in any case.
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// FormatOptions renders options as a numbered list, one per line.
func FormatOptions(options []string) string {
	var b strings.Builder
	for i, opt := range options {
		fmt.Fprintf(&b, "  %d) %s\n", i+1, opt)
	}
	return b.String()
}

// ParseSelection maps an answer to an option index. It accepts a 1-based
// number or the exact option text. Blank or unmatched answers select nothing.
func ParseSelection(answer string, options []string) (int, bool) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(options) {
			return n - 1, true
		}
		return 0, false
	}
	for i, opt := range options {
		if opt == answer {
			return i, true
		}
	}
	return 0, false
}
