package interact

import "neurochat/internal/output"

// AutoGateway answers every prompt without a terminal, for batch runs.
type AutoGateway struct {
	// Assume answers confirmations with yes when set and no otherwise.
	Assume  bool
	Printer *output.Printer
}

// PromptText implements Gateway.
func (g *AutoGateway) PromptText(prompt string) (string, error) {
	answer := "n"
	if g.Assume {
		answer = "y"
	}
	if g.Printer != nil {
		g.Printer.Comment(prompt + answer)
	}
	return answer, nil
}

// Notify implements Gateway.
func (g *AutoGateway) Notify(message string) {
	if g.Printer != nil {
		g.Printer.Info(message)
	}
}

// PromptSelection implements Gateway. Nothing is ever selected.
func (g *AutoGateway) PromptSelection(prompt string, _ []string) (int, bool, error) {
	if g.Printer != nil {
		g.Printer.Comment(prompt + " (no selection)")
	}
	return 0, false, nil
}
