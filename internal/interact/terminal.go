package interact

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"neurochat/internal/logger"
	"neurochat/internal/output"
)

// ErrInterrupted is returned when the user presses Ctrl-C at a prompt.
var ErrInterrupted = errors.New("interrupted")

// TerminalConfig configures a readline terminal.
type TerminalConfig struct {
	Prompt      string
	HistoryFile string
	// Commands are offered for tab completion after a leading slash.
	Commands []string
	Printer  *output.Printer
	// Stdin and Stdout override the process streams.
	Stdin  io.ReadCloser
	Stdout io.Writer
}

// Terminal is a readline-backed Gateway that also reads REPL lines.
type Terminal struct {
	rl      *readline.Instance
	prompt  string
	printer *output.Printer
}

// NewTerminal opens a readline instance.
func NewTerminal(cfg TerminalConfig) (*Terminal, error) {
	rlCfg := &readline.Config{
		Prompt:            cfg.Prompt,
		HistoryFile:       cfg.HistoryFile,
		AutoComplete:      NewCompleter(cfg.Commands),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             cfg.Stdin,
		Stdout:            cfg.Stdout,
	}
	if output.ColorEnabled() {
		rlCfg.Painter = NewCommandHighlighter(cfg.Printer)
	}
	rl, err := readline.NewEx(rlCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %w", err)
	}

	printer := cfg.Printer
	if printer == nil {
		printer = output.NewPrinter(output.WithWriter(rl.Stdout()))
	} else {
		printer.SetWriter(rl.Stdout())
	}
	return &Terminal{rl: rl, prompt: cfg.Prompt, printer: printer}, nil
}

// SetPrompt changes the REPL prompt.
func (t *Terminal) SetPrompt(prompt string) {
	t.prompt = prompt
	t.rl.SetPrompt(prompt)
}

// ReadLine reads one REPL line. Ctrl-C yields ErrInterrupted and Ctrl-D io.EOF.
func (t *Terminal) ReadLine() (string, error) {
	line, err := t.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", ErrInterrupted
	}
	return line, err
}

// PromptText implements Gateway. The REPL prompt is restored afterwards.
func (t *Terminal) PromptText(prompt string) (string, error) {
	t.rl.SetPrompt(prompt)
	defer t.rl.SetPrompt(t.prompt)

	line, err := t.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", ErrInterrupted
	}
	if err != nil {
		return "", err
	}
	return line, nil
}

// Notify implements Gateway.
func (t *Terminal) Notify(message string) {
	t.printer.Info(message)
}

// PromptSelection implements Gateway.
func (t *Terminal) PromptSelection(prompt string, options []string) (int, bool, error) {
	t.printer.Print(FormatOptions(options))
	answer, err := t.PromptText(prompt + " ")
	if err != nil {
		return 0, false, err
	}
	idx, ok := ParseSelection(answer, options)
	return idx, ok, nil
}

// Printer returns the printer bound to the terminal output.
func (t *Terminal) Printer() *output.Printer {
	return t.printer
}

// Close releases the terminal.
func (t *Terminal) Close() error {
	return t.rl.Close()
}

// Completer completes slash commands.
type Completer struct {
	commands []string
}

// NewCompleter builds a completer over command names without the leading slash.
func NewCompleter(commands []string) *Completer {
	sorted := append([]string(nil), commands...)
	sort.Strings(sorted)
	return &Completer{commands: sorted}
}

// Do implements readline.AutoCompleter. Only the first word of a line
// starting with a slash is completed.
func (c *Completer) Do(line []rune, pos int) ([][]rune, int) {
	if pos > len(line) {
		pos = len(line)
	}
	word := string(line[:pos])
	if !strings.HasPrefix(word, "/") || strings.ContainsAny(word, " \t") {
		return nil, 0
	}
	typed := strings.TrimPrefix(word, "/")

	var suggestions [][]rune
	for _, name := range c.commands {
		if strings.HasPrefix(name, typed) {
			suggestions = append(suggestions, []rune(strings.TrimPrefix(name, typed)+" "))
		}
	}
	logger.Debug("Completion", "word", word, "matches", len(suggestions))
	return suggestions, len([]rune(typed))
}

var commandPrefix = regexp.MustCompile(`^(/[a-zA-Z]+)(.*)$`)

// CommandHighlighter paints the slash command at the start of the input line.
type CommandHighlighter struct {
	printer *output.Printer
}

// NewCommandHighlighter returns a readline.Painter styled by printer.
func NewCommandHighlighter(printer *output.Printer) readline.Painter {
	return &CommandHighlighter{printer: printer}
}

// Paint implements readline.Painter.
func (h *CommandHighlighter) Paint(line []rune, _ int) []rune {
	if h.printer == nil {
		return line
	}
	m := commandPrefix.FindStringSubmatch(string(line))
	if m == nil {
		return line
	}
	return []rune(h.printer.Styled(output.SemanticCommand, m[1]) + m[2])
}
