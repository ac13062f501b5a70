// Package shell runs the interactive neurochat prompt and batch scripts on top of
// the command layer.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"neurochat/internal/commands"
	"neurochat/internal/interact"
	"neurochat/internal/logger"
	"neurochat/internal/orchestrator"
)

// LineReader supplies REPL input.
type LineReader interface {
	ReadLine() (string, error)
	SetPrompt(prompt string)
}

// Shell routes input lines to the command registry.
type Shell struct {
	registry *commands.Registry
	env      *commands.Env
	// interrupts derives a per-line context that ends on Ctrl-C.
	interrupts func(context.Context) (context.Context, context.CancelFunc)
}

// New creates a shell over env. env.Registry is set to registry when empty.
func New(registry *commands.Registry, env *commands.Env) *Shell {
	if env.Registry == nil {
		env.Registry = registry
	}
	return &Shell{
		registry: registry,
		env:      env,
		interrupts: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
}

// Prompt renders the REPL prompt with the active mode markers.
func Prompt(o *orchestrator.Orchestrator) string {
	var marks []string
	state := o.State()
	if rs := state.Retry(); rs != nil {
		marks = append(marks, fmt.Sprintf("retry %s:%d", rs.TargetHexID(), len(rs.AttemptIDs())))
	} else if state.SecretMode() {
		marks = append(marks, "secret")
	}
	if state.SearchMode() {
		marks = append(marks, "search")
	}
	if chat := o.Chat(); chat != nil && chat.Doc.HasPendingError() {
		marks = append(marks, "failed")
	}
	if len(marks) == 0 {
		return "neurochat> "
	}
	return "neurochat [" + strings.Join(marks, " ") + "]> "
}

// ProcessLine runs one line. It reports whether the session should end.
func (s *Shell) ProcessLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	lineCtx, stop := s.interrupts(ctx)
	defer stop()

	err := s.registry.Dispatch(lineCtx, s.env, line)
	switch {
	case err == nil:
	case errors.Is(err, commands.ErrExit):
		return true
	case errors.Is(err, commands.ErrCancelled):
		s.env.Out.Comment("Cancelled")
	default:
		logger.Debug("Command failed", "input", line, "error", err)
		s.env.Out.Error(err.Error())
	}
	return false
}

// Run reads lines until /exit, Ctrl-D or ctx ends. Ctrl-C at the prompt clears the line.
func (s *Shell) Run(ctx context.Context, reader LineReader) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		reader.SetPrompt(Prompt(s.env.Orch))
		line, err := reader.ReadLine()
		if errors.Is(err, interact.ErrInterrupted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if s.ProcessLine(ctx, line) {
			return nil
		}
	}
}

// RunScript executes each line of r as if typed at the prompt. Blank lines and
// lines starting with %% are skipped. The first failing line stops the script.
func (s *Shell) RunScript(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		s.env.Out.Println(Prompt(s.env.Orch) + line)

		err := s.registry.Dispatch(ctx, s.env, line)
		if errors.Is(err, commands.ErrExit) {
			return nil
		}
		if err != nil && !errors.Is(err, commands.ErrCancelled) {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return scanner.Err()
}
