// Package commands implements the slash commands typed at the neurochat prompt
// and routes plain text to the orchestrator.
package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"neurochat/internal/logger"
)

// Input is a parsed command line.
type Input struct {
	// Args are the whitespace-separated arguments after the command name.
	Args []string
	// Raw is the unsplit text after the command name, trimmed.
	Raw string
}

// Command is one slash command.
type Command interface {
	Name() string
	Usage() string
	Description() string
	Execute(ctx context.Context, env *Env, in Input) error
}

// Registry maps command names to commands.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds cmd. Names must be non-empty and unique.
func (r *Registry) Register(cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cmd.Name() == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	if _, exists := r.commands[cmd.Name()]; exists {
		return fmt.Errorf("command %s already registered", cmd.Name())
	}
	r.commands[cmd.Name()] = cmd
	return nil
}

// Get looks up a command by name.
func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// GetAll returns every command sorted by name.
func (r *Registry) GetAll() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		all = append(all, cmd)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })
	return all
}

// Names returns every command name sorted.
func (r *Registry) Names() []string {
	all := r.GetAll()
	names := make([]string, len(all))
	for i, cmd := range all {
		names[i] = cmd.Name()
	}
	return names
}

// ParseLine splits "/name args" into the command name and its input.
// ok is false for lines that are not commands.
func ParseLine(line string) (name string, in Input, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", Input{}, false
	}
	head, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	return strings.ToLower(head), Input{Args: strings.Fields(rest), Raw: rest}, true
}

// Dispatch runs one REPL line: a slash command, or a message for the model.
func (r *Registry) Dispatch(ctx context.Context, env *Env, line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	name, in, isCommand := ParseLine(line)
	if !isCommand {
		return SendText(ctx, env, line)
	}

	cmd, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("unknown command /%s (try /help)", name)
	}
	logger.CommandExecution(name, in.Raw)
	return cmd.Execute(ctx, env, in)
}

// NewDefaultRegistry registers every built-in command.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, cmd := range []Command{
		&RetryCommand{},
		&AttemptsCommand{},
		&ApplyCommand{},
		&CancelCommand{},
		&DiffCommand{},
		&RewindCommand{},
		&PurgeCommand{},
		&SecretCommand{},
		&SearchCommand{},
		&ModelCommand{},
		&HelperCommand{},
		&ModelsCommand{},
		&TimeoutCommand{},
		&TitleCommand{},
		&SystemCommand{},
		&SummarizeCommand{},
		&HistoryCommand{},
		&CopyCommand{},
		&OpenCommand{},
		&NewCommand{},
		&StatusCommand{},
		&HelpCommand{},
		&ExitCommand{},
	} {
		if err := r.Register(cmd); err != nil {
			panic(fmt.Sprintf("failed to register %s command: %v", cmd.Name(), err))
		}
	}
	return r
}
