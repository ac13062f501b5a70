package commands

import (
	"errors"
	"fmt"

	"neurochat/internal/interact"
	"neurochat/internal/orchestrator"
	"neurochat/internal/output"
	"neurochat/pkg/chattypes"
)

var (
	// ErrCancelled is returned when the user declines a confirmation. It is not a failure.
	ErrCancelled = errors.New("operation cancelled")
	// ErrExit asks the REPL to stop.
	ErrExit = errors.New("exit requested")
)

// Clipboard receives copied text.
type Clipboard interface {
	WriteText(text string) error
}

// Env is what commands operate on.
type Env struct {
	Orch      *orchestrator.Orchestrator
	UI        interact.Gateway
	Out       *output.Printer
	Clipboard Clipboard
	Registry  *Registry
	// ChatDir is where /new creates chats and bare /open names are looked up.
	ChatDir  string
	TestMode bool
}

func usageError(cmd Command) error {
	return fmt.Errorf("usage: %s", cmd.Usage())
}

// confirmDeletion previews msgs and asks before deleting them.
func confirmDeletion(env *Env, msgs []chattypes.ChatMessage) error {
	for _, m := range msgs {
		env.Out.MessageLine(m)
	}
	noun := "messages"
	if len(msgs) == 1 {
		noun = "message"
	}
	ok, err := interact.Confirm(env.UI, fmt.Sprintf("Delete %d %s?", len(msgs), noun))
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}
	return nil
}

func requireChat(env *Env) (*orchestrator.Chat, error) {
	chat := env.Orch.Chat()
	if chat == nil {
		return nil, orchestrator.ErrNoChat
	}
	return chat, nil
}
