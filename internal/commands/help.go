package commands

import (
	"context"
	"fmt"

	"neurochat/internal/output"
)

// HelpCommand lists commands.
type HelpCommand struct{}

func (c *HelpCommand) Name() string { return "help" }

func (c *HelpCommand) Usage() string { return "/help [command]" }

func (c *HelpCommand) Description() string { return "List commands" }

func (c *HelpCommand) Execute(_ context.Context, env *Env, in Input) error {
	if env.Registry == nil {
		return fmt.Errorf("no commands registered")
	}
	if len(in.Args) == 1 {
		cmd, ok := env.Registry.Get(in.Args[0])
		if !ok {
			return fmt.Errorf("unknown command /%s", in.Args[0])
		}
		env.Out.Println(env.Out.Styled(output.SemanticCommand, cmd.Usage()))
		env.Out.Println("  " + cmd.Description())
		return nil
	}

	env.Out.Println("Type a message to send it. Commands:")
	for _, cmd := range env.Registry.GetAll() {
		env.Out.Println(fmt.Sprintf("  %-30s %s", cmd.Usage(), cmd.Description()))
	}
	env.Out.Comment("Messages are addressed by the hex ids shown in brackets, or by 'last' and 'turn'.")
	return nil
}

// ExitCommand ends the session.
type ExitCommand struct{}

func (c *ExitCommand) Name() string { return "exit" }

func (c *ExitCommand) Usage() string { return "/exit" }

func (c *ExitCommand) Description() string { return "Leave neurochat" }

func (c *ExitCommand) Execute(_ context.Context, _ *Env, _ Input) error {
	return ErrExit
}
