package commands

import (
	"context"
	"fmt"
)

// RewindCommand deletes a message and everything after it.
type RewindCommand struct{}

func (c *RewindCommand) Name() string { return "rewind" }

func (c *RewindCommand) Usage() string { return "/rewind <hex|last|turn>" }

func (c *RewindCommand) Description() string {
	return "Delete a message and everything after it"
}

func (c *RewindCommand) Execute(_ context.Context, env *Env, in Input) error {
	if len(in.Args) != 1 {
		return usageError(c)
	}
	preview, err := env.Orch.RewindPreview(in.Args[0])
	if err != nil {
		return err
	}
	if err := confirmDeletion(env, preview); err != nil {
		return err
	}
	deleted, err := env.Orch.Rewind(in.Args[0])
	if err != nil {
		return err
	}
	env.Out.Success(fmt.Sprintf("Deleted %d messages", deleted))
	return nil
}

// PurgeCommand deletes exactly the named messages.
type PurgeCommand struct{}

func (c *PurgeCommand) Name() string { return "purge" }

func (c *PurgeCommand) Usage() string { return "/purge <hex> [hex...]" }

func (c *PurgeCommand) Description() string {
	return "Delete specific messages and keep the rest"
}

func (c *PurgeCommand) Execute(_ context.Context, env *Env, in Input) error {
	if len(in.Args) == 0 {
		return usageError(c)
	}
	preview, err := env.Orch.PurgePreview(in.Args)
	if err != nil {
		return err
	}
	if err := confirmDeletion(env, preview); err != nil {
		return err
	}
	deleted, err := env.Orch.Purge(in.Args)
	if err != nil {
		return err
	}
	env.Out.Success(fmt.Sprintf("Deleted %d messages", deleted))
	return nil
}
