package commands

import (
	"context"
	"fmt"
)

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func rejectOneShot(name string, in Input) error {
	if in.Raw != "" {
		return fmt.Errorf("/%s is a toggle and takes no message; run /%s, then send the text", name, name)
	}
	return nil
}

// SecretCommand toggles secret mode: sends see the chat but are never saved.
type SecretCommand struct{}

func (c *SecretCommand) Name() string { return "secret" }

func (c *SecretCommand) Usage() string { return "/secret" }

func (c *SecretCommand) Description() string {
	return "Toggle secret mode (replies are shown but not saved)"
}

func (c *SecretCommand) Execute(_ context.Context, env *Env, in Input) error {
	if err := rejectOneShot(c.Name(), in); err != nil {
		return err
	}
	on := env.Orch.State().ToggleSecret()
	env.Out.Info("Secret mode " + onOff(on))
	if on && env.Orch.State().InRetry() {
		env.Out.Comment("Retry mode takes precedence until you /apply or /cancel.")
	}
	return nil
}

// SearchCommand toggles web search on requests.
type SearchCommand struct{}

func (c *SearchCommand) Name() string { return "search" }

func (c *SearchCommand) Usage() string { return "/search" }

func (c *SearchCommand) Description() string { return "Toggle web search for requests" }

func (c *SearchCommand) Execute(_ context.Context, env *Env, in Input) error {
	if err := rejectOneShot(c.Name(), in); err != nil {
		return err
	}
	env.Out.Info("Search " + onOff(env.Orch.State().ToggleSearch()))
	return nil
}
