package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"neurochat/internal/catalog"
	"neurochat/internal/logger"
	"neurochat/internal/output"
	"neurochat/internal/provider"
)

func parseTarget(env *Env, cmd Command, in Input) (string, string, error) {
	if len(in.Args) != 2 {
		return "", "", usageError(cmd)
	}
	name := strings.ToLower(in.Args[0])
	if !env.Orch.State().Providers().IsSupported(name) {
		return "", "", fmt.Errorf("unsupported provider %q (supported: %s)", name,
			strings.Join(env.Orch.State().Providers().Supported(), ", "))
	}
	return name, in.Args[1], nil
}

func describeTarget(t provider.Target) string {
	return t.Provider + "/" + t.Model
}

// warnUncatalogued flags model choices the built-in catalog does not know.
func warnUncatalogued(env *Env, t provider.Target) {
	c, err := catalog.Builtin()
	if err != nil {
		logger.Warn("Model catalog unavailable", "error", err)
		return
	}
	if msg := c.Check(t.Provider, t.Model); msg != "" {
		env.Out.Warning(msg)
	}
}

// ModelCommand shows or changes the model used for sends.
type ModelCommand struct{}

func (c *ModelCommand) Name() string { return "model" }

func (c *ModelCommand) Usage() string { return "/model [<provider> <model>]" }

func (c *ModelCommand) Description() string { return "Show or change the chat model" }

func (c *ModelCommand) Execute(_ context.Context, env *Env, in Input) error {
	state := env.Orch.State()
	if len(in.Args) == 0 {
		env.Out.Info("Model: " + describeTarget(state.Current()))
		return nil
	}
	name, model, err := parseTarget(env, c, in)
	if err != nil {
		return err
	}
	state.SetModel(name, model)
	env.Out.Success("Model set to " + describeTarget(state.Current()))
	warnUncatalogued(env, state.Current())
	return nil
}

// HelperCommand shows or changes the model used for summaries.
type HelperCommand struct{}

func (c *HelperCommand) Name() string { return "helper" }

func (c *HelperCommand) Usage() string { return "/helper [<provider> <model>]" }

func (c *HelperCommand) Description() string { return "Show or change the helper model used by /summarize" }

func (c *HelperCommand) Execute(_ context.Context, env *Env, in Input) error {
	state := env.Orch.State()
	if len(in.Args) == 0 {
		env.Out.Info("Helper: " + describeTarget(state.Helper()))
		return nil
	}
	name, model, err := parseTarget(env, c, in)
	if err != nil {
		return err
	}
	state.SetHelperModel(name, model)
	env.Out.Success("Helper set to " + describeTarget(state.Helper()))
	warnUncatalogued(env, state.Helper())
	return nil
}

// TimeoutCommand shows or changes the request timeout.
type TimeoutCommand struct{}

func (c *TimeoutCommand) Name() string { return "timeout" }

func (c *TimeoutCommand) Usage() string { return "/timeout [duration]" }

func (c *TimeoutCommand) Description() string { return "Show or change the request timeout, e.g. 90s" }

func (c *TimeoutCommand) Execute(_ context.Context, env *Env, in Input) error {
	state := env.Orch.State()
	switch len(in.Args) {
	case 0:
		env.Out.Info("Timeout: " + state.Timeout().String())
		return nil
	case 1:
	default:
		return usageError(c)
	}
	d, err := time.ParseDuration(in.Args[0])
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", in.Args[0], err)
	}
	if d <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	state.SetTimeout(d)
	env.Out.Success("Timeout set to " + d.String())
	return nil
}

// ModelsCommand lists catalog models.
type ModelsCommand struct{}

func (c *ModelsCommand) Name() string { return "models" }

func (c *ModelsCommand) Usage() string { return "/models [provider]" }

func (c *ModelsCommand) Description() string { return "List known models, optionally for one provider" }

func (c *ModelsCommand) Execute(_ context.Context, env *Env, in Input) error {
	if len(in.Args) > 1 {
		return usageError(c)
	}
	cat, err := catalog.Builtin()
	if err != nil {
		return err
	}
	providers := cat.ProviderNames()
	if len(in.Args) == 1 {
		name := strings.ToLower(in.Args[0])
		if len(cat.Models(name)) == 0 {
			return fmt.Errorf("no catalog entries for provider %q", name)
		}
		providers = []string{name}
	}

	current := env.Orch.State().Current()
	for _, p := range providers {
		env.Out.Println(env.Out.Styled(output.SemanticBold, p))
		for _, m := range cat.Models(p) {
			marker := "  "
			if p == current.Provider && m.Name == current.Model {
				marker = "* "
			}
			line := fmt.Sprintf("%s%-28s %s", marker, m.Name, m.DisplayName)
			if m.Deprecated {
				line += " (deprecated)"
			}
			env.Out.Println(line)
		}
	}
	return nil
}
