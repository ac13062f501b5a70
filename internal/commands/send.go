package commands

import (
	"context"
	"errors"
	"fmt"

	"neurochat/internal/orchestrator"
	"neurochat/internal/output"
)

// SendText delivers a plain line to the model in the current mode and shows the reply.
func SendText(ctx context.Context, env *Env, text string) error {
	outcome, err := env.Orch.Send(ctx, text)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			env.Out.Warning("Request cancelled")
			return nil
		}
		if outcome != nil && outcome.Failed {
			showOutcome(env, outcome)
			env.Out.Comment("Use /retry to try again or /rewind last to drop it.")
			return nil
		}
		return err
	}
	showOutcome(env, outcome)
	return nil
}

func showOutcome(env *Env, o *orchestrator.Outcome) {
	switch o.Mode {
	case orchestrator.ModeRetry:
		env.Out.Println(env.Out.Styled(output.SemanticMode, "retry") + " attempt " + env.Out.Styled(output.SemanticHex, o.AttemptID))
	case orchestrator.ModeSecret:
		env.Out.Println(env.Out.Styled(output.SemanticMode, "secret") + " not saved")
	}
	env.Out.Message(o.Message)
	if u := o.Usage; u.InputTokens+u.OutputTokens > 0 {
		env.Out.Comment(fmt.Sprintf("%d in / %d out tokens", u.InputTokens, u.OutputTokens))
	}
}
