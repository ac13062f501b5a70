package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"neurochat/internal/conversation"
	"neurochat/internal/output"
	"neurochat/internal/session"
)

// RetryCommand opens a retry sub-session or generates another attempt inside one.
type RetryCommand struct{}

func (c *RetryCommand) Name() string { return "retry" }

func (c *RetryCommand) Usage() string { return "/retry [hex|last|turn]" }

func (c *RetryCommand) Description() string {
	return "Regenerate a reply as a side attempt; /apply keeps one"
}

func (c *RetryCommand) Execute(ctx context.Context, env *Env, in Input) error {
	if len(in.Args) > 1 {
		return usageError(c)
	}
	token := ""
	if len(in.Args) == 1 {
		token = in.Args[0]
	}

	outcome, err := env.Orch.Retry(ctx, token)
	if err != nil {
		if ctx.Err() != nil {
			env.Out.Warning("Request cancelled")
			return nil
		}
		return err
	}
	showOutcome(env, outcome)
	env.Out.Comment("Send text to try a new prompt, /retry again, /apply <id> or /cancel.")
	return nil
}

// AttemptsCommand lists the attempts of the open retry sub-session.
type AttemptsCommand struct{}

func (c *AttemptsCommand) Name() string { return "attempts" }

func (c *AttemptsCommand) Usage() string { return "/attempts" }

func (c *AttemptsCommand) Description() string { return "List retry attempts" }

func (c *AttemptsCommand) Execute(_ context.Context, env *Env, _ Input) error {
	rs := env.Orch.State().Retry()
	if rs == nil {
		return session.ErrNotRetrying
	}
	env.Out.Info(fmt.Sprintf("Retrying %s (%s)", rs.TargetHexID(), rs.Span().Kind))
	ids := rs.AttemptIDs()
	if len(ids) == 0 {
		env.Out.Comment("No attempts yet")
		return nil
	}
	for _, id := range ids {
		a, _ := rs.Attempt(id)
		env.Out.Println(env.Out.Styled(output.SemanticHex, id) + " " +
			env.Out.Styled(output.SemanticComment, a.Model) + "  " + output.Preview(a.AssistantText, output.PreviewWidth))
	}
	return nil
}

// ApplyCommand commits an attempt into the chat.
type ApplyCommand struct{}

func (c *ApplyCommand) Name() string { return "apply" }

func (c *ApplyCommand) Usage() string { return "/apply <attempt>" }

func (c *ApplyCommand) Description() string { return "Replace the retried turn with an attempt" }

func (c *ApplyCommand) Execute(_ context.Context, env *Env, in Input) error {
	if len(in.Args) != 1 {
		return usageError(c)
	}
	if err := env.Orch.ApplyRetry(in.Args[0]); err != nil {
		return err
	}
	env.Out.Success("Applied attempt " + strings.ToLower(in.Args[0]))
	return nil
}

// CancelCommand discards the retry sub-session.
type CancelCommand struct{}

func (c *CancelCommand) Name() string { return "cancel" }

func (c *CancelCommand) Usage() string { return "/cancel" }

func (c *CancelCommand) Description() string { return "Leave retry mode without changing the chat" }

func (c *CancelCommand) Execute(_ context.Context, env *Env, _ Input) error {
	if err := env.Orch.CancelRetry(); err != nil {
		return err
	}
	env.Out.Info("Retry cancelled")
	return nil
}

// DiffCommand compares two attempts, or an attempt and a chat message, line by line.
type DiffCommand struct{}

func (c *DiffCommand) Name() string { return "diff" }

func (c *DiffCommand) Usage() string { return "/diff <a> <b>" }

func (c *DiffCommand) Description() string {
	return "Show a line diff between two attempts or messages"
}

func (c *DiffCommand) Execute(_ context.Context, env *Env, in Input) error {
	if len(in.Args) != 2 {
		return usageError(c)
	}
	a, err := lookupText(env, in.Args[0])
	if err != nil {
		return err
	}
	b, err := lookupText(env, in.Args[1])
	if err != nil {
		return err
	}
	lines := LineDiff(a, b)
	if len(lines) == 0 {
		env.Out.Info("No differences")
		return nil
	}
	for _, l := range lines {
		switch l.Op {
		case diffmatchpatch.DiffInsert:
			env.Out.Println(env.Out.Styled(output.SemanticDiffInsert, "+ "+l.Text))
		case diffmatchpatch.DiffDelete:
			env.Out.Println(env.Out.Styled(output.SemanticDiffDelete, "- "+l.Text))
		default:
			env.Out.Println("  " + l.Text)
		}
	}
	return nil
}

// lookupText finds an attempt reply by id, falling back to a chat message address.
func lookupText(env *Env, token string) (string, error) {
	token = strings.ToLower(token)
	if rs := env.Orch.State().Retry(); rs != nil {
		if a, ok := rs.Attempt(token); ok {
			return a.AssistantText, nil
		}
	}
	chat, err := requireChat(env)
	if err != nil {
		return "", err
	}
	target, err := conversation.Resolve(chat.Doc, token)
	if err != nil {
		return "", fmt.Errorf("%s: %w", token, err)
	}
	return chat.Doc.Messages[target.End].Text(), nil
}

// DiffLine is one line of a line diff.
type DiffLine struct {
	Op   diffmatchpatch.Operation
	Text string
}

// LineDiff compares a and b line by line. It returns nothing when they are equal.
func LineDiff(a, b string) []DiffLine {
	if a == b {
		return nil
	}
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var out []DiffLine
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out = append(out, DiffLine{Op: d.Type, Text: strings.TrimSuffix(line, "\n")})
		}
	}
	return out
}
