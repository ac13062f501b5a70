package retry

import (
	"errors"
	"time"

	"neurochat/pkg/chattypes"
)

// ErrTargetInvalid is returned when the retry target no longer exists in the live document.
var ErrTargetInvalid = errors.New("retry target no longer valid")

// Attempt is one regenerated candidate for a retried turn.
type Attempt struct {
	UserText      string
	AssistantText string
	Citations     []chattypes.Citation
	Model         string
}

// Plan describes a replace_range call: messages Start..End (inclusive) are
// replaced by Messages.
type Plan struct {
	Start    int
	End      int
	Messages []chattypes.ChatMessage
}

// TargetSpan computes the span a retry of target replaces. When the message before
// target is a user prompt the pair is regenerated; otherwise only target is replaced.
// The target must be an assistant reply or an error.
func TargetSpan(msgs []chattypes.ChatMessage, target int) (Span, error) {
	if target < 0 || target >= len(msgs) {
		return Span{}, ErrTargetInvalid
	}

	switch msgs[target].Role {
	case chattypes.RoleAssistant, chattypes.RoleError:
	default:
		return Span{}, ErrTargetInvalid
	}

	if target > 0 && msgs[target-1].Role == chattypes.RoleUser {
		kind := SpanUserAssistant
		if msgs[target].Role == chattypes.RoleError {
			kind = SpanUserError
		}
		return Span{Kind: kind, Start: target - 1, End: target, ContextEnd: target - 1}, nil
	}

	return Span{Kind: SpanStandaloneError, Start: target, End: target, ContextEnd: target}, nil
}

// PlanReplacement builds the splice that commits attempt in place of the turn at target.
// Hex ids of the replaced messages carry over to their counterparts so the user can keep
// addressing them; a synthesized leading user message in the standalone case gets none.
// The reply is stamped with model, the active model at commit time.
func PlanReplacement(msgs []chattypes.ChatMessage, target int, attempt Attempt, model string, now time.Time) (Plan, error) {
	span, err := TargetSpan(msgs, target)
	if err != nil {
		return Plan{}, err
	}

	user := chattypes.NewUserMessage(attempt.UserText, now)
	reply := chattypes.NewAssistantMessage(attempt.AssistantText, model, attempt.Citations, now)
	reply.HexID = msgs[span.End].HexID

	if span.Start < span.End {
		user.HexID = msgs[span.Start].HexID
	}

	return Plan{
		Start:    span.Start,
		End:      span.End,
		Messages: []chattypes.ChatMessage{user, reply},
	}, nil
}

// PromptFor recovers the user text that produced the turn at span.
// For paired spans that is the user message; for a standalone error it is the
// prompt kept in the error details, if any.
func PromptFor(msgs []chattypes.ChatMessage, span Span) string {
	if span.Start < span.End {
		return msgs[span.Start].Text()
	}
	if d := msgs[span.End].Details; d != nil {
		return chattypes.LinesToText(d.Prompt)
	}
	return ""
}
