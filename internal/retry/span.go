// Package retry contains the pure planning functions behind retry and keyword addressing.
// Nothing here mutates a document: callers receive spans and replacement plans and hand
// them to the conversation store.
package retry

import "neurochat/pkg/chattypes"

// SpanKind classifies the trailing interaction of a transcript.
type SpanKind int

const (
	// SpanNone means no complete trailing interaction exists.
	SpanNone SpanKind = iota
	// SpanUserAssistant is a user prompt answered by the assistant.
	SpanUserAssistant
	// SpanUserError is a user prompt whose reply failed.
	SpanUserError
	// SpanStandaloneError is an error recorded after a completed turn.
	SpanStandaloneError
)

func (k SpanKind) String() string {
	switch k {
	case SpanUserAssistant:
		return "user_assistant"
	case SpanUserError:
		return "user_error"
	case SpanStandaloneError:
		return "standalone_error"
	default:
		return "none"
	}
}

// Span is an inclusive index range acted upon as a unit.
// ContextEnd is the exclusive end of the messages preceding the span.
type Span struct {
	Kind       SpanKind
	Start      int
	End        int
	ContextEnd int
}

// Len returns the number of messages covered by the span.
func (s Span) Len() int {
	return s.End - s.Start + 1
}

// ResolveLastInteraction finds the trailing interaction of msgs.
// A lone trailing user message, or any other incomplete tail, yields ok=false.
func ResolveLastInteraction(msgs []chattypes.ChatMessage) (Span, bool) {
	n := len(msgs)
	if n == 0 {
		return Span{}, false
	}
	last := msgs[n-1]

	if n >= 2 && msgs[n-2].Role == chattypes.RoleUser {
		switch last.Role {
		case chattypes.RoleAssistant:
			return Span{Kind: SpanUserAssistant, Start: n - 2, End: n - 1, ContextEnd: n - 2}, true
		case chattypes.RoleError:
			return Span{Kind: SpanUserError, Start: n - 2, End: n - 1, ContextEnd: n - 2}, true
		}
		return Span{}, false
	}

	if last.Role == chattypes.RoleError && (n == 1 || msgs[n-2].Role == chattypes.RoleAssistant) {
		return Span{Kind: SpanStandaloneError, Start: n - 1, End: n - 1, ContextEnd: n - 1}, true
	}

	return Span{}, false
}

// Context returns the messages that precede span, the history a regenerated
// turn is conditioned on.
func Context(msgs []chattypes.ChatMessage, span Span) []chattypes.ChatMessage {
	if span.ContextEnd <= 0 {
		return []chattypes.ChatMessage{}
	}
	return chattypes.CloneMessages(msgs[:span.ContextEnd])
}
