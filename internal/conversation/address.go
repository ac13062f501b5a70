package conversation

import (
	"errors"
	"fmt"
	"strings"

	"neurochat/internal/hexid"
	"neurochat/internal/retry"
	"neurochat/pkg/chattypes"
)

// Address keywords accepted wherever a hex id is.
const (
	KeywordLast = "last"
	KeywordTurn = "turn"
)

var (
	// ErrAmbiguousNumeric rejects bare integers, which could be read as a position or an id.
	ErrAmbiguousNumeric = errors.New("use a hex id, 'last', or 'turn'")
	// ErrInvalidHexID is returned for malformed ids and ids not present in the chat.
	ErrInvalidHexID = errors.New("invalid hex ID")
	// ErrIncompleteTurn is returned when "last" or "turn" is used on a tail without a reply.
	ErrIncompleteTurn = errors.New("incomplete turn: the last message has no reply yet")
)

// Target is an inclusive index range a command acts upon.
type Target struct {
	Start int
	End   int
}

// Indices lists every index covered by the target.
func (t Target) Indices() []int {
	out := make([]int, 0, t.End-t.Start+1)
	for i := t.Start; i <= t.End; i++ {
		out = append(out, i)
	}
	return out
}

// Resolve maps a user-typed address to message indices.
//
//   - a hex id names one message;
//   - "last" names the final message and requires a complete trailing interaction;
//   - "turn" names the whole trailing interaction (user plus reply, or a standalone error).
func Resolve(doc *chattypes.ChatDocument, token string) (Target, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return Target{}, ErrAmbiguousNumeric
	}

	switch token {
	case KeywordLast, KeywordTurn:
		span, ok := retry.ResolveLastInteraction(doc.Messages)
		if !ok {
			return Target{}, ErrIncompleteTurn
		}
		if token == KeywordLast {
			return Target{Start: span.End, End: span.End}, nil
		}
		return Target{Start: span.Start, End: span.End}, nil
	}

	if isInteger(token) {
		return Target{}, fmt.Errorf("%w (got %q)", ErrAmbiguousNumeric, token)
	}
	if !hexid.IsValid(token) {
		return Target{}, fmt.Errorf("%w: %s", ErrInvalidHexID, token)
	}
	idx, ok := doc.IndexOf(token)
	if !ok {
		return Target{}, fmt.Errorf("%w: %s", ErrInvalidHexID, token)
	}
	return Target{Start: idx, End: idx}, nil
}

// ResolveSet resolves several addresses and returns the union of their indices,
// sorted ascending. Any failure aborts the whole set.
func ResolveSet(doc *chattypes.ChatDocument, tokens []string) ([]int, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: no message given", ErrInvalidHexID)
	}
	var all []int
	for _, token := range tokens {
		target, err := Resolve(doc, token)
		if err != nil {
			return nil, err
		}
		all = append(all, target.Indices()...)
	}
	return SortedUnique(all), nil
}

func isInteger(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
