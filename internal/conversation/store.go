// Package conversation provides the mutation primitives of a chat transcript.
// Every operation validates its arguments before touching the document, so a call
// either fully applies or leaves the document exactly as it was.
package conversation

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"neurochat/internal/hexid"
	"neurochat/internal/logger"
	"neurochat/pkg/chattypes"
)

var (
	// ErrOutOfRange is returned for indices outside the message sequence.
	ErrOutOfRange = errors.New("message index out of range")
	// ErrMalformed is returned for messages whose fields do not match their role.
	ErrMalformed = errors.New("malformed message")
	// ErrDuplicateHexID is returned when a message would share its hex id with another.
	ErrDuplicateHexID = errors.New("duplicate hex id")
)

// Clock returns the current time.
type Clock func() time.Time

// Store mutates documents on behalf of one session. It owns no document; it only
// keeps the session's hex id registry consistent with the messages it touches.
type Store struct {
	ids *hexid.Registry
	now Clock
}

// NewStore creates a store bound to a session registry.
func NewStore(ids *hexid.Registry, now Clock) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{ids: ids, now: now}
}

// Registry returns the hex id registry the store issues ids from.
func (s *Store) Registry() *hexid.Registry {
	return s.ids
}

// AttachIDs gives every message without a hex id a fresh one. It is called when a
// document is loaded into a live session.
func (s *Store) AttachIDs(doc *chattypes.ChatDocument) {
	missing := make([]int, 0, len(doc.Messages))
	for i, m := range doc.Messages {
		if m.HexID == "" {
			missing = append(missing, i)
		}
	}
	mapping := s.ids.AssignBulk(len(missing))
	for pos, idx := range missing {
		id, _ := mapping.IDFor(pos)
		doc.Messages[idx].HexID = id
	}
	logger.Debug("Attached hex ids", "count", len(missing))
}

// Append adds msg at the end of the transcript and returns it as stored.
// A message may arrive with a hex id reserved for it earlier; otherwise a fresh one is issued.
func (s *Store) Append(doc *chattypes.ChatDocument, msg chattypes.ChatMessage) (chattypes.ChatMessage, error) {
	if !msg.WellFormed() {
		return chattypes.ChatMessage{}, fmt.Errorf("%w: role %q", ErrMalformed, msg.Role)
	}
	if msg.HexID != "" {
		if _, taken := doc.IndexOf(msg.HexID); taken {
			return chattypes.ChatMessage{}, fmt.Errorf("%w: %s", ErrDuplicateHexID, msg.HexID)
		}
		s.ids.Reserve(msg.HexID)
	} else {
		msg.HexID = s.ids.Generate()
	}

	doc.Messages = append(doc.Messages, msg)
	doc.Touch(s.now())
	return msg, nil
}

// DeleteRangeFrom deletes the message at start and everything after it.
func (s *Store) DeleteRangeFrom(doc *chattypes.ChatDocument, start int) (int, error) {
	if start < 0 || start >= len(doc.Messages) {
		return 0, fmt.Errorf("%w: %d (chat has %d messages)", ErrOutOfRange, start, len(doc.Messages))
	}

	removed := doc.Messages[start:]
	for _, m := range removed {
		s.ids.Release(m.HexID)
	}
	count := len(removed)
	doc.Messages = doc.Messages[:start:start]
	doc.Touch(s.now())
	return count, nil
}

// DeleteSet deletes an arbitrary set of messages. Survivors keep their relative
// order and hex ids; the order of indices is irrelevant and duplicates count once.
func (s *Store) DeleteSet(doc *chattypes.ChatDocument, indices []int) (int, error) {
	doomed := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(doc.Messages) {
			return 0, fmt.Errorf("%w: %d (chat has %d messages)", ErrOutOfRange, idx, len(doc.Messages))
		}
		doomed[idx] = struct{}{}
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	survivors := make([]chattypes.ChatMessage, 0, len(doc.Messages)-len(doomed))
	for i, m := range doc.Messages {
		if _, drop := doomed[i]; drop {
			s.ids.Release(m.HexID)
			continue
		}
		survivors = append(survivors, m)
	}
	doc.Messages = survivors
	doc.Touch(s.now())
	return len(doomed), nil
}

// ReplaceRange removes messages start..end (inclusive) and splices replacement in
// their place. Replacement messages may reuse hex ids of the messages they replace;
// those without an id receive a fresh one.
func (s *Store) ReplaceRange(doc *chattypes.ChatDocument, start, end int, replacement []chattypes.ChatMessage) error {
	n := len(doc.Messages)
	if start < 0 || end < start || end >= n {
		return fmt.Errorf("%w: span %d..%d (chat has %d messages)", ErrOutOfRange, start, end, n)
	}

	outside := make(map[string]struct{}, n)
	for i, m := range doc.Messages {
		if (i < start || i > end) && m.HexID != "" {
			outside[m.HexID] = struct{}{}
		}
	}
	seen := make(map[string]struct{}, len(replacement))
	for _, m := range replacement {
		if !m.WellFormed() {
			return fmt.Errorf("%w: role %q", ErrMalformed, m.Role)
		}
		if m.HexID == "" {
			continue
		}
		if _, clash := outside[m.HexID]; clash {
			return fmt.Errorf("%w: %s", ErrDuplicateHexID, m.HexID)
		}
		if _, dup := seen[m.HexID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateHexID, m.HexID)
		}
		seen[m.HexID] = struct{}{}
	}

	for _, m := range doc.Messages[start : end+1] {
		if _, kept := seen[m.HexID]; !kept {
			s.ids.Release(m.HexID)
		}
	}

	spliced := make([]chattypes.ChatMessage, 0, n-(end-start+1)+len(replacement))
	spliced = append(spliced, doc.Messages[:start]...)
	for _, m := range replacement {
		m = m.Clone()
		if m.HexID == "" {
			m.HexID = s.ids.Generate()
		} else {
			s.ids.Reserve(m.HexID)
		}
		spliced = append(spliced, m)
	}
	spliced = append(spliced, doc.Messages[end+1:]...)

	doc.Messages = spliced
	doc.Touch(s.now())
	return nil
}

// MessagesForModel returns the user and assistant messages of doc, in order, as the
// provider should see them. Errors are excluded. maxCount > 0 keeps only the most
// recent maxCount messages.
func MessagesForModel(doc *chattypes.ChatDocument, maxCount int) []chattypes.ChatMessage {
	return FilterForModel(doc.Messages, maxCount)
}

// FilterForModel is MessagesForModel over a bare message slice.
func FilterForModel(msgs []chattypes.ChatMessage, maxCount int) []chattypes.ChatMessage {
	out := make([]chattypes.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == chattypes.RoleUser || m.Role == chattypes.RoleAssistant {
			out = append(out, m.Clone())
		}
	}
	if maxCount > 0 && len(out) > maxCount {
		out = out[len(out)-maxCount:]
	}
	return out
}

// SortedUnique returns indices sorted ascending without duplicates.
func SortedUnique(indices []int) []int {
	set := make(map[int]struct{}, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if _, ok := set[i]; ok {
			continue
		}
		set[i] = struct{}{}
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
