// Package orchestrator decides, for every user action, whether a message may be sent
// and how the outcome mutates the open chat. The decision functions in this file are
// pure; Orchestrator applies them around a provider call.
package orchestrator

import (
	"errors"

	"neurochat/pkg/chattypes"
)

// Mode tags a single send. It is derived per call from the session and is distinct
// from the persistent secret toggle.
type Mode int

const (
	// ModeNormal appends to and persists the open chat.
	ModeNormal Mode = iota
	// ModeRetry records a candidate attempt in the retry sub-session.
	ModeRetry
	// ModeSecret sends with the chat as context but never mutates it.
	ModeSecret
)

func (m Mode) String() string {
	switch m {
	case ModeRetry:
		return "retry"
	case ModeSecret:
		return "secret"
	default:
		return "normal"
	}
}

// ErrPendingError rejects a normal send while the last turn is an unresolved failure.
var ErrPendingError = errors.New("the last turn failed; retry it, rewind it, or switch to secret mode")

// TransitionState is the input of the send/response policy.
type TransitionState struct {
	Mode           Mode
	HasChatContext bool
	HasReservedID  bool
	TailIsUser     bool
}

// CanMutateNormalChat reports whether the send may write to the chat.
func (s TransitionState) CanMutateNormalChat() bool {
	return s.Mode == ModeNormal && s.HasChatContext
}

// ShouldReleaseForError reports whether the reserved id is returned after a provider failure.
func (s TransitionState) ShouldReleaseForError() bool {
	if s.Mode == ModeNormal {
		return s.HasChatContext
	}
	return s.HasReservedID
}

// ShouldReleaseForCancel mirrors ShouldReleaseForError for user interrupts.
func (s TransitionState) ShouldReleaseForCancel() bool {
	if s.Mode == ModeNormal {
		return s.HasChatContext
	}
	return s.HasReservedID
}

// ShouldReleaseForRollback reports whether a rollback must return the reserved id.
func (s TransitionState) ShouldReleaseForRollback() bool {
	return s.HasReservedID
}

// ShouldRollbackPreSend reports whether a leftover unanswered user message is
// removed before the new turn is appended.
func (s TransitionState) ShouldRollbackPreSend() bool {
	return s.Mode == ModeNormal && s.HasChatContext && s.TailIsUser
}

// CheckPendingError applies the pending-error guard for a send in mode.
func CheckPendingError(doc *chattypes.ChatDocument, mode Mode) error {
	if mode != ModeNormal || doc == nil {
		return nil
	}
	if doc.HasPendingError() {
		return ErrPendingError
	}
	return nil
}
