package session

import (
	"fmt"

	"neurochat/internal/conversation"
	"neurochat/internal/logger"
	"neurochat/internal/retry"
	"neurochat/pkg/chattypes"
)

// RetrySession holds candidate regenerations of one turn until one is applied or
// the sub-session is cancelled.
type RetrySession struct {
	base      []chattypes.ChatMessage
	target    int
	targetHex string
	span      retry.Span
	prompt    string
	attempts  map[string]retry.Attempt
	order     []string
}

// Base returns a copy of the messages preceding the retried span.
func (r *RetrySession) Base() []chattypes.ChatMessage {
	return chattypes.CloneMessages(r.base)
}

// Target returns the index of the retried reply in the live document.
func (r *RetrySession) Target() int {
	return r.target
}

// TargetHexID returns the hex id the target carried when the sub-session opened.
func (r *RetrySession) TargetHexID() string {
	return r.targetHex
}

// Span returns the span a committed attempt replaces.
func (r *RetrySession) Span() retry.Span {
	return r.span
}

// Prompt returns the user text of the most recent attempt, or of the original turn
// when no attempt exists yet.
func (r *RetrySession) Prompt() string {
	if n := len(r.order); n > 0 {
		return r.attempts[r.order[n-1]].UserText
	}
	return r.prompt
}

// Attempt returns the attempt recorded under id.
func (r *RetrySession) Attempt(id string) (retry.Attempt, bool) {
	a, ok := r.attempts[id]
	return a, ok
}

// AttemptIDs returns attempt identifiers in generation order.
func (r *RetrySession) AttemptIDs() []string {
	return append([]string(nil), r.order...)
}

// Retry returns the open retry sub-session, or nil.
func (s *State) Retry() *RetrySession {
	return s.retry
}

// InRetry reports whether a retry sub-session is open.
func (s *State) InRetry() bool {
	return s.retry != nil
}

// EnterRetry opens a retry sub-session for the reply at target. The messages preceding
// the replaced span are deep-copied as the fixed context for every attempt.
func (s *State) EnterRetry(doc *chattypes.ChatDocument, target int) (*RetrySession, error) {
	if s.retry != nil {
		return nil, ErrAlreadyRetrying
	}
	span, err := retry.TargetSpan(doc.Messages, target)
	if err != nil {
		return nil, err
	}

	s.retry = &RetrySession{
		base:      chattypes.CloneMessages(doc.Messages[:span.ContextEnd]),
		target:    target,
		targetHex: doc.Messages[target].HexID,
		span:      span,
		prompt:    retry.PromptFor(doc.Messages, span),
		attempts:  make(map[string]retry.Attempt),
	}
	logger.Debug("Retry sub-session opened", "target", target, "span", span.Kind.String())
	return s.retry, nil
}

// RecordAttempt stores a generated attempt under an id reserved from the registry.
// Earlier attempts are never overwritten.
func (s *State) RecordAttempt(id string, attempt retry.Attempt) error {
	if s.retry == nil {
		return ErrNotRetrying
	}
	if _, exists := s.retry.attempts[id]; exists {
		return fmt.Errorf("attempt %s already recorded", id)
	}
	s.retry.attempts[id] = attempt
	s.retry.order = append(s.retry.order, id)
	return nil
}

// ApplyRetry commits the attempt id into doc and closes the sub-session.
// When the target has gone stale, retry.ErrTargetInvalid is returned and the
// sub-session stays open so the user can cancel or pick again.
func (s *State) ApplyRetry(doc *chattypes.ChatDocument, store *conversation.Store, id string) error {
	if s.retry == nil {
		return ErrNotRetrying
	}
	attempt, ok := s.retry.attempts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAttemptNotFound, id)
	}

	target := s.retry.target
	if target >= len(doc.Messages) || doc.Messages[target].HexID != s.retry.targetHex {
		return retry.ErrTargetInvalid
	}

	plan, err := retry.PlanReplacement(doc.Messages, target, attempt, s.currentModel, s.now())
	if err != nil {
		return err
	}
	if err := store.ReplaceRange(doc, plan.Start, plan.End, plan.Messages); err != nil {
		return fmt.Errorf("failed to commit attempt %s: %w", id, err)
	}

	s.closeRetry()
	logger.Debug("Retry attempt applied", "attempt", id, "start", plan.Start, "end", plan.End)
	return nil
}

// CancelRetry discards every attempt and closes the sub-session.
func (s *State) CancelRetry() error {
	if s.retry == nil {
		return ErrNotRetrying
	}
	s.closeRetry()
	return nil
}

func (s *State) closeRetry() {
	for _, id := range s.retry.order {
		s.ids.Release(id)
	}
	s.retry = nil
}
