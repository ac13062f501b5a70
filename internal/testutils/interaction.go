package testutils

import (
	"errors"
	"sync"
)

// ErrScriptExhausted is returned when a scripted interaction runs out of answers.
var ErrScriptExhausted = errors.New("scripted interaction has no more answers")

// ScriptedInteraction answers prompts from a fixed list and records notifications.
type ScriptedInteraction struct {
	mu      sync.Mutex
	answers []string
	Prompts []string
	Notices []string
}

// NewScriptedInteraction creates an interaction that replies with answers in order.
func NewScriptedInteraction(answers ...string) *ScriptedInteraction {
	return &ScriptedInteraction{answers: answers}
}

// PromptText returns the next scripted answer.
func (s *ScriptedInteraction) PromptText(prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Prompts = append(s.Prompts, prompt)
	if len(s.answers) == 0 {
		return "", ErrScriptExhausted
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

// Notify records message.
func (s *ScriptedInteraction) Notify(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Notices = append(s.Notices, message)
}

// PromptSelection matches the next scripted answer against options.
// An answer that matches nothing counts as no choice.
func (s *ScriptedInteraction) PromptSelection(prompt string, options []string) (int, bool, error) {
	answer, err := s.PromptText(prompt)
	if err != nil {
		return 0, false, err
	}
	for i, opt := range options {
		if opt == answer {
			return i, true, nil
		}
	}
	return 0, false, nil
}
