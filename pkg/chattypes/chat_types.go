// Package chattypes defines the transcript types shared by neurochat packages.
// A ChatDocument is the persisted conversation; ChatMessage is one turn in it.
package chattypes

import (
	"strings"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	// RoleUser marks a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the AI backend.
	RoleAssistant Role = "assistant"
	// RoleError marks a failed turn recorded in the transcript.
	RoleError Role = "error"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleError:
		return true
	}
	return false
}

// CurrentFormatVersion is written into every saved document.
const CurrentFormatVersion = "1.1.0"

// Citation is a source reference attached to an assistant message.
type Citation struct {
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	URL   string `json:"url" yaml:"url"`
}

// ErrorDetails is the structured payload of an error message.
type ErrorDetails struct {
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	Message  string `json:"message" yaml:"message"`
	// Prompt keeps the user text of a failed turn whose user message was not kept.
	Prompt []string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
}

// ChatMessage is a single transcript entry.
// Model and Citations are only meaningful for assistant messages, Details only for errors.
// HexID is a session-scoped handle and never persisted.
type ChatMessage struct {
	Role      Role          `json:"role" yaml:"role"`
	Content   []string      `json:"content" yaml:"content"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Model     string        `json:"model,omitempty" yaml:"model,omitempty"`
	Citations []Citation    `json:"citations,omitempty" yaml:"citations,omitempty"`
	Details   *ErrorDetails `json:"details,omitempty" yaml:"details,omitempty"`
	HexID     string        `json:"-" yaml:"-"`
}

// NewUserMessage builds a user message from free text.
func NewUserMessage(text string, at time.Time) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: TextToLines(text), Timestamp: at}
}

// NewAssistantMessage builds an assistant message from free text.
func NewAssistantMessage(text, model string, citations []Citation, at time.Time) ChatMessage {
	return ChatMessage{
		Role:      RoleAssistant,
		Content:   TextToLines(text),
		Timestamp: at,
		Model:     model,
		Citations: cloneCitations(citations),
	}
}

// NewErrorMessage builds an error message carrying details.
func NewErrorMessage(text string, details *ErrorDetails, at time.Time) ChatMessage {
	return ChatMessage{Role: RoleError, Content: TextToLines(text), Timestamp: at, Details: details}
}

// Text joins the content lines back into a single string.
func (m ChatMessage) Text() string {
	return LinesToText(m.Content)
}

// WellFormed reports whether the role-conditional fields are consistent with the role.
func (m ChatMessage) WellFormed() bool {
	if !m.Role.Valid() {
		return false
	}
	if m.Role != RoleAssistant && (m.Model != "" || len(m.Citations) > 0) {
		return false
	}
	if m.Role != RoleError && m.Details != nil {
		return false
	}
	return true
}

// Clone returns a deep copy of the message.
func (m ChatMessage) Clone() ChatMessage {
	out := m
	out.Content = cloneLines(m.Content)
	out.Citations = cloneCitations(m.Citations)
	if m.Details != nil {
		d := *m.Details
		d.Prompt = cloneLines(m.Details.Prompt)
		out.Details = &d
	}
	return out
}

func cloneLines(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}

func cloneCitations(in []Citation) []Citation {
	if len(in) == 0 {
		return nil
	}
	return append([]Citation(nil), in...)
}

// CloneMessages deep-copies a message slice.
func CloneMessages(msgs []ChatMessage) []ChatMessage {
	if msgs == nil {
		return nil
	}
	out := make([]ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// TextToLines splits text into lines, trimming leading and trailing blank lines.
// Blank lines inside the text are preserved.
func TextToLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	if start == end {
		return []string{}
	}
	return append([]string(nil), lines[start:end]...)
}

// LinesToText is the inverse of TextToLines.
func LinesToText(lines []string) string {
	return strings.Join(TextToLines(strings.Join(lines, "\n")), "\n")
}
