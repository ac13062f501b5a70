package chattypes

import "time"

// ChatMetadata describes a transcript.
type ChatMetadata struct {
	FormatVersion string    `json:"format_version" yaml:"format_version"`
	Title         string    `json:"title,omitempty" yaml:"title,omitempty"`
	Summary       string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	SystemPrompt  string    `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Created       time.Time `json:"created" yaml:"created"`
	Updated       time.Time `json:"updated" yaml:"updated"`
}

// ChatDocument is the persisted transcript. Messages are kept in conversation order.
type ChatDocument struct {
	Metadata ChatMetadata  `json:"metadata" yaml:"metadata"`
	Messages []ChatMessage `json:"messages" yaml:"messages"`
}

// NewChatDocument creates an empty document stamped with now.
func NewChatDocument(now time.Time) *ChatDocument {
	return &ChatDocument{
		Metadata: ChatMetadata{
			FormatVersion: CurrentFormatVersion,
			Created:       now,
			Updated:       now,
		},
		Messages: []ChatMessage{},
	}
}

// Touch advances the updated timestamp.
func (d *ChatDocument) Touch(now time.Time) {
	d.Metadata.Updated = now
}

// SetTitle sets the title and reports whether the value changed.
// The updated timestamp only advances on an actual change.
func (d *ChatDocument) SetTitle(title string, now time.Time) bool {
	return d.setField(&d.Metadata.Title, title, now)
}

// SetSummary sets the summary and reports whether the value changed.
func (d *ChatDocument) SetSummary(summary string, now time.Time) bool {
	return d.setField(&d.Metadata.Summary, summary, now)
}

// SetSystemPrompt sets the system prompt and reports whether the value changed.
func (d *ChatDocument) SetSystemPrompt(prompt string, now time.Time) bool {
	return d.setField(&d.Metadata.SystemPrompt, prompt, now)
}

func (d *ChatDocument) setField(field *string, value string, now time.Time) bool {
	if *field == value {
		return false
	}
	*field = value
	d.Touch(now)
	return true
}

// Last returns the final message, if any.
func (d *ChatDocument) Last() (ChatMessage, bool) {
	if len(d.Messages) == 0 {
		return ChatMessage{}, false
	}
	return d.Messages[len(d.Messages)-1], true
}

// HasPendingError reports whether the transcript ends in an unresolved error.
func (d *ChatDocument) HasPendingError() bool {
	last, ok := d.Last()
	return ok && last.Role == RoleError
}

// IndexOf returns the position of the message carrying hexID.
func (d *ChatDocument) IndexOf(hexID string) (int, bool) {
	if hexID == "" {
		return -1, false
	}
	for i, m := range d.Messages {
		if m.HexID == hexID {
			return i, true
		}
	}
	return -1, false
}

// Clone returns a deep copy of the document, hex ids included.
func (d *ChatDocument) Clone() *ChatDocument {
	return &ChatDocument{Metadata: d.Metadata, Messages: CloneMessages(d.Messages)}
}
