package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"neurochat/internal/conversation"
	"neurochat/internal/logger"
	"neurochat/internal/provider"
	"neurochat/internal/session"
	"neurochat/pkg/chattypes"
)

// ErrNothingToSummarize is returned by Summarize on a chat without turns.
var ErrNothingToSummarize = errors.New("chat has no messages to summarize")

const (
	titleWidth      = 60
	summarizePrompt = "Summarize the following conversation in two or three sentences. " +
		"Reply with the summary only."
)

// RetryTarget resolves token to the index of the reply a retry regenerates.
// Naming a user message selects the reply that follows it.
func (o *Orchestrator) RetryTarget(token string) (int, error) {
	doc := o.doc()
	if doc == nil {
		return 0, ErrNoChat
	}
	if token == "" {
		token = conversation.KeywordLast
	}
	target, err := conversation.Resolve(doc, token)
	if err != nil {
		return 0, err
	}
	idx := target.End
	if doc.Messages[idx].Role == chattypes.RoleUser && idx+1 < len(doc.Messages) {
		idx++
	}
	if doc.Messages[idx].Role == chattypes.RoleUser {
		return 0, fmt.Errorf("%w (%s)", conversation.ErrIncompleteTurn, doc.Messages[idx].HexID)
	}
	return idx, nil
}

// Retry opens a retry sub-session on token (default "last") and generates its first
// attempt. Inside an open sub-session it generates another attempt from the latest prompt.
func (o *Orchestrator) Retry(ctx context.Context, token string) (*Outcome, error) {
	if o.state.InRetry() {
		if token != "" {
			return nil, session.ErrAlreadyRetrying
		}
		return o.sendRetry(ctx, o.state.Retry().Prompt())
	}

	idx, err := o.RetryTarget(token)
	if err != nil {
		return nil, err
	}
	rs, err := o.state.EnterRetry(o.chat.Doc, idx)
	if err != nil {
		return nil, err
	}
	prompt := rs.Prompt()
	if strings.TrimSpace(prompt) == "" {
		_ = o.state.CancelRetry()
		return nil, fmt.Errorf("no prompt recorded for message %s", o.chat.Doc.Messages[idx].HexID)
	}
	return o.sendRetry(ctx, prompt)
}

// ApplyRetry commits attempt id into the open chat and saves it.
func (o *Orchestrator) ApplyRetry(id string) error {
	doc := o.doc()
	if doc == nil {
		return ErrNoChat
	}
	if err := o.state.ApplyRetry(doc, o.store, strings.ToLower(strings.TrimSpace(id))); err != nil {
		return err
	}
	return o.Persist()
}

// CancelRetry closes the retry sub-session without touching the chat.
func (o *Orchestrator) CancelRetry() error {
	return o.state.CancelRetry()
}

// RewindPreview returns the messages a rewind at token would delete.
func (o *Orchestrator) RewindPreview(token string) ([]chattypes.ChatMessage, error) {
	doc := o.doc()
	if doc == nil {
		return nil, ErrNoChat
	}
	target, err := conversation.Resolve(doc, token)
	if err != nil {
		return nil, err
	}
	return chattypes.CloneMessages(doc.Messages[target.Start:]), nil
}

// Rewind deletes the message named by token and everything after it.
func (o *Orchestrator) Rewind(token string) (int, error) {
	doc := o.doc()
	if doc == nil {
		return 0, ErrNoChat
	}
	target, err := conversation.Resolve(doc, token)
	if err != nil {
		return 0, err
	}
	deleted, err := o.store.DeleteRangeFrom(doc, target.Start)
	if err != nil {
		return 0, err
	}
	logger.ChatOperation("rewind", "from", target.Start, "deleted", deleted)
	return deleted, o.Persist()
}

// PurgePreview returns the messages a purge of tokens would delete.
func (o *Orchestrator) PurgePreview(tokens []string) ([]chattypes.ChatMessage, error) {
	doc := o.doc()
	if doc == nil {
		return nil, ErrNoChat
	}
	indices, err := conversation.ResolveSet(doc, tokens)
	if err != nil {
		return nil, err
	}
	out := make([]chattypes.ChatMessage, 0, len(indices))
	for _, i := range indices {
		out = append(out, doc.Messages[i].Clone())
	}
	return out, nil
}

// Purge deletes exactly the messages named by tokens.
func (o *Orchestrator) Purge(tokens []string) (int, error) {
	doc := o.doc()
	if doc == nil {
		return 0, ErrNoChat
	}
	indices, err := conversation.ResolveSet(doc, tokens)
	if err != nil {
		return 0, err
	}
	deleted, err := o.store.DeleteSet(doc, indices)
	if err != nil {
		return 0, err
	}
	logger.ChatOperation("purge", "deleted", deleted)
	return deleted, o.Persist()
}

// UpdateMetadata applies set to the open chat and saves only if a value changed.
func (o *Orchestrator) UpdateMetadata(set func(doc *chattypes.ChatDocument) bool) (bool, error) {
	doc := o.doc()
	if doc == nil {
		return false, ErrNoChat
	}
	if !set(doc) {
		return false, nil
	}
	return true, o.Persist()
}

// Summarize asks the helper model for a summary of the chat and stores it. A chat
// without a title gets one derived from the summary.
func (o *Orchestrator) Summarize(ctx context.Context) (string, error) {
	doc := o.doc()
	if doc == nil {
		return "", ErrNoChat
	}
	history := conversation.MessagesForModel(doc, 0)
	if len(history) == 0 {
		return "", ErrNothingToSummarize
	}

	var transcript strings.Builder
	for _, m := range history {
		fmt.Fprintf(&transcript, "%s: %s\n\n", m.Role, m.Text())
	}
	req := provider.Request{
		SystemPrompt: summarizePrompt,
		Messages:     []chattypes.ChatMessage{chattypes.NewUserMessage(transcript.String(), o.state.Now())},
	}
	resp, err := o.sender.Send(ctx, o.state.Helper(), req)
	if err != nil {
		return "", fmt.Errorf("summarize failed: %w", err)
	}

	summary := strings.TrimSpace(resp.Text)
	now := o.state.Now()
	changed := doc.SetSummary(summary, now)
	if doc.Metadata.Title == "" {
		changed = doc.SetTitle(TitleFromSummary(summary), now) || changed
	}
	if changed {
		return summary, o.Persist()
	}
	return summary, nil
}

// TitleFromSummary derives a one-line title from the first sentence of summary.
func TitleFromSummary(summary string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(summary), "\n")
	if i := strings.IndexAny(line, ".!?"); i > 0 {
		line = line[:i]
	}
	return ansi.Truncate(strings.TrimSpace(line), titleWidth, "…")
}
