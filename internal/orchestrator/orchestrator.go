package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"neurochat/internal/conversation"
	"neurochat/internal/logger"
	"neurochat/internal/provider"
	"neurochat/internal/retry"
	"neurochat/internal/session"
	"neurochat/pkg/chattypes"
)

var (
	// ErrNoChat is returned by operations that need an open chat.
	ErrNoChat = errors.New("no chat is open")
	// ErrEmptyMessage rejects sends without text.
	ErrEmptyMessage = errors.New("message is empty")
)

// Sender is the provider gateway contract.
type Sender interface {
	Send(ctx context.Context, target provider.Target, req provider.Request) (*provider.Response, error)
}

// Persistence loads and saves chat documents.
type Persistence interface {
	Load(path string) (*chattypes.ChatDocument, error)
	Save(path string, doc *chattypes.ChatDocument) error
}

// Chat is the open document and where it lives.
type Chat struct {
	Path string
	Doc  *chattypes.ChatDocument
}

// Options tunes how turns are recorded and how much history the model sees.
type Options struct {
	// MaxMessages limits the user/assistant history sent per request. Zero means unlimited.
	MaxMessages int
	// KeepFailedPrompt leaves the user message in place when its reply fails.
	KeepFailedPrompt bool
}

// Outcome describes a completed send.
type Outcome struct {
	Mode Mode
	// Message is the reply, or the recorded error when Failed is set. Its HexID is
	// the id shown to the user; in secret mode that id is already released.
	Message   chattypes.ChatMessage
	AttemptID string
	Usage     provider.Usage
	Failed    bool
}

// Orchestrator runs sends and chat mutations for one session.
type Orchestrator struct {
	state   *session.State
	store   *conversation.Store
	sender  Sender
	persist Persistence
	opts    Options
	chat    *Chat
}

// New creates an orchestrator over state. The conversation store shares the
// session's registry and clock.
func New(state *session.State, sender Sender, persist Persistence, opts Options) *Orchestrator {
	return &Orchestrator{
		state:   state,
		store:   conversation.NewStore(state.Registry(), state.Now),
		sender:  sender,
		persist: persist,
		opts:    opts,
	}
}

// State returns the session state.
func (o *Orchestrator) State() *session.State {
	return o.state
}

// Store returns the conversation store bound to the session registry.
func (o *Orchestrator) Store() *conversation.Store {
	return o.store
}

// Chat returns the open chat, or nil.
func (o *Orchestrator) Chat() *Chat {
	return o.chat
}

// Open switches to the chat at path. A missing file starts an empty chat that is
// written on its first mutation.
func (o *Orchestrator) Open(path string) error {
	doc, err := o.persist.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		doc, err = chattypes.NewChatDocument(o.state.Now()), nil
	}
	if err != nil {
		return fmt.Errorf("failed to open chat %s: %w", path, err)
	}

	o.state.SwitchChat()
	o.store.AttachIDs(doc)
	o.chat = &Chat{Path: path, Doc: doc}
	logger.ChatOperation("open", "path", path, "messages", len(doc.Messages))
	return nil
}

// Close drops the open chat and all chat-scoped session state.
func (o *Orchestrator) Close() {
	o.state.SwitchChat()
	o.chat = nil
}

// Persist writes the open chat.
func (o *Orchestrator) Persist() error {
	if o.chat == nil {
		return ErrNoChat
	}
	if err := o.persist.Save(o.chat.Path, o.chat.Doc); err != nil {
		return fmt.Errorf("failed to save chat: %w", err)
	}
	return nil
}

// Mode derives the tag for the next send. An open retry sub-session takes precedence
// over the secret toggle.
func (o *Orchestrator) Mode() Mode {
	switch {
	case o.state.InRetry():
		return ModeRetry
	case o.state.SecretMode():
		return ModeSecret
	default:
		return ModeNormal
	}
}

// Send delivers text in the current mode. When a normal-mode reply fails, the
// recorded error message is returned in the Outcome alongside the provider error.
func (o *Orchestrator) Send(ctx context.Context, text string) (*Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	mode := o.Mode()
	if err := CheckPendingError(o.doc(), mode); err != nil {
		return nil, err
	}

	logger.Debug("Dispatching send", "mode", mode.String(), "search", o.state.SearchMode())
	switch mode {
	case ModeRetry:
		return o.sendRetry(ctx, text)
	case ModeSecret:
		return o.sendSecret(ctx, text)
	default:
		return o.sendNormal(ctx, text)
	}
}

func (o *Orchestrator) sendNormal(ctx context.Context, text string) (*Outcome, error) {
	ts := TransitionState{Mode: ModeNormal, HasChatContext: o.chat != nil}
	if !ts.CanMutateNormalChat() {
		return nil, ErrNoChat
	}
	doc := o.chat.Doc
	if last, ok := doc.Last(); ok && last.Role == chattypes.RoleUser {
		ts.TailIsUser = true
	}

	updated := doc.Metadata.Updated
	var leftover *chattypes.ChatMessage
	if ts.ShouldRollbackPreSend() {
		m := doc.Messages[len(doc.Messages)-1]
		if _, err := o.store.DeleteRangeFrom(doc, len(doc.Messages)-1); err != nil {
			return nil, err
		}
		leftover = &m
		logger.ChatOperation("rollback leftover prompt")
	}

	if _, err := o.store.Append(doc, chattypes.NewUserMessage(text, o.state.Now())); err != nil {
		o.restoreLeftover(leftover, updated)
		return nil, err
	}
	userIdx := len(doc.Messages) - 1
	if err := o.Persist(); err != nil {
		o.rollback(ts, userIdx, "")
		o.restoreLeftover(leftover, updated)
		return nil, err
	}

	replyID := o.state.Registry().Generate()
	ts.HasReservedID = true

	target := o.state.Current()
	resp, err := o.sender.Send(ctx, target, o.request(conversation.MessagesForModel(doc, o.opts.MaxMessages)))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			if ts.ShouldReleaseForCancel() {
				o.state.Registry().Release(replyID)
			}
			o.rollback(ts, userIdx, replyID)
			if perr := o.Persist(); perr != nil {
				logger.Warn("Failed to save chat after cancellation", "error", perr)
			}
			return nil, err
		}
		if ts.ShouldReleaseForError() {
			o.state.Registry().Release(replyID)
		}
		return o.recordFailure(target, text, userIdx, err)
	}

	reply := chattypes.NewAssistantMessage(resp.Text, resp.Model, resp.Citations, o.state.Now())
	reply.HexID = replyID
	stored, err := o.store.Append(doc, reply)
	if err != nil {
		o.state.Registry().Release(replyID)
		return nil, err
	}
	outcome := &Outcome{Mode: ModeNormal, Message: stored, Usage: resp.Usage}
	if err := o.Persist(); err != nil {
		return outcome, err
	}
	logger.ChatOperation("append reply", "hex", stored.HexID, "model", stored.Model)
	return outcome, nil
}

// rollback removes the user message appended for an aborted turn.
func (o *Orchestrator) rollback(ts TransitionState, userIdx int, replyID string) {
	if ts.ShouldReleaseForRollback() {
		o.state.Registry().Release(replyID)
	}
	if userIdx < len(o.chat.Doc.Messages) {
		if _, err := o.store.DeleteRangeFrom(o.chat.Doc, userIdx); err != nil {
			logger.Warn("Rollback failed", "index", userIdx, "error", err)
		}
	}
}

// restoreLeftover puts back a leftover prompt removed before a turn that never got
// saved, so memory matches the file again.
func (o *Orchestrator) restoreLeftover(leftover *chattypes.ChatMessage, updated time.Time) {
	doc := o.chat.Doc
	if leftover != nil {
		if _, err := o.store.Append(doc, *leftover); err != nil {
			logger.Warn("Failed to restore leftover prompt", "hex", leftover.HexID, "error", err)
		}
	}
	doc.Metadata.Updated = updated
}

// recordFailure appends an error message for a failed normal turn. Unless the failed
// prompt is kept, the user message is dropped and the error carries it instead.
func (o *Orchestrator) recordFailure(target provider.Target, text string, userIdx int, cause error) (*Outcome, error) {
	doc := o.chat.Doc
	if !o.opts.KeepFailedPrompt {
		if _, err := o.store.DeleteRangeFrom(doc, userIdx); err != nil {
			return nil, err
		}
	}

	details := &chattypes.ErrorDetails{
		Provider: target.Provider,
		Model:    target.Model,
		Message:  cause.Error(),
		Prompt:   chattypes.TextToLines(text),
	}
	stored, err := o.store.Append(doc, chattypes.NewErrorMessage(cause.Error(), details, o.state.Now()))
	if err != nil {
		return nil, err
	}
	if perr := o.Persist(); perr != nil {
		logger.Warn("Failed to save chat after provider error", "error", perr)
	}
	logger.ChatOperation("record failure", "hex", stored.HexID, "provider", target.Provider)
	return &Outcome{Mode: ModeNormal, Message: stored, Failed: true}, cause
}

func (o *Orchestrator) sendRetry(ctx context.Context, text string) (*Outcome, error) {
	rs := o.state.Retry()
	history := append(rs.Base(), chattypes.NewUserMessage(text, o.state.Now()))

	attemptID := o.state.Registry().Generate()
	ts := TransitionState{Mode: ModeRetry, HasChatContext: o.chat != nil, HasReservedID: true}

	resp, err := o.sender.Send(ctx, o.state.Current(), o.request(conversation.FilterForModel(history, o.opts.MaxMessages)))
	if err != nil {
		o.releaseAfterFailure(ts, attemptID, err)
		return nil, err
	}

	attempt := retry.Attempt{
		UserText:      text,
		AssistantText: resp.Text,
		Citations:     resp.Citations,
		Model:         resp.Model,
	}
	if err := o.state.RecordAttempt(attemptID, attempt); err != nil {
		o.state.Registry().Release(attemptID)
		return nil, err
	}

	reply := chattypes.NewAssistantMessage(resp.Text, resp.Model, resp.Citations, o.state.Now())
	reply.HexID = attemptID
	logger.Debug("Retry attempt recorded", "hex", attemptID, "attempts", len(rs.AttemptIDs()))
	return &Outcome{Mode: ModeRetry, Message: reply, AttemptID: attemptID, Usage: resp.Usage}, nil
}

func (o *Orchestrator) sendSecret(ctx context.Context, text string) (*Outcome, error) {
	var history []chattypes.ChatMessage
	if doc := o.doc(); doc != nil {
		history = chattypes.CloneMessages(doc.Messages)
	}
	history = append(history, chattypes.NewUserMessage(text, o.state.Now()))

	displayID := o.state.Registry().Generate()
	ts := TransitionState{Mode: ModeSecret, HasChatContext: o.chat != nil, HasReservedID: true}

	resp, err := o.sender.Send(ctx, o.state.Current(), o.request(conversation.FilterForModel(history, o.opts.MaxMessages)))
	if err != nil {
		o.releaseAfterFailure(ts, displayID, err)
		return nil, err
	}

	reply := chattypes.NewAssistantMessage(resp.Text, resp.Model, resp.Citations, o.state.Now())
	reply.HexID = displayID
	o.state.Registry().Release(displayID)
	return &Outcome{Mode: ModeSecret, Message: reply, Usage: resp.Usage}, nil
}

func (o *Orchestrator) releaseAfterFailure(ts TransitionState, id string, err error) {
	release := ts.ShouldReleaseForError()
	if errors.Is(err, context.Canceled) {
		release = ts.ShouldReleaseForCancel()
	}
	if release {
		o.state.Registry().Release(id)
	}
}

func (o *Orchestrator) request(messages []chattypes.ChatMessage) provider.Request {
	req := provider.Request{Messages: messages, Search: o.state.SearchMode()}
	if doc := o.doc(); doc != nil {
		req.SystemPrompt = doc.Metadata.SystemPrompt
	}
	return req
}

func (o *Orchestrator) doc() *chattypes.ChatDocument {
	if o.chat == nil {
		return nil
	}
	return o.chat.Doc
}
