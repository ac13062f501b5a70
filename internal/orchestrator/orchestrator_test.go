package orchestrator

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurochat/internal/conversation"
	"neurochat/internal/hexid"
	"neurochat/internal/retry"
	"neurochat/internal/session"
	"neurochat/internal/testutils"
	"neurochat/pkg/chattypes"
)

const chatPath = "chats/test.json"

type harness struct {
	o     *Orchestrator
	gw    *testutils.FakeGateway
	mem   *testutils.MemoryStore
	clock *testutils.Clock
}

func newHarness(t *testing.T, opts Options, seed ...chattypes.ChatMessage) *harness {
	t.Helper()
	clock := testutils.NewClock()
	state := session.New(session.Options{
		Provider: "echo",
		Model:    "m1",
		Registry: hexid.NewRegistry(hexid.WithRand(rand.New(rand.NewPCG(3, 4)))),
		Now:      clock.Now,
	})
	h := &harness{
		gw:    testutils.NewFakeGateway(),
		mem:   testutils.NewMemoryStore(),
		clock: clock,
	}
	if len(seed) > 0 {
		doc := chattypes.NewChatDocument(testutils.BaseTime)
		doc.Messages = seed
		h.mem.Put(chatPath, doc)
	}
	h.o = New(state, h.gw, h.mem, opts)
	require.NoError(t, h.o.Open(chatPath))
	return h
}

func (h *harness) doc() *chattypes.ChatDocument {
	return h.o.Chat().Doc
}

func (h *harness) roles() []chattypes.Role {
	out := make([]chattypes.Role, len(h.doc().Messages))
	for i, m := range h.doc().Messages {
		out[i] = m.Role
	}
	return out
}

func u(text string) chattypes.ChatMessage {
	return chattypes.NewUserMessage(text, testutils.BaseTime)
}

func a(text string) chattypes.ChatMessage {
	return chattypes.NewAssistantMessage(text, "m0", nil, testutils.BaseTime)
}

func e(text, prompt string) chattypes.ChatMessage {
	return chattypes.NewErrorMessage(text, &chattypes.ErrorDetails{Prompt: chattypes.TextToLines(prompt)}, testutils.BaseTime)
}

var (
	roleU = chattypes.RoleUser
	roleA = chattypes.RoleAssistant
	roleE = chattypes.RoleError
)

func TestOpen_AttachesIDsAndClearsChatState(t *testing.T) {
	h := newHarness(t, Options{}, u("q"), a("r"))
	for _, m := range h.doc().Messages {
		assert.True(t, hexid.IsValid(m.HexID))
	}
	assert.Equal(t, 2, h.o.State().Registry().Len())

	h.o.State().ToggleSecret()
	require.NoError(t, h.o.Open("chats/other.json"))
	assert.False(t, h.o.State().SecretMode())
	assert.Empty(t, h.doc().Messages)
	assert.Equal(t, 0, h.o.State().Registry().Len())
	assert.Equal(t, 0, h.mem.Saves(), "a fresh chat is not written until it changes")
}

func TestSend_NormalAppendsAndPersists(t *testing.T) {
	h := newHarness(t, Options{KeepFailedPrompt: true})
	h.doc().SetSystemPrompt("be brief", h.clock.Now())
	h.gw.Push(testutils.Step{Text: "hello back", Citations: []chattypes.Citation{{Title: "t", URL: "https://x"}}})

	out, err := h.o.Send(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, ModeNormal, out.Mode)
	assert.Equal(t, "hello back", out.Message.Text())
	assert.Equal(t, "m1", out.Message.Model)
	assert.Len(t, out.Message.Citations, 1)
	assert.Equal(t, []chattypes.Role{roleU, roleA}, h.roles())
	assert.Equal(t, out.Message.HexID, h.doc().Messages[1].HexID)
	assert.True(t, h.o.State().Registry().Contains(out.Message.HexID))

	call, ok := h.gw.LastCall()
	require.True(t, ok)
	assert.Equal(t, "be brief", call.Request.SystemPrompt)
	require.Len(t, call.Request.Messages, 1)
	assert.Equal(t, "hello", call.Request.Messages[0].Text())

	saved, ok := h.mem.Saved(chatPath)
	require.True(t, ok)
	require.Len(t, saved.Messages, 2)
	assert.Empty(t, saved.Messages[1].HexID, "hex ids are runtime only")
}

func TestSend_RejectsEmptyText(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.o.Send(context.Background(), "  \n ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, h.gw.Calls())
}

func TestSend_NoChat(t *testing.T) {
	h := newHarness(t, Options{})
	h.o.Close()
	_, err := h.o.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoChat)
}

func TestSend_FailureKeepsPromptAsUserErrorTail(t *testing.T) {
	h := newHarness(t, Options{KeepFailedPrompt: true}, u("q"), a("r"))
	boom := errors.New("rate limited")
	h.gw.Push(testutils.Step{Err: boom})

	out, err := h.o.Send(context.Background(), "next")
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, out)
	assert.True(t, out.Failed)

	assert.Equal(t, []chattypes.Role{roleU, roleA, roleU, roleE}, h.roles())
	details := h.doc().Messages[3].Details
	require.NotNil(t, details)
	assert.Equal(t, "echo", details.Provider)
	assert.Equal(t, "m1", details.Model)
	assert.Equal(t, []string{"next"}, details.Prompt)
	assert.Equal(t, 4, h.o.State().Registry().Len(), "the reserved reply id is released")

	span, ok := retry.ResolveLastInteraction(h.doc().Messages)
	require.True(t, ok)
	assert.Equal(t, retry.SpanUserError, span.Kind)
}

func TestSend_FailureWithoutKeepingPromptLeavesStandaloneError(t *testing.T) {
	h := newHarness(t, Options{KeepFailedPrompt: false}, u("q"), a("r"))
	h.gw.Push(testutils.Step{Err: errors.New("unauthorized")})

	_, err := h.o.Send(context.Background(), "lost prompt")
	require.Error(t, err)
	assert.Equal(t, []chattypes.Role{roleU, roleA, roleE}, h.roles())
	assert.Equal(t, 3, h.o.State().Registry().Len())

	h.gw.Push(testutils.Step{Text: "recovered"})
	out, err := h.o.Retry(context.Background(), "last")
	require.NoError(t, err)
	assert.Equal(t, "lost prompt", h.gw.Calls()[1].Request.Messages[2].Text())

	require.NoError(t, h.o.ApplyRetry(out.AttemptID))
	assert.Equal(t, []chattypes.Role{roleU, roleA, roleU, roleA}, h.roles())
	assert.Equal(t, "lost prompt", h.doc().Messages[2].Text())
	assert.Equal(t, "recovered", h.doc().Messages[3].Text())
	assert.False(t, h.doc().HasPendingError())
}

func TestSend_CancellationRollsBack(t *testing.T) {
	h := newHarness(t, Options{KeepFailedPrompt: true}, u("q"), a("r"))
	before := h.doc().Clone()
	ids := h.o.State().Registry().Len()
	saves := h.mem.Saves()

	ctx, cancel := context.WithCancel(context.Background())
	h.gw.Push(testutils.Step{Block: true})
	go cancel()

	out, err := h.o.Send(ctx, "never mind")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
	assert.Equal(t, before.Messages, h.doc().Messages)
	assert.Equal(t, ids, h.o.State().Registry().Len())

	saved, ok := h.mem.Saved(chatPath)
	require.True(t, ok)
	assert.Len(t, saved.Messages, 2, "the rolled back chat is saved again")
	assert.Greater(t, h.mem.Saves(), saves)
}

func TestSend_RollsBackLeftoverUserTail(t *testing.T) {
	h := newHarness(t, Options{}, u("q"), a("r"), u("orphan"))

	_, err := h.o.Send(context.Background(), "fresh")
	require.NoError(t, err)

	assert.Equal(t, []chattypes.Role{roleU, roleA, roleU, roleA}, h.roles())
	assert.Equal(t, "fresh", h.doc().Messages[2].Text())
	assert.Equal(t, 4, h.o.State().Registry().Len())
}

func TestSend_SaveFailureRollsBackPrompt(t *testing.T) {
	h := newHarness(t, Options{}, u("q"), a("r"))
	h.mem.SaveErr = errors.New("disk full")

	_, err := h.o.Send(context.Background(), "hi")
	require.Error(t, err)
	assert.Len(t, h.doc().Messages, 2)
	assert.Empty(t, h.gw.Calls(), "nothing is sent when the prompt cannot be saved")
}

func TestSend_SaveFailureRestoresLeftoverPrompt(t *testing.T) {
	h := newHarness(t, Options{}, u("q"), a("r"), u("orphan"))
	orphanHex := h.doc().Messages[2].HexID
	updated := h.doc().Metadata.Updated
	h.mem.SaveErr = errors.New("disk full")

	_, err := h.o.Send(context.Background(), "fresh")
	require.Error(t, err)

	assert.Equal(t, []chattypes.Role{roleU, roleA, roleU}, h.roles())
	assert.Equal(t, "orphan", h.doc().Messages[2].Text())
	assert.Equal(t, orphanHex, h.doc().Messages[2].HexID)
	assert.True(t, h.o.State().Registry().Contains(orphanHex))
	assert.Equal(t, 3, h.o.State().Registry().Len())
	assert.Equal(t, updated, h.doc().Metadata.Updated)
	assert.Empty(t, h.gw.Calls())
}

func TestSend_PendingErrorGuard(t *testing.T) {
	h := newHarness(t, Options{}, u("q"), a("r"), u("q2"), e("boom", "q2"))

	_, err := h.o.Send(context.Background(), "another")
	assert.ErrorIs(t, err, ErrPendingError)
	assert.Empty(t, h.gw.Calls())

	h.o.State().ToggleSecret()
	_, err = h.o.Send(context.Background(), "side question")
	require.NoError(t, err)
	h.o.State().ToggleSecret()

	out, err := h.o.Retry(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, ModeRetry, out.Mode)

	_, err = h.o.Send(context.Background(), "q2 rephrased")
	require.NoError(t, err, "plain text inside retry is another attempt")
	assert.Len(t, h.o.State().Retry().AttemptIDs(), 2)
}

func TestSend_SecretNeverMutatesOrPersists(t *testing.T) {
	h := newHarness(t, Options{}, u("q"), a("r"))
	before := h.doc().Clone()
	saves := h.mem.Saves()
	ids := h.o.State().Registry().Len()
	h.o.State().ToggleSecret()

	out, err := h.o.Send(context.Background(), "off the record")
	require.NoError(t, err)

	assert.Equal(t, ModeSecret, out.Mode)
	assert.True(t, hexid.IsValid(out.Message.HexID))
	assert.False(t, h.o.State().Registry().Contains(out.Message.HexID))
	assert.Equal(t, ids, h.o.State().Registry().Len())
	assert.Equal(t, before, h.doc())
	assert.Equal(t, saves, h.mem.Saves())

	call, _ := h.gw.LastCall()
	require.Len(t, call.Request.Messages, 3, "secret sends still see the chat")
	assert.Equal(t, "off the record", call.Request.Messages[2].Text())
}

func TestSend_SecretFailureReleasesID(t *testing.T) {
	h := newHarness(t, Options{}, u("q"), a("r"))
	h.o.State().ToggleSecret()
	ids := h.o.State().Registry().Len()
	h.gw.Push(testutils.Step{Err: errors.New("nope")})

	_, err := h.o.Send(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, ids, h.o.State().Registry().Len())
	assert.Len(t, h.doc().Messages, 2)
}

func TestSend_SearchFlagAndHistoryLimit(t *testing.T) {
	h := newHarness(t, Options{MaxMessages: 2}, u("q1"), a("r1"), u("q2"), a("r2"))
	h.o.State().ToggleSearch()

	_, err := h.o.Send(context.Background(), "q3")
	require.NoError(t, err)

	call, _ := h.gw.LastCall()
	assert.True(t, call.Request.Search)
	require.Len(t, call.Request.Messages, 2)
	assert.Equal(t, "r2", call.Request.Messages[0].Text())
	assert.Equal(t, "q3", call.Request.Messages[1].Text())
}

func TestRetry_AttemptsThenApply(t *testing.T) {
	h := newHarness(t, Options{}, u("q1"), a("r1"), u("q2"), a("r2"))
	userHex, replyHex := h.doc().Messages[2].HexID, h.doc().Messages[3].HexID
	h.gw.Push(testutils.Step{Text: "first try"}, testutils.Step{Text: "second try"})

	first, err := h.o.Retry(context.Background(), "turn")
	require.NoError(t, err)
	second, err := h.o.Retry(context.Background(), "")
	require.NoError(t, err)
	assert.NotEqual(t, first.AttemptID, second.AttemptID)

	call, _ := h.gw.LastCall()
	require.Len(t, call.Request.Messages, 3, "retry context excludes the replaced span")
	assert.Equal(t, "q2", call.Request.Messages[2].Text())
	assert.Len(t, h.doc().Messages, 4, "attempts do not touch the chat")

	_, err = h.o.Retry(context.Background(), "last")
	assert.ErrorIs(t, err, session.ErrAlreadyRetrying)

	require.NoError(t, h.o.ApplyRetry(first.AttemptID))
	assert.False(t, h.o.State().InRetry())
	assert.Equal(t, "first try", h.doc().Messages[3].Text())
	assert.Equal(t, userHex, h.doc().Messages[2].HexID)
	assert.Equal(t, replyHex, h.doc().Messages[3].HexID)
	assert.False(t, h.o.State().Registry().Contains(second.AttemptID))

	saved, _ := h.mem.Saved(chatPath)
	assert.Equal(t, "first try", saved.Messages[3].Text())
}

func TestApplyRetry_StampsActiveModel(t *testing.T) {
	h := newHarness(t, Options{}, u("q"), a("r"))
	out, err := h.o.Retry(context.Background(), "last")
	require.NoError(t, err)
	assert.Equal(t, "m1", out.Message.Model)

	h.o.State().SetModel("echo", "m2")
	require.NoError(t, h.o.ApplyRetry(out.AttemptID))

	assert.Equal(t, "m2", h.doc().Messages[1].Model)
	saved, _ := h.mem.Saved(chatPath)
	assert.Equal(t, "m2", saved.Messages[1].Model)
}

func TestRetry_FailedAttemptReleasesID(t *testing.T) {
	h := newHarness(t, Options{}, u("q"), a("r"))
	ids := h.o.State().Registry().Len()
	h.gw.Push(testutils.Step{Err: errors.New("503")})

	_, err := h.o.Retry(context.Background(), "last")
	require.Error(t, err)
	assert.True(t, h.o.State().InRetry(), "the sub-session stays open for another try")
	assert.Equal(t, ids, h.o.State().Registry().Len())

	require.NoError(t, h.o.CancelRetry())
	assert.ErrorIs(t, h.o.CancelRetry(), session.ErrNotRetrying)
}

func TestRetryTarget(t *testing.T) {
	h := newHarness(t, Options{}, u("q1"), a("r1"), u("q2"), a("r2"), u("dangling"))
	msgs := h.doc().Messages

	idx, err := h.o.RetryTarget(msgs[0].HexID)
	require.NoError(t, err)
	assert.Equal(t, 1, idx, "a user message selects its reply")

	idx, err = h.o.RetryTarget(msgs[3].HexID)
	require.NoError(t, err)
	assert.Equal(t, 3, idx)

	_, err = h.o.RetryTarget("")
	assert.ErrorIs(t, err, conversation.ErrIncompleteTurn)

	_, err = h.o.RetryTarget(msgs[4].HexID)
	assert.ErrorIs(t, err, conversation.ErrIncompleteTurn)
	assert.ErrorContains(t, err, msgs[4].HexID)

	_, err = h.o.Retry(context.Background(), msgs[4].HexID)
	assert.ErrorIs(t, err, conversation.ErrIncompleteTurn)
	assert.NotErrorIs(t, err, retry.ErrTargetInvalid)
	assert.False(t, h.o.State().InRetry())
}

func TestApplyRetry_AfterRewindIsStale(t *testing.T) {
	h := newHarness(t, Options{}, u("q1"), a("r1"), u("q2"), a("r2"))
	out, err := h.o.Retry(context.Background(), "last")
	require.NoError(t, err)

	_, err = h.o.Rewind("turn")
	require.NoError(t, err)

	err = h.o.ApplyRetry(out.AttemptID)
	assert.ErrorIs(t, err, retry.ErrTargetInvalid)
	assert.True(t, h.o.State().InRetry())
	assert.Len(t, h.doc().Messages, 2)
}

func TestRewind(t *testing.T) {
	t.Run("from a hex id", func(t *testing.T) {
		h := newHarness(t, Options{}, u("q1"), a("r1"), u("q2"))
		first := h.doc().Messages[0].HexID

		deleted, err := h.o.Rewind(h.doc().Messages[1].HexID)
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)
		require.Len(t, h.doc().Messages, 1)
		assert.Equal(t, first, h.doc().Messages[0].HexID)
	})

	t.Run("last removes a standalone error", func(t *testing.T) {
		h := newHarness(t, Options{}, u("q1"), a("r1"), e("boom", ""))
		deleted, err := h.o.Rewind("last")
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)
		assert.Equal(t, []chattypes.Role{roleU, roleA}, h.roles())
	})

	t.Run("turn removes the trailing pair", func(t *testing.T) {
		h := newHarness(t, Options{}, u("q1"), a("r1"), u("q2"), e("boom", ""))
		deleted, err := h.o.Rewind("turn")
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)
		assert.Equal(t, []chattypes.Role{roleU, roleA}, h.roles())
	})

	t.Run("turn refuses a user-only tail", func(t *testing.T) {
		h := newHarness(t, Options{}, u("q1"), a("r1"), u("q2"))
		_, err := h.o.Rewind("turn")
		assert.ErrorIs(t, err, conversation.ErrIncompleteTurn)
		assert.Len(t, h.doc().Messages, 3)
	})

	t.Run("bare integers and unknown ids change nothing", func(t *testing.T) {
		h := newHarness(t, Options{}, u("q1"), a("r1"))
		saves := h.mem.Saves()

		_, err := h.o.Rewind("1")
		assert.ErrorIs(t, err, conversation.ErrAmbiguousNumeric)
		assert.Contains(t, err.Error(), "use a hex id, 'last', or 'turn'")

		_, err = h.o.Rewind("fffff")
		assert.ErrorIs(t, err, conversation.ErrInvalidHexID)

		assert.Len(t, h.doc().Messages, 2)
		assert.Equal(t, saves, h.mem.Saves())
	})
}

func TestRewindPreview(t *testing.T) {
	h := newHarness(t, Options{}, u("q1"), a("r1"), u("q2"), a("r2"))
	preview, err := h.o.RewindPreview(h.doc().Messages[2].HexID)
	require.NoError(t, err)
	require.Len(t, preview, 2)
	assert.Equal(t, "q2", preview[0].Text())
	assert.Len(t, h.doc().Messages, 4)
}

func TestPurge(t *testing.T) {
	h := newHarness(t, Options{}, u("q1"), a("r1"), u("q2"), a("r2"), u("q3"), a("r3"))
	msgs := h.doc().Messages
	keep := []string{msgs[0].HexID, msgs[2].HexID, msgs[4].HexID}
	gone := []string{msgs[5].HexID, msgs[1].HexID, msgs[3].HexID}

	preview, err := h.o.PurgePreview(gone)
	require.NoError(t, err)
	assert.Len(t, preview, 3)

	deleted, err := h.o.Purge(gone)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	var got []string
	for _, m := range h.doc().Messages {
		got = append(got, m.HexID)
	}
	assert.Equal(t, keep, got)
	for _, id := range gone {
		assert.False(t, h.o.State().Registry().Contains(id))
	}

	_, err = h.o.Purge([]string{keep[0], "42"})
	assert.ErrorIs(t, err, conversation.ErrAmbiguousNumeric)
	assert.Len(t, h.doc().Messages, 3)
}

func TestUpdateMetadata(t *testing.T) {
	h := newHarness(t, Options{})
	set := func(title string) func(*chattypes.ChatDocument) bool {
		return func(doc *chattypes.ChatDocument) bool { return doc.SetTitle(title, h.clock.Now()) }
	}

	changed, err := h.o.UpdateMetadata(set("Trip plans"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, h.mem.Saves())

	changed, err = h.o.UpdateMetadata(set("Trip plans"))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, h.mem.Saves())
}

func TestSummarize(t *testing.T) {
	h := newHarness(t, Options{}, u("where should we go"), a("Lisbon is nice"))
	h.o.State().SetHelperModel("helperprov", "small")
	h.gw.Push(testutils.Step{Text: "Planning a trip to Lisbon. The user asked for ideas.\n"})

	summary, err := h.o.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Planning a trip to Lisbon. The user asked for ideas.", summary)
	assert.Equal(t, summary, h.doc().Metadata.Summary)
	assert.Equal(t, "Planning a trip to Lisbon", h.doc().Metadata.Title)

	call, _ := h.gw.LastCall()
	assert.Equal(t, "helperprov", call.Target.Provider)
	assert.Equal(t, "small", call.Target.Model)

	empty := newHarness(t, Options{})
	_, err = empty.o.Summarize(context.Background())
	assert.ErrorIs(t, err, ErrNothingToSummarize)
}

func TestTitleFromSummary(t *testing.T) {
	assert.Equal(t, "Short", TitleFromSummary("Short. Longer text"))
	assert.Equal(t, "First line", TitleFromSummary("First line\nsecond"))
	long := TitleFromSummary("a very long summary line that keeps going and going well past the sixty column limit")
	assert.LessOrEqual(t, len([]rune(long)), titleWidth)
}
