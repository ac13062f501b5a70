package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurochat/pkg/chattypes"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func msg(role chattypes.Role, text, hex string) chattypes.ChatMessage {
	m := chattypes.ChatMessage{Role: role, Content: chattypes.TextToLines(text), Timestamp: testNow, HexID: hex}
	if role == chattypes.RoleAssistant {
		m.Model = "old-model"
	}
	return m
}

func TestResolveLastInteraction(t *testing.T) {
	tests := []struct {
		name     string
		messages []chattypes.ChatMessage
		ok       bool
		expected Span
	}{
		{
			name:     "empty transcript",
			messages: nil,
			ok:       false,
		},
		{
			name: "user then assistant",
			messages: []chattypes.ChatMessage{
				msg(chattypes.RoleUser, "hi", "a01"),
				msg(chattypes.RoleAssistant, "hello", "a02"),
			},
			ok:       true,
			expected: Span{Kind: SpanUserAssistant, Start: 0, End: 1, ContextEnd: 0},
		},
		{
			name: "user then error",
			messages: []chattypes.ChatMessage{
				msg(chattypes.RoleUser, "hi", "a01"),
				msg(chattypes.RoleAssistant, "hello", "a02"),
				msg(chattypes.RoleUser, "again", "a03"),
				msg(chattypes.RoleError, "timeout", "a04"),
			},
			ok:       true,
			expected: Span{Kind: SpanUserError, Start: 2, End: 3, ContextEnd: 2},
		},
		{
			name: "standalone error after completed turn",
			messages: []chattypes.ChatMessage{
				msg(chattypes.RoleUser, "hi", "a01"),
				msg(chattypes.RoleAssistant, "hello", "a02"),
				msg(chattypes.RoleError, "timeout", "a03"),
			},
			ok:       true,
			expected: Span{Kind: SpanStandaloneError, Start: 2, End: 2, ContextEnd: 2},
		},
		{
			name: "lone trailing user",
			messages: []chattypes.ChatMessage{
				msg(chattypes.RoleUser, "hi", "a01"),
				msg(chattypes.RoleAssistant, "hello", "a02"),
				msg(chattypes.RoleUser, "unanswered", "a03"),
			},
			ok: false,
		},
		{
			name: "two users in a row",
			messages: []chattypes.ChatMessage{
				msg(chattypes.RoleUser, "one", "a01"),
				msg(chattypes.RoleUser, "two", "a02"),
			},
			ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span, ok := ResolveLastInteraction(tt.messages)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, span)
			}
		})
	}
}

func TestContext_ExcludesSpan(t *testing.T) {
	msgs := []chattypes.ChatMessage{
		msg(chattypes.RoleUser, "hi", "a01"),
		msg(chattypes.RoleAssistant, "hello", "a02"),
		msg(chattypes.RoleUser, "again", "a03"),
		msg(chattypes.RoleAssistant, "sure", "a04"),
	}
	span, ok := ResolveLastInteraction(msgs)
	require.True(t, ok)

	ctx := Context(msgs, span)
	require.Len(t, ctx, 2)
	assert.Equal(t, "a02", ctx[1].HexID)

	ctx[0].Content[0] = "mutated"
	assert.Equal(t, "hi", msgs[0].Content[0], "context is a deep copy")
}

func TestPlanReplacement_PairedKeepsHexIDs(t *testing.T) {
	msgs := []chattypes.ChatMessage{
		msg(chattypes.RoleUser, "original question", "u123"),
		msg(chattypes.RoleAssistant, "original answer", "a456"),
	}

	plan, err := PlanReplacement(msgs, 1, Attempt{UserText: "new question", AssistantText: "new answer"}, "gpt-4o", testNow)
	require.NoError(t, err)

	assert.Equal(t, 0, plan.Start)
	assert.Equal(t, 1, plan.End)
	require.Len(t, plan.Messages, 2)

	assert.Equal(t, chattypes.RoleUser, plan.Messages[0].Role)
	assert.Equal(t, "u123", plan.Messages[0].HexID)
	assert.Equal(t, "new question", plan.Messages[0].Text())

	assert.Equal(t, chattypes.RoleAssistant, plan.Messages[1].Role)
	assert.Equal(t, "a456", plan.Messages[1].HexID)
	assert.Equal(t, "new answer", plan.Messages[1].Text())
	assert.Equal(t, "gpt-4o", plan.Messages[1].Model)
	assert.Equal(t, testNow, plan.Messages[1].Timestamp)
}

func TestPlanReplacement_StandaloneError(t *testing.T) {
	msgs := []chattypes.ChatMessage{
		msg(chattypes.RoleUser, "hi", "a01"),
		msg(chattypes.RoleAssistant, "hello", "a02"),
		msg(chattypes.RoleError, "timeout", "e999"),
	}
	citations := []chattypes.Citation{{Title: "Docs", URL: "https://example.com/docs"}}

	plan, err := PlanReplacement(msgs, 2, Attempt{UserText: "follow up", AssistantText: "answer", Citations: citations}, "gpt-4o", testNow)
	require.NoError(t, err)

	assert.Equal(t, 2, plan.Start, "must not back up into the completed pair")
	assert.Equal(t, 2, plan.End)
	require.Len(t, plan.Messages, 2)

	assert.Empty(t, plan.Messages[0].HexID, "synthesized leading message carries no hex id")
	assert.Equal(t, "e999", plan.Messages[1].HexID)
	assert.Equal(t, citations, plan.Messages[1].Citations)
}

func TestPlanReplacement_UsesActiveModel(t *testing.T) {
	msgs := []chattypes.ChatMessage{
		msg(chattypes.RoleUser, "hi", "a01"),
		msg(chattypes.RoleAssistant, "hello", "a02"),
	}
	plan, err := PlanReplacement(msgs, 1, Attempt{UserText: "hi", AssistantText: "hey", Model: "claude-sonnet-4"}, "gpt-4o", testNow)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", plan.Messages[1].Model)
}

func TestPlanReplacement_StaleTarget(t *testing.T) {
	msgs := []chattypes.ChatMessage{
		msg(chattypes.RoleUser, "hi", "a01"),
		msg(chattypes.RoleAssistant, "hello", "a02"),
	}

	for _, target := range []int{-1, 2, 7} {
		_, err := PlanReplacement(msgs, target, Attempt{}, "gpt-4o", testNow)
		assert.ErrorIs(t, err, ErrTargetInvalid)
	}

	_, err := PlanReplacement(msgs, 0, Attempt{}, "gpt-4o", testNow)
	assert.ErrorIs(t, err, ErrTargetInvalid, "a user message is not a retry target")
}

func TestPromptFor(t *testing.T) {
	paired := []chattypes.ChatMessage{
		msg(chattypes.RoleUser, "question", "a01"),
		msg(chattypes.RoleError, "timeout", "a02"),
	}
	span, err := TargetSpan(paired, 1)
	require.NoError(t, err)
	assert.Equal(t, "question", PromptFor(paired, span))

	standalone := []chattypes.ChatMessage{
		msg(chattypes.RoleUser, "hi", "a01"),
		msg(chattypes.RoleAssistant, "hello", "a02"),
		chattypes.NewErrorMessage("timeout", &chattypes.ErrorDetails{Message: "timeout", Prompt: []string{"lost prompt"}}, testNow),
	}
	span, err = TargetSpan(standalone, 2)
	require.NoError(t, err)
	assert.Equal(t, SpanStandaloneError, span.Kind)
	assert.Equal(t, "lost prompt", PromptFor(standalone, span))
}
