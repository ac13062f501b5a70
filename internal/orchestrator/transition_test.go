package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"neurochat/pkg/chattypes"
)

func TestTransitionState_Policy(t *testing.T) {
	tests := []struct {
		name          string
		state         TransitionState
		canMutate     bool
		releaseError  bool
		releaseCancel bool
		releaseRoll   bool
		rollbackPre   bool
	}{
		{
			name:          "normal with chat and reserved id",
			state:         TransitionState{Mode: ModeNormal, HasChatContext: true, HasReservedID: true},
			canMutate:     true,
			releaseError:  true,
			releaseCancel: true,
			releaseRoll:   true,
		},
		{
			name:        "normal without chat",
			state:       TransitionState{Mode: ModeNormal, HasReservedID: true},
			releaseRoll: true,
		},
		{
			name:          "normal with leftover user tail",
			state:         TransitionState{Mode: ModeNormal, HasChatContext: true, TailIsUser: true},
			canMutate:     true,
			releaseError:  true,
			releaseCancel: true,
			rollbackPre:   true,
		},
		{
			name:  "normal without chat ignores user tail",
			state: TransitionState{Mode: ModeNormal, TailIsUser: true},
		},
		{
			name:          "retry with reserved id and no chat",
			state:         TransitionState{Mode: ModeRetry, HasReservedID: true},
			releaseError:  true,
			releaseCancel: true,
			releaseRoll:   true,
		},
		{
			name:  "retry without reserved id",
			state: TransitionState{Mode: ModeRetry, HasChatContext: true, TailIsUser: true},
		},
		{
			name:          "secret with chat and reserved id",
			state:         TransitionState{Mode: ModeSecret, HasChatContext: true, HasReservedID: true, TailIsUser: true},
			releaseError:  true,
			releaseCancel: true,
			releaseRoll:   true,
		},
		{
			name:  "secret without reserved id",
			state: TransitionState{Mode: ModeSecret, HasChatContext: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.canMutate, tt.state.CanMutateNormalChat(), "CanMutateNormalChat")
			assert.Equal(t, tt.releaseError, tt.state.ShouldReleaseForError(), "ShouldReleaseForError")
			assert.Equal(t, tt.releaseCancel, tt.state.ShouldReleaseForCancel(), "ShouldReleaseForCancel")
			assert.Equal(t, tt.releaseRoll, tt.state.ShouldReleaseForRollback(), "ShouldReleaseForRollback")
			assert.Equal(t, tt.rollbackPre, tt.state.ShouldRollbackPreSend(), "ShouldRollbackPreSend")
		})
	}
}

func TestCheckPendingError(t *testing.T) {
	now := time.Now()
	doc := chattypes.NewChatDocument(now)
	doc.Messages = []chattypes.ChatMessage{
		chattypes.NewUserMessage("q", now),
		chattypes.NewErrorMessage("boom", nil, now),
	}

	assert.ErrorIs(t, CheckPendingError(doc, ModeNormal), ErrPendingError)
	assert.NoError(t, CheckPendingError(doc, ModeRetry))
	assert.NoError(t, CheckPendingError(doc, ModeSecret))
	assert.NoError(t, CheckPendingError(nil, ModeNormal))

	doc.Messages = doc.Messages[:1]
	assert.NoError(t, CheckPendingError(doc, ModeNormal))
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "normal", ModeNormal.String())
	assert.Equal(t, "retry", ModeRetry.String())
	assert.Equal(t, "secret", ModeSecret.String())
}
