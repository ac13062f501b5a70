package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurochat/pkg/chattypes"
)

func TestResolve(t *testing.T) {
	s := newTestStore()
	doc := newTestDocument(s, "a3f", "b2c", "c1d", "d4e")

	tests := []struct {
		name     string
		token    string
		expected Target
		err      error
	}{
		{"hex id", "b2c", Target{Start: 1, End: 1}, nil},
		{"hex id upper case", "C1D", Target{Start: 2, End: 2}, nil},
		{"last", "last", Target{Start: 3, End: 3}, nil},
		{"turn", "turn", Target{Start: 2, End: 3}, nil},
		{"bare integer", "2", Target{}, ErrAmbiguousNumeric},
		{"negative integer", "-1", Target{}, ErrAmbiguousNumeric},
		{"digit-only hex shape", "123", Target{}, ErrAmbiguousNumeric},
		{"unknown hex id", "fff", Target{}, ErrInvalidHexID},
		{"too short", "ab", Target{}, ErrInvalidHexID},
		{"not hex", "xyz", Target{}, ErrInvalidHexID},
		{"empty", " ", Target{}, ErrAmbiguousNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(doc, tt.token)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolve_IncompleteTail(t *testing.T) {
	s := newTestStore()
	doc := newTestDocument(s, "a3f", "b2c", "c1d")

	_, err := Resolve(doc, "last")
	assert.ErrorIs(t, err, ErrIncompleteTurn)
	_, err = Resolve(doc, "turn")
	assert.ErrorIs(t, err, ErrIncompleteTurn)

	got, err := Resolve(doc, "c1d")
	require.NoError(t, err)
	assert.Equal(t, Target{Start: 2, End: 2}, got, "explicit ids still work")
}

func TestResolve_StandaloneErrorTail(t *testing.T) {
	s := newTestStore()
	doc := newTestDocument(s, "a3f", "b2c")
	_, err := s.Append(doc, chattypes.NewErrorMessage("boom", nil, t0))
	require.NoError(t, err)

	last, err := Resolve(doc, "last")
	require.NoError(t, err)
	assert.Equal(t, Target{Start: 2, End: 2}, last)

	turn, err := Resolve(doc, "turn")
	require.NoError(t, err)
	assert.Equal(t, Target{Start: 2, End: 2}, turn)
}

func TestResolveSet(t *testing.T) {
	s := newTestStore()
	doc := newTestDocument(s, "a3f", "b2c", "c1d", "d4e")

	got, err := ResolveSet(doc, []string{"d4e", "a3f", "d4e"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, got)

	got, err = ResolveSet(doc, []string{"turn", "a3f"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3}, got)

	_, err = ResolveSet(doc, []string{"a3f", "7"})
	assert.ErrorIs(t, err, ErrAmbiguousNumeric)

	_, err = ResolveSet(doc, nil)
	assert.Error(t, err)
}
