package hexid

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(opts ...Option) *Registry {
	opts = append([]Option{WithRand(rand.New(rand.NewPCG(1, 2)))}, opts...)
	return NewRegistry(opts...)
}

func TestRegistry_GenerateUnique(t *testing.T) {
	r := newTestRegistry()
	seen := make(map[string]bool)

	for i := 0; i < 500; i++ {
		id := r.Generate()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		assert.True(t, IsValid(id), "generated id %q must be valid", id)
		assert.True(t, r.Contains(id))
	}
	assert.Equal(t, 500, r.Len())
}

func TestRegistry_WidensWhenExhausted(t *testing.T) {
	r := newTestRegistry()

	maxWidth := 0
	for i := 0; i < 5000; i++ {
		id := r.Generate()
		assert.GreaterOrEqual(t, len(id), MinWidth)
		if len(id) > maxWidth {
			maxWidth = len(id)
		}
	}

	assert.Greater(t, maxWidth, MinWidth)
	assert.Equal(t, 5000, r.Len())
}

func TestRegistry_FullThresholdNeverLoops(t *testing.T) {
	// With a threshold of 1 every width-3 slot must be used before widening,
	// and random probing has to give up and widen on its own.
	r := newTestRegistry(WithExhaustionThreshold(1), WithMaxAttempts(4))
	for i := 0; i < 4200; i++ {
		r.Generate()
	}
	assert.Equal(t, 4200, r.Len())
	assert.Greater(t, r.Width(), MinWidth)
}

func TestRegistry_ReserveAndRelease(t *testing.T) {
	r := newTestRegistry()

	assert.True(t, r.Reserve("abc"))
	assert.False(t, r.Reserve("abc"), "already reserved")
	assert.False(t, r.Reserve("last"), "keywords are not hex")
	assert.False(t, r.Reserve("ab"), "too short")

	r.Release("abc")
	assert.False(t, r.Contains("abc"))
	r.Release("abc")
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Reset(t *testing.T) {
	r := newTestRegistry()
	r.AssignBulk(10)
	r.Reset()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, MinWidth, r.Width())
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"a3f", true},
		{"0000", true},
		{"deadbeef", true},
		{"ab", false},
		{"", false},
		{"last", false},
		{"turn", false},
		{"ABC", false},
		{"12g", false},
		{"a3f ", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValid(tt.input))
		})
	}
}

func TestAssignBulk_RoundTrip(t *testing.T) {
	r := newTestRegistry()
	m := r.AssignBulk(50)
	require.Equal(t, 50, m.Len())

	for i := 0; i < 50; i++ {
		id, ok := m.IDFor(i)
		require.True(t, ok)
		idx, ok := m.IndexFor(id)
		require.True(t, ok)
		assert.Equal(t, i, idx)
	}

	_, ok := m.IDFor(50)
	assert.False(t, ok)
	_, ok = m.IndexFor("zzz")
	assert.False(t, ok)
}

func TestRegistry_NeverIssuesDigitOnlyIDs(t *testing.T) {
	r := newTestRegistry()
	for i := 0; i < 3000; i++ {
		id := r.Generate()
		assert.False(t, allDigits(id), "digit-only id %s would clash with numeric arguments", id)
	}
}
