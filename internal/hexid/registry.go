// Package hexid issues short hexadecimal identifiers that users type to address messages.
// Identifiers are session-scoped: a Registry records every id handed out so far and
// guarantees that a newly generated id never collides with an issued one.
package hexid

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

const (
	// MinWidth is the shortest identifier the registry issues.
	MinWidth = 3

	defaultThreshold   = 0.75
	defaultMaxAttempts = 64
)

// Registry is the set of hex ids issued in one session.
type Registry struct {
	ids         map[string]struct{}
	perWidth    map[int]int
	width       int
	threshold   float64
	maxAttempts int
	rng         *rand.Rand
}

// Option configures a Registry.
type Option func(*Registry)

// WithRand sets the random source, mainly for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(r *Registry) { r.rng = rng }
}

// WithExhaustionThreshold sets the occupancy ratio at which the width grows.
func WithExhaustionThreshold(ratio float64) Option {
	return func(r *Registry) {
		if ratio > 0 && ratio <= 1 {
			r.threshold = ratio
		}
	}
}

// WithMaxAttempts sets how many random collisions are tolerated before widening.
func WithMaxAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		ids:         make(map[string]struct{}),
		perWidth:    make(map[int]int),
		width:       MinWidth,
		threshold:   defaultThreshold,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return r
}

// Generate returns a fresh id and records it.
// The width starts at MinWidth and grows whenever the current width is close to full
// or random probing keeps colliding, so the loop always terminates.
func (r *Registry) Generate() string {
	for {
		if r.occupancy(r.width) >= r.threshold {
			r.width++
			continue
		}
		for attempt := 0; attempt < r.maxAttempts; attempt++ {
			id := r.candidate(r.width)
			if allDigits(id) {
				continue
			}
			if _, taken := r.ids[id]; !taken {
				r.add(id)
				return id
			}
		}
		r.width++
	}
}

// Width returns the width new ids are currently generated at.
func (r *Registry) Width() int {
	return r.width
}

func (r *Registry) candidate(width int) string {
	if width >= 16 {
		return fmt.Sprintf("%0*x", width, r.rng.Uint64())
	}
	return fmt.Sprintf("%0*x", width, r.rng.Uint64N(uint64(1)<<(4*width)))
}

// occupancy is the fraction of width-sized ids already issued.
func (r *Registry) occupancy(width int) float64 {
	return float64(r.perWidth[width]) / float64(capacity(width))
}

func (r *Registry) add(id string) {
	r.ids[id] = struct{}{}
	r.perWidth[len(id)]++
}

// capacity counts the ids of a width that Generate may hand out. Digit-only
// strings are excluded so a bare integer typed by the user never names a message.
func capacity(width int) uint64 {
	if width >= 16 {
		return 1<<64 - 1
	}
	digitOnly := uint64(1)
	for i := 0; i < width; i++ {
		digitOnly *= 10
	}
	return uint64(1)<<(4*width) - digitOnly
}

func allDigits(s string) bool {
	return strings.IndexFunc(s, func(c rune) bool { return c < '0' || c > '9' }) == -1
}

// Reserve records an id that was issued elsewhere. It reports false when the id is
// malformed or already present.
func (r *Registry) Reserve(id string) bool {
	if !IsValid(id) {
		return false
	}
	if _, taken := r.ids[id]; taken {
		return false
	}
	r.add(id)
	return true
}

// Release returns an id to the unused pool. Unknown ids are ignored.
func (r *Registry) Release(id string) {
	if _, ok := r.ids[id]; !ok {
		return
	}
	delete(r.ids, id)
	r.perWidth[len(id)]--
}

// Contains reports whether id has been issued and not released.
func (r *Registry) Contains(id string) bool {
	_, ok := r.ids[id]
	return ok
}

// Len returns the number of issued ids.
func (r *Registry) Len() int {
	return len(r.ids)
}

// Reset forgets every issued id and restarts at MinWidth.
func (r *Registry) Reset() {
	r.ids = make(map[string]struct{})
	r.perWidth = make(map[int]int)
	r.width = MinWidth
}

// AssignBulk issues n fresh ids for positions 0..n-1.
func (r *Registry) AssignBulk(n int) *Mapping {
	m := &Mapping{
		byIndex: make(map[int]string, n),
		byID:    make(map[string]int, n),
	}
	for i := 0; i < n; i++ {
		id := r.Generate()
		m.byIndex[i] = id
		m.byID[id] = i
	}
	return m
}

// IsValid reports whether s has the shape of a hex id: lowercase hex digits only,
// at least MinWidth long. Keywords such as "last" or "turn" are rejected by shape.
func IsValid(s string) bool {
	if len(s) < MinWidth {
		return false
	}
	return strings.IndexFunc(s, func(c rune) bool {
		return (c < '0' || c > '9') && (c < 'a' || c > 'f')
	}) == -1
}

// Mapping is a bidirectional index<->id lookup produced by AssignBulk.
type Mapping struct {
	byIndex map[int]string
	byID    map[string]int
}

// IDFor returns the id assigned to index.
func (m *Mapping) IDFor(index int) (string, bool) {
	id, ok := m.byIndex[index]
	return id, ok
}

// IndexFor returns the index an id was assigned to.
func (m *Mapping) IndexFor(id string) (int, bool) {
	idx, ok := m.byID[id]
	return idx, ok
}

// Len returns the number of assigned positions.
func (m *Mapping) Len() int {
	return len(m.byIndex)
}
