package testutils

import (
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"neurochat/pkg/chattypes"
)

// MemoryStore is an in-memory persistence gateway. Saved documents are deep-copied
// with hex ids stripped, the way a file round trip would leave them.
type MemoryStore struct {
	mu      sync.Mutex
	docs    map[string]*chattypes.ChatDocument
	saves   int
	SaveErr error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*chattypes.ChatDocument)}
}

// Load returns a copy of the document saved at path.
func (m *MemoryStore) Load(path string) (*chattypes.ChatDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[path]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", path, fs.ErrNotExist)
	}
	return doc.Clone(), nil
}

// Save stores a copy of doc at path, or fails with SaveErr when set.
func (m *MemoryStore) Save(path string, doc *chattypes.ChatDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	stored := doc.Clone()
	for i := range stored.Messages {
		stored.Messages[i].HexID = ""
	}
	m.docs[path] = stored
	m.saves++
	return nil
}

// Put seeds a document without counting it as a save.
func (m *MemoryStore) Put(path string, doc *chattypes.ChatDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[path] = doc.Clone()
}

// Saved returns the last saved copy at path.
func (m *MemoryStore) Saved(path string) (*chattypes.ChatDocument, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[path]
	if !ok {
		return nil, false
	}
	return doc.Clone(), true
}

// Saves returns how many successful saves happened.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Paths lists stored paths in order.
func (m *MemoryStore) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.docs))
	for p := range m.docs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
