// Package storage persists chat documents as JSON or YAML files.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"neurochat/internal/logger"
	"neurochat/internal/testutils"
	"neurochat/pkg/chattypes"
)

var (
	// ErrUnsupportedFormat is returned for unknown extensions and incompatible format versions.
	ErrUnsupportedFormat = errors.New("unsupported chat format")
	// ErrCorrupt is returned when a file parses but violates transcript invariants.
	ErrCorrupt = errors.New("corrupt chat file")
)

// SupportedFormats is the semver constraint on readable documents.
const SupportedFormats = ">= 1.0.0, < 2.0.0"

// legacyFormatVersion is assumed for documents written before versioning.
const legacyFormatVersion = "1.0.0"

// Summary describes a chat file for listings.
type Summary struct {
	Path     string
	Title    string
	Messages int
	Metadata chattypes.ChatMetadata
}

// FileStore loads and saves chat documents on disk.
type FileStore struct {
	constraint *semver.Constraints
}

// NewFileStore creates a file store accepting SupportedFormats.
func NewFileStore() *FileStore {
	c, err := semver.NewConstraint(SupportedFormats)
	if err != nil {
		panic(fmt.Sprintf("invalid format constraint %q: %v", SupportedFormats, err))
	}
	return &FileStore{constraint: c}
}

type codec int

const (
	codecJSON codec = iota
	codecYAML
)

func codecFor(path string) (codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return codecJSON, nil
	case ".yaml", ".yml":
		return codecYAML, nil
	default:
		return 0, fmt.Errorf("%w: %s (use .json, .yaml or .yml)", ErrUnsupportedFormat, path)
	}
}

// Load reads the document at path. A missing file yields an error matching fs.ErrNotExist.
func (s *FileStore) Load(path string) (*chattypes.ChatDocument, error) {
	c, err := codecFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc chattypes.ChatDocument
	switch c {
	case codecYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	if err := s.checkVersion(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Messages == nil {
		doc.Messages = []chattypes.ChatMessage{}
	}
	for i, m := range doc.Messages {
		if !m.WellFormed() {
			return nil, fmt.Errorf("%w: %s: message %d has role %q with fields it cannot carry", ErrCorrupt, path, i, m.Role)
		}
	}

	logger.Debug("Chat loaded", "path", path, "messages", len(doc.Messages), "format", doc.Metadata.FormatVersion)
	return &doc, nil
}

func (s *FileStore) checkVersion(doc *chattypes.ChatDocument) error {
	if doc.Metadata.FormatVersion == "" {
		doc.Metadata.FormatVersion = legacyFormatVersion
	}
	v, err := semver.NewVersion(doc.Metadata.FormatVersion)
	if err != nil {
		return fmt.Errorf("%w: invalid format version %q", ErrUnsupportedFormat, doc.Metadata.FormatVersion)
	}
	if !s.constraint.Check(v) {
		return fmt.Errorf("%w: format version %s is not %s", ErrUnsupportedFormat, v, SupportedFormats)
	}
	return nil
}

// Save writes doc to path through a temporary file and a rename, so readers never
// observe a partial write. Hex ids are not written.
func (s *FileStore) Save(path string, doc *chattypes.ChatDocument) error {
	c, err := codecFor(path)
	if err != nil {
		return err
	}

	out := *doc
	out.Metadata.FormatVersion = chattypes.CurrentFormatVersion
	var data []byte
	switch c {
	case codecYAML:
		data, err = yaml.Marshal(&out)
	default:
		data, err = json.MarshalIndent(&out, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal chat: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	logger.Debug("Chat saved", "path", path, "messages", len(doc.Messages))
	return nil
}

// List summarizes every chat file in dir, most recently updated first.
// Unreadable files are skipped with a warning. A missing dir lists nothing.
func (s *FileStore) List(dir string) ([]Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Summary{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	summaries := []Summary{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if _, err := codecFor(name); err != nil {
			continue
		}
		path := filepath.Join(dir, name)
		doc, err := s.Load(path)
		if err != nil {
			logger.Warn("Skipping unreadable chat", "path", path, "error", err)
			continue
		}
		summaries = append(summaries, Summary{
			Path:     path,
			Title:    doc.Metadata.Title,
			Messages: len(doc.Messages),
			Metadata: doc.Metadata,
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Metadata.Updated.After(summaries[j].Metadata.Updated)
	})
	return summaries, nil
}

// NewChatPath returns a fresh file path in dir for a new JSON chat.
func NewChatPath(dir string, testMode bool) string {
	id := testutils.GenerateUUID(testMode)
	return filepath.Join(dir, "chat-"+id[:8]+".json")
}
