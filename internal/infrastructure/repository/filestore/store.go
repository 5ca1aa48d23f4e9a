package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Store keeps every entity in one JSON document. Each operation re-reads the
// document, applies its change and writes it back under a single mutex, so
// read-modify-write cycles never interleave within the process. An empty
// path keeps the document in memory.
type Store struct {
	path   string
	mu     sync.Mutex
	memory []byte
	log    zerolog.Logger
}

// Open prepares a file-backed store, creating the parent directory and an
// empty document when the file does not exist yet.
func Open(path string, log zerolog.Logger) (*Store, error) {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "." || path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}

	s := &Store{path: path, log: log.With().Str("component", "file-store").Logger()}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(emptyDocument()); err != nil {
			return nil, err
		}
		s.log.Info().Str("path", path).Msg("created empty store")
	} else if err != nil {
		return nil, fmt.Errorf("stat store: %w", err)
	}

	// Fail fast on an unreadable document.
	if _, err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMemory returns a store that never touches disk.
func NewMemory(log zerolog.Logger) *Store {
	s := &Store{log: log.With().Str("component", "memory-store").Logger()}
	raw, _ := json.Marshal(emptyDocument())
	s.memory = raw
	return s
}

// Path returns the backing file, empty in memory mode.
func (s *Store) Path() string {
	return s.path
}

// Close implements the storage backend contract; there is nothing to release.
func (s *Store) Close() error {
	return nil
}

// Normalize rewrites the document in the current layout.
func (s *Store) Normalize(ctx context.Context) error {
	return s.update(ctx, func(*document) error { return nil })
}

func (s *Store) view(ctx context.Context, fn func(doc *document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	return fn(doc)
}

// update runs fn against a fresh copy of the document and persists it only
// when fn succeeds.
func (s *Store) update(ctx context.Context, fn func(doc *document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.write(doc)
}

func (s *Store) read() (*document, error) {
	if s.path == "" {
		return decodeDocument(s.memory)
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptyDocument(), nil
		}
		return nil, fmt.Errorf("read store %s: %w", s.path, err)
	}
	return decodeDocument(raw)
}

func (s *Store) write(doc *document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if s.path == "" {
		s.memory = raw
		return nil
	}
	return writeFileAtomic(s.path, raw)
}

// writeFileAtomic replaces path through a temp file in the same directory.
func writeFileAtomic(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".store-*.json")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing store data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing store data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp store file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing store file: %w", err)
	}
	success = true
	return nil
}
