package state

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/taskrelay/relay/internal/fsio"
)

// Store persists a QueueState as JSON at a fixed path. Each save is a
// write-to-temp-then-rename so readers never observe a half-written
// index. There is no isolation across a load-mutate-save sequence:
// concurrent invocations race on the final write and the last writer
// wins (documented single-writer assumption; the daemon's file lock is
// the serialization point when one is wanted).
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (st *Store) Path() string { return st.path }

// Save serializes the four lists and the parent map atomically.
func (st *Store) Save(s *QueueState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	data = append(data, '\n')
	if err := fsio.AtomicWrite(st.path, data); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// Load deserializes the index verbatim. A missing or unparseable file is
// the caller's problem; the store never synthesizes defaults on read
// failure. Rebuilding from directory truth is the reconciler's job.
func (st *Store) Load() (*QueueState, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	var s QueueState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}

	// Normalize absent fields so callers can append without nil checks.
	if s.Pending == nil {
		s.Pending = []string{}
	}
	if s.Processing == nil {
		s.Processing = []string{}
	}
	if s.Completed == nil {
		s.Completed = []string{}
	}
	if s.Failed == nil {
		s.Failed = []string{}
	}
	if s.Parents == nil {
		s.Parents = map[string]string{}
	}
	return &s, nil
}
