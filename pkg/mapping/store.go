package mapping

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/harrisonrobin/notedo/pkg/logging"
)

// Key is where the table lives inside the shared data blob.
const Key = "taskMappings"

// Mapping ties a note line to a Todoist task. LineContent is the last text
// notedo itself wrote or accepted for that line.
type Mapping struct {
	TaskID      string `json:"todoistId"`
	File        string `json:"file"`
	Line        int    `json:"line"`
	LineContent string `json:"lineContent"`
}

// Backend is the key-value blob the table is persisted into.
type Backend interface {
	Get(key string, v any) (bool, error)
	Merge(key string, v any) error
}

// Store is the in-memory mapping table, keyed by task id.
type Store struct {
	backend  Backend
	mappings map[string]Mapping
	mu       sync.RWMutex
	dirty    bool
}

func NewStore(backend Backend) *Store {
	return &Store{
		backend:  backend,
		mappings: make(map[string]Mapping),
	}
}

// Load replaces the table with the persisted one. Entries that cannot be
// decoded are skipped; a backend failure leaves the table empty. It returns
// the number of mappings loaded.
func (s *Store) Load() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mappings = make(map[string]Mapping)
	s.dirty = false

	var raw map[string]json.RawMessage
	if _, err := s.backend.Get(Key, &raw); err != nil {
		logging.Info("mapping", "error loading task mappings: %v", err)
		return 0
	}
	for id, entry := range raw {
		var m Mapping
		if err := json.Unmarshal(entry, &m); err != nil {
			logging.Info("mapping", "skipping mapping %s: %v", id, err)
			continue
		}
		if m.File == "" || m.Line < 0 {
			logging.Info("mapping", "skipping mapping %s: missing file or line", id)
			continue
		}
		m.TaskID = id
		s.mappings[id] = m
	}
	return len(s.mappings)
}

// Save writes the whole table back. Nothing is written when the table has
// not changed since the last successful save.
func (s *Store) Save() error {
	s.mu.RLock()
	if !s.dirty {
		s.mu.RUnlock()
		return nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]Mapping, len(s.mappings))
	for id, m := range s.mappings {
		snapshot[id] = m
	}
	if err := s.backend.Merge(Key, snapshot); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (s *Store) Get(taskID string) (Mapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[taskID]
	return m, ok
}

func (s *Store) Set(m Mapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mappings[m.TaskID] != m {
		s.mappings[m.TaskID] = m
		s.dirty = true
	}
}

func (s *Store) Remove(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.mappings[taskID]; exists {
		delete(s.mappings, taskID)
		s.dirty = true
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mappings)
}

// All returns a snapshot of the table ordered by task id.
func (s *Store) All() []Mapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]Mapping, 0, len(s.mappings))
	for _, m := range s.mappings {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TaskID < all[j].TaskID })
	return all
}

// ShiftLines moves every mapping of file at or below line from by delta.
// Used when a new task line is inserted above existing ones.
func (s *Store) ShiftLines(file string, from, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.mappings {
		if m.File == file && m.Line >= from {
			m.Line += delta
			s.mappings[id] = m
			s.dirty = true
		}
	}
}
