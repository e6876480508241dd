package index

import (
	"sort"
	"sync"
)

// Key is where the index lives inside the shared data blob.
const Key = "calendarEvents"

// Backend is the key-value blob the index is persisted into.
type Backend interface {
	Get(key string, v any) (bool, error)
	Merge(key string, v any) error
}

// EventIndex maps Todoist task ids to the calendar event mirroring them.
type EventIndex struct {
	backend  Backend
	mappings map[string]string
	mu       sync.RWMutex
	dirty    bool
}

func NewEventIndex(backend Backend) *EventIndex {
	return &EventIndex{
		backend:  backend,
		mappings: make(map[string]string),
	}
}

func (idx *EventIndex) Load() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	loaded := make(map[string]string)
	if _, err := idx.backend.Get(Key, &loaded); err != nil {
		return err
	}
	idx.mappings = loaded
	idx.dirty = false
	return nil
}

func (idx *EventIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}
	if err := idx.backend.Merge(Key, idx.mappings); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}

func (idx *EventIndex) Get(taskID string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.mappings[taskID]
}

func (idx *EventIndex) Set(taskID, eventID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.mappings[taskID] != eventID {
		idx.mappings[taskID] = eventID
		idx.dirty = true
	}
}

func (idx *EventIndex) Remove(taskID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.mappings[taskID]; exists {
		delete(idx.mappings, taskID)
		idx.dirty = true
	}
}

// TaskIDs returns the indexed task ids in sorted order.
func (idx *EventIndex) TaskIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]string, 0, len(idx.mappings))
	for id := range idx.mappings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
