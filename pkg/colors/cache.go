package colors

import (
	"strconv"
	"sync"
	"time"
)

// Key is where the cache lives inside the shared data blob.
const Key = "projectColors"

const (
	// Google Calendar event colour ids 1 to 11.
	paletteSize = 11

	NoProjectColor = "8"
)

type Backend interface {
	Get(key string, v any) (bool, error)
	Merge(key string, v any) error
}

type ProjectState struct {
	ColorID      string    `json:"color_id"`
	LastModified time.Time `json:"last_modified"`
}

// ColorCache hands each project one of the calendar colours. When all are
// taken, the least recently used project gives its colour up.
type ColorCache struct {
	backend  Backend
	projects map[string]*ProjectState
	now      func() time.Time
	mu       sync.Mutex
	dirty    bool
}

func NewColorCache(backend Backend) *ColorCache {
	return &ColorCache{
		backend:  backend,
		projects: make(map[string]*ProjectState),
		now:      time.Now,
	}
}

func (c *ColorCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	loaded := make(map[string]*ProjectState)
	if _, err := c.backend.Get(Key, &loaded); err != nil {
		return err
	}
	for name, s := range loaded {
		if s == nil || s.ColorID == "" {
			delete(loaded, name)
		}
	}
	c.projects = loaded
	c.dirty = false
	return nil
}

func (c *ColorCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := c.backend.Merge(Key, c.projects); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// GetColorID returns the colour id for a project and marks it as used.
func (c *ColorCache) GetColorID(project string) string {
	if project == "" {
		return NoProjectColor
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.projects[project]; ok {
		state.LastModified = c.now()
		c.dirty = true
		return state.ColorID
	}
	return c.assignColor(project)
}

func (c *ColorCache) assignColor(project string) string {
	used := make(map[string]bool)
	for _, s := range c.projects {
		used[s.ColorID] = true
	}

	for i := 1; i <= paletteSize; i++ {
		id := strconv.Itoa(i)
		if !used[id] {
			c.claim(project, id)
			return id
		}
	}

	var oldest string
	var oldestTime time.Time
	for p, s := range c.projects {
		if oldest == "" || s.LastModified.Before(oldestTime) {
			oldest, oldestTime = p, s.LastModified
		}
	}
	recycled := c.projects[oldest].ColorID
	delete(c.projects, oldest)
	c.claim(project, recycled)
	return recycled
}

func (c *ColorCache) claim(project, id string) {
	c.projects[project] = &ProjectState{ColorID: id, LastModified: c.now()}
	c.dirty = true
}
