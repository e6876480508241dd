package todoist

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/harrisonrobin/notedo/pkg/logging"
)

const catalogTTL = 5 * time.Minute

type catalogSource interface {
	ListProjects(ctx context.Context) ([]Project, error)
	ListLabels(ctx context.Context) ([]Label, error)
}

// Catalog caches projects and labels for task creation and line rendering.
// A failed refresh keeps serving the previous data.
type Catalog struct {
	src catalogSource
	ttl time.Duration
	now func() time.Time

	mu              sync.Mutex
	projects        []Project
	labels          []Label
	projectsFetched time.Time
	labelsFetched   time.Time
}

func NewCatalog(src catalogSource) *Catalog {
	return &Catalog{src: src, ttl: catalogTTL, now: time.Now}
}

// Projects returns the cached projects, refetching when older than five minutes.
func (c *Catalog) Projects(ctx context.Context) []Project {
	c.mu.Lock()
	if !c.projectsFetched.IsZero() && c.now().Sub(c.projectsFetched) < c.ttl {
		defer c.mu.Unlock()
		return c.projects
	}
	c.mu.Unlock()

	projects, err := c.src.ListProjects(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		logging.Info("catalog", "error fetching projects: %v", err)
		return c.projects
	}
	c.projects = projects
	c.projectsFetched = c.now()
	return c.projects
}

// Labels returns the cached labels, refetching when older than five minutes.
func (c *Catalog) Labels(ctx context.Context) []Label {
	c.mu.Lock()
	if !c.labelsFetched.IsZero() && c.now().Sub(c.labelsFetched) < c.ttl {
		defer c.mu.Unlock()
		return c.labels
	}
	c.mu.Unlock()

	labels, err := c.src.ListLabels(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		logging.Info("catalog", "error fetching labels: %v", err)
		return c.labels
	}
	c.labels = labels
	c.labelsFetched = c.now()
	return c.labels
}

// Refresh drops the freshness stamps and refetches both lists.
func (c *Catalog) Refresh(ctx context.Context) {
	c.mu.Lock()
	c.projectsFetched = time.Time{}
	c.labelsFetched = time.Time{}
	c.mu.Unlock()
	c.Preload(ctx)
}

// Preload fetches projects and labels in parallel.
func (c *Catalog) Preload(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.Projects(ctx)
	}()
	go func() {
		defer wg.Done()
		c.Labels(ctx)
	}()
	wg.Wait()
}

// LabelColor returns the cached colour of a label, or "" if unknown.
func (c *Catalog) LabelColor(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.labels {
		if l.Name == name {
			return l.Color
		}
	}
	return ""
}

// ResolveProject finds a project by id or case-insensitive name.
func (c *Catalog) ResolveProject(ctx context.Context, ref string) (Project, bool) {
	for _, p := range c.Projects(ctx) {
		if p.ID == ref || strings.EqualFold(p.Name, ref) {
			return p, true
		}
	}
	return Project{}, false
}
