package consolidated

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/harrisonrobin/notedo/pkg/config"
	"github.com/harrisonrobin/notedo/pkg/logging"
	"github.com/harrisonrobin/notedo/pkg/tasklines"
	"github.com/harrisonrobin/notedo/pkg/todoist"
	"golang.org/x/sync/errgroup"
)

const (
	title       = "# Consolidated Todoist Tasks\n\n"
	emptyText   = "No tasks found matching the specified filters.\n"
	inboxName   = "Inbox"
	noteExt     = ".md"
	dueDateForm = "2006-01-02"
)

var ErrNoPath = errors.New("consolidated note path is not set")

var whitespace = regexp.MustCompile(`\s+`)

// Source is where the tasks come from.
type Source interface {
	HasToken() bool
	ListTasks(ctx context.Context) ([]todoist.Task, error)
	ListProjects(ctx context.Context) ([]todoist.Project, error)
	ListLabels(ctx context.Context) ([]todoist.Label, error)
}

// Writer is the note store the consolidated note is written into.
type Writer interface {
	Exists(path string) bool
	CreateFolder(path string) error
	WriteText(path, text string) error
	Create(path, text string) error
}

// Result describes a generated note.
type Result struct {
	Path     string
	Tasks    []todoist.Task
	Projects []todoist.Project
}

type Builder struct {
	src   Source
	notes Writer
}

func NewBuilder(src Source, notes Writer) *Builder {
	return &Builder{src: src, notes: notes}
}

// Generate fetches all open tasks and overwrites the note at notePath with
// the grouped listing. Nothing is written when any fetch fails.
func (b *Builder) Generate(ctx context.Context, notePath string, filters config.Filters) (*Result, error) {
	if !b.src.HasToken() {
		return nil, todoist.ErrNoToken
	}
	if strings.TrimSpace(notePath) == "" {
		return nil, ErrNoPath
	}

	var (
		tasks    []todoist.Task
		projects []todoist.Project
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = b.src.ListTasks(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		projects, err = b.src.ListProjects(gctx)
		return err
	})
	g.Go(func() error {
		// Fetched with the rest so a broken token fails the whole run.
		_, err := b.src.ListLabels(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching tasks: %w", err)
	}

	selected := Filter(tasks, filters)
	content := Render(selected, projects)

	notePath = NotePath(notePath)
	if err := b.write(notePath, content); err != nil {
		return nil, err
	}
	logging.Info("consolidated", "wrote %d tasks to %s", len(selected), notePath)
	return &Result{Path: notePath, Tasks: selected, Projects: projects}, nil
}

func (b *Builder) write(notePath, content string) error {
	if dir := path.Dir(notePath); dir != "." && !b.notes.Exists(dir) {
		if err := b.notes.CreateFolder(dir); err != nil {
			return fmt.Errorf("creating folder %s: %w", dir, err)
		}
	}
	if b.notes.Exists(notePath) {
		if err := b.notes.WriteText(notePath, content); err != nil {
			return fmt.Errorf("writing %s: %w", notePath, err)
		}
		return nil
	}
	if err := b.notes.Create(notePath, content); err != nil {
		return fmt.Errorf("creating %s: %w", notePath, err)
	}
	return nil
}

// NotePath appends the .md extension when it is missing.
func NotePath(p string) string {
	if strings.HasSuffix(p, noteExt) {
		return p
	}
	return p + noteExt
}

// Filter keeps incomplete tasks in one of the filter projects (by id) that
// carry at least one of the filter labels. Empty filter lists match all.
func Filter(tasks []todoist.Task, filters config.Filters) []todoist.Task {
	var out []todoist.Task
	for _, t := range tasks {
		if t.IsCompleted {
			continue
		}
		if len(filters.Projects) > 0 && !slices.Contains(filters.Projects, t.ProjectID) {
			continue
		}
		if len(filters.Labels) > 0 && !anyIn(t.Labels, filters.Labels) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Render lays out already filtered tasks grouped by project name.
func Render(tasks []todoist.Task, projects []todoist.Project) string {
	var sb strings.Builder
	sb.WriteString(title)
	if len(tasks) == 0 {
		sb.WriteString(emptyText)
		return sb.String()
	}

	names := make(map[string]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}

	groups := make(map[string][]todoist.Task)
	for _, t := range tasks {
		name, ok := names[t.ProjectID]
		if !ok || name == "" {
			name = inboxName
		}
		groups[name] = append(groups[name], t)
	}

	order := make([]string, 0, len(groups))
	for name := range groups {
		order = append(order, name)
	}
	sort.Strings(order)

	total := 0
	for _, name := range order {
		group := groups[name]
		total += len(group)
		sortTasks(group)

		fmt.Fprintf(&sb, "## %s (%d)\n\n", name, len(group))
		for _, t := range group {
			writeTask(&sb, t)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "---\n\n**Summary**: %d tasks across %d projects\n", total, len(order))
	return sb.String()
}

func writeTask(sb *strings.Builder, t todoist.Task) {
	checkbox := "[ ]"
	if t.IsCompleted {
		checkbox = "[x]"
	}
	fmt.Fprintf(sb, "- %s **%s** [](%s) %s", checkbox, t.Content, t.URL, tasklines.PriorityText(t.Priority))
	if len(t.Labels) > 0 {
		tags := make([]string, len(t.Labels))
		for i, l := range t.Labels {
			tags[i] = "#" + whitespace.ReplaceAllString(l, "-")
		}
		sb.WriteString(" " + strings.Join(tags, " "))
	}
	if t.Due != nil {
		sb.WriteString("  " + t.Due.String)
	}
	if t.Description != "" {
		fmt.Fprintf(sb, "\n  - *%s*", t.Description)
	}
	sb.WriteString("\n")
}

// sortTasks orders by priority, highest first. Ties are broken by due date
// only when both tasks have one; otherwise the input order is kept.
func sortTasks(tasks []todoist.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		da, okA := dueDate(a)
		db, okB := dueDate(b)
		if okA && okB {
			return da.Before(db)
		}
		return false
	})
}

func dueDate(t todoist.Task) (time.Time, bool) {
	if t.Due == nil || len(t.Due.Date) < len(dueDateForm) {
		return time.Time{}, false
	}
	d, err := time.Parse(dueDateForm, t.Due.Date[:len(dueDateForm)])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func anyIn(values, set []string) bool {
	for _, v := range values {
		if slices.Contains(set, v) {
			return true
		}
	}
	return false
}
