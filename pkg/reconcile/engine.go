package reconcile

import (
	"context"
	"errors"
	"io/fs"
	"sync"

	"github.com/harrisonrobin/notedo/pkg/logging"
	"github.com/harrisonrobin/notedo/pkg/mapping"
	"github.com/harrisonrobin/notedo/pkg/tasklines"
	"github.com/harrisonrobin/notedo/pkg/todoist"
	"github.com/harrisonrobin/notedo/pkg/vault"
)

const (
	msgCompleted   = "Task completed in Todoist"
	msgUncompleted = "Task uncompleted in Todoist"
	msgSyncError   = "Error syncing with Todoist"
)

// TaskService is the part of the Todoist client the engine needs.
type TaskService interface {
	HasToken() bool
	GetTask(ctx context.Context, id string) (*todoist.Task, error)
	SetCompleted(ctx context.Context, id string, completed bool) error
}

// Documents reads and rewrites notes.
type Documents interface {
	ReadText(path string) (string, error)
	WriteText(path, text string) error
	InsertLine(path string, at int, text string) (int, error)
}

// Notifier shows short, non-fatal messages to the user.
type Notifier interface {
	Notify(msg string)
}

type NotifyFunc func(msg string)

func (f NotifyFunc) Notify(msg string) { f(msg) }

// Engine keeps note checkboxes and Todoist completion state in step.
// Entry points are serialized; network fetches during a poll happen outside
// the lock.
type Engine struct {
	tasks  TaskService
	docs   Documents
	store  *mapping.Store
	notify Notifier

	mu sync.Mutex
}

func New(tasks TaskService, docs Documents, store *mapping.Store, notify Notifier) *Engine {
	if notify == nil {
		notify = NotifyFunc(func(string) {})
	}
	return &Engine{tasks: tasks, docs: docs, store: store, notify: notify}
}

// HandleFileChange pushes checkbox edits made in file to Todoist. A mapped
// line is pushed when it still carries its own task reference and differs
// from the text notedo last recorded for it. It returns the number of tasks
// updated.
func (e *Engine) HandleFileChange(ctx context.Context, file string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	text, err := e.docs.ReadText(file)
	if err != nil {
		logging.Debug("reconcile", "cannot read %s: %v", file, err)
		return 0
	}
	lines := vault.SplitLines(text)

	pushed := 0
	for _, m := range e.store.All() {
		if m.File != file || m.Line >= len(lines) {
			continue
		}
		current := lines[m.Line]
		if current == m.LineContent || !tasklines.HasTag(current) {
			continue
		}
		ref, ok := tasklines.Recognize(current)
		if !ok || ref.TaskID != m.TaskID {
			continue
		}

		logging.Info("reconcile", "file change for task %s: completed=%v", m.TaskID, ref.Completed)
		if !e.push(ctx, m.TaskID, ref.Completed) {
			continue
		}
		m.LineContent = current
		e.store.Set(m)
		e.save()
		pushed++
	}
	return pushed
}

// HandleEditorChange handles the line under the cursor. Lines that reference
// a task without a mapping are ignored.
func (e *Engine) HandleEditorChange(ctx context.Context, file string, line int, text string) bool {
	ref, ok := tasklines.Recognize(text)
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.store.Get(ref.TaskID)
	if !ok {
		logging.Debug("reconcile", "task %s on %s:%d has no mapping", ref.TaskID, file, line)
		return false
	}
	if text == m.LineContent {
		return false
	}

	logging.Info("reconcile", "editor change for task %s: completed=%v", ref.TaskID, ref.Completed)
	if !e.push(ctx, ref.TaskID, ref.Completed) {
		return false
	}
	m.File = file
	m.Line = line
	m.LineContent = text
	e.store.Set(m)
	e.save()
	return true
}

// Poll fetches every mapped task and mirrors its completion state onto the
// note line, touching only the checkbox glyph. A mapping that cannot be
// fetched is skipped and kept. It returns the number of lines rewritten.
func (e *Engine) Poll(ctx context.Context) int {
	if !e.tasks.HasToken() || e.store.Len() == 0 {
		return 0
	}

	rewritten := 0
	for _, m := range e.store.All() {
		if ctx.Err() != nil {
			break
		}
		task, err := e.tasks.GetTask(ctx, m.TaskID)
		if err != nil {
			logging.Debug("reconcile", "skipping task %s: %v", m.TaskID, err)
			continue
		}
		if e.apply(m.TaskID, task.IsCompleted) {
			rewritten++
		}
	}
	return rewritten
}

func (e *Engine) apply(id string, completed bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Re-read: an edit may have moved the mapping while we were fetching.
	m, ok := e.store.Get(id)
	if !ok {
		return false
	}
	text, err := e.docs.ReadText(m.File)
	if err != nil {
		logging.Debug("reconcile", "cannot read %s: %v", m.File, err)
		return false
	}
	lines := vault.SplitLines(text)
	if m.Line >= len(lines) {
		return false
	}
	current := lines[m.Line]
	if !tasklines.HasTag(current) {
		return false
	}
	if ref, ok := tasklines.Recognize(current); ok && ref.TaskID != m.TaskID {
		return false
	}
	if tasklines.IsChecked(current) == completed {
		return false
	}
	updated := tasklines.SetChecked(current, completed)
	if updated == current {
		return false
	}

	lines[m.Line] = updated
	// Record the new text first so the write does not echo back as a local edit.
	m.LineContent = updated
	e.store.Set(m)
	if err := e.docs.WriteText(m.File, vault.JoinLines(lines)); err != nil {
		logging.Info("reconcile", "error updating %s: %v", m.File, err)
		m.LineContent = current
		e.store.Set(m)
		return false
	}
	logging.Info("reconcile", "task %s completed=%v applied to %s:%d", m.TaskID, completed, m.File, m.Line)
	e.save()
	return true
}

func (e *Engine) push(ctx context.Context, id string, completed bool) bool {
	if err := e.tasks.SetCompleted(ctx, id, completed); err != nil {
		logging.Info("reconcile", "error updating task %s: %v", id, err)
		e.notify.Notify(msgSyncError)
		return false
	}
	if completed {
		e.notify.Notify(msgCompleted)
	} else {
		e.notify.Notify(msgUncompleted)
	}
	return true
}

func (e *Engine) save() {
	if err := e.store.Save(); err != nil {
		logging.Info("reconcile", "error saving task mappings: %v", err)
	}
}

// InsertTaskLine adds text as a new line of file before line at (appending
// when at is negative). Mapped lines below it move down by one. When track
// is set the new line is mapped to taskID. It returns the line used.
func (e *Engine) InsertTaskLine(file string, at int, text, taskID string, track bool) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	line, err := e.docs.InsertLine(file, at, text)
	if err != nil {
		return 0, err
	}
	e.store.ShiftLines(file, line, 1)
	if track {
		e.store.Set(mapping.Mapping{TaskID: taskID, File: file, Line: line, LineContent: text})
		logging.Info("reconcile", "mapped task %s to %s:%d", taskID, file, line)
	}
	e.save()
	return line, nil
}

// RepairResult counts what Repair did.
type RepairResult struct {
	Intact    int
	Relocated int
	Removed   int
}

// Repair checks every mapping against its note. A mapping whose line no
// longer references its task is moved to the line that does; when no such
// line exists it is removed if prune is set or the note is gone. Only runs
// on request.
func (e *Engine) Repair(ctx context.Context, prune bool) (RepairResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var res RepairResult
	for _, m := range e.store.All() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		text, err := e.docs.ReadText(m.File)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				e.store.Remove(m.TaskID)
				res.Removed++
				continue
			}
			return res, err
		}

		lines := vault.SplitLines(text)
		if m.Line < len(lines) {
			if ref, ok := tasklines.Recognize(lines[m.Line]); ok && ref.TaskID == m.TaskID {
				res.Intact++
				continue
			}
		}

		relocated := false
		for _, tl := range vault.Scan(m.File, text) {
			if tl.Ref.TaskID == m.TaskID {
				m.Line = tl.Line
				m.LineContent = tl.Text
				e.store.Set(m)
				relocated = true
				break
			}
		}
		switch {
		case relocated:
			res.Relocated++
		case prune:
			e.store.Remove(m.TaskID)
			res.Removed++
		}
	}
	return res, e.store.Save()
}
