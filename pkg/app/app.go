package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harrisonrobin/notedo/pkg/config"
	"github.com/harrisonrobin/notedo/pkg/consolidated"
	"github.com/harrisonrobin/notedo/pkg/datastore"
	"github.com/harrisonrobin/notedo/pkg/google"
	"github.com/harrisonrobin/notedo/pkg/logging"
	"github.com/harrisonrobin/notedo/pkg/mapping"
	"github.com/harrisonrobin/notedo/pkg/model"
	"github.com/harrisonrobin/notedo/pkg/reconcile"
	"github.com/harrisonrobin/notedo/pkg/schedule"
	"github.com/harrisonrobin/notedo/pkg/tasklines"
	"github.com/harrisonrobin/notedo/pkg/todoist"
	"github.com/harrisonrobin/notedo/pkg/vault"
)

const debounceDelay = 1000 * time.Millisecond

const (
	msgConfigureToken = "Configure your Todoist API token first"
	msgConfigurePath  = "Configure consolidated note path in settings first"
	msgNoteGenerated  = "Consolidated note generated"
)

// Notifier shows short, non-fatal messages to the user.
type Notifier interface {
	Notify(msg string)
}

// Mirror copies tasks into a calendar.
type Mirror interface {
	Mirror(ctx context.Context, tasks []todoist.Task, projects []todoist.Project) (google.MirrorResult, error)
}

type Option func(*App)

// WithTodoist passes options to the Todoist client.
func WithTodoist(opts ...todoist.Option) Option {
	return func(a *App) { a.todoistOpts = opts }
}

// WithMirror enables the calendar mirror.
func WithMirror(m Mirror) Option {
	return func(a *App) { a.mirror = m }
}

// App wires settings, the Todoist client, the vault and the reconciliation
// engine together and owns the background jobs.
type App struct {
	store       *datastore.Store
	notify      Notifier
	todoistOpts []todoist.Option
	mirror      Mirror

	cfg      *config.Config
	client   *todoist.Client
	catalog  *todoist.Catalog
	vault    *vault.Vault
	mappings *mapping.Store
	engine   *reconcile.Engine
	builder  *consolidated.Builder

	fileChanges     *schedule.Collector
	refreshJob      *schedule.Job
	syncJob         *schedule.Job
	consolidatedJob *schedule.Job
	watcher         *vault.Watcher

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

func New(cfg *config.Config, store *datastore.Store, notify Notifier, opts ...Option) (*App, error) {
	a := &App{store: store, notify: notify}
	for _, opt := range opts {
		opt(a)
	}
	if a.notify == nil {
		a.notify = reconcile.NotifyFunc(func(string) {})
	}
	if err := a.wire(cfg); err != nil {
		return nil, err
	}

	a.refreshJob = schedule.NewJob("catalog", 0, func(ctx context.Context) {
		a.catalog.Refresh(ctx)
	})
	a.syncJob = schedule.NewJob("sync", 0, func(ctx context.Context) {
		if n := a.Sync(ctx); n > 0 {
			logging.Info("sync", "updated %d note lines", n)
		}
	})
	a.consolidatedJob = schedule.NewJob("consolidated", 0, func(ctx context.Context) {
		if _, err := a.generate(ctx); err != nil {
			logging.Debug("consolidated", "refresh skipped: %v", err)
		}
	})
	return a, nil
}

func (a *App) wire(cfg *config.Config) error {
	root, err := cfg.Vault()
	if err != nil {
		return fmt.Errorf("resolving vault directory: %w", err)
	}

	a.cfg = cfg
	a.client = todoist.NewClient(cfg.APIToken, a.todoistOpts...)
	a.catalog = todoist.NewCatalog(a.client)
	a.vault = vault.New(root)
	a.mappings = mapping.NewStore(a.store)
	a.mappings.Load()
	a.engine = reconcile.New(a.client, a.vault, a.mappings, a.notify)
	a.builder = consolidated.NewBuilder(a.client, a.vault)
	return nil
}

func (a *App) Config() *config.Config { return a.cfg }

func (a *App) Vault() *vault.Vault { return a.vault }

func (a *App) Catalog() *todoist.Catalog { return a.catalog }

// Start loads the mappings, warms the catalog and starts the background
// jobs and the vault watcher.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	n := a.mappings.Load()
	logging.Info("app", "loaded %d task mappings from %s", n, a.store.Path)
	if a.client.HasToken() {
		a.catalog.Preload(ctx)
	}

	a.startJobs(ctx)

	// Every note written during the quiet period is reconciled, not only
	// the last one.
	a.fileChanges = schedule.NewCollector(debounceDelay, func(paths []string) {
		for _, path := range paths {
			a.engine.HandleFileChange(ctx, path)
		}
	})
	if a.cfg.EnableSync {
		w, err := a.vault.Watch(a.fileChanges.Add)
		if err != nil {
			a.stopJobs()
			cancel()
			return fmt.Errorf("watching vault: %w", err)
		}
		a.watcher = w
	}

	a.cancel = cancel
	a.running = true
	logging.Info("app", "watching %s", a.vault.Root)
	return nil
}

func (a *App) startJobs(ctx context.Context) {
	var refreshEvery, syncEvery, noteEvery time.Duration
	if a.cfg.AutoRefresh {
		refreshEvery = a.cfg.RefreshEvery()
	}
	if a.cfg.EnableSync {
		syncEvery = a.cfg.SyncEvery()
	}
	if a.cfg.AutoRefreshConsolidated {
		noteEvery = a.cfg.ConsolidatedEvery()
	}
	a.refreshJob.Start(ctx, refreshEvery)
	a.syncJob.Start(ctx, syncEvery)
	a.consolidatedJob.Start(ctx, noteEvery)
}

func (a *App) stopJobs() {
	a.refreshJob.Stop()
	a.syncJob.Stop()
	a.consolidatedJob.Stop()
}

// Stop halts jobs and the watcher and saves the mappings.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stop()
}

func (a *App) stop() {
	if !a.running {
		return
	}
	a.stopJobs()
	if a.fileChanges != nil {
		a.fileChanges.Stop()
	}
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			logging.Info("app", "error closing watcher: %v", err)
		}
		a.watcher = nil
	}
	a.cancel()
	if err := a.mappings.Save(); err != nil {
		logging.Info("app", "error saving task mappings: %v", err)
	}
	a.running = false
}

// ApplySettings saves cfg and, when running, restarts everything with it.
func (a *App) ApplySettings(ctx context.Context, cfg *config.Config) error {
	if err := config.Save(a.store, cfg); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}

	a.mu.Lock()
	running := a.running
	a.stop()
	err := a.wire(cfg)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	if running {
		return a.Start(ctx)
	}
	return nil
}

// OnEditorChange handles the line under the cursor.
func (a *App) OnEditorChange(ctx context.Context, file string, line int, text string) bool {
	return a.engine.HandleEditorChange(ctx, file, line, text)
}

// OnFileChange handles a modified note right away.
func (a *App) OnFileChange(ctx context.Context, file string) int {
	return a.engine.HandleFileChange(ctx, file)
}

// Sync pulls completion state for every mapped task.
func (a *App) Sync(ctx context.Context) int {
	return a.engine.Poll(ctx)
}

func (a *App) Repair(ctx context.Context, prune bool) (reconcile.RepairResult, error) {
	return a.engine.Repair(ctx, prune)
}

func (a *App) TestConnection(ctx context.Context) bool {
	return a.client.TestConnection(ctx)
}

// InsertTarget is where a new task line goes. A negative Line appends; an
// empty File skips the insertion.
type InsertTarget struct {
	File string
	Line int
}

// CreateTask creates the task in Todoist and, when configured, writes its
// line into the target note.
func (a *App) CreateTask(ctx context.Context, draft model.Draft, target InsertTarget) (*todoist.Task, error) {
	if !a.client.HasToken() {
		a.notify.Notify(msgConfigureToken)
		return nil, todoist.ErrNoToken
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	if draft.ProjectID == "" {
		draft.ProjectID = a.cfg.DefaultProject
	}
	if draft.ProjectID != "" {
		if p, ok := a.catalog.ResolveProject(ctx, draft.ProjectID); ok {
			draft.ProjectID = p.ID
		}
	}

	task, err := a.client.CreateTask(ctx, draft.Request(a.cfg.EnableTimeSelection))
	if err != nil {
		a.notify.Notify(fmt.Sprintf("Error creating task: %v", err))
		return nil, err
	}

	if draft.Reminder != "" {
		if err := a.client.CreateReminder(ctx, task.ID, draft.Reminder); err != nil {
			logging.Info("app", "error creating reminder for task %s: %v", task.ID, err)
		}
	}

	if a.cfg.InsertTaskInNote && target.File != "" {
		if err := a.insert(ctx, task, draft.IsRepeating(), target); err != nil {
			a.notify.Notify(fmt.Sprintf("Error inserting task: %v", err))
			return task, err
		}
	}

	a.notify.Notify("Task created: " + task.Content)
	return task, nil
}

// CreateTaskFromText creates a plain task in the default project.
func (a *App) CreateTaskFromText(ctx context.Context, text string, target InsertTarget) (*todoist.Task, error) {
	return a.CreateTask(ctx, model.Draft{Content: text, Priority: 1}, target)
}

func (a *App) insert(ctx context.Context, task *todoist.Task, repeating bool, target InsertTarget) error {
	variant, tmpl := tasklines.Single, a.cfg.TaskNoteTemplate
	if repeating {
		variant, tmpl = tasklines.Repeating, a.cfg.RepeatTemplate()
	}
	if tmpl == "" {
		tmpl = config.DefaultTaskNoteTemplate
	}

	a.catalog.Labels(ctx)
	codec := tasklines.Codec{LabelColor: a.catalog.LabelColor}
	text := codec.Render(task, tmpl, variant)

	file := target.File
	if !vault.IsNote(file) {
		file += ".md"
	}
	line, err := a.engine.InsertTaskLine(file, target.Line, text, task.ID, a.cfg.EnableSync)
	if err != nil {
		return err
	}
	logging.Info("app", "inserted task %s at %s:%d: %s", task.ID, file, line, logging.Line(text))
	return nil
}

// GenerateConsolidated rewrites the consolidated note and, when a calendar
// is configured, mirrors the listed tasks into it.
func (a *App) GenerateConsolidated(ctx context.Context) (string, error) {
	res, err := a.generate(ctx)
	switch {
	case errors.Is(err, todoist.ErrNoToken):
		a.notify.Notify(msgConfigureToken)
		return "", err
	case errors.Is(err, consolidated.ErrNoPath):
		a.notify.Notify(msgConfigurePath)
		return "", err
	case err != nil:
		a.notify.Notify(fmt.Sprintf("Error generating consolidated note: %v", err))
		return "", err
	}
	a.notify.Notify(msgNoteGenerated)
	return res.Path, nil
}

func (a *App) generate(ctx context.Context) (*consolidated.Result, error) {
	res, err := a.builder.Generate(ctx, a.cfg.ConsolidatedNotePath, a.cfg.ConsolidatedNoteFilters)
	if err != nil {
		return nil, err
	}
	if a.mirror != nil {
		if _, err := a.mirror.Mirror(ctx, res.Tasks, res.Projects); err != nil {
			logging.Info("calendar", "mirror failed: %v", err)
		}
	}
	return res, nil
}

// MirrorCalendar mirrors every open task into the calendar.
func (a *App) MirrorCalendar(ctx context.Context) (google.MirrorResult, error) {
	if a.mirror == nil {
		return google.MirrorResult{}, errors.New("no calendar configured, run `notedo set-calendar` first")
	}
	if !a.client.HasToken() {
		a.notify.Notify(msgConfigureToken)
		return google.MirrorResult{}, todoist.ErrNoToken
	}
	tasks, err := a.client.ListTasks(ctx)
	if err != nil {
		return google.MirrorResult{}, fmt.Errorf("listing tasks: %w", err)
	}
	projects := a.catalog.Projects(ctx)
	return a.mirror.Mirror(ctx, consolidated.Filter(tasks, config.Filters{}), projects)
}
