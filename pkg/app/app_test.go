package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harrisonrobin/notedo/pkg/config"
	"github.com/harrisonrobin/notedo/pkg/datastore"
	"github.com/harrisonrobin/notedo/pkg/google"
	"github.com/harrisonrobin/notedo/pkg/mapping"
	"github.com/harrisonrobin/notedo/pkg/model"
	"github.com/harrisonrobin/notedo/pkg/todoist"
)

type fakeTodoist struct {
	mu       sync.Mutex
	created  []todoist.CreateTaskRequest
	closed   chan string
	reminder []string
}

func (f *fakeTodoist) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]todoist.Project{{ID: "p1", Name: "Groceries"}})
	})
	mux.HandleFunc("GET /labels", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]todoist.Label{{ID: "l1", Name: "shop", Color: "#ff0000"}})
	})
	mux.HandleFunc("GET /tasks", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]todoist.Task{
			{ID: "77", Content: "Buy milk", ProjectID: "p1", Priority: 1, URL: "https://todoist.com/app/task/77",
				Due: &todoist.Due{Date: "2025-03-01", String: "Mar 1"}},
		})
	})
	mux.HandleFunc("POST /tasks", func(w http.ResponseWriter, r *http.Request) {
		var req todoist.CreateTaskRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.created = append(f.created, req)
		id := strconv.Itoa(76 + len(f.created))
		f.mu.Unlock()
		json.NewEncoder(w).Encode(todoist.Task{
			ID: id, Content: req.Content, ProjectID: req.ProjectID, Priority: req.Priority,
			URL: "https://todoist.com/app/task/" + id, Labels: req.Labels,
		})
	})
	mux.HandleFunc("POST /tasks/{id}/close", func(w http.ResponseWriter, r *http.Request) {
		if f.closed != nil {
			f.closed <- r.PathValue("id")
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /reminders", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ItemID string `json:"item_id"`
			Due    struct {
				String string `json:"string"`
			} `json:"due"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.reminder = append(f.reminder, body.ItemID+":"+body.Due.String)
		f.mu.Unlock()
		w.Write([]byte("{}"))
	})
	return mux
}

type notices struct {
	mu   sync.Mutex
	msgs []string
}

func (n *notices) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *notices) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.msgs) == 0 {
		return ""
	}
	return n.msgs[len(n.msgs)-1]
}

type fakeMirror struct {
	tasks []todoist.Task
}

func (m *fakeMirror) Mirror(ctx context.Context, tasks []todoist.Task, projects []todoist.Project) (google.MirrorResult, error) {
	m.tasks = tasks
	return google.MirrorResult{Synced: len(tasks)}, nil
}

func newTestApp(t *testing.T, fake *fakeTodoist, token string, opts ...Option) (*App, *datastore.Store, *notices) {
	t.Helper()
	ts := httptest.NewServer(fake.handler())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.APIToken = token
	cfg.VaultDir = t.TempDir()
	cfg.EnableTimeSelection = true
	store := datastore.New(filepath.Join(t.TempDir(), "data.json"))
	n := &notices{}

	opts = append(opts, WithTodoist(todoist.WithBaseURL(ts.URL)))
	a, err := New(cfg, store, n, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return a, store, n
}

func TestCreateTaskInsertsAndMaps(t *testing.T) {
	fake := &fakeTodoist{}
	a, store, n := newTestApp(t, fake, "tok")
	ctx := context.Background()

	draft := model.Draft{
		Content:  "Buy milk",
		Labels:   []string{"shop"},
		DueDate:  "2025-03-01",
		DueTime:  "09:00",
		Reminder: "30 minutes before",
	}
	task, err := a.CreateTask(ctx, draft, InsertTarget{File: "daily/today", Line: -1})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.ID != "77" {
		t.Errorf("Unexpected task: %+v", task)
	}

	if len(fake.created) != 1 {
		t.Fatalf("Expected one create call, got %d", len(fake.created))
	}
	req := fake.created[0]
	if req.DueString != "2025-03-01 at 09:00" || req.Priority != 1 {
		t.Errorf("Unexpected request: %+v", req)
	}
	if len(fake.reminder) != 1 || fake.reminder[0] != "77:30 minutes before" {
		t.Errorf("Expected reminder after create, got %v", fake.reminder)
	}

	text, err := a.Vault().ReadText("daily/today.md")
	if err != nil {
		t.Fatalf("Note not created: %v", err)
	}
	if !strings.HasPrefix(text, "- [ ] Buy milk [](https://todoist.com/app/task/77)") || !strings.HasSuffix(text, "#tasktodo\n") {
		t.Errorf("Unexpected note: %q", text)
	}
	if !strings.Contains(text, "background-color: #ff000020") {
		t.Errorf("Expected label colour from catalog, got %q", text)
	}

	var saved map[string]mapping.Mapping
	if ok, err := store.Get(mapping.Key, &saved); !ok || err != nil {
		t.Fatalf("Expected mappings persisted, got %v %v", ok, err)
	}
	m := saved["77"]
	if m.File != "daily/today.md" || m.Line != 0 || m.LineContent != strings.TrimSuffix(text, "\n") {
		t.Errorf("Unexpected mapping: %+v", m)
	}
	if n.last() != "Task created: Buy milk" {
		t.Errorf("Unexpected notice: %q", n.last())
	}
}

func TestCreateTaskRepeatingUsesRepeatTemplate(t *testing.T) {
	fake := &fakeTodoist{}
	a, _, _ := newTestApp(t, fake, "tok")

	_, err := a.CreateTask(context.Background(), model.Draft{Content: "Water plants", DueDate: "2025-03-01", Repeat: "every week"},
		InsertTarget{File: "plants.md", Line: 0})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if got := fake.created[0].DueString; got != "2025-03-01 every week" {
		t.Errorf("Unexpected due string %q", got)
	}
	text, _ := a.Vault().ReadText("plants.md")
	if !strings.Contains(text, "#repeattodo") || strings.Contains(text, "#tasktodo") {
		t.Errorf("Expected repeat tag, got %q", text)
	}
}

func TestCreateTaskErrors(t *testing.T) {
	fake := &fakeTodoist{}
	a, _, n := newTestApp(t, fake, "")
	_, err := a.CreateTaskFromText(context.Background(), "x", InsertTarget{})
	if !errors.Is(err, todoist.ErrNoToken) {
		t.Errorf("Expected ErrNoToken, got %v", err)
	}
	if n.last() != msgConfigureToken {
		t.Errorf("Unexpected notice %q", n.last())
	}

	a, _, _ = newTestApp(t, fake, "tok")
	if _, err := a.CreateTaskFromText(context.Background(), "  ", InsertTarget{}); !errors.Is(err, model.ErrEmptyContent) {
		t.Errorf("Expected ErrEmptyContent, got %v", err)
	}
	if len(fake.created) != 0 {
		t.Errorf("Expected no create calls, got %d", len(fake.created))
	}
}

func TestGenerateConsolidatedMirrors(t *testing.T) {
	mirror := &fakeMirror{}
	a, _, n := newTestApp(t, &fakeTodoist{}, "tok", WithMirror(mirror))

	path, err := a.GenerateConsolidated(context.Background())
	if err != nil {
		t.Fatalf("GenerateConsolidated failed: %v", err)
	}
	if path != "tasks/consolidated-tasks.md" {
		t.Errorf("Unexpected path %s", path)
	}
	text, _ := a.Vault().ReadText(path)
	if !strings.Contains(text, "## Groceries (1)") {
		t.Errorf("Unexpected note: %s", text)
	}
	if len(mirror.tasks) != 1 || mirror.tasks[0].ID != "77" {
		t.Errorf("Expected listed task mirrored, got %+v", mirror.tasks)
	}
	if n.last() != msgNoteGenerated {
		t.Errorf("Unexpected notice %q", n.last())
	}
}

func TestWatcherPushesCompletion(t *testing.T) {
	fake := &fakeTodoist{closed: make(chan string, 1)}
	a, _, _ := newTestApp(t, fake, "tok")
	ctx := context.Background()

	if _, err := a.CreateTaskFromText(ctx, "Buy milk", InsertTarget{File: "list.md", Line: -1}); err != nil {
		t.Fatal(err)
	}
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer a.Stop()

	text, _ := a.Vault().ReadText("list.md")
	if err := a.Vault().WriteText("list.md", strings.Replace(text, "- [ ]", "- [x]", 1)); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-fake.closed:
		if id != "77" {
			t.Errorf("Expected task 77 closed, got %s", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for close request")
	}
}

func TestWatcherPushesEveryNoteWrittenInQuietPeriod(t *testing.T) {
	fake := &fakeTodoist{closed: make(chan string, 2)}
	a, _, _ := newTestApp(t, fake, "tok")
	ctx := context.Background()

	if _, err := a.CreateTaskFromText(ctx, "Buy milk", InsertTarget{File: "list.md", Line: -1}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.CreateTaskFromText(ctx, "Call mum", InsertTarget{File: "other.md", Line: -1}); err != nil {
		t.Fatal(err)
	}
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer a.Stop()

	for _, note := range []string{"list.md", "other.md"} {
		text, _ := a.Vault().ReadText(note)
		if err := a.Vault().WriteText(note, strings.Replace(text, "- [ ]", "- [x]", 1)); err != nil {
			t.Fatal(err)
		}
		time.Sleep(200 * time.Millisecond)
	}

	var closed []string
	for len(closed) < 2 {
		select {
		case id := <-fake.closed:
			closed = append(closed, id)
		case <-time.After(5 * time.Second):
			t.Fatalf("Timed out waiting for close requests, got %v", closed)
		}
	}
	sort.Strings(closed)
	if closed[0] != "77" || closed[1] != "78" {
		t.Errorf("Expected tasks 77 and 78 closed, got %v", closed)
	}
}

func TestApplySettingsRewires(t *testing.T) {
	a, store, _ := newTestApp(t, &fakeTodoist{}, "")
	cfg := *a.Config()
	cfg.APIToken = "tok"
	cfg.SyncInterval = 0

	if err := a.ApplySettings(context.Background(), &cfg); err != nil {
		t.Fatalf("ApplySettings failed: %v", err)
	}
	if !a.TestConnection(context.Background()) {
		t.Error("Expected new token to be used")
	}
	loaded, err := config.Load(store)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.SyncInterval != 0 {
		t.Errorf("Expected settings saved, got %d", loaded.SyncInterval)
	}
}
