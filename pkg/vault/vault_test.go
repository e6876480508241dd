package vault

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func TestInsertLine(t *testing.T) {
	tests := []struct {
		name    string
		initial *string
		at      int
		want    string
		wantAt  int
	}{
		{"missing note", nil, 3, "task\n", 0},
		{"append with trailing newline", strPtr("a\nb\n"), -1, "a\nb\ntask\n", 2},
		{"append without trailing newline", strPtr("a\nb"), -1, "a\nb\ntask\n", 2},
		{"insert at top", strPtr("a\nb\n"), 0, "task\na\nb\n", 0},
		{"insert in middle", strPtr("a\nb"), 1, "a\ntask\nb", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(t.TempDir())
			if tt.initial != nil {
				if err := os.WriteFile(v.Resolve("note.md"), []byte(*tt.initial), 0644); err != nil {
					t.Fatal(err)
				}
			}
			at, err := v.InsertLine("note.md", tt.at, "task")
			if err != nil {
				t.Fatalf("InsertLine failed: %v", err)
			}
			got, _ := v.ReadText("note.md")
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
			if at != tt.wantAt {
				t.Errorf("Expected line %d, got %d", tt.wantAt, at)
			}
		})
	}
}

func TestInsertLineCreatesFolder(t *testing.T) {
	v := New(t.TempDir())
	if _, err := v.InsertLine("daily/2025-03-01.md", -1, "task"); err != nil {
		t.Fatalf("InsertLine failed: %v", err)
	}
	if !v.Exists("daily/2025-03-01.md") {
		t.Error("Expected note to be created inside a new folder")
	}
}

func TestCreateAndWrite(t *testing.T) {
	v := New(t.TempDir())
	if err := v.Create("a.md", "one"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := v.Create("a.md", "two"); err == nil {
		t.Error("Expected Create to fail on existing note")
	}
	if err := v.WriteText("a.md", "three"); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	if err := v.WriteText("missing.md", "x"); err == nil {
		t.Error("Expected WriteText to fail on missing note")
	}
	text, _ := v.ReadText("a.md")
	if text != "three" {
		t.Errorf("Expected 'three', got %q", text)
	}
}

func TestScanAndNotes(t *testing.T) {
	v := New(t.TempDir())
	note := "# Groceries\n- [ ] Buy milk [](https://todoist.com/app/task/123) #tasktodo\n- [x] Eggs [](https://todoist.com/app/task/456) #tasktodo\n- [ ] plain\n"
	if err := v.CreateFolder("lists"); err != nil {
		t.Fatal(err)
	}
	if err := v.Create("lists/groceries.md", note); err != nil {
		t.Fatal(err)
	}
	if err := v.CreateFolder(".obsidian"); err != nil {
		t.Fatal(err)
	}
	if err := v.Create(".obsidian/hidden.md", note); err != nil {
		t.Fatal(err)
	}
	if err := v.Create("readme.txt", note); err != nil {
		t.Fatal(err)
	}

	notes, err := v.Notes()
	if err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
	sort.Strings(notes)
	if len(notes) != 1 || notes[0] != "lists/groceries.md" {
		t.Fatalf("Unexpected notes: %v", notes)
	}

	found, err := v.ScanFile(notes[0])
	if err != nil {
		t.Fatalf("ScanFile failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("Expected 2 task lines, got %d", len(found))
	}
	if found[0].Line != 1 || found[0].Ref.TaskID != "123" || found[0].Ref.Completed {
		t.Errorf("Unexpected first line: %+v", found[0])
	}
	if found[1].Line != 2 || !found[1].Ref.Completed {
		t.Errorf("Unexpected second line: %+v", found[1])
	}
}

func TestWatchReportsModifiedNotes(t *testing.T) {
	root := t.TempDir()
	v := New(root)
	if err := v.Create("a.md", "x"); err != nil {
		t.Fatal(err)
	}

	events := make(chan string, 16)
	w, err := v.Watch(func(path string) { events <- path })
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(root, "ignored.txt"), []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := v.WriteText("a.md", "changed"); err != nil {
		t.Fatal(err)
	}

	select {
	case path := <-events:
		if path != "a.md" {
			t.Errorf("Expected a.md, got %s", path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for watch event")
	}
}

func strPtr(s string) *string { return &s }
