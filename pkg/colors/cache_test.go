package colors

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/harrisonrobin/notedo/pkg/datastore"
)

func TestColorsRecycleLeastRecentlyUsed(t *testing.T) {
	store := datastore.New(filepath.Join(t.TempDir(), "data.json"))
	cache := NewColorCache(store)

	clock := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	seen := make(map[string]bool)
	for i := 0; i < paletteSize; i++ {
		id := cache.GetColorID(fmt.Sprintf("project-%d", i))
		if seen[id] {
			t.Fatalf("Colour %s handed out twice", id)
		}
		seen[id] = true
	}

	// Touch project-0 so project-1 becomes the oldest.
	first := cache.GetColorID("project-0")
	second := cache.projects["project-1"].ColorID

	if got := cache.GetColorID("newcomer"); got != second {
		t.Errorf("Expected newcomer to take %s, got %s", second, got)
	}
	if _, ok := cache.projects["project-1"]; ok {
		t.Error("Expected project-1 evicted")
	}
	if got := cache.GetColorID("project-0"); got != first {
		t.Errorf("Expected project-0 to keep %s, got %s", first, got)
	}
	if got := cache.GetColorID(""); got != NoProjectColor {
		t.Errorf("Expected no-project colour, got %s", got)
	}

	if err := cache.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	reloaded := NewColorCache(store)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := reloaded.GetColorID("newcomer"); got != second {
		t.Errorf("Expected persisted colour %s, got %s", second, got)
	}
}
