package datastore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMergeKeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.json")
	s := New(path)

	if err := s.Merge("apiToken", "secret"); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if err := s.Merge("taskMappings", map[string]int{"123": 4}); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	var token string
	ok, err := s.Get("apiToken", &token)
	if err != nil || !ok {
		t.Fatalf("Get apiToken: ok=%v err=%v", ok, err)
	}
	if token != "secret" {
		t.Errorf("Expected token 'secret', got '%s'", token)
	}

	var mappings map[string]int
	if _, err := s.Get("taskMappings", &mappings); err != nil {
		t.Fatalf("Get taskMappings failed: %v", err)
	}
	if mappings["123"] != 4 {
		t.Errorf("Expected mapping line 4, got %d", mappings["123"])
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("Expected temp file to be gone, stat err: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "data.json"))
	data, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("Expected empty blob, got %d keys", len(data))
	}

	var v string
	ok, err := s.Get("missing", &v)
	if err != nil || ok {
		t.Errorf("Expected absent key, got ok=%v err=%v", ok, err)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path).Load(); err == nil {
		t.Error("Expected decode error for corrupt blob")
	}
}
