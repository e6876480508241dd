package vault

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/harrisonrobin/notedo/pkg/tasklines"
)

// TaskLine is a recognized task line found in a note.
type TaskLine struct {
	File string
	Line int
	Text string
	Ref  tasklines.Ref
}

// Scan returns the recognized task lines of a note's text.
func Scan(file, text string) []TaskLine {
	var found []TaskLine
	for i, line := range SplitLines(text) {
		if ref, ok := tasklines.Recognize(line); ok {
			found = append(found, TaskLine{File: file, Line: i, Text: line, Ref: ref})
		}
	}
	return found
}

// ScanFile reads one note and scans it.
func (v *Vault) ScanFile(path string) ([]TaskLine, error) {
	text, err := v.ReadText(path)
	if err != nil {
		return nil, err
	}
	return Scan(path, text), nil
}

// Notes lists every Markdown note below the root, skipping hidden
// directories such as .obsidian and .git.
func (v *Vault) Notes() ([]string, error) {
	var notes []string
	err := filepath.WalkDir(v.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != v.Root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsNote(path) {
			return nil
		}
		rel, err := v.Rel(path)
		if err != nil {
			return err
		}
		notes = append(notes, rel)
		return nil
	})
	return notes, err
}

// IsNote reports whether path names a Markdown note.
func IsNote(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}
