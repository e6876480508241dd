package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Vault is a directory of Markdown notes. Paths handed in and out are
// slash-separated and relative to Root.
type Vault struct {
	Root string
}

func New(root string) *Vault {
	return &Vault{Root: root}
}

// Resolve turns a vault path into a filesystem path.
func (v *Vault) Resolve(path string) string {
	return filepath.Join(v.Root, filepath.FromSlash(path))
}

// Rel turns a filesystem path into a vault path.
func (v *Vault) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(v.Root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func (v *Vault) Exists(path string) bool {
	_, err := os.Stat(v.Resolve(path))
	return err == nil
}

func (v *Vault) ReadText(path string) (string, error) {
	b, err := os.ReadFile(v.Resolve(path))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteText replaces the content of an existing note.
func (v *Vault) WriteText(path, text string) error {
	full := v.Resolve(path)
	info, err := os.Stat(full)
	if err != nil {
		return err
	}
	return os.WriteFile(full, []byte(text), info.Mode().Perm())
}

// Create writes a new note and fails if it already exists.
func (v *Vault) Create(path, text string) error {
	f, err := os.OpenFile(v.Resolve(path), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (v *Vault) CreateFolder(path string) error {
	return os.MkdirAll(v.Resolve(path), 0755)
}

// SplitLines splits on "\n" only, so joining the result gives back the
// exact original text.
func SplitLines(text string) []string {
	return strings.Split(text, "\n")
}

func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// InsertLine inserts text as a new line before line at (0-based). A negative
// or out-of-range at appends to the note. A missing note is created. It
// returns the line number the text ended up on.
func (v *Vault) InsertLine(path string, at int, text string) (int, error) {
	content, err := v.ReadText(path)
	exists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}

	var lines []string
	if content != "" {
		lines = SplitLines(content)
	}
	// A trailing newline shows up as a final empty element; appends go before it.
	end := len(lines)
	if end > 0 && lines[end-1] == "" {
		end--
	}
	if at < 0 || at > end {
		at = end
	}

	updated := make([]string, 0, len(lines)+2)
	updated = append(updated, lines[:at]...)
	updated = append(updated, text)
	updated = append(updated, lines[at:]...)
	if at == end && at == len(lines) {
		updated = append(updated, "")
	}
	out := JoinLines(updated)

	if !exists {
		if dir := filepath.Dir(filepath.FromSlash(path)); dir != "." {
			if err := v.CreateFolder(filepath.ToSlash(dir)); err != nil {
				return 0, err
			}
		}
		return at, v.Create(path, out)
	}
	if err := v.WriteText(path, out); err != nil {
		return 0, fmt.Errorf("failed to insert line into %s: %w", path, err)
	}
	return at, nil
}
