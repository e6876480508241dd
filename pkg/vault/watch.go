package vault

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/harrisonrobin/notedo/pkg/logging"
)

// Watcher reports notes modified on disk.
type Watcher struct {
	vault *Vault
	fsw   *fsnotify.Watcher
	done  chan struct{}
}

// Watch calls onModify with the vault path of every note that is written or
// created. Directories created later are watched too.
func (v *Vault) Watch(onModify func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{vault: v, fsw: fsw, done: make(chan struct{})}
	if err := w.addTree(v.Root); err != nil {
		fsw.Close()
		return nil, err
	}
	go w.loop(onModify)
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.vault.Root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) loop(onModify func(path string)) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if err := w.addTree(event.Name); err == nil {
					logging.Debug("watch", "watching %s", event.Name)
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !IsNote(event.Name) {
				continue
			}
			rel, err := w.vault.Rel(event.Name)
			if err != nil {
				continue
			}
			onModify(rel)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Info("watch", "watcher error: %v", err)
		}
	}
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
