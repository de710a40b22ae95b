package project

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Change kinds delivered to a ChangeFunc.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// ChangeFunc is called for every project file that appears, changes or
// disappears.
type ChangeFunc func(kind, id string)

// Watch reports changes to the store directory until ctx is cancelled.
// Atomic writes surface as a create of the final file, so ids already seen
// are reported as updates.
func (s *Store) Watch(ctx context.Context, onChange ChangeFunc) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(s.dir); err != nil {
		return err
	}

	known, err := s.knownIDs()
	if err != nil {
		return err
	}
	s.logger.Info("watcher: started", slog.String("dir", s.dir))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			id, ok := s.idFromPath(ev.Name)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if _, err := os.Stat(ev.Name); err != nil {
					continue
				}
				kind := ChangeCreated
				if known[id] {
					kind = ChangeUpdated
				}
				known[id] = true
				onChange(kind, id)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if !known[id] {
					continue
				}
				delete(known, id)
				onChange(ChangeDeleted, id)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher: error", slog.String("error", err.Error()))
		}
	}
}

func (s *Store) idFromPath(name string) (string, bool) {
	base := filepath.Base(name)
	id, ok := strings.CutSuffix(base, fileExt)
	if !ok {
		return "", false
	}
	if _, valid := s.path(id); !valid {
		return "", false
	}
	return id, true
}

func (s *Store) knownIDs() (map[string]bool, error) {
	known := make(map[string]bool)
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return known, nil
		}
		return nil, err
	}
	for _, entry := range entries {
		if id, ok := s.idFromPath(entry.Name()); ok {
			known[id] = true
		}
	}
	return known, nil
}
