package project

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"deepsite_server/internal/metrics"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Load for unknown or malformed ids.
var ErrNotFound = errors.New("project: not found")

const fileExt = ".json"

// Store keeps one JSON file per project in a single directory. Writes from
// separate processes are not coordinated; the last write wins.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

type StoreOption func(*Store)

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore returns a store rooted at dir. The directory is created on first
// write.
func NewStore(dir string, logger *slog.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{dir: dir, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Dir() string { return s.dir }

// path maps an id to its file. Only canonical UUIDs are accepted, which
// keeps ids from naming anything outside the directory.
func (s *Store) path(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return "", false
	}
	return filepath.Join(s.dir, id+fileExt), true
}

// Save writes a new record and returns its id.
func (s *Store) Save(name, html string, history []string) (string, error) {
	now := NewTimestamp(s.now())
	rec := &Record{
		ID:            uuid.NewString(),
		Name:          name,
		HTMLContent:   html,
		PromptHistory: cloneHistory(history),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.write(rec); err != nil {
		s.observe("save", err)
		return "", err
	}
	s.observe("save", nil)
	s.logger.Info("project saved", slog.String("id", rec.ID), slog.String("name", name))
	return rec.ID, nil
}

// Load reads one record.
func (s *Store) Load(id string) (*Record, error) {
	rec, err := s.load(id)
	s.observe("load", err)
	return rec, err
}

func (s *Store) load(id string) (*Record, error) {
	p, ok := s.path(id)
	if !ok {
		return nil, ErrNotFound
	}
	rec, err := readRecord(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Delete removes a record. A missing record reports false without error.
func (s *Store) Delete(id string) (bool, error) {
	p, ok := s.path(id)
	if !ok {
		s.observe("delete", ErrNotFound)
		return false, nil
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.observe("delete", ErrNotFound)
			return false, nil
		}
		err = fmt.Errorf("project: delete %s: %w", id, err)
		s.observe("delete", err)
		return false, err
	}
	s.observe("delete", nil)
	s.logger.Info("project deleted", slog.String("id", id))
	return true, nil
}

// List returns every readable record, most recently updated first.
// Files that fail to decode are logged and left out.
func (s *Store) List() ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.observe("list", nil)
			return []Record{}, nil
		}
		err = fmt.Errorf("project: list: %w", err)
		s.observe("list", err)
		return nil, err
	}

	out := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// Only <uuid>.json names are records; copies and temp files are not.
		id, ok := s.idFromPath(entry.Name())
		if !ok {
			continue
		}
		rec, err := readRecord(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable project file",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()))
			continue
		}
		if rec.ID != id {
			s.logger.Warn("skipping project file with mismatched id",
				slog.String("file", entry.Name()),
				slog.String("id", rec.ID))
			continue
		}
		out = append(out, *rec)
	}

	slices.SortFunc(out, func(a, b Record) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	s.observe("list", nil)
	return out, nil
}

// UpdateOption selects a field to change in Update.
type UpdateOption func(*Record)

func WithHTML(html string) UpdateOption {
	return func(r *Record) { r.HTMLContent = html }
}

func WithPromptHistory(history []string) UpdateOption {
	return func(r *Record) { r.PromptHistory = cloneHistory(history) }
}

// Update rewrites a record with the supplied fields changed and a fresh
// updated_at. A missing record reports false without error.
func (s *Store) Update(id string, opts ...UpdateOption) (bool, error) {
	rec, err := s.load(id)
	if errors.Is(err, ErrNotFound) {
		s.observe("update", err)
		return false, nil
	}
	if err != nil {
		s.observe("update", err)
		return false, err
	}

	for _, opt := range opts {
		opt(rec)
	}
	now := NewTimestamp(s.now())
	if !now.After(rec.UpdatedAt.Time) {
		now = NewTimestamp(rec.UpdatedAt.Add(time.Microsecond))
	}
	rec.UpdatedAt = now

	if err := s.write(rec); err != nil {
		s.observe("update", err)
		return false, err
	}
	s.observe("update", nil)
	s.logger.Info("project updated", slog.String("id", id))
	return true, nil
}

func (s *Store) write(rec *Record) error {
	if rec.PromptHistory == nil {
		rec.PromptHistory = []string{}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("project: encode %s: %w", rec.ID, err)
	}
	p, ok := s.path(rec.ID)
	if !ok {
		return fmt.Errorf("project: invalid id %q", rec.ID)
	}
	return writeAtomic(p, data)
}

// writeAtomic writes through a temp file in the same directory: tmp file,
// fsync, rename.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("project: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".deepsite-tmp-*")
	if err != nil {
		return fmt.Errorf("project: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("project: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("project: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("project: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("project: rename: %w", err)
	}
	success = true
	return nil
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("project: decode %s: %w", filepath.Base(path), err)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("project: decode %s: missing id", filepath.Base(path))
	}
	if rec.PromptHistory == nil {
		rec.PromptHistory = []string{}
	}
	return &rec, nil
}

func (s *Store) observe(op string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	metrics.ProjectOperationsTotal.WithLabelValues(op, result).Inc()
}

func cloneHistory(history []string) []string {
	if history == nil {
		return []string{}
	}
	return slices.Clone(history)
}
