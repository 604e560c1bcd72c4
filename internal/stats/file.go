package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FileStore keeps every record in memory and rewrites the whole document to
// disk after each finished game. An empty path keeps it memory-only.
type FileStore struct {
	path    string
	records map[string]Record
	now     func() time.Time
	mu      sync.Mutex
}

// NewMemoryStore returns a FileStore that never touches disk.
func NewMemoryStore() *FileStore {
	return &FileStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// NewFileStore loads path if it exists. A missing file starts an empty document.
func NewFileStore(path string) (*FileStore, error) {
	fsStore := NewMemoryStore()
	fsStore.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("path", path).Msg("no stats file, starting fresh")
		return fsStore, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStore, path, err)
	}

	if len(data) > 0 {
		var doc map[string]storedRecord
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %w", ErrStore, path, err)
		}
		for name, rec := range doc {
			fsStore.records[name] = rec.record()
		}
	}

	log.Info().Str("path", path).Int("players", len(fsStore.records)).Msg("loaded player stats")
	return fsStore, nil
}

func (s *FileStore) Get(ctx context.Context, name string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.records[name], nil
}

// RecordResult updates memory first; a failed write still returns the updated
// records alongside the error.
func (s *FileStore) RecordResult(ctx context.Context, winner, loser string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()
	s.records[winner] = s.records[winner].applyWin(at)
	s.records[loser] = s.records[loser].applyLoss(at)

	res := Result{Winner: s.records[winner], Loser: s.records[loser]}

	return res, s.saveLocked()
}

func (s *FileStore) Leaderboard(ctx context.Context, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	entries := make([]Entry, 0, len(s.records))
	for name, rec := range s.records {
		entries = append(entries, Entry{Name: name, Record: rec})
	}
	s.mu.Unlock()

	sortEntries(entries)
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *FileStore) Close() error {
	return nil
}

// saveLocked writes to a temp file in the same directory and renames it over
// the document so a crash never leaves a truncated file.
func (s *FileStore) saveLocked() error {
	if s.path == "" {
		return nil
	}

	doc := make(map[string]storedRecord, len(s.records))
	for name, rec := range s.records {
		doc[name] = rec.stored()
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode stats: %w", ErrStore, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrStore, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrStore, tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrStore, tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("%w: replace %s: %w", ErrStore, s.path, err)
	}

	return nil
}
