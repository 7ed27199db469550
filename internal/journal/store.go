// Package journal persists transfer records under ~/.adbx/transfers.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"

	"github.com/aguxez/adbx/internal/dirsync"
)

// Transfer outcomes.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Record is one finished push or pull.
type Record struct {
	ID        string          `json:"id" yaml:"id"`
	Direction string          `json:"direction" yaml:"direction"`
	Local     string          `json:"local" yaml:"local"`
	Remote    string          `json:"remote" yaml:"remote"`
	Serial    string          `json:"serial,omitempty" yaml:"serial,omitempty"`
	Status    string          `json:"status" yaml:"status"`
	Error     string          `json:"error,omitempty" yaml:"error,omitempty"`
	Files     int             `json:"files" yaml:"files"`
	Bytes     int64           `json:"bytes" yaml:"bytes"`
	StartedAt time.Time       `json:"started_at" yaml:"started_at"`
	Elapsed   time.Duration   `json:"elapsed" yaml:"elapsed"`
	Report    *dirsync.Report `json:"report,omitempty" yaml:"-"`
}

// NewRecord builds a record from a transfer report and its error, if any.
func NewRecord(r *dirsync.Report, serial string, err error) *Record {
	rec := &Record{
		ID:     uuid.New().String(),
		Serial: serial,
		Status: StatusOK,
		Report: r,
	}
	if r != nil {
		rec.Direction = r.Direction
		rec.Local = r.Local
		rec.Remote = r.Remote
		rec.Files = len(r.Files)
		rec.Bytes = r.TotalBytes()
		rec.StartedAt = r.StartedAt
		rec.Elapsed = r.Elapsed
	}
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
	}
	return rec
}

// Store manages transfer records on disk.
type Store struct {
	dir string
}

// NewStore opens the store at dir, or ~/.adbx/transfers when dir is empty.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".adbx", "transfers")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create transfers directory: %w", err)
	}

	return &Store{dir: dir}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save persists a record to disk
func (s *Store) Save(rec *Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record has no id")
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := os.WriteFile(s.path(rec.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write record file: %w", err)
	}

	return nil
}

// Load reads a record by ID
func (s *Store) Load(id string) (*Record, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("transfer not found: %s", id)
		}
		return nil, fmt.Errorf("failed to read record file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return &rec, nil
}

// List returns all saved records, newest first.
func (s *Store) List() ([]*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Record{}, nil
		}
		return nil, fmt.Errorf("failed to read transfers directory: %w", err)
	}

	records := []*Record{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		rec, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue // unreadable records are skipped
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}

// Delete removes a record file
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete record file: %w", err)
	}

	return nil
}

// Prune deletes records that started before cutoff and returns how many
// were removed.
func (s *Store) Prune(cutoff time.Time) (int, error) {
	records, err := s.List()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, rec := range records {
		if !rec.StartedAt.Before(cutoff) {
			continue
		}
		if err := s.Delete(rec.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Dir returns the storage directory
func (s *Store) Dir() string {
	return s.dir
}
