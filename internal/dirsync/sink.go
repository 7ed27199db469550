package dirsync

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// sink is a local destination file. In atomic mode bytes go to a hidden
// ".<name>.<uuid>.part" sibling that is renamed over the target on commit.
// Otherwise the target is written in place and a failed transfer leaves the
// partial file behind.
type sink struct {
	*os.File
	target string
	temp   string
}

func openSink(target string, atomic bool) (*sink, error) {
	path := target
	if atomic {
		path = tempName(target)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	s := &sink{File: f, target: target}
	if atomic {
		s.temp = path
	}
	return s, nil
}

func tempName(target string) string {
	dir, name := filepath.Split(target)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.part", name, uuid.NewString()))
}

func (s *sink) commit() error {
	if err := s.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", s.Name(), err)
	}
	if s.temp == "" {
		return nil
	}
	if err := os.Rename(s.temp, s.target); err != nil {
		_ = os.Remove(s.temp)
		return fmt.Errorf("failed to move %s into place: %w", s.target, err)
	}
	return nil
}

func (s *sink) abort() {
	_ = s.Close()
	if s.temp != "" {
		_ = os.Remove(s.temp)
	}
}
