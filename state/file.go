package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FilePersister writes snapshots as JSON through a sibling .tmp file and an
// atomic rename, so the canonical file always holds a complete record.
type FilePersister struct {
	mu   sync.Mutex
	path string
}

// NewFilePersister returns a persister for path. The directory must exist.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the canonical file path.
func (p *FilePersister) Path() string {
	return p.path
}

func (p *FilePersister) tmpPath() string {
	return p.path + ".tmp"
}

// Save implements Persister.
func (p *FilePersister) Save(_ context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tmp := p.tmpPath()
	if err := writeSynced(tmp, data); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	syncDir(filepath.Dir(p.path))
	return nil
}

// Load reads the last persisted snapshot. A missing file returns an error
// matching os.ErrNotExist.
func (p *FilePersister) Load() (Snapshot, error) {
	return ReadFile(p.path)
}

// ReadFile decodes a snapshot file written by FilePersister.
func ReadFile(path string) (Snapshot, error) {
	var snap Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	return snap, nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// syncDir flushes the rename to disk where the platform supports it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}

// Chain saves to each persister in order and joins their errors.
type Chain []Persister

// Save implements Persister.
func (c Chain) Save(ctx context.Context, snap Snapshot) error {
	var errs []error
	for _, p := range c {
		if err := p.Save(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
