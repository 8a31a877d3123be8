package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// Snapshot wraps a backed-up payload with provenance.
type Snapshot struct {
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Storage persists named snapshot blobs.
type Storage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// Manager creates registry snapshots before destructive operations so an
// over-aggressive filter or crawl can be rolled back.
type Manager struct {
	storage Storage
	version string
}

func NewManager(storage Storage, version string) *Manager {
	return &Manager{storage: storage, version: version}
}

// Create stores a snapshot of the payload and returns its name.
func (m *Manager) Create(ctx context.Context, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode snapshot payload: %w", err)
	}

	snap := Snapshot{
		Version:   m.version,
		Timestamp: time.Now(),
		Data:      data,
	}
	encoded, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	name := fmt.Sprintf("backup-%s.json", snap.Timestamp.Format("20060102-150405"))
	if err := m.storage.Save(ctx, name, bytesReader(encoded)); err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	return name, nil
}

// Restore decodes a snapshot's payload into out.
func (m *Manager) Restore(ctx context.Context, name string, out interface{}) error {
	reader, err := m.storage.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("load snapshot %q: %w", name, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read snapshot %q: %w", name, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot %q: %w", name, err)
	}
	return json.Unmarshal(snap.Data, out)
}

// List returns snapshot names, oldest first.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	names, err := m.storage.List(ctx, "backup-")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Prune removes all but the newest keep snapshots.
func (m *Manager) Prune(ctx context.Context, keep int) error {
	names, err := m.List(ctx)
	if err != nil {
		return err
	}
	if keep < 0 {
		keep = 0
	}
	for i := 0; i < len(names)-keep; i++ {
		if err := m.storage.Delete(ctx, names[i]); err != nil {
			return fmt.Errorf("prune snapshot %q: %w", names[i], err)
		}
	}
	return nil
}
