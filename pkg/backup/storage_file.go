package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStorage keeps snapshots as files in one directory.
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir %q: %w", dir, err)
	}
	return &FileStorage{dir: dir}, nil
}

func (s *FileStorage) Save(ctx context.Context, name string, data io.Reader) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read snapshot data: %w", err)
	}
	return os.WriteFile(filepath.Join(s.dir, name), content, 0o644)
}

func (s *FileStorage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.dir, name))
}

func (s *FileStorage) List(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list backup dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func (s *FileStorage) Delete(ctx context.Context, name string) error {
	return os.Remove(filepath.Join(s.dir, name))
}

func bytesReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}
