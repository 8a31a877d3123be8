package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"

	"go.uber.org/zap"
)

// CameraRepository persists the camera registry as a JSON document on disk.
// The whole registry is small enough to rewrite atomically on every change.
type CameraRepository struct {
	mu     sync.RWMutex
	path   string
	cams   []domain.Camera
	logger *zap.SugaredLogger
}

func NewCameraRepository(path string, logger *zap.SugaredLogger) (*CameraRepository, error) {
	r := &CameraRepository{path: path, logger: logger}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

var _ ports.CameraRepository = (*CameraRepository)(nil)

func (r *CameraRepository) load() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		r.logger.Infow("registry file missing, starting empty", "path", r.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read registry %q: %w", r.path, err)
	}
	if err := json.Unmarshal(data, &r.cams); err != nil {
		return fmt.Errorf("parse registry %q: %w", r.path, err)
	}
	return nil
}

// persist writes through a temp file so a crash never truncates the registry.
func (r *CameraRepository) persist() error {
	data, err := json.MarshalIndent(r.cams, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create registry dir: %w", err)
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}

func (r *CameraRepository) List(ctx context.Context) ([]domain.Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Camera(nil), r.cams...), nil
}

func (r *CameraRepository) Hierarchy(ctx context.Context) (*domain.Registry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.BuildRegistry(r.cams), nil
}

func (r *CameraRepository) FindByID(ctx context.Context, id domain.CameraID) (*domain.Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.cams {
		if r.cams[i].ID == id {
			cam := r.cams[i]
			return &cam, nil
		}
	}
	return nil, fmt.Errorf("camera %q: %w", id, domain.ErrCameraNotFound)
}

// Add inserts a camera unless its URL is already registered.
func (r *CameraRepository) Add(ctx context.Context, cam *domain.Camera) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.cams {
		if existing.URL == cam.URL {
			return false, nil
		}
	}

	r.cams = append(r.cams, *cam)
	if err := r.persist(); err != nil {
		r.cams = r.cams[:len(r.cams)-1]
		return false, err
	}
	return true, nil
}

func (r *CameraRepository) ReplaceAll(ctx context.Context, cams []domain.Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.cams
	r.cams = append([]domain.Camera(nil), cams...)
	if err := r.persist(); err != nil {
		r.cams = previous
		return err
	}
	return nil
}
