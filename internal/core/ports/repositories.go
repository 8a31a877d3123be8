package ports

import (
	"context"

	"vigil/internal/core/domain"
)

// CameraRepository persists the camera catalog. Add dedupes by URL and
// reports whether the camera was actually inserted.
type CameraRepository interface {
	List(ctx context.Context) ([]domain.Camera, error)
	Hierarchy(ctx context.Context) (*domain.Registry, error)
	FindByID(ctx context.Context, id domain.CameraID) (*domain.Camera, error)
	Add(ctx context.Context, cam *domain.Camera) (bool, error)
	ReplaceAll(ctx context.Context, cams []domain.Camera) error
}
