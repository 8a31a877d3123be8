package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const (
	cameraKeyPrefix = "vigil:camera:"
	cameraIDsKey    = "vigil:cameras:ids"
	cameraURLsKey   = "vigil:cameras:urls"
)

// CameraRepository stores each camera as a JSON value, with an ordered ID
// list for stable listing and a URL set for duplicate detection.
type CameraRepository struct {
	client *redis.Client
}

func NewCameraRepository(client *redis.Client) *CameraRepository {
	return &CameraRepository{client: client}
}

var _ ports.CameraRepository = (*CameraRepository)(nil)

func cameraKey(id domain.CameraID) string {
	return cameraKeyPrefix + string(id)
}

func (r *CameraRepository) List(ctx context.Context) ([]domain.Camera, error) {
	ids, err := r.client.LRange(ctx, cameraIDsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list camera ids: %w", err)
	}

	cams := make([]domain.Camera, 0, len(ids))
	for _, id := range ids {
		cam, err := r.FindByID(ctx, domain.CameraID(id))
		if err != nil {
			// Skip entries whose payload was evicted.
			continue
		}
		cams = append(cams, *cam)
	}
	return cams, nil
}

func (r *CameraRepository) Hierarchy(ctx context.Context) (*domain.Registry, error) {
	cams, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return domain.BuildRegistry(cams), nil
}

func (r *CameraRepository) FindByID(ctx context.Context, id domain.CameraID) (*domain.Camera, error) {
	data, err := r.client.Get(ctx, cameraKey(id)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("camera %q: %w", id, domain.ErrCameraNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get camera %q: %w", id, err)
	}

	var cam domain.Camera
	if err := json.Unmarshal([]byte(data), &cam); err != nil {
		return nil, fmt.Errorf("decode camera %q: %w", id, err)
	}
	return &cam, nil
}

// Add inserts a camera unless its URL is already registered.
func (r *CameraRepository) Add(ctx context.Context, cam *domain.Camera) (bool, error) {
	inserted, err := r.client.SAdd(ctx, cameraURLsKey, cam.URL).Result()
	if err != nil {
		return false, fmt.Errorf("register camera url: %w", err)
	}
	if inserted == 0 {
		return false, nil
	}

	data, err := json.Marshal(cam)
	if err != nil {
		return false, fmt.Errorf("encode camera: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, cameraKey(cam.ID), data, 0)
	pipe.RPush(ctx, cameraIDsKey, string(cam.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		r.client.SRem(ctx, cameraURLsKey, cam.URL)
		return false, fmt.Errorf("store camera: %w", err)
	}
	return true, nil
}

func (r *CameraRepository) ReplaceAll(ctx context.Context, cams []domain.Camera) error {
	ids, err := r.client.LRange(ctx, cameraIDsKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("list camera ids: %w", err)
	}

	pipe := r.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, cameraKey(domain.CameraID(id)))
	}
	pipe.Del(ctx, cameraIDsKey, cameraURLsKey)

	for i := range cams {
		data, err := json.Marshal(&cams[i])
		if err != nil {
			return fmt.Errorf("encode camera %q: %w", cams[i].ID, err)
		}
		pipe.Set(ctx, cameraKey(cams[i].ID), data, 0)
		pipe.RPush(ctx, cameraIDsKey, string(cams[i].ID))
		pipe.SAdd(ctx, cameraURLsKey, cams[i].URL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}
