package services

import (
	"context"
	"strings"
	"testing"

	"vigil/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryRepo is a minimal in-memory CameraRepository for service tests.
type memoryRepo struct {
	cams []domain.Camera
}

func (r *memoryRepo) List(ctx context.Context) ([]domain.Camera, error) {
	return append([]domain.Camera(nil), r.cams...), nil
}

func (r *memoryRepo) Hierarchy(ctx context.Context) (*domain.Registry, error) {
	return domain.BuildRegistry(r.cams), nil
}

func (r *memoryRepo) FindByID(ctx context.Context, id domain.CameraID) (*domain.Camera, error) {
	for i := range r.cams {
		if r.cams[i].ID == id {
			return &r.cams[i], nil
		}
	}
	return nil, domain.ErrCameraNotFound
}

func (r *memoryRepo) Add(ctx context.Context, cam *domain.Camera) (bool, error) {
	for _, existing := range r.cams {
		if existing.URL == cam.URL {
			return false, nil
		}
	}
	r.cams = append(r.cams, *cam)
	return true, nil
}

func (r *memoryRepo) ReplaceAll(ctx context.Context, cams []domain.Camera) error {
	r.cams = append([]domain.Camera(nil), cams...)
	return nil
}

func newTestRegistry(repo *memoryRepo) *registryService {
	return NewRegistryService(repo, zap.NewNop().Sugar()).(*registryService)
}

func TestFindByName_ReturnsFirstMatch(t *testing.T) {
	repo := &memoryRepo{cams: []domain.Camera{
		{ID: "1", Name: "PONTE HERCILIO LUZ", URL: "u1", Location: "Florianópolis, SC", Sector: "BR"},
		{ID: "2", Name: "PONTE RIO-NITEROI", URL: "u2", Location: "Rio de Janeiro, RJ", Sector: "BR"},
	}}
	svc := newTestRegistry(repo)

	cam, err := svc.FindByName(context.Background(), "ponte")
	require.NoError(t, err)
	assert.Equal(t, domain.CameraID("1"), cam.ID)
}

func TestFindByName_UnknownCameraErrors(t *testing.T) {
	svc := newTestRegistry(&memoryRepo{})

	_, err := svc.FindByName(context.Background(), "nothing")
	assert.ErrorIs(t, err, domain.ErrCameraNotFound)
}

func TestImportBulk_ParsesAndDedupes(t *testing.T) {
	repo := &memoryRepo{}
	svc := newTestRegistry(repo)

	input := strings.Join([]string{
		"shibuya crossing cam | https://www.youtube.com/watch?v=abc123 | Shibuya, Tokyo | JP",
		"", // blank lines are skipped
		"BEACH CAM FLORIPA | https://cams.example.com/floripa/index.m3u8 | Florianópolis, SC | BR",
		"shibuya duplicate | https://www.youtube.com/watch?v=abc123 | Shibuya, Tokyo | JP",
		"malformed line without separators",
	}, "\n")

	added, err := svc.ImportBulk(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	cams, _ := repo.List(context.Background())
	require.Len(t, cams, 2)

	yt := cams[0]
	assert.Equal(t, "SHIBUYA CROSSING CAM", yt.Name)
	assert.Equal(t, domain.KindYouTube, yt.Kind)
	assert.Equal(t, domain.StreamIdentifier("abc123"), yt.StreamID)
	assert.NotEmpty(t, yt.ID)

	hls := cams[1]
	assert.Equal(t, domain.KindHLS, hls.Kind)
	assert.Empty(t, hls.StreamID)
}

func TestSanitizeCameraName(t *testing.T) {
	assert.Equal(t, "LIVE CAM - TOWER", SanitizeCameraName("  live cam | tower "))
}
