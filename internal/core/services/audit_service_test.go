package services

import (
	"context"
	"errors"
	"testing"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSearch struct {
	cams    []domain.Camera
	err     error
	heights map[string]int
}

func (f *fakeSearch) SearchLive(ctx context.Context, term string, limit int) ([]domain.Camera, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cams, nil
}

func (f *fakeSearch) ProbeHeight(ctx context.Context, url string) (int, error) {
	h, ok := f.heights[url]
	if !ok {
		return 0, errors.New("probe failed")
	}
	return h, nil
}

func newTestAudit(repo ports.CameraRepository, resolver ports.SourceResolver, factory ports.CaptureFactory, search ports.SearchProvider) ports.AuditService {
	return NewAuditService(
		repo,
		resolver,
		factory,
		NewHealthClassifier(10, 2),
		search,
		NewMetricsService(),
		1, // single worker keeps probe order deterministic in tests
		zap.NewNop().Sugar(),
	)
}

func TestRunFullAudit_ClassifiesEachCamera(t *testing.T) {
	repo := &memoryRepo{cams: []domain.Camera{
		{ID: "1", Name: "SHIBUYA", URL: "https://youtube.com/watch?v=a", StreamID: "a"},
		{ID: "2", Name: "DEAD CAM", URL: "http://direct/2"},
		{ID: "3", Name: "NIGHT CAM", URL: "http://direct/3"},
	}}

	healthy := newScriptedCapture(healthyStep())
	black := newScriptedCapture(blackStep())
	factory := &fakeFactory{
		captures: []ports.Capture{healthy, nil, black},
		errs:     []error{nil, domain.ErrOpenFailed, nil},
	}
	resolver := &fakeResolver{address: "http://res/a"}

	svc := newTestAudit(repo, resolver, factory, &fakeSearch{})
	report, err := svc.RunFullAudit(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Equal(t, "HEALTHY", report.Results[0].Status)
	assert.Equal(t, "OFFLINE", report.Results[1].Status)
	assert.Equal(t, "BLACK_FRAME", report.Results[2].Status)
	assert.Equal(t, 1, report.Healthy)
	assert.Equal(t, 2, report.Degraded)

	// probe handles are short-lived: opened, read once, released
	assert.Equal(t, 1, healthy.releaseCount())
	assert.Equal(t, 1, black.releaseCount())

	// only the platform feed went through the resolver
	assert.Equal(t, 1, resolver.callCount())
	assert.Equal(t, domain.MediaAddress("http://res/a"), factory.openCalls()[0])
}

func TestRunFullAudit_UnresolvableFeedIsReported(t *testing.T) {
	repo := &memoryRepo{cams: []domain.Camera{
		{ID: "1", Name: "GONE", URL: "https://youtube.com/watch?v=g", StreamID: "g"},
	}}
	resolver := &fakeResolver{err: domain.ErrUnresolvable}
	factory := &fakeFactory{}

	svc := newTestAudit(repo, resolver, factory, &fakeSearch{})
	report, err := svc.RunFullAudit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "UNRESOLVABLE", report.Results[0].Status)
	assert.Empty(t, factory.openCalls())
}

func TestFilterElite_KeepsOnlyHighResolutionFeeds(t *testing.T) {
	repo := &memoryRepo{cams: []domain.Camera{
		{ID: "1", Name: "HD CAM", URL: "u1"},
		{ID: "2", Name: "SD CAM", URL: "u2"},
		{ID: "3", Name: "BROKEN CAM", URL: "u3"},
	}}
	search := &fakeSearch{heights: map[string]int{"u1": 1080, "u2": 480}}

	svc := newTestAudit(repo, &fakeResolver{}, &fakeFactory{}, search)
	kept, err := svc.FilterElite(context.Background(), 720)
	require.NoError(t, err)

	assert.Equal(t, 1, kept)
	cams, _ := repo.List(context.Background())
	require.Len(t, cams, 1)
	assert.Equal(t, domain.CameraID("1"), cams[0].ID)
	assert.Equal(t, "1080p", cams[0].Resolution)
}

func TestRunFullAudit_TagsProbeLogsWithCameraID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	repo := &memoryRepo{cams: []domain.Camera{
		{ID: "cam-9", Name: "DEAD CAM", URL: "http://direct/9"},
	}}
	factory := &fakeFactory{
		captures: []ports.Capture{nil},
		errs:     []error{domain.ErrOpenFailed},
	}

	svc := NewAuditService(
		repo,
		&fakeResolver{},
		factory,
		NewHealthClassifier(10, 2),
		&fakeSearch{},
		NewMetricsService(),
		1,
		zap.New(core).Sugar(),
	)
	_, err := svc.RunFullAudit(context.Background())
	require.NoError(t, err)

	entries := logs.FilterMessage("open failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "cam-9", entries[0].ContextMap()["camera_id"])
}
