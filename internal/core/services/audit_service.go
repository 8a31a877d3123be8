package services

import (
	"context"
	"fmt"
	"sync"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"
	"vigil/pkg/logger"

	"go.uber.org/zap"
)

type auditService struct {
	repo       ports.CameraRepository
	resolver   ports.SourceResolver
	factory    ports.CaptureFactory
	classifier *HealthClassifier
	search     ports.SearchProvider
	metrics    *MetricsService
	workers    int
	logger     *zap.SugaredLogger
}

func NewAuditService(
	repo ports.CameraRepository,
	resolver ports.SourceResolver,
	factory ports.CaptureFactory,
	classifier *HealthClassifier,
	search ports.SearchProvider,
	metrics *MetricsService,
	workers int,
	logger *zap.SugaredLogger,
) ports.AuditService {
	if workers <= 0 {
		workers = 1
	}
	return &auditService{
		repo:       repo,
		resolver:   resolver,
		factory:    factory,
		classifier: classifier,
		search:     search,
		metrics:    metrics,
		workers:    workers,
		logger:     logger,
	}
}

// RunFullAudit probes every registered camera once: resolve, open, read one
// frame, classify, release. Cameras are sharded over a bounded worker pool;
// results keep registry order.
func (s *auditService) RunFullAudit(ctx context.Context) (*ports.AuditReport, error) {
	cams, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}

	results := make([]ports.AuditResult, len(cams))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.auditCamera(ctx, cams[i])
			}
		}()
	}

	for i := range cams {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	report := &ports.AuditReport{Results: results}
	for _, r := range results {
		if r.Status == domain.Healthy.String() {
			report.Healthy++
		} else {
			report.Degraded++
		}
	}
	s.metrics.RecordAudit(report.Healthy, report.Degraded)

	s.logger.Infow("audit finished",
		"cameras", len(cams),
		"healthy", report.Healthy,
		"degraded", report.Degraded,
	)
	return report, nil
}

func (s *auditService) auditCamera(ctx context.Context, cam domain.Camera) ports.AuditResult {
	ctx = logger.WithCameraID(ctx, string(cam.ID))
	log := logger.FromContext(ctx, s.logger)

	result := ports.AuditResult{ID: cam.ID, Name: cam.Name, Resolution: cam.Resolution}

	address := domain.MediaAddress(cam.URL)
	if cam.StreamID != "" {
		resolved, err := s.resolver.Resolve(ctx, cam.StreamID)
		if err != nil {
			log.Debugw("resolve failed", "name", cam.Name, "error", err)
			result.Status = "UNRESOLVABLE"
			return result
		}
		address = resolved
	}

	capture, err := s.factory.Open(ctx, address)
	if err != nil {
		log.Debugw("open failed", "name", cam.Name, "error", err)
		result.Status = "OFFLINE"
		return result
	}
	defer capture.Release()

	frame, err := capture.Read(ctx)
	if err != nil {
		log.Debugw("read failed", "name", cam.Name, "error", err)
		result.Status = domain.ReadFailure.String()
		return result
	}

	result.Status = s.classifier.Classify(frame).String()
	return result
}

// FilterElite keeps only cameras whose feed offers at least minHeight
// vertical resolution. Feeds that cannot be probed are dropped.
func (s *auditService) FilterElite(ctx context.Context, minHeight int) (int, error) {
	cams, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cameras: %w", err)
	}

	var elite []domain.Camera
	for _, cam := range cams {
		height, err := s.search.ProbeHeight(ctx, cam.URL)
		if err != nil {
			s.logger.Debugw("probe failed, dropping camera", "camera", cam.Name, "error", err)
			continue
		}
		if height >= minHeight {
			cam.Resolution = fmt.Sprintf("%dp", height)
			elite = append(elite, cam)
		}
	}

	if err := s.repo.ReplaceAll(ctx, elite); err != nil {
		return 0, fmt.Errorf("save filtered registry: %w", err)
	}

	s.logger.Infow("elite filter applied",
		"before", len(cams),
		"after", len(elite),
		"min_height", minHeight,
	)
	return len(elite), nil
}
