package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"
	"vigil/pkg/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type registryService struct {
	repo   ports.CameraRepository
	logger *zap.SugaredLogger
}

func NewRegistryService(repo ports.CameraRepository, logger *zap.SugaredLogger) ports.RegistryService {
	return &registryService{repo: repo, logger: logger}
}

func (s *registryService) FindByName(ctx context.Context, name string) (*domain.Camera, error) {
	reg, err := s.repo.Hierarchy(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	cam := reg.FindByName(name)
	if cam == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrCameraNotFound, name)
	}
	return cam, nil
}

func (s *registryService) List(ctx context.Context) ([]domain.Camera, error) {
	return s.repo.List(ctx)
}

func (s *registryService) Locations(ctx context.Context) (*domain.Registry, error) {
	return s.repo.Hierarchy(ctx)
}

// ImportBulk ingests "NAME | URL | LOCATION | SECTOR" lines, the exchange
// format produced by the crawlers. Malformed lines are skipped with a
// warning; duplicates (by URL) are silently dropped.
func (s *registryService) ImportBulk(ctx context.Context, r io.Reader) (int, error) {
	added := 0
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cam, err := parseBulkLine(line)
		if err != nil {
			s.logger.Warnw("skipping malformed import line", "line", lineNo, "error", err)
			continue
		}

		inserted, err := s.repo.Add(ctx, cam)
		if err != nil {
			return added, fmt.Errorf("add camera %q: %w", cam.Name, err)
		}
		if inserted {
			added++
		}
	}

	if err := scanner.Err(); err != nil {
		return added, fmt.Errorf("read import stream: %w", err)
	}

	s.logger.Infow("bulk import finished", "lines", lineNo, "added", added)
	return added, nil
}

func parseBulkLine(line string) (*domain.Camera, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 4 {
		return nil, fmt.Errorf("expected 4 fields, got %d", len(parts))
	}

	name := SanitizeCameraName(parts[0])
	url := strings.TrimSpace(parts[1])
	location := strings.TrimSpace(parts[2])
	sector := strings.TrimSpace(parts[3])

	if err := validation.ValidateCameraName(name); err != nil {
		return nil, err
	}
	if err := validation.ValidateStreamURL(url); err != nil {
		return nil, err
	}

	cam := &domain.Camera{
		ID:       domain.CameraID(uuid.NewString()),
		Name:     name,
		URL:      url,
		Kind:     domain.KindHLS,
		Location: location,
		Sector:   sector,
		AddedAt:  time.Now(),
	}
	if domain.IsYouTubeURL(url) {
		cam.Kind = domain.KindYouTube
		cam.StreamID = domain.ExtractYouTubeID(url)
	}
	return cam, nil
}

// SanitizeCameraName applies the dashboard naming rules: uppercase, trimmed,
// with the field separator replaced so names cannot break the bulk format.
func SanitizeCameraName(name string) string {
	return strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(name, "|", "-")))
}
