package ports

import (
	"context"
	"io"

	"vigil/internal/core/domain"
)

// MonitorService runs one auto-healing monitoring session to completion.
// Run returns nil on operator quit or end of a local stream, and a fatal
// error when the session cannot be kept alive.
type MonitorService interface {
	Run(ctx context.Context, source domain.Source) error
}

type RegistryService interface {
	FindByName(ctx context.Context, name string) (*domain.Camera, error)
	List(ctx context.Context) ([]domain.Camera, error)
	Locations(ctx context.Context) (*domain.Registry, error)
	// ImportBulk parses "NAME | URL | LOCATION | SECTOR" lines and returns
	// the number of cameras added after deduplication.
	ImportBulk(ctx context.Context, r io.Reader) (int, error)
}

type CrawlerService interface {
	Crawl(ctx context.Context) (int, error)
}

// PlayerService replays a local video file with interactive pause, step and
// interval controls. It shares the monitor's sink and command vocabulary
// but has no healing behavior.
type PlayerService interface {
	Play(ctx context.Context, path string) error
}

// AuditResult is the outcome of probing one registered camera.
type AuditResult struct {
	ID         domain.CameraID `json:"id"`
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	Resolution string          `json:"resolution"`
}

type AuditReport struct {
	Results  []AuditResult `json:"results"`
	Healthy  int           `json:"healthy"`
	Degraded int           `json:"degraded"`
}

type AuditService interface {
	RunFullAudit(ctx context.Context) (*AuditReport, error)
	// FilterElite drops every camera that cannot serve at least minHeight
	// vertical resolution and returns how many survived.
	FilterElite(ctx context.Context, minHeight int) (int, error)
}
