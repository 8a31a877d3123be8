package services

import (
	"context"
	"fmt"
	"time"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// CrawlTarget is one platform search to harvest live feeds from.
type CrawlTarget struct {
	Term     string
	Location string
	Sector   string
}

// ScrapePage is one public directory page to scan for stream addresses.
type ScrapePage struct {
	URL      string
	Location string
	Sector   string
}

type CrawlerConfig struct {
	SearchLimit    int
	RequestsPerMin float64
	Targets        []CrawlTarget
	Pages          []ScrapePage
}

type crawlerService struct {
	search  ports.SearchProvider
	scraper ports.DirectoryScraper
	repo    ports.CameraRepository
	limiter *rate.Limiter
	cfg     CrawlerConfig
	logger  *zap.SugaredLogger
}

func NewCrawlerService(
	search ports.SearchProvider,
	scraper ports.DirectoryScraper,
	repo ports.CameraRepository,
	cfg CrawlerConfig,
	logger *zap.SugaredLogger,
) ports.CrawlerService {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 15
	}
	if cfg.RequestsPerMin <= 0 {
		cfg.RequestsPerMin = 20
	}
	return &crawlerService{
		search:  search,
		scraper: scraper,
		repo:    repo,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerMin/60), 1),
		cfg:     cfg,
		logger:  logger,
	}
}

// Crawl harvests every configured search term and directory page into the
// registry. A failing target is logged and skipped; requests are paced so
// the upstream platforms do not throttle the crawler.
func (s *crawlerService) Crawl(ctx context.Context) (int, error) {
	added := 0

	for _, target := range s.cfg.Targets {
		if err := s.limiter.Wait(ctx); err != nil {
			return added, fmt.Errorf("crawl cancelled: %w", err)
		}

		cams, err := s.search.SearchLive(ctx, target.Term, s.cfg.SearchLimit)
		if err != nil {
			s.logger.Warnw("search target failed", "term", target.Term, "error", err)
			continue
		}
		n, err := s.ingest(ctx, cams, target.Location, target.Sector)
		if err != nil {
			return added, err
		}
		added += n
	}

	for _, page := range s.cfg.Pages {
		if err := s.limiter.Wait(ctx); err != nil {
			return added, fmt.Errorf("crawl cancelled: %w", err)
		}

		cams, err := s.scraper.Scrape(ctx, page.URL)
		if err != nil {
			s.logger.Warnw("scrape target failed", "url", page.URL, "error", err)
			continue
		}
		n, err := s.ingest(ctx, cams, page.Location, page.Sector)
		if err != nil {
			return added, err
		}
		added += n
	}

	s.logger.Infow("crawl finished", "added", added)
	return added, nil
}

func (s *crawlerService) ingest(ctx context.Context, cams []domain.Camera, location, sector string) (int, error) {
	added := 0
	for _, cam := range cams {
		cam.Name = SanitizeCameraName(cam.Name)
		cam.Location = location
		cam.Sector = sector
		if cam.ID == "" {
			cam.ID = domain.CameraID(uuid.NewString())
		}
		if cam.AddedAt.IsZero() {
			cam.AddedAt = time.Now()
		}

		inserted, err := s.repo.Add(ctx, &cam)
		if err != nil {
			return added, fmt.Errorf("add camera %q: %w", cam.Name, err)
		}
		if inserted {
			s.logger.Infow("new camera", "name", cam.Name, "kind", cam.Kind)
			added++
		}
	}
	return added, nil
}
