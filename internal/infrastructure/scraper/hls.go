package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"
	"vigil/pkg/retry"

	"go.uber.org/zap"
)

var (
	streamURLPattern = regexp.MustCompile(`https?://[^\s'"<>\\]+\.m3u8[^\s'"<>\\]*`)
	titlePattern     = regexp.MustCompile(`(?is)<title>(.*?)</title>`)
)

// Config controls how directory pages are fetched and how found stream
// addresses are verified.
type Config struct {
	HTTPTimeout time.Duration
	Retry       retry.Config
	// MaxBodySize caps how much of a directory page is scanned.
	MaxBodySize int64
}

type hlsScraper struct {
	client *http.Client
	cfg    Config
	logger *zap.SugaredLogger
}

// NewHLSScraper scans public directory pages for HLS playlist addresses.
func NewHLSScraper(cfg Config, logger *zap.SugaredLogger) ports.DirectoryScraper {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 2 << 20
	}
	return &hlsScraper{
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		cfg:    cfg,
		logger: logger,
	}
}

// Scrape pulls a directory page, extracts every .m3u8 address on it and
// keeps the ones that answer a probe request.
func (s *hlsScraper) Scrape(ctx context.Context, pageURL string) ([]domain.Camera, error) {
	body, err := retry.DoWithResult(ctx, s.cfg.Retry, func() ([]byte, error) {
		return s.fetch(ctx, pageURL)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", pageURL, err)
	}

	page := string(body)
	addresses := dedupe(streamURLPattern.FindAllString(page, -1))
	title := pageTitle(page, pageURL)

	var cams []domain.Camera
	for i, address := range addresses {
		if !s.reachable(ctx, address) {
			s.logger.Debugw("stream did not answer probe", "url", address)
			continue
		}
		cams = append(cams, domain.Camera{
			Name: fmt.Sprintf("%s %d", title, i+1),
			URL:  address,
			Kind: domain.KindHLS,
		})
	}

	s.logger.Infow("page scraped", "url", pageURL, "found", len(addresses), "reachable", len(cams))
	return cams, nil
}

func (s *hlsScraper) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxBodySize))
}

// reachable sends a HEAD probe; directories frequently list dead playlists.
func (s *hlsScraper) reachable(ctx context.Context, address string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, address, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusBadRequest
}

func pageTitle(page, pageURL string) string {
	if m := titlePattern.FindStringSubmatch(page); m != nil {
		if title := strings.TrimSpace(m[1]); title != "" {
			return title
		}
	}
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		return u.Host
	}
	return "scraped feed"
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	var out []string
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
