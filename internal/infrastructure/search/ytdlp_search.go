package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"

	"go.uber.org/zap"
)

// Config controls the yt-dlp subprocess used for platform search and
// format probing.
type Config struct {
	BinPath string
	Timeout time.Duration
}

type ytDlpSearch struct {
	cfg    Config
	logger *zap.SugaredLogger
}

func NewYtDlpSearch(cfg Config, logger *zap.SugaredLogger) ports.SearchProvider {
	if cfg.BinPath == "" {
		cfg.BinPath = "yt-dlp"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ytDlpSearch{cfg: cfg, logger: logger}
}

type playlistEntry struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Duration   *float64 `json:"duration"`
	LiveStatus string   `json:"live_status"`
}

type searchPlaylist struct {
	Entries []playlistEntry `json:"entries"`
}

// SearchLive runs a flat platform search and keeps only entries that look
// like live broadcasts: no fixed duration, an explicit live status, or a
// LIVE marker in the title.
func (s *ytDlpSearch) SearchLive(ctx context.Context, term string, limit int) ([]domain.Camera, error) {
	if limit <= 0 {
		limit = 15
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.cfg.BinPath,
		"-J",
		"--flat-playlist",
		"--no-warnings",
		fmt.Sprintf("ytsearch%d:%s", limit, term),
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}

	var playlist searchPlaylist
	if err := json.Unmarshal(out, &playlist); err != nil {
		return nil, fmt.Errorf("search %q: parse results: %w", term, err)
	}

	var cams []domain.Camera
	for _, entry := range playlist.Entries {
		if !looksLive(entry) {
			continue
		}
		url := entry.URL
		if url == "" {
			url = "https://www.youtube.com/watch?v=" + entry.ID
		}
		cams = append(cams, domain.Camera{
			Name:     entry.Title,
			URL:      url,
			Kind:     domain.KindYouTube,
			StreamID: domain.StreamIdentifier(entry.ID),
		})
	}

	s.logger.Debugw("search finished", "term", term, "candidates", len(playlist.Entries), "live", len(cams))
	return cams, nil
}

func looksLive(entry playlistEntry) bool {
	if entry.LiveStatus == "is_live" {
		return true
	}
	if entry.Duration == nil {
		return true
	}
	return strings.Contains(strings.ToUpper(entry.Title), "LIVE")
}

type probeInfo struct {
	Height  int `json:"height"`
	Formats []struct {
		Height int `json:"height"`
	} `json:"formats"`
}

// ProbeHeight reports the tallest video format a feed offers.
func (s *ytDlpSearch) ProbeHeight(ctx context.Context, url string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.cfg.BinPath, "-J", "--no-warnings", url)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("probe %q: %w", url, err)
	}

	var info probeInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return 0, fmt.Errorf("probe %q: parse formats: %w", url, err)
	}

	best := info.Height
	for _, f := range info.Formats {
		if f.Height > best {
			best = f.Height
		}
	}
	if best == 0 {
		return 0, fmt.Errorf("probe %q: no video formats", url)
	}
	return best, nil
}
