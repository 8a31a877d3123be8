package resolver

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"

	"go.uber.org/zap"
)

// Config controls the yt-dlp subprocess used to turn platform video IDs
// into direct CDN addresses ffmpeg can open.
type Config struct {
	BinPath   string
	Timeout   time.Duration
	MaxHeight int
}

type ytDlpResolver struct {
	cfg    Config
	logger *zap.SugaredLogger
}

func NewYtDlp(cfg Config, logger *zap.SugaredLogger) ports.SourceResolver {
	if cfg.BinPath == "" {
		cfg.BinPath = "yt-dlp"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = 720
	}
	return &ytDlpResolver{cfg: cfg, logger: logger}
}

// Resolve asks yt-dlp for the best direct stream URL at or below the
// configured height. Live feeds rotate their CDN URLs, so the result is
// only valid until the platform expires it.
func (r *ytDlpResolver) Resolve(ctx context.Context, id domain.StreamIdentifier) (domain.MediaAddress, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty stream identifier", domain.ErrUnresolvable)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	format := fmt.Sprintf("best[height<=%d][ext=mp4]/best[height<=%d]/best", r.cfg.MaxHeight, r.cfg.MaxHeight)
	watchURL := "https://www.youtube.com/watch?v=" + string(id)

	cmd := exec.CommandContext(ctx, r.cfg.BinPath,
		"-g",
		"-f", format,
		"--no-warnings",
		watchURL,
	)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: %s: resolve timed out after %s", domain.ErrUnresolvable, id, r.cfg.Timeout)
		}
		return "", fmt.Errorf("%w: %s: %v", domain.ErrUnresolvable, id, err)
	}

	address := firstLine(string(out))
	if address == "" {
		return "", fmt.Errorf("%w: %s: no stream URL returned", domain.ErrUnresolvable, id)
	}

	r.logger.Debugw("stream resolved", "id", string(id), "max_height", r.cfg.MaxHeight)
	return domain.MediaAddress(address), nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
