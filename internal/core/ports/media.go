package ports

import (
	"context"

	"vigil/internal/core/domain"
)

// Capture wraps exactly one open decode session against one media address.
// Read blocks until the next frame is available or its timeout elapses.
// Release is idempotent and must be called before the handle is discarded.
type Capture interface {
	Read(ctx context.Context) (*domain.Frame, error)
	Release()
}

// CaptureFactory establishes decode sessions. Open fails with
// domain.ErrOpenFailed when the address is unreachable or the decoder cannot
// negotiate the stream.
type CaptureFactory interface {
	Open(ctx context.Context, address domain.MediaAddress) (Capture, error)
}

// SourceResolver maps a stream identifier to a currently valid media
// address. Safe to call repeatedly; each call may return a different
// address. Bounded by an internal timeout; a timeout is reported as
// domain.ErrUnresolvable.
type SourceResolver interface {
	Resolve(ctx context.Context, id domain.StreamIdentifier) (domain.MediaAddress, error)
}

// RenderSink receives frames with their status overlay. Degraded frames are
// never rendered, only their status is published.
type RenderSink interface {
	Render(frame *domain.Frame, status domain.Status)
	PublishStatus(status domain.Status)
	// Snapshot persists a single still frame and returns the file path.
	Snapshot(frame *domain.Frame) (string, error)
}

// CommandSource delivers discrete operator commands. The channel is closed
// when the input source goes away.
type CommandSource interface {
	Commands() <-chan domain.Command
}

// SearchProvider finds live feeds on a video hosting platform.
type SearchProvider interface {
	SearchLive(ctx context.Context, term string, limit int) ([]domain.Camera, error)
	// ProbeHeight reports the maximum vertical resolution a feed offers.
	ProbeHeight(ctx context.Context, url string) (int, error)
}

// DirectoryScraper extracts playable stream addresses from a public
// camera-directory page.
type DirectoryScraper interface {
	Scrape(ctx context.Context, pageURL string) ([]domain.Camera, error)
}
