package display

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"

	"go.uber.org/zap"
)

// HTTPSink keeps the most recent frame encoded as JPEG so HTTP and
// WebSocket consumers can poll it without touching the capture pipeline.
type HTTPSink struct {
	mu          sync.RWMutex
	jpegFrame   []byte
	status      domain.Status
	snapshotDir string
	quality     int
	logger      *zap.SugaredLogger
}

func NewHTTPSink(snapshotDir string, logger *zap.SugaredLogger) *HTTPSink {
	return &HTTPSink{
		snapshotDir: snapshotDir,
		quality:     80,
		logger:      logger,
	}
}

var _ ports.RenderSink = (*HTTPSink)(nil)

func (s *HTTPSink) Render(frame *domain.Frame, status domain.Status) {
	encoded, err := encodeJPEG(frame, s.quality)
	if err != nil {
		s.logger.Warnw("frame encode failed", "seq", frame.Seq, "error", err)
		return
	}

	s.mu.Lock()
	s.jpegFrame = encoded
	s.status = status
	s.mu.Unlock()
}

func (s *HTTPSink) PublishStatus(status domain.Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Snapshot writes the frame to the snapshot directory and returns its path.
func (s *HTTPSink) Snapshot(frame *domain.Frame) (string, error) {
	encoded, err := encodeJPEG(frame, 95)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.snapshotDir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(s.snapshotDir, fmt.Sprintf("capture_%d.jpg", frame.Timestamp.Unix()))
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	s.logger.Infow("snapshot saved", "path", path)
	return path, nil
}

// LatestJPEG returns the current frame, or nil when nothing rendered yet.
func (s *HTTPSink) LatestJPEG() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jpegFrame
}

func (s *HTTPSink) LatestStatus() domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func encodeJPEG(frame *domain.Frame, quality int) ([]byte, error) {
	if frame == nil || len(frame.Pixels) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	img := &image.Gray{
		Pix:    frame.Pixels,
		Stride: frame.Width,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
