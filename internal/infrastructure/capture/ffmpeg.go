package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"

	"go.uber.org/zap"
)

// Config controls the ffmpeg decode pipeline. Every source is normalized to
// a fixed-size grayscale raster so frames can be compared frame-to-frame.
type Config struct {
	BinPath     string
	Width       int
	Height      int
	ReadTimeout time.Duration
}

// Factory opens media sources by spawning ffmpeg and streaming raw
// grayscale frames over its stdout.
type Factory struct {
	cfg    Config
	logger *zap.SugaredLogger
}

func NewFactory(cfg Config, logger *zap.SugaredLogger) ports.CaptureFactory {
	if cfg.BinPath == "" {
		cfg.BinPath = "ffmpeg"
	}
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 360
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	return &Factory{cfg: cfg, logger: logger}
}

type frameResult struct {
	frame *domain.Frame
	err   error
}

type ffmpegCapture struct {
	cmd     *exec.Cmd
	stderr  *bytes.Buffer
	frames  chan frameResult
	pending *domain.Frame
	timeout time.Duration

	releaseOnce sync.Once
	waitOnce    sync.Once
	waitErr     error
	done        chan struct{}
}

// Open spawns the decoder and blocks until the first frame arrives, so a
// dead address fails here rather than on the first Read.
func (f *Factory) Open(ctx context.Context, address domain.MediaAddress) (ports.Capture, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", string(address),
		"-vf", fmt.Sprintf("scale=%d:%d", f.cfg.Width, f.cfg.Height),
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-an",
		"pipe:1",
	}

	cmd := exec.Command(f.cfg.BinPath, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", domain.ErrOpenFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", domain.ErrOpenFailed, f.cfg.BinPath, err)
	}

	c := &ffmpegCapture{
		cmd:     cmd,
		stderr:  stderr,
		frames:  make(chan frameResult, 1),
		timeout: f.cfg.ReadTimeout,
		done:    make(chan struct{}),
	}
	go c.pump(stdout, f.cfg.Width, f.cfg.Height)

	// Probe the first frame so the caller learns about unreachable
	// sources immediately.
	first, err := c.read(ctx)
	if err != nil {
		c.Release()
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrOpenFailed, address, err)
	}
	// Stash the probed frame for the first Read. Re-queueing it on the
	// frames channel would deadlock against the pump on fast sources: the
	// pump refills the one slot before Open gets there, and then both
	// senders block with no receiver.
	c.pending = first

	f.logger.Debugw("capture opened",
		"address", string(address),
		"size", fmt.Sprintf("%dx%d", f.cfg.Width, f.cfg.Height),
	)
	return c, nil
}

// pump reads fixed-size rasters off ffmpeg's stdout until the pipe closes,
// then maps the exit status to an end-of-stream or read-failure error.
func (c *ffmpegCapture) pump(stdout io.Reader, width, height int) {
	size := width * height
	var seq uint64

	for {
		pixels := make([]byte, size)
		if _, err := io.ReadFull(stdout, pixels); err != nil {
			c.deliver(frameResult{err: c.exitError(err)})
			return
		}
		seq++
		frame := &domain.Frame{
			Seq:       seq,
			Timestamp: time.Now(),
			Width:     width,
			Height:    height,
			Pixels:    pixels,
		}
		if !c.deliver(frameResult{frame: frame}) {
			return
		}
	}
}

func (c *ffmpegCapture) deliver(result frameResult) bool {
	select {
	case c.frames <- result:
		return true
	case <-c.done:
		return false
	}
}

// exitError distinguishes a source that simply ended from one that broke
// mid-stream. A clean ffmpeg exit after EOF means the file or feed is over.
func (c *ffmpegCapture) exitError(readErr error) error {
	if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
		if err := c.wait(); err == nil {
			return domain.ErrEndOfStream
		}
		return fmt.Errorf("%w: decoder exited: %s", domain.ErrReadFailure, stderrTail(c.stderr))
	}
	return fmt.Errorf("%w: %v", domain.ErrReadFailure, readErr)
}

func (c *ffmpegCapture) wait() error {
	c.waitOnce.Do(func() { c.waitErr = c.cmd.Wait() })
	return c.waitErr
}

func (c *ffmpegCapture) Read(ctx context.Context) (*domain.Frame, error) {
	if frame := c.pending; frame != nil {
		c.pending = nil
		return frame, nil
	}
	return c.read(ctx)
}

func (c *ffmpegCapture) read(ctx context.Context) (*domain.Frame, error) {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: no frame within %s", domain.ErrReadFailure, c.timeout)
	case result := <-c.frames:
		return result.frame, result.err
	}
}

// Release kills the decoder and reaps it. Safe to call more than once.
func (c *ffmpegCapture) Release() {
	c.releaseOnce.Do(func() {
		close(c.done)
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		_ = c.wait()
	})
}

func stderrTail(buf *bytes.Buffer) string {
	const max = 256
	s := buf.String()
	if len(s) > max {
		s = s[len(s)-max:]
	}
	if s == "" {
		return "no decoder output"
	}
	return s
}
