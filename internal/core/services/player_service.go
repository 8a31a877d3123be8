package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"

	"go.uber.org/zap"
)

type PlayerConfig struct {
	Interval     time.Duration
	IntervalStep time.Duration
	// HistorySize bounds how many frames StepBackward can rewind.
	HistorySize int
}

type playerService struct {
	factory  ports.CaptureFactory
	sink     ports.RenderSink
	commands ports.CommandSource
	cfg      PlayerConfig
	logger   *zap.SugaredLogger
}

func NewPlayerService(
	factory ports.CaptureFactory,
	sink ports.RenderSink,
	commands ports.CommandSource,
	cfg PlayerConfig,
	logger *zap.SugaredLogger,
) ports.PlayerService {
	if cfg.IntervalStep <= 0 {
		cfg.IntervalStep = 500 * time.Millisecond
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 64
	}
	return &playerService{
		factory:  factory,
		sink:     sink,
		commands: commands,
		cfg:      cfg,
		logger:   logger,
	}
}

// Play runs the interactive local-file loop. Frames advance on the sampling
// cadence unless paused; while paused the operator can step through the
// bounded history or pull the next frame. Reset reopens the file from the
// beginning.
func (p *playerService) Play(ctx context.Context, path string) error {
	capture, err := p.factory.Open(ctx, domain.MediaAddress(path))
	if err != nil {
		return fmt.Errorf("open file %q: %w", path, err)
	}
	defer func() {
		if capture != nil {
			capture.Release()
			capture = nil
		}
	}()

	interval := p.cfg.Interval
	paused := false
	var history []*domain.Frame
	cursor := -1 // index into history of the frame on screen

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	show := func(frame *domain.Frame, label string) {
		p.sink.Render(frame, domain.Status{
			Label:     label,
			Monitor:   path,
			Healthy:   true,
			State:     domain.StateSampling,
			Timestamp: time.Now(),
		})
	}

	advance := func() error {
		// Replay buffered frames first when the operator stepped back.
		if cursor >= 0 && cursor < len(history)-1 {
			cursor++
			show(history[cursor], "PLAYBACK")
			return nil
		}

		frame, err := capture.Read(ctx)
		if err != nil {
			return err
		}
		history = append(history, frame)
		if len(history) > p.cfg.HistorySize {
			history = history[1:]
		}
		cursor = len(history) - 1
		show(frame, "PLAYBACK")
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case cmd, ok := <-p.commands.Commands():
			if !ok {
				return nil
			}
			switch cmd {
			case domain.CommandQuit:
				return nil

			case domain.CommandPause:
				paused = true
				p.logger.Info("playback paused")

			case domain.CommandResume:
				paused = false
				p.logger.Info("playback resumed")

			case domain.CommandStepForward:
				if !paused {
					continue
				}
				if err := advance(); err != nil {
					if errors.Is(err, domain.ErrEndOfStream) {
						p.logger.Info("end of file")
						continue
					}
					return fmt.Errorf("step forward: %w", err)
				}

			case domain.CommandStepBackward:
				if paused && cursor > 0 {
					cursor--
					show(history[cursor], "PLAYBACK (REWOUND)")
				}

			case domain.CommandReset:
				capture.Release()
				capture, err = p.factory.Open(ctx, domain.MediaAddress(path))
				if err != nil {
					return fmt.Errorf("reset file %q: %w", path, err)
				}
				history = nil
				cursor = -1
				paused = false
				p.logger.Info("playback reset")

			case domain.CommandSaveFrame:
				if cursor < 0 {
					continue
				}
				if file, err := p.sink.Snapshot(history[cursor]); err == nil {
					p.logger.Infow("frame saved", "path", file)
				}

			case domain.CommandIncreaseInterval:
				interval += p.cfg.IntervalStep
				ticker.Reset(interval)

			case domain.CommandDecreaseInterval:
				if next := interval - p.cfg.IntervalStep; next > 0 {
					interval = next
					ticker.Reset(interval)
				}
			}

		case <-ticker.C:
			if paused {
				continue
			}
			if err := advance(); err != nil {
				if errors.Is(err, domain.ErrEndOfStream) {
					p.sink.PublishStatus(domain.Status{
						Label:     "COMPLETE",
						Monitor:   path,
						Healthy:   true,
						State:     domain.StateStopped,
						Timestamp: time.Now(),
					})
					return nil
				}
				return fmt.Errorf("read file %q: %w", path, err)
			}
		}
	}
}
