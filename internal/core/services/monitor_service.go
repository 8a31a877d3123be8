package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"
	"vigil/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MonitorConfig is the healing policy for one monitor. The threshold and
// pause mirror the operational defaults (3 consecutive failures, 2s
// stabilization) but are policy, not behavior to hardcode.
type MonitorConfig struct {
	Interval         time.Duration
	FailureThreshold int
	HealPause        time.Duration
	IntervalStep     time.Duration
}

type monitorService struct {
	factory    ports.CaptureFactory
	resolver   ports.SourceResolver
	classifier *HealthClassifier
	sink       ports.RenderSink
	commands   ports.CommandSource
	metrics    *MetricsService
	cfg        MonitorConfig
	logger     *zap.SugaredLogger
}

func NewMonitorService(
	factory ports.CaptureFactory,
	resolver ports.SourceResolver,
	classifier *HealthClassifier,
	sink ports.RenderSink,
	commands ports.CommandSource,
	metrics *MetricsService,
	cfg MonitorConfig,
	logger *zap.SugaredLogger,
) ports.MonitorService {
	if cfg.IntervalStep <= 0 {
		cfg.IntervalStep = 500 * time.Millisecond
	}
	return &monitorService{
		factory:    factory,
		resolver:   resolver,
		classifier: classifier,
		sink:       sink,
		commands:   commands,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run drives one session through Starting -> Sampling -> (Healing) ->
// Stopped. It returns nil on operator quit and on end of a local stream;
// any other exit is fatal for the session. The active capture handle is
// released exactly once on every path.
func (m *monitorService) Run(ctx context.Context, source domain.Source) error {
	ctx = logger.WithSessionID(ctx, uuid.NewString())
	log := logger.FromContext(ctx, m.logger)

	session := &domain.MonitorSession{
		Source:    source,
		State:     domain.StateStarting,
		Interval:  m.cfg.Interval,
		StartedAt: time.Now(),
	}

	m.metrics.SessionStarted()
	defer m.metrics.SessionStopped()

	capture, err := m.factory.Open(ctx, source.Address)
	if err != nil {
		// No implicit retry at startup: the source is simply unavailable.
		session.State = domain.StateStopped
		m.sink.PublishStatus(m.status(session, "SOURCE UNAVAILABLE", false))
		return fmt.Errorf("open source %q: %w", source.Label, err)
	}

	defer func() {
		if capture != nil {
			capture.Release()
			capture = nil
		}
		session.State = domain.StateStopped
	}()

	session.State = domain.StateSampling
	m.sink.PublishStatus(m.status(session, "LIVE", true))
	log.Infow("monitoring started",
		"source", source.Label,
		"interval", session.Interval,
	)

	var cmds <-chan domain.Command
	if m.commands != nil {
		cmds = m.commands.Commands()
	}

	var lastFrame *domain.Frame

	ticker := time.NewTicker(session.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infow("monitoring cancelled", "source", source.Label)
			return nil

		case cmd, ok := <-cmds:
			if !ok {
				cmds = nil
				continue
			}
			if quit := m.handleCommand(log, session, ticker, cmd, lastFrame); quit {
				return nil
			}

		case <-ticker.C:
			frame, err := capture.Read(ctx)
			session.LastSample = time.Now()

			if err != nil && errors.Is(err, domain.ErrEndOfStream) && !source.Resolvable() {
				// A local file ran out of frames. That is completion, not a
				// degraded signal.
				m.sink.PublishStatus(m.status(session, "COMPLETE", true))
				log.Infow("stream complete", "source", source.Label)
				return nil
			}

			state := domain.ReadFailure
			if err == nil {
				state = m.classifier.Classify(frame)
			}
			m.metrics.FrameSampled(state)

			if state == domain.Healthy {
				session.FailureStreak = 0
				lastFrame = frame
				m.sink.Render(frame, m.status(session, "LIVE", true))
				continue
			}

			session.FailureStreak++
			log.Warnw("degraded signal",
				"reason", state.String(),
				"streak", session.FailureStreak,
				"threshold", m.cfg.FailureThreshold,
			)
			m.sink.PublishStatus(m.status(session, state.String(), false))

			if session.FailureStreak < m.cfg.FailureThreshold {
				continue
			}

			capture, err = m.heal(ctx, session, capture)
			if err != nil {
				m.sink.PublishStatus(m.status(session, "MONITOR FAILED", false))
				return err
			}
		}
	}
}

// heal discards the failed capture session and establishes a new one,
// re-resolving the address first when the source has a stream identifier.
// The old handle is always released before the new one is opened; the
// failure streak is reset whether or not the attempt succeeds, so a failed
// heal can never re-trigger itself.
func (m *monitorService) heal(ctx context.Context, session *domain.MonitorSession, capture ports.Capture) (ports.Capture, error) {
	log := logger.FromContext(ctx, m.logger)

	session.State = domain.StateHealing
	m.sink.PublishStatus(m.status(session, "RECONNECTING", false))
	log.Infow("healing attempt", "source", session.Source.Label)

	defer func() { session.FailureStreak = 0 }()

	address := session.Source.Address
	if session.Source.Resolvable() {
		resolved, err := m.resolver.Resolve(ctx, session.Source.Identifier)
		if err != nil {
			capture.Release()
			m.metrics.HealingAttempt(false)
			return nil, fmt.Errorf("re-resolve %q: %w", session.Source.Identifier, err)
		}
		address = resolved
		session.Source.Address = resolved
	}

	// The previous handle must be fully released before a replacement is
	// constructed: never two open decode sessions for one feed.
	capture.Release()

	fresh, err := m.factory.Open(ctx, address)
	if err != nil {
		m.metrics.HealingAttempt(false)
		return nil, fmt.Errorf("reopen after healing: %w", err)
	}
	m.metrics.HealingAttempt(true)

	// Let the fresh session stabilize before sampling resumes.
	if m.cfg.HealPause > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(m.cfg.HealPause):
		}
	}

	session.State = domain.StateSampling
	m.sink.PublishStatus(m.status(session, "LIVE", true))
	log.Infow("healing succeeded", "source", session.Source.Label)
	return fresh, nil
}

// handleCommand applies an operator command and reports whether the session
// should stop. Playback-mode commands are ignored here: only quit changes
// the state machine, and snapshots are a pure side effect.
func (m *monitorService) handleCommand(log *zap.SugaredLogger, session *domain.MonitorSession, ticker *time.Ticker, cmd domain.Command, lastFrame *domain.Frame) (quit bool) {
	switch cmd {
	case domain.CommandQuit:
		log.Infow("quit requested", "source", session.Source.Label)
		return true

	case domain.CommandSaveFrame:
		if lastFrame == nil {
			log.Warn("no frame to save yet")
			return false
		}
		path, err := m.sink.Snapshot(lastFrame)
		if err != nil {
			log.Errorw("snapshot failed", "error", err)
			return false
		}
		m.metrics.SnapshotSaved()
		log.Infow("frame saved", "path", path)

	case domain.CommandIncreaseInterval:
		session.Interval += m.cfg.IntervalStep
		ticker.Reset(session.Interval)
		log.Infow("interval changed", "interval", session.Interval)

	case domain.CommandDecreaseInterval:
		if next := session.Interval - m.cfg.IntervalStep; next > 0 {
			session.Interval = next
			ticker.Reset(session.Interval)
			log.Infow("interval changed", "interval", session.Interval)
		}

	default:
		// Pause/step/reset belong to the local playback mode.
	}
	return false
}

func (m *monitorService) status(session *domain.MonitorSession, label string, healthy bool) domain.Status {
	monitor := "LOCAL"
	if session.Source.Identifier != "" {
		monitor = string(session.Source.Identifier)
	}
	if session.Source.Label != "" {
		monitor = session.Source.Label
	}
	return domain.Status{
		Label:     label,
		Monitor:   monitor,
		Healthy:   healthy,
		State:     session.State,
		Streak:    session.FailureStreak,
		Timestamp: time.Now(),
	}
}
