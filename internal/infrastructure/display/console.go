package display

import (
	"bufio"
	"io"
	"strings"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"

	"go.uber.org/zap"
)

// ConsoleSink reports the session through structured log lines. It only
// logs on label changes so a stable feed stays quiet.
type ConsoleSink struct {
	inner     ports.RenderSink
	lastLabel string
	logger    *zap.SugaredLogger
}

// NewConsoleSink wraps another sink, adding operator-facing log output.
func NewConsoleSink(inner ports.RenderSink, logger *zap.SugaredLogger) *ConsoleSink {
	return &ConsoleSink{inner: inner, logger: logger}
}

var _ ports.RenderSink = (*ConsoleSink)(nil)

func (s *ConsoleSink) Render(frame *domain.Frame, status domain.Status) {
	s.logTransition(status)
	s.inner.Render(frame, status)
}

func (s *ConsoleSink) PublishStatus(status domain.Status) {
	s.logTransition(status)
	s.inner.PublishStatus(status)
}

func (s *ConsoleSink) Snapshot(frame *domain.Frame) (string, error) {
	return s.inner.Snapshot(frame)
}

func (s *ConsoleSink) logTransition(status domain.Status) {
	if status.Label == s.lastLabel {
		return
	}
	s.lastLabel = status.Label

	fields := []interface{}{
		"monitor", status.Monitor,
		"state", status.State.String(),
		"streak", status.Streak,
	}
	if status.Healthy {
		s.logger.Infow(status.Label, fields...)
	} else {
		s.logger.Warnw(status.Label, fields...)
	}
}

// KeyboardCommands turns single-key lines from a reader (normally stdin)
// into session commands.
type KeyboardCommands struct {
	ch     chan domain.Command
	logger *zap.SugaredLogger
}

func NewKeyboardCommands(r io.Reader, logger *zap.SugaredLogger) *KeyboardCommands {
	k := &KeyboardCommands{
		ch:     make(chan domain.Command, 8),
		logger: logger,
	}
	go k.readLoop(r)
	return k
}

var _ ports.CommandSource = (*KeyboardCommands)(nil)

func (k *KeyboardCommands) Commands() <-chan domain.Command {
	return k.ch
}

func (k *KeyboardCommands) readLoop(r io.Reader) {
	defer close(k.ch)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key := strings.TrimSpace(strings.ToLower(scanner.Text()))
		cmd, ok := mapKey(key)
		if !ok {
			if key != "" {
				k.logger.Debugw("unknown key", "key", key)
			}
			continue
		}
		k.ch <- cmd
		if cmd == domain.CommandQuit {
			return
		}
	}
}

func mapKey(key string) (domain.Command, bool) {
	switch key {
	case "q":
		return domain.CommandQuit, true
	case "p":
		return domain.CommandPause, true
	case "c":
		return domain.CommandResume, true
	case "n":
		return domain.CommandStepForward, true
	case "b":
		return domain.CommandStepBackward, true
	case "r":
		return domain.CommandReset, true
	case "s":
		return domain.CommandSaveFrame, true
	case "+":
		return domain.CommandIncreaseInterval, true
	case "-":
		return domain.CommandDecreaseInterval, true
	default:
		return 0, false
	}
}
