package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureStep struct {
	frame *domain.Frame
	err   error
}

// scriptedCapture replays a fixed sequence of reads; the last step repeats
// once the script is exhausted.
type scriptedCapture struct {
	mu       sync.Mutex
	steps    []captureStep
	idx      int
	releases int
}

func newScriptedCapture(steps ...captureStep) *scriptedCapture {
	return &scriptedCapture{steps: steps}
}

func (c *scriptedCapture) Read(ctx context.Context) (*domain.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	step := c.steps[c.idx]
	if c.idx < len(c.steps)-1 {
		c.idx++
	}
	return step.frame, step.err
}

func (c *scriptedCapture) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases++
}

func (c *scriptedCapture) releaseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases
}

type fakeFactory struct {
	mu       sync.Mutex
	captures []ports.Capture
	errs     []error
	opened   []domain.MediaAddress
}

func (f *fakeFactory) Open(ctx context.Context, address domain.MediaAddress) (ports.Capture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := len(f.opened)
	f.opened = append(f.opened, address)
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	if call < len(f.captures) {
		return f.captures[call], nil
	}
	return nil, fmt.Errorf("unexpected open call %d: %w", call, domain.ErrOpenFailed)
}

func (f *fakeFactory) openCalls() []domain.MediaAddress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.MediaAddress(nil), f.opened...)
}

type fakeResolver struct {
	mu      sync.Mutex
	address domain.MediaAddress
	err     error
	calls   int
}

func (r *fakeResolver) Resolve(ctx context.Context, id domain.StreamIdentifier) (domain.MediaAddress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.address, nil
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type recordingSink struct {
	mu        sync.Mutex
	frames    []*domain.Frame
	statuses  []domain.Status
	snapshots int
}

func (s *recordingSink) Render(frame *domain.Frame, status domain.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	s.statuses = append(s.statuses, status)
}

func (s *recordingSink) PublishStatus(status domain.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *recordingSink) Snapshot(frame *domain.Frame) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots++
	return "capture_test.jpg", nil
}

func (s *recordingSink) renderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *recordingSink) snapshotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots
}

func (s *recordingSink) statusLabels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	labels := make([]string, len(s.statuses))
	for i, st := range s.statuses {
		labels[i] = st.Label
	}
	return labels
}

func (s *recordingSink) maxStreak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	streak := 0
	for _, st := range s.statuses {
		if st.Streak > streak {
			streak = st.Streak
		}
	}
	return streak
}

type commandPipe struct {
	ch chan domain.Command
}

func newCommandPipe() *commandPipe {
	return &commandPipe{ch: make(chan domain.Command, 8)}
}

func (p *commandPipe) Commands() <-chan domain.Command { return p.ch }

func (p *commandPipe) send(cmd domain.Command) { p.ch <- cmd }

func healthyStep() captureStep {
	return captureStep{frame: alternatingFrame(40, 220, 1024)}
}

func blackStep() captureStep {
	return captureStep{frame: uniformFrame(0, 1024)}
}

func frozenStep() captureStep {
	return captureStep{frame: uniformFrame(128, 1024)}
}

func readFailureStep() captureStep {
	return captureStep{err: domain.ErrReadFailure}
}

func newTestMonitor(factory ports.CaptureFactory, resolver ports.SourceResolver, sink ports.RenderSink, commands ports.CommandSource) ports.MonitorService {
	cfg := MonitorConfig{
		Interval:         2 * time.Millisecond,
		FailureThreshold: 3,
		HealPause:        0,
	}
	return NewMonitorService(
		factory,
		resolver,
		NewHealthClassifier(10, 2),
		sink,
		commands,
		NewMetricsService(),
		cfg,
		zap.NewNop().Sugar(),
	)
}

func runMonitor(t *testing.T, m ports.MonitorService, source domain.Source) chan error {
	t.Helper()
	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { done <- m.Run(ctx, source) }()
	return done
}

func waitDone(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop in time")
		return nil
	}
}

func TestRun_InitialOpenFailureIsFatal(t *testing.T) {
	factory := &fakeFactory{errs: []error{domain.ErrOpenFailed}}
	sink := &recordingSink{}
	m := newTestMonitor(factory, &fakeResolver{}, sink, newCommandPipe())

	err := m.Run(context.Background(), domain.Source{Address: "rtmp://dead", Label: "dead"})

	assert.ErrorIs(t, err, domain.ErrOpenFailed)
	assert.Contains(t, sink.statusLabels(), "SOURCE UNAVAILABLE")
}

// Scenario A: two black frames then a healthy one. The streak climbs to 2,
// resets, and no healing is triggered.
func TestRun_TransientDegradationRecoversWithoutHealing(t *testing.T) {
	capture := newScriptedCapture(blackStep(), blackStep(), healthyStep())
	factory := &fakeFactory{captures: []ports.Capture{capture}}
	resolver := &fakeResolver{}
	sink := &recordingSink{}
	commands := newCommandPipe()

	m := newTestMonitor(factory, resolver, sink, commands)
	done := runMonitor(t, m, domain.Source{Identifier: "yt-1", Address: "http://cdn/a", Label: "yt-1"})

	require.Eventually(t, func() bool { return sink.renderCount() >= 1 }, time.Second, time.Millisecond)
	commands.send(domain.CommandQuit)

	assert.NoError(t, waitDone(t, done))
	assert.Equal(t, 0, resolver.callCount())
	assert.Len(t, factory.openCalls(), 1)
	assert.Equal(t, 1, capture.releaseCount())
	assert.Equal(t, 2, sink.maxStreak())
	assert.Contains(t, sink.statusLabels(), "BLACK_FRAME")
}

// Scenario B: three frozen frames trigger healing against a freshly
// resolved address; the old handle is released exactly once before the new
// one opens.
func TestRun_HealingReresolvesAndReopens(t *testing.T) {
	stale := newScriptedCapture(frozenStep())
	fresh := newScriptedCapture(healthyStep())
	factory := &fakeFactory{captures: []ports.Capture{stale, fresh}}
	resolver := &fakeResolver{address: "http://cdn/rotated"}
	sink := &recordingSink{}
	commands := newCommandPipe()

	m := newTestMonitor(factory, resolver, sink, commands)
	done := runMonitor(t, m, domain.Source{Identifier: "yt-2", Address: "http://cdn/stale", Label: "yt-2"})

	require.Eventually(t, func() bool { return sink.renderCount() >= 1 }, time.Second, time.Millisecond)
	commands.send(domain.CommandQuit)
	assert.NoError(t, waitDone(t, done))

	assert.Equal(t, 1, resolver.callCount())
	assert.Equal(t, []domain.MediaAddress{"http://cdn/stale", "http://cdn/rotated"}, factory.openCalls())
	assert.Equal(t, 1, stale.releaseCount())
	assert.Equal(t, 1, fresh.releaseCount())
	assert.Contains(t, sink.statusLabels(), "RECONNECTING")
}

// Scenario C: the resolver cannot produce a new address, so the session
// stops fatally with the handle released exactly once.
func TestRun_UnresolvableSourceStopsSession(t *testing.T) {
	capture := newScriptedCapture(readFailureStep())
	factory := &fakeFactory{captures: []ports.Capture{capture}}
	resolver := &fakeResolver{err: domain.ErrUnresolvable}
	sink := &recordingSink{}

	m := newTestMonitor(factory, resolver, sink, newCommandPipe())
	done := runMonitor(t, m, domain.Source{Identifier: "yt-3", Address: "http://cdn/x", Label: "yt-3"})

	err := waitDone(t, done)
	assert.ErrorIs(t, err, domain.ErrUnresolvable)
	assert.Equal(t, 1, resolver.callCount())
	assert.Len(t, factory.openCalls(), 1)
	assert.Equal(t, 1, capture.releaseCount())
	assert.Contains(t, sink.statusLabels(), "MONITOR FAILED")
}

// Scenario D: a local file reaching end of stream is completion, not a
// healing failure.
func TestRun_LocalEndOfStreamIsCompletion(t *testing.T) {
	capture := newScriptedCapture(healthyStep(), captureStep{err: domain.ErrEndOfStream})
	factory := &fakeFactory{captures: []ports.Capture{capture}}
	resolver := &fakeResolver{}
	sink := &recordingSink{}

	m := newTestMonitor(factory, resolver, sink, newCommandPipe())
	done := runMonitor(t, m, domain.Source{Address: "/videos/evidence.mp4", Label: "evidence.mp4"})

	assert.NoError(t, waitDone(t, done))
	assert.Equal(t, 0, resolver.callCount())
	assert.Equal(t, 1, capture.releaseCount())
	assert.Contains(t, sink.statusLabels(), "COMPLETE")
}

// A streak of 2 never triggers healing, even repeatedly.
func TestRun_StreakBelowThresholdNeverHeals(t *testing.T) {
	capture := newScriptedCapture(
		blackStep(), blackStep(), healthyStep(),
		frozenStep(), frozenStep(), healthyStep(),
	)
	factory := &fakeFactory{captures: []ports.Capture{capture}}
	resolver := &fakeResolver{}
	sink := &recordingSink{}
	commands := newCommandPipe()

	m := newTestMonitor(factory, resolver, sink, commands)
	done := runMonitor(t, m, domain.Source{Identifier: "yt-4", Address: "http://cdn/y", Label: "yt-4"})

	require.Eventually(t, func() bool { return sink.renderCount() >= 2 }, time.Second, time.Millisecond)
	commands.send(domain.CommandQuit)
	assert.NoError(t, waitDone(t, done))

	assert.Equal(t, 0, resolver.callCount())
	assert.Len(t, factory.openCalls(), 1)
	assert.Equal(t, 2, sink.maxStreak())
}

// Local sources have no identifier: healing degrades to reopening the same
// address without consulting the resolver.
func TestRun_LocalSourceHealsByReopeningSameAddress(t *testing.T) {
	failing := newScriptedCapture(readFailureStep())
	recovered := newScriptedCapture(healthyStep())
	factory := &fakeFactory{captures: []ports.Capture{failing, recovered}}
	resolver := &fakeResolver{}
	sink := &recordingSink{}
	commands := newCommandPipe()

	m := newTestMonitor(factory, resolver, sink, commands)
	done := runMonitor(t, m, domain.Source{Address: "/dev/video0", Label: "local"})

	require.Eventually(t, func() bool { return sink.renderCount() >= 1 }, time.Second, time.Millisecond)
	commands.send(domain.CommandQuit)
	assert.NoError(t, waitDone(t, done))

	assert.Equal(t, 0, resolver.callCount())
	assert.Equal(t, []domain.MediaAddress{"/dev/video0", "/dev/video0"}, factory.openCalls())
	assert.Equal(t, 1, failing.releaseCount())
}

// A failed reopen after a successful resolve is fatal, with the stale
// handle already released.
func TestRun_ReopenFailureAfterResolveIsFatal(t *testing.T) {
	stale := newScriptedCapture(frozenStep())
	factory := &fakeFactory{
		captures: []ports.Capture{stale},
		errs:     []error{nil, domain.ErrOpenFailed},
	}
	resolver := &fakeResolver{address: "http://cdn/rotated"}
	sink := &recordingSink{}

	m := newTestMonitor(factory, resolver, sink, newCommandPipe())
	done := runMonitor(t, m, domain.Source{Identifier: "yt-5", Address: "http://cdn/stale", Label: "yt-5"})

	err := waitDone(t, done)
	assert.ErrorIs(t, err, domain.ErrOpenFailed)
	assert.Equal(t, 1, stale.releaseCount())
	assert.Len(t, factory.openCalls(), 2)
}

func TestRun_SaveFrameCommandSnapshotsWithoutStateChange(t *testing.T) {
	capture := newScriptedCapture(healthyStep())
	factory := &fakeFactory{captures: []ports.Capture{capture}}
	sink := &recordingSink{}
	commands := newCommandPipe()

	m := newTestMonitor(factory, &fakeResolver{}, sink, commands)
	done := runMonitor(t, m, domain.Source{Identifier: "yt-6", Address: "http://cdn/z", Label: "yt-6"})

	require.Eventually(t, func() bool { return sink.renderCount() >= 1 }, time.Second, time.Millisecond)
	commands.send(domain.CommandSaveFrame)
	require.Eventually(t, func() bool { return sink.snapshotCount() == 1 }, time.Second, time.Millisecond)

	commands.send(domain.CommandQuit)
	assert.NoError(t, waitDone(t, done))
	assert.Equal(t, 1, capture.releaseCount())
	assert.Len(t, factory.openCalls(), 1)
}

func TestRun_ContextCancelStopsAndReleasesOnce(t *testing.T) {
	capture := newScriptedCapture(healthyStep())
	factory := &fakeFactory{captures: []ports.Capture{capture}}
	sink := &recordingSink{}

	m := newTestMonitor(factory, &fakeResolver{}, sink, newCommandPipe())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, domain.Source{Identifier: "yt-7", Address: "http://cdn/w", Label: "yt-7"}) }()

	require.Eventually(t, func() bool { return sink.renderCount() >= 1 }, time.Second, time.Millisecond)
	cancel()

	assert.NoError(t, waitDone(t, done))
	assert.Equal(t, 1, capture.releaseCount())
}
