package services

import (
	"sync"

	"vigil/internal/core/domain"
)

// MetricsService accumulates monitoring counters. It is the only service
// shared across goroutines (monitor loop, dashboard, audit workers), so all
// access goes through the mutex.
type MetricsService struct {
	mu sync.RWMutex

	framesSampled map[domain.HealthState]uint64

	healingAttempts  uint64
	healingSuccesses uint64
	snapshotsSaved   uint64

	activeSessions int

	auditHealthy  int
	auditDegraded int
}

// MetricsSnapshot is a point-in-time copy of all counters, safe to hand to
// exporters.
type MetricsSnapshot struct {
	FramesSampled    map[string]uint64
	HealingAttempts  uint64
	HealingSuccesses uint64
	SnapshotsSaved   uint64
	ActiveSessions   int
	AuditHealthy     int
	AuditDegraded    int
}

func NewMetricsService() *MetricsService {
	return &MetricsService{
		framesSampled: make(map[domain.HealthState]uint64),
	}
}

func (m *MetricsService) FrameSampled(state domain.HealthState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.framesSampled[state]++
}

func (m *MetricsService) HealingAttempt(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healingAttempts++
	if success {
		m.healingSuccesses++
	}
}

func (m *MetricsService) SnapshotSaved() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshotsSaved++
}

func (m *MetricsService) SessionStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeSessions++
}

func (m *MetricsService) SessionStopped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeSessions > 0 {
		m.activeSessions--
	}
}

func (m *MetricsService) RecordAudit(healthy, degraded int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditHealthy = healthy
	m.auditDegraded = degraded
}

// Snapshot copies the current counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	frames := make(map[string]uint64, len(m.framesSampled))
	for state, count := range m.framesSampled {
		frames[state.String()] = count
	}

	return MetricsSnapshot{
		FramesSampled:    frames,
		HealingAttempts:  m.healingAttempts,
		HealingSuccesses: m.healingSuccesses,
		SnapshotsSaved:   m.snapshotsSaved,
		ActiveSessions:   m.activeSessions,
		AuditHealthy:     m.auditHealthy,
		AuditDegraded:    m.auditDegraded,
	}
}
