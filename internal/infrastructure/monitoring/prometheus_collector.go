package monitoring

import (
	"context"
	"time"

	"vigil/internal/core/services"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector mirrors the in-process counters into Prometheus by
// polling the metrics service, so the sampling loop never touches the
// registry on its hot path.
type PrometheusCollector struct {
	source   *services.MetricsService
	interval time.Duration

	framesSampled    *prometheus.CounterVec
	healingAttempts  prometheus.Counter
	healingSuccesses prometheus.Counter
	snapshotsSaved   prometheus.Counter
	activeSessions   prometheus.Gauge
	auditHealthy     prometheus.Gauge
	auditDegraded    prometheus.Gauge

	// last seen cumulative values, to turn snapshots into deltas
	lastFrames    map[string]uint64
	lastAttempts  uint64
	lastSuccesses uint64
	lastSnapshots uint64
}

func NewPrometheusCollector(source *services.MetricsService, registerer prometheus.Registerer, interval time.Duration) *PrometheusCollector {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	c := &PrometheusCollector{
		source:   source,
		interval: interval,
		framesSampled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_frames_sampled_total",
			Help: "Frames sampled, by classified health state",
		}, []string{"state"}),
		healingAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_healing_attempts_total",
			Help: "Healing cycles triggered by failure streaks",
		}),
		healingSuccesses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_healing_successes_total",
			Help: "Healing cycles that reopened the source",
		}),
		snapshotsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_snapshots_saved_total",
			Help: "Still frames saved by operator command",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_active_sessions",
			Help: "Monitoring sessions currently running",
		}),
		auditHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_audit_healthy_cameras",
			Help: "Cameras reported healthy by the last audit",
		}),
		auditDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_audit_degraded_cameras",
			Help: "Cameras reported degraded by the last audit",
		}),
		lastFrames: make(map[string]uint64),
	}

	registerer.MustRegister(
		c.framesSampled,
		c.healingAttempts,
		c.healingSuccesses,
		c.snapshotsSaved,
		c.activeSessions,
		c.auditHealthy,
		c.auditDegraded,
	)
	return c
}

// Start polls until the context ends.
func (c *PrometheusCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Collect()
		}
	}
}

// Collect applies one snapshot to the Prometheus series.
func (c *PrometheusCollector) Collect() {
	snap := c.source.Snapshot()

	for state, total := range snap.FramesSampled {
		if delta := total - c.lastFrames[state]; delta > 0 {
			c.framesSampled.WithLabelValues(state).Add(float64(delta))
		}
		c.lastFrames[state] = total
	}
	if delta := snap.HealingAttempts - c.lastAttempts; delta > 0 {
		c.healingAttempts.Add(float64(delta))
	}
	c.lastAttempts = snap.HealingAttempts

	if delta := snap.HealingSuccesses - c.lastSuccesses; delta > 0 {
		c.healingSuccesses.Add(float64(delta))
	}
	c.lastSuccesses = snap.HealingSuccesses

	if delta := snap.SnapshotsSaved - c.lastSnapshots; delta > 0 {
		c.snapshotsSaved.Add(float64(delta))
	}
	c.lastSnapshots = snap.SnapshotsSaved

	c.activeSessions.Set(float64(snap.ActiveSessions))
	c.auditHealthy.Set(float64(snap.AuditHealthy))
	c.auditDegraded.Set(float64(snap.AuditDegraded))
}
