// Package metrics exposes Prometheus counters for the guidance loop,
// announcement delivery and the process itself.
package metrics

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/teslashibe/go-seek/pkg/announce"
	"github.com/teslashibe/go-seek/pkg/command"
)

const namespace = "seek"

// Metrics owns a private registry. It implements guide.Observer and
// announce.Observer.
type Metrics struct {
	registry *prometheus.Registry

	framesProcessed prometheus.Counter
	framesSkipped   prometheus.Counter
	frameSeconds    prometheus.Histogram
	commands        *prometheus.CounterVec
	commandsDropped prometheus.Counter
	transcripts     prometheus.Counter
	locks           prometheus.Counter
	losses          prometheus.Counter
	announcements   *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	speakSeconds    *prometheus.HistogramVec
	cpuPercent      prometheus.Gauge
	rssBytes        prometheus.Gauge
	pending         prometheus.GaugeFunc
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_processed_total",
			Help: "Frames run through detection and the active mode handler.",
		}),
		framesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_skipped_total",
			Help: "Frames displayed but not analyzed.",
		}),
		frameSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "frame_process_seconds",
			Help:    "Time to process one analyzed frame.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "commands_total",
			Help: "Commands applied by the mode controller.",
		}, []string{"action"}),
		commandsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "commands_dropped_total",
			Help: "Commands rejected because the command channel was full.",
		}),
		transcripts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "transcripts_total",
			Help: "Final voice transcripts, whether or not they parsed as commands.",
		}),
		locks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "target_locks_total",
			Help: "Targets locked in find mode.",
		}),
		losses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "target_losses_total",
			Help: "Locked targets lost after coasting too long.",
		}),
		announcements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "announcements_total",
			Help: "Announcements by kind and outcome.",
		}, []string{"kind", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "speaker_failures_total",
			Help: "Failed speaker attempts that fell through to the next speaker.",
		}, []string{"speaker"}),
		speakSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "speak_seconds",
			Help:    "Time to deliver one announcement.",
			Buckets: []float64{.1, .25, .5, 1, 2, 4, 8, 15},
		}, []string{"speaker"}),
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "process_cpu_percent",
			Help: "CPU usage of this process in percent.",
		}),
		rssBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "process_rss_bytes",
			Help: "Resident memory of this process.",
		}),
	}

	m.registry.MustRegister(
		m.framesProcessed, m.framesSkipped, m.frameSeconds,
		m.commands, m.commandsDropped, m.transcripts, m.locks, m.losses,
		m.announcements, m.fallbacks, m.speakSeconds,
		m.cpuPercent, m.rssBytes,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) FrameProcessed(elapsed time.Duration) {
	m.framesProcessed.Inc()
	m.frameSeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) FrameSkipped() { m.framesSkipped.Inc() }

func (m *Metrics) CommandApplied(action command.Action) {
	m.commands.WithLabelValues(string(action)).Inc()
}

// CommandDropped counts a command the channel could not accept.
func (m *Metrics) CommandDropped() { m.commandsDropped.Inc() }

// Transcript counts one final voice transcript.
func (m *Metrics) Transcript() { m.transcripts.Inc() }

// WatchQueue exports the announcement backlog reported by pending. Call it
// at most once.
func (m *Metrics) WatchQueue(pending func() int) {
	m.pending = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: "announcements_pending",
		Help: "Announcements queued or being spoken.",
	}, func() float64 { return float64(pending()) })
	m.registry.MustRegister(m.pending)
}

func (m *Metrics) TargetLocked() { m.locks.Inc() }

func (m *Metrics) TargetLost() { m.losses.Inc() }

func (m *Metrics) Enqueued(kind announce.Kind) {
	m.announcements.WithLabelValues(kind.String(), "enqueued").Inc()
}

func (m *Metrics) Suppressed() {
	m.announcements.WithLabelValues(announce.Throttled.String(), "suppressed").Inc()
}

func (m *Metrics) Delivered(speaker string, elapsed time.Duration) {
	m.announcements.WithLabelValues("any", "delivered").Inc()
	m.speakSeconds.WithLabelValues(speaker).Observe(elapsed.Seconds())
}

func (m *Metrics) Fallback(speaker string) {
	m.fallbacks.WithLabelValues(speaker).Inc()
}

func (m *Metrics) Unavailable() {
	m.announcements.WithLabelValues("any", "unavailable").Inc()
}

// WatchProcess samples this process's CPU and RSS every interval until
// ctx is done.
func (m *Metrics) WatchProcess(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		logger.Warn("process metrics unavailable", "error", err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx, proc)
		}
	}
}

func (m *Metrics) sample(ctx context.Context, proc *process.Process) {
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
		m.rssBytes.Set(float64(mem.RSS))
	}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		m.cpuPercent.Set(math.Round(cpu*100) / 100)
	}
}
