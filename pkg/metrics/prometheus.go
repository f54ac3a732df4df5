// Package metrics exposes CLEO's Prometheus metrics and the HTTP endpoint
// that serves them, for embedders who want to scrape the running engine.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CleoMetrics holds every gauge/counter CLEO's subsystems report against.
type CleoMetrics struct {
	BuildInfo *prometheus.GaugeVec
	StartTime prometheus.Gauge

	// Streaming engine (§4.1)
	StreamsActive     prometheus.Gauge
	StreamReadsTotal  *prometheus.CounterVec // label: status (ok, substituted, error)
	StreamBufferSectors prometheus.Gauge

	// Script interpreter (§4.2)
	ScriptsRegistered *prometheus.GaugeVec // label: kind (startup, invoked)
	ScriptIssuesTotal *prometheus.CounterVec // label: issue
	ScriptTicksTotal  prometheus.Counter

	// Cheat manager (§4.3)
	CheatsQueued  prometheus.Gauge
	CheatsApplied *prometheus.CounterVec // label: method (event, flag)

	// Touch (§4.4)
	TouchTracesActive prometheus.Gauge
	MenuSwipesTotal    prometheus.Counter
}

// NewCleoMetrics creates and registers all CLEO metrics under one namespace.
func NewCleoMetrics(namespace string) *CleoMetrics {
	return &CleoMetrics{
		BuildInfo: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		}, []string{"version", "commit", "build_time"}),
		StartTime: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Unix timestamp of engine start time",
		}),

		StreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "streaming",
			Name:      "streams_active",
			Help:      "Number of stream records currently busy",
		}),
		StreamReadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streaming",
			Name:      "reads_total",
			Help:      "Total number of serviced stream reads",
		}, []string{"status"}),
		StreamBufferSectors: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "streaming",
			Name:      "buffer_size_sectors",
			Help:      "Current global streaming buffer size in sectors",
		}),

		ScriptsRegistered: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "script",
			Name:      "registered",
			Help:      "Number of scripts currently registered",
		}, []string{"kind"}),
		ScriptIssuesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "script",
			Name:      "issues_total",
			Help:      "Total scripts loaded by worst safety-scan issue",
		}, []string{"issue"}),
		ScriptTicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "script",
			Name:      "ticks_total",
			Help:      "Total number of script tick hook invocations",
		}),

		CheatsQueued: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cheat",
			Name:      "queued",
			Help:      "Number of cheats currently in a Queued state",
		}),
		CheatsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cheat",
			Name:      "applied_total",
			Help:      "Total queued cheat transitions applied at tick",
		}, []string{"method"}),

		TouchTracesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "touch",
			Name:      "traces_active",
			Help:      "Number of finger traces currently tracked",
		}),
		MenuSwipesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "touch",
			Name:      "menu_swipes_total",
			Help:      "Total number of detected menu-summon swipes",
		}),
	}
}

// Registry owns the metrics set and the HTTP server that exposes it.
type Registry struct {
	name      string
	version   string
	buildTime string
	gitCommit string
	logger    *slog.Logger

	Cleo *CleoMetrics

	server *http.Server
}

// NewRegistry creates a metrics registry for the CLEO engine.
func NewRegistry(version, buildTime, gitCommit string, logger *slog.Logger) *Registry {
	reg := &Registry{
		name:      "cleo",
		version:   version,
		buildTime: buildTime,
		gitCommit: gitCommit,
		logger:    logger,
		Cleo:      NewCleoMetrics("cleo"),
	}

	reg.Cleo.BuildInfo.WithLabelValues(version, gitCommit, buildTime).Set(1)
	reg.Cleo.StartTime.SetToCurrentTime()

	return reg
}

// StartMetricsServer starts the HTTP server for Prometheus metrics.
func (r *Registry) StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"` + r.name + `"}`))
	})

	r.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	r.logger.Info("Starting metrics server", "port", port)
	return r.server.ListenAndServe()
}

// StopMetricsServer stops the metrics HTTP server.
func (r *Registry) StopMetricsServer(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info("Stopping metrics server")
	return r.server.Shutdown(ctx)
}
