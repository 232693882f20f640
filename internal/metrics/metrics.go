// Package metrics exposes bench activity as Prometheus collectors. A Recorder
// satisfies both the instrument and the sweep observer interfaces.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"efficiency-bench/internal/logging"
	"efficiency-bench/internal/results"
	"efficiency-bench/internal/sweep"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder struct {
	registry *prometheus.Registry

	commands     *prometheus.CounterVec
	commandErrs  *prometheus.CounterVec
	queryLatency *prometheus.HistogramVec
	samples      prometheus.Counter
	state        *prometheus.GaugeVec
	efficiency   *prometheus.GaugeVec

	mu      sync.Mutex
	current string
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bench_instrument_commands_total",
			Help: "Commands sent to bench instruments.",
		}, []string{"resource", "kind"}),
		commandErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bench_instrument_command_errors_total",
			Help: "Instrument commands that failed, timed out or returned an unparsable reply.",
		}, []string{"resource", "kind"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bench_instrument_query_latency_seconds",
			Help:    "Round trip time of instrument queries.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"resource"}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bench_samples_recorded_total",
			Help: "Operating points measured by the sweep.",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bench_sweep_state",
			Help: "1 for the current sweep controller state, 0 otherwise.",
		}, []string{"state"}),
		efficiency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bench_last_efficiency_percent",
			Help: "Most recent efficiency measured per input-voltage table.",
		}, []string{"table_index", "vin_setpoint"}),
	}

	r.registry.MustRegister(r.commands, r.commandErrs, r.queryLatency, r.samples, r.state, r.efficiency)

	for _, name := range sweep.StateNames() {
		r.state.WithLabelValues(name).Set(0)
	}
	r.current = sweep.Idle.String()
	r.state.WithLabelValues(r.current).Set(1)

	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) CommandIssued(resource, kind string) {
	r.commands.WithLabelValues(resource, kind).Inc()
}

func (r *Recorder) CommandFailed(resource, kind string) {
	r.commandErrs.WithLabelValues(resource, kind).Inc()
}

func (r *Recorder) QueryLatency(resource string, d time.Duration) {
	r.queryLatency.WithLabelValues(resource).Observe(d.Seconds())
}

func (r *Recorder) StateChanged(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.WithLabelValues(r.current).Set(0)
	r.state.WithLabelValues(to).Set(1)
	r.current = to
}

func (r *Recorder) SampleRecorded(tableIndex int, setpoint float64, s results.Sample) {
	r.samples.Inc()
	r.efficiency.WithLabelValues(
		strconv.Itoa(tableIndex),
		strconv.FormatFloat(setpoint, 'f', -1, 64),
	).Set(s.Efficiency)
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	logger := logging.GetLogger()

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.WithField("addr", addr).Info("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
