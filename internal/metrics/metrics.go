// Package metrics exposes Prometheus counters for the submission pipeline.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dshills/linkarchiver/pkg/types"
)

const namespace = "linkarchiver"

// Metrics groups every collector the pipeline reports to
type Metrics struct {
	registry *prometheus.Registry

	linksExtracted prometheus.Counter
	linksSkipped   prometheus.Counter
	linksAccepted  prometheus.Counter
	rejections     *prometheus.CounterVec
	logins         *prometheus.CounterVec
	submissions    *prometheus.CounterVec
	pendingLinks   prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		linksExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_extracted_total",
			Help:      "Candidate URLs extracted from documents.",
		}),
		linksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_skipped_total",
			Help:      "Link targets discarded because they did not parse as absolute URLs.",
		}),
		linksAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_accepted_total",
			Help:      "Candidate URLs that passed the filter chain.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_rejected_total",
			Help:      "Candidate URLs rejected by the filter chain.",
		}, []string{"reason"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login handshakes by result.",
		}, []string{"result"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Batch submissions by outcome.",
		}, []string{"outcome"}),
		pendingLinks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_links",
			Help:      "URLs waiting in the batch.",
		}),
	}

	m.registry.MustRegister(
		m.linksExtracted,
		m.linksSkipped,
		m.linksAccepted,
		m.rejections,
		m.logins,
		m.submissions,
		m.pendingLinks,
	)
	return m
}

// Registry returns the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) LinkExtracted() {
	if m != nil {
		m.linksExtracted.Inc()
	}
}

func (m *Metrics) LinkSkipped() {
	if m != nil {
		m.linksSkipped.Inc()
	}
}

func (m *Metrics) LinkAccepted() {
	if m != nil {
		m.linksAccepted.Inc()
	}
}

func (m *Metrics) LinkRejected(reason types.RejectReason) {
	if m != nil {
		m.rejections.WithLabelValues(string(reason)).Inc()
	}
}

// Login records a login attempt
func (m *Metrics) Login(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) Submission(outcome types.SubmitOutcome) {
	if m != nil {
		m.submissions.WithLabelValues(string(outcome)).Inc()
	}
}

func (m *Metrics) SetPending(n int) {
	if m != nil {
		m.pendingLinks.Set(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
