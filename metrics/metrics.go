// Package metrics exposes pedometer counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	SamplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pedometer_samples_total",
			Help: "Accelerometer samples processed by the step detector",
		},
	)

	StepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pedometer_steps_total",
			Help: "Steps counted",
		},
		[]string{"origin"},
	)

	CurrentSteps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pedometer_current_steps",
			Help: "Step count for this process lifetime",
		},
	)

	Walking = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pedometer_walking",
			Help: "1 while the detector is in the walking state",
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pedometer_notifications_total",
			Help: "Notification updates by result (sent, dropped, failed)",
		},
		[]string{"result"},
	)

	BackgroundRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pedometer_background_runs_total",
			Help: "Background task invocations by result",
		},
		[]string{"task", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		SamplesTotal,
		StepsTotal,
		CurrentSteps,
		Walking,
		NotificationsTotal,
		BackgroundRunsTotal,
	)
}

// Server serves /metrics and /health.
type Server struct {
	server *http.Server
	logger zerolog.Logger
}

// NewServer creates a metrics server listening on addr.
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Run serves until ctx is done, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("metrics server listening")
		errc <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errc
		return nil
	}
}
