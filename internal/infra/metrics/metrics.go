package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	SweepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_sweeps_total",
		Help: "Sweep runs by mode and outcome",
	}, []string{"mode", "outcome"})

	SweepDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "compliance_sweep_duration_seconds",
		Help:    "Wall time of one sweep over a group",
		Buckets: prometheus.DefBuckets,
	})

	MembersRemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compliance_members_removed_total",
		Help: "Members kicked by removal sweeps",
	})

	RemoveFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compliance_remove_failures_total",
		Help: "Failed member removals",
	})

	DMSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compliance_dm_sent_total",
		Help: "Direct messages delivered by the dispatcher",
	})

	DMFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compliance_dm_failures_total",
		Help: "Direct message deliveries that failed",
	})
)

// MustRegister registers all collectors.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		SweepsTotal,
		SweepDurationSeconds,
		MembersRemovedTotal,
		RemoveFailuresTotal,
		DMSentTotal,
		DMFailuresTotal,
	)
}

// StartServer serves /metrics on addr until ctx is cancelled.
func StartServer(ctx context.Context, logger *logrus.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.WithField("addr", addr).Info("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics: server stopped")
		}
	}()
}
