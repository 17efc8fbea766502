package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arklim/social-platform-lockout/internal/infra/config"
)

// Provider represents a telemetry provider handle.
type Provider struct {
	requestCounter   prometheus.Counter
	attemptsRecorded *prometheus.CounterVec
	accountsLocked   prometheus.Counter
	accountsUnlocked prometheus.Counter
}

// Attach configures telemetry exporters and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	requestCounter := promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lockout",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	})

	attemptsRecorded := promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lockout",
		Name:      "attempts_recorded_total",
		Help:      "Total number of authentication attempts recorded",
	}, []string{"outcome"})

	accountsLocked := promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lockout",
		Name:      "accounts_locked_total",
		Help:      "Total number of lock transitions",
	})

	accountsUnlocked := promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lockout",
		Name:      "accounts_unlocked_total",
		Help:      "Total number of administrative unlocks",
	})

	return &Provider{
		requestCounter:   requestCounter,
		attemptsRecorded: attemptsRecorded,
		accountsLocked:   accountsLocked,
		accountsUnlocked: accountsUnlocked,
	}, nil
}

// RequestCounter exposes the HTTP request metric.
func (p *Provider) RequestCounter() prometheus.Counter {
	if p == nil {
		return prometheus.NewCounter(prometheus.CounterOpts{})
	}
	return p.requestCounter
}

// ObserveAttempt records one attempt with its outcome label.
func (p *Provider) ObserveAttempt(succeeded bool) {
	if p == nil {
		return
	}
	outcome := "failure"
	if succeeded {
		outcome = "success"
	}
	p.attemptsRecorded.WithLabelValues(outcome).Inc()
}

// ObserveLock records one lock transition.
func (p *Provider) ObserveLock() {
	if p == nil {
		return
	}
	p.accountsLocked.Inc()
}

// ObserveUnlock records one administrative unlock.
func (p *Provider) ObserveUnlock() {
	if p == nil {
		return
	}
	p.accountsUnlocked.Inc()
}
