package dispatch

import (
	"context"
	"log/slog"

	"github.com/tkingovr/portal/internal/access"
	"github.com/tkingovr/portal/internal/metrics"
)

// Observer is notified around every dispatched request. Started sees the
// outcome while it is still evaluating; Finished sees it complete.
type Observer interface {
	Started(o *Outcome)
	Finished(o *Outcome)
}

type accessLog struct {
	store  access.Store
	logger *slog.Logger
}

// AccessLog writes an access record for every finished request.
func AccessLog(store access.Store, logger *slog.Logger) Observer {
	return &accessLog{store: store, logger: logger}
}

func (a *accessLog) Started(*Outcome) {}

func (a *accessLog) Finished(o *Outcome) {
	if err := a.store.Write(context.Background(), o.Record()); err != nil {
		a.logger.Error("writing access record", "id", o.ID, "error", err)
	}
}

type metricsObserver struct {
	prom *metrics.Prometheus
}

// Metrics feeds request counts and durations into p.
func Metrics(p *metrics.Prometheus) Observer {
	return &metricsObserver{prom: p}
}

func (m *metricsObserver) Started(*Outcome) { m.prom.Started() }

func (m *metricsObserver) Finished(o *Outcome) {
	kind := ""
	if o.Rejection != nil {
		kind = o.Rejection.Kind.String()
	}
	m.prom.Finished(o.Method, string(o.State), kind, o.Status, o.Duration)
}

type requestLog struct {
	logger *slog.Logger
}

// RequestLog logs every finished request at info level, and panics at
// error level.
func RequestLog(logger *slog.Logger) Observer {
	return &requestLog{logger: logger}
}

func (l *requestLog) Started(*Outcome) {}

func (l *requestLog) Finished(o *Outcome) {
	attrs := []any{
		"id", o.ID,
		"method", o.Method,
		"path", o.Path,
		"outcome", string(o.State),
		"status", o.Status,
		"duration", o.Duration,
	}
	if o.Rejection != nil {
		attrs = append(attrs, "kind", o.Rejection.Kind.String())
		if o.Rejection.Field != "" {
			attrs = append(attrs, "field", o.Rejection.Field)
		}
	}
	if o.Err != nil {
		l.logger.Error("request failed", append(attrs, "error", o.Err)...)
		return
	}
	l.logger.Info("request", attrs...)
}
