package dispatch

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/campusgate/access-core/pkg/metrics"
)

// Observer is notified after every dispatch attempt. elapsed is zero when no
// handler ran.
type Observer interface {
	Observe(request string, elapsed time.Duration, err error)
}

// MetricsObserver records dispatches in Prometheus and the debug log.
type MetricsObserver struct {
	log zerolog.Logger
}

func NewMetricsObserver(log zerolog.Logger) *MetricsObserver {
	return &MetricsObserver{log: log}
}

func (o *MetricsObserver) Observe(request string, elapsed time.Duration, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrHandlerNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}

	metrics.DispatchTotal.WithLabelValues(request, outcome).Inc()
	if elapsed > 0 {
		metrics.DispatchDuration.WithLabelValues(request).Observe(elapsed.Seconds())
	}

	o.log.Debug().
		Str("request", request).
		Str("outcome", outcome).
		Dur("elapsed", elapsed).
		Err(err).
		Msg("dispatched")
}
