package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus instruments for one scraper run. A nil
// *Metrics is valid and turns every method into a no-op, so the scraper
// does not have to care whether metrics were enabled.
type Metrics struct {
	Processed    prometheus.Counter
	Discarded    prometheus.Counter
	SinkFailures prometheus.Counter
	Cursor       prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Processed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tg_scraper_records_processed_total",
			Help: "Total number of records delivered to the sink",
		}),
		Discarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tg_scraper_records_discarded_total",
			Help: "Total number of duplicate records discarded in tail mode",
		}),
		SinkFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tg_scraper_sink_failures_total",
			Help: "Total number of failed sink writes",
		}),
		Cursor: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tg_scraper_cursor",
			Help: "Highest processed message id",
		}),
	}
}

func (m *Metrics) RecordProcessed(id int64) {
	if m == nil {
		return
	}
	m.Processed.Inc()
	m.Cursor.Set(float64(id))
}

func (m *Metrics) RecordDiscarded() {
	if m == nil {
		return
	}
	m.Discarded.Inc()
}

func (m *Metrics) RecordSinkFailure() {
	if m == nil {
		return
	}
	m.SinkFailures.Inc()
}

// Serve exposes /metrics on addr. It blocks, so callers run it in a
// goroutine; errors are returned for logging, never fatal to the run.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return srv.ListenAndServe()
}
