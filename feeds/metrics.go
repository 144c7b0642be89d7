package feeds

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "headlines_ingest_runs_total",
		Help: "Number of ingestion runs by result",
	}, []string{"result"})

	entriesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "headlines_entries_ingested_total",
		Help: "Number of entries written to the entry log",
	})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "headlines_feed_fetch_duration_seconds",
		Help:    "Time spent fetching and parsing a single feed",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms up to ~25s
	})

	fetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "headlines_feed_fetch_errors_total",
		Help: "Number of feeds that failed to fetch or parse",
	})
)

func runResult(err error) string {
	switch err.(type) {
	case nil:
		return "ok"
	case *FetchError:
		return "fetch_error"
	case *MalformedEntryError:
		return "malformed_entry"
	case *LogError:
		return "log_error"
	default:
		return "invalid"
	}
}
