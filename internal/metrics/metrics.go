// README: Prometheus counters for discovery queries, superseded results, fixes, and play requests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rally",
		Subsystem: "discovery",
		Name:      "searches_total",
		Help:      "Proximity searches by outcome (live or fallback).",
	}, []string{"outcome"})

	supersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rally",
		Subsystem: "discovery",
		Name:      "superseded_results_total",
		Help:      "Search completions discarded because a newer query already applied.",
	})

	fixesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rally",
		Subsystem: "location",
		Name:      "fixes_total",
		Help:      "Position acquisition attempts by result.",
	}, []string{"result"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rally",
		Subsystem: "requests",
		Name:      "sent_total",
		Help:      "Play requests by terminal status.",
	}, []string{"status"})
)

func RecordSearch(outcome string) { searchesTotal.WithLabelValues(outcome).Inc() }

func RecordSuperseded() { supersededTotal.Inc() }

func RecordFix(result string) { fixesTotal.WithLabelValues(result).Inc() }

func RecordPlayRequest(status string) { requestsTotal.WithLabelValues(status).Inc() }
