package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arawak/tagsmith/internal/tag"
)

const Namespace = "tagsmith"

// Format request outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeReserved = "reserved"
	OutcomeError    = "error"
)

// Dictionary fetch sources.
const (
	SourceCache = "cache"
	SourceStore = "store"
	SourceStale = "stale"
	SourceError = "error"
)

var (
	Gather = prometheus.NewRegistry()

	FormatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "format_requests_total",
			Help:      "Counter of tag format requests by outcome.",
		}, []string{"outcome"})

	TagsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tags_accepted_total",
			Help:      "Counter of tag titles accepted by the formatter.",
		})

	TagsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tags_rejected_total",
			Help:      "Counter of tag titles dropped by the formatter.",
		}, []string{"reason"})

	DictionaryFetch = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dictionary_fetch_total",
			Help:      "Counter of icon tag dictionary fetches by source.",
		}, []string{"source"})
)

func init() {
	Gather.MustRegister(FormatRequests)
	Gather.MustRegister(TagsAccepted)
	Gather.MustRegister(TagsRejected)
	Gather.MustRegister(DictionaryFetch)
	Gather.MustRegister(collectors.NewGoCollector())
	Gather.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Gather, promhttp.HandlerOpts{})
}

// ObserveResult records one successful formatting run.
func ObserveResult(res tag.Result) {
	FormatRequests.WithLabelValues(OutcomeOK).Inc()
	TagsAccepted.Add(float64(len(res.Tags)))
	for _, r := range res.Rejected {
		TagsRejected.WithLabelValues(string(r.Reason)).Inc()
	}
}
