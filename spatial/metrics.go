package spatial

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	indexLabel = "index"
)

var (
	spatialIndexInserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_index_inserts_total",
		Help: "The number of entries inserted in a spatial index.",
	}, []string{indexLabel})

	spatialIndexRemovals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_index_removals_total",
		Help: "The number of entries removed from a spatial index.",
	}, []string{indexLabel})

	spatialIndexSplits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_index_splits_total",
		Help: "The number of node splits in a spatial index.",
	}, []string{indexLabel})

	spatialIndexForcedReinserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_index_forced_reinserts_total",
		Help: "The number of overflowing nodes resolved by reinserting part of their children.",
	}, []string{indexLabel})

	spatialIndexUnderflows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_index_underflows_total",
		Help: "The number of nodes dissolved because they held too few children.",
	}, []string{indexLabel})

	spatialIndexQueryResults = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spatial_index_query_results",
		Help:    "The number of values returned by a spatial index query.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{indexLabel})

	spatialIndexEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spatial_index_entries",
		Help: "The number of entries in a spatial index.",
	}, []string{indexLabel})

	spatialIndexHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spatial_index_height",
		Help: "The number of levels of a spatial index.",
	}, []string{indexLabel})
)

func instrumentInsert(name string) {
	spatialIndexInserts.
		With(prometheus.Labels{indexLabel: name}).
		Inc()
}

func instrumentRemove(name string) {
	spatialIndexRemovals.
		With(prometheus.Labels{indexLabel: name}).
		Inc()
}

func instrumentSplit(name string) {
	spatialIndexSplits.
		With(prometheus.Labels{indexLabel: name}).
		Inc()
}

func instrumentForcedReinsert(name string) {
	spatialIndexForcedReinserts.
		With(prometheus.Labels{indexLabel: name}).
		Inc()
}

func instrumentUnderflow(name string) {
	spatialIndexUnderflows.
		With(prometheus.Labels{indexLabel: name}).
		Inc()
}

func instrumentQuery(name string, results int) {
	spatialIndexQueryResults.
		With(prometheus.Labels{indexLabel: name}).
		Observe(float64(results))
}

func instrumentShape(name string, entries, height int) {
	spatialIndexEntries.
		With(prometheus.Labels{indexLabel: name}).
		Set(float64(entries))

	spatialIndexHeight.
		With(prometheus.Labels{indexLabel: name}).
		Set(float64(height))
}

func deleteMetrics(name string) {
	spatialIndexInserts.DeleteLabelValues(name)
	spatialIndexRemovals.DeleteLabelValues(name)
	spatialIndexSplits.DeleteLabelValues(name)
	spatialIndexForcedReinserts.DeleteLabelValues(name)
	spatialIndexUnderflows.DeleteLabelValues(name)
	spatialIndexQueryResults.DeleteLabelValues(name)
	spatialIndexEntries.DeleteLabelValues(name)
	spatialIndexHeight.DeleteLabelValues(name)
}
