package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sceneLabel = "scene"
)

var (
	sceneObjectCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scene_object_count",
		Help: "The number of objects in a scene.",
	}, []string{sceneLabel})

	sceneObjectMovesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_object_moves_total",
		Help: "The total number of object moves.",
	}, []string{sceneLabel})

	sceneQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_queries_total",
		Help: "The total number of region queries.",
	}, []string{sceneLabel})

	sceneQueryObjectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_query_objects_total",
		Help: "The total number of objects returned by region queries.",
	}, []string{sceneLabel})
)

func instrumentObjectCount(scene string, count int) {
	sceneObjectCount.
		With(prometheus.Labels{sceneLabel: scene}).
		Set(float64(count))
}

func instrumentObjectMove(scene string) {
	sceneObjectMovesTotal.
		With(prometheus.Labels{sceneLabel: scene}).
		Inc()
}

func instrumentQuery(scene string, objects int) {
	sceneQueriesTotal.
		With(prometheus.Labels{sceneLabel: scene}).
		Inc()

	sceneQueryObjectsTotal.
		With(prometheus.Labels{sceneLabel: scene}).
		Add(float64(objects))
}

func deleteSceneMetrics(scene string) {
	sceneObjectCount.DeleteLabelValues(scene)
	sceneObjectMovesTotal.DeleteLabelValues(scene)
	sceneQueriesTotal.DeleteLabelValues(scene)
	sceneQueryObjectsTotal.DeleteLabelValues(scene)
}
