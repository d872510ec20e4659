package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	directionPush = "push"
	directionPull = "pull"
)

var (
	recordsSyncedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchnote",
			Subsystem: "sync",
			Name:      "records_total",
			Help:      "Records copied between the local and the remote store.",
		},
		[]string{"kind", "direction"},
	)

	syncFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchnote",
			Subsystem: "sync",
			Name:      "failures_total",
			Help:      "Remote writes that failed and kinds whose reconciliation failed.",
		},
		[]string{"kind"},
	)

	syncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "matchnote",
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Time spent reconciling one kind.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)
