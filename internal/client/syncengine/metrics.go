package syncengine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	flushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gradekeeper_sync_flush_total",
		Help: "Flush attempts by outcome (ok, partial, error, skipped, empty)",
	}, []string{"result"})

	queueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gradekeeper_sync_queue_length",
		Help: "Changes waiting to be pushed",
	})

	checkpointGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gradekeeper_sync_checkpoint",
		Help: "Newest remote updatedAt observed by pull",
	})
)
