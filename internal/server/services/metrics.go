package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pushItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gradekeeper_server_push_items_total",
		Help: "Pushed changes by outcome.",
	}, []string{"status"})

	pullItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gradekeeper_server_pull_items_total",
		Help: "Items returned by pull requests.",
	})

	serverClock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gradekeeper_server_clock",
		Help: "Highest updatedAt assigned since start.",
	})
)
