package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chargesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_charges_total",
		Help: "Daily charge attempts by outcome.",
	}, []string{"status"})

	renewalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_renewals_total",
		Help: "Auto-renewal attempts by outcome.",
	}, []string{"status"})

	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "billing_pass_duration_seconds",
		Help:    "Duration of a full daily billing pass.",
		Buckets: prometheus.DefBuckets,
	})
)
