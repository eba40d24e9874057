// Package metrics exposes Prometheus instrumentation for the poll loop and
// festival lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksTotal counts poll ticks by outcome ("ok" or "error").
	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picrew_ticks_total",
			Help: "Poll ticks by outcome",
		},
		[]string{"status"},
	)

	// MentionsProcessed counts inbound mentions the engine has consumed.
	MentionsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picrew_mentions_processed_total",
			Help: "Inbound mention notifications processed",
		},
	)

	// PostsCreated counts outbound statuses by kind
	// (announcement/question/entries/answer/cancellation/notice).
	PostsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picrew_posts_created_total",
			Help: "Statuses posted by kind",
		},
		[]string{"kind"},
	)

	// EntriesCollected counts accepted collage entries across festivals.
	EntriesCollected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picrew_entries_collected_total",
			Help: "Accepted participant images across festivals",
		},
	)

	// FestivalActive is 1 while a festival is in flight.
	FestivalActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "picrew_festival_active",
			Help: "Whether a festival is currently running",
		},
	)
)
