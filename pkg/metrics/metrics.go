package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons for stream frames that never become chunks.
const (
	DropEmpty   = "empty"
	DropJSON    = "json"
	DropInvalid = "invalid"
)

var (
	StreamFramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akuchat_stream_frames_dropped_total",
		Help: "Stream frames discarded by the decoder, by reason.",
	}, []string{"reason"})
	StreamChunksDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "akuchat_stream_chunks_decoded_total",
		Help: "Stream chunks decoded and validated.",
	})

	TurnsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "akuchat_turns_started_total",
		Help: "Turns submitted by the conversation controller.",
	})
	TurnsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akuchat_turns_finished_total",
		Help: "Turns finalized by the conversation controller, by outcome.",
	}, []string{"outcome"})
	HistoryPagesLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "akuchat_history_pages_loaded_total",
		Help: "History pages merged into a conversation.",
	})

	ServerTurnsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "akuchat_server_turns_active",
		Help: "Streaming turns currently being served.",
	})
	ServerTurnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "akuchat_server_turn_duration_seconds",
		Help:    "Duration of served streaming turns, by transport and reply source.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"transport", "source"})
	ResponseCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akuchat_response_cache_lookups_total",
		Help: "Chat response cache lookups, by result.",
	}, []string{"result"})
)
