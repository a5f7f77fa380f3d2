// Package metrics holds the process-wide Prometheus collectors. Labels are
// bounded enums only; never label by room code or player id.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_tick_duration_seconds",
		Help:    "Time spent in one room tick, broadcast included",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	})

	roomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_rooms_active",
		Help: "Rooms currently in the directory",
	})

	playersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_players_connected",
		Help: "Connected room members across all rooms",
	})

	matchesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_matches_finished_total",
		Help: "Completed rounds by mode and end reason",
	}, []string{"mode", "reason"})

	messagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_messages_dropped_total",
		Help: "Outbound messages dropped because a session could not keep up",
	})

	inputsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_inputs_dropped_total",
		Help: "Inbound inputs dropped by rate limit or a full room inbox",
	})

	journalRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_match_journal_records_total",
		Help: "Match journal writes by outcome",
	}, []string{"outcome"}) // "written", "dropped", "error"

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_connections_rejected_total",
		Help: "Requests and handshakes refused before reaching a room",
	}, []string{"reason"}) // "rate_limit", "origin", "invalid", "ws_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arena_http_request_duration_seconds",
		Help:    "REST handler latency by route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_http_requests_total",
		Help: "REST requests by route pattern and status",
	}, []string{"method", "route", "code"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_ws_sessions_open",
		Help: "Open WebSocket sessions",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_ws_frames_sent_total",
		Help: "Frames written to WebSocket sessions",
	})
)

// RecordTick records how long one room tick took
func RecordTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

func SetRoomsActive(n int) {
	roomsActive.Set(float64(n))
}

func SetPlayersConnected(n int) {
	playersConnected.Set(float64(n))
}

// RecordMatchEnd counts a finished round
func RecordMatchEnd(mode, reason string) {
	matchesFinished.WithLabelValues(mode, reason).Inc()
}

func RecordDroppedMessage() {
	messagesDropped.Inc()
}

func RecordDroppedInput() {
	inputsDropped.Inc()
}

// RecordJournal counts a journal write; outcome is "written", "dropped" or "error".
func RecordJournal(outcome string) {
	journalRecords.WithLabelValues(outcome).Inc()
}

// RecordConnectionRejected counts a refusal. Keep reason to the label
// values listed on connectionRejected.
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

func RecordRequest(method, route string, status int, d time.Duration) {
	requestLatency.WithLabelValues(method, route).Observe(d.Seconds())
	requestTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func IncWSConnections() { wsConnectionsActive.Inc() }
func DecWSConnections() { wsConnectionsActive.Dec() }

func IncrementWSMessages() { wsMessagesTotal.Inc() }
