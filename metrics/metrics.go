package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	// Connection metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signaling_connections_active",
		Help: "The current number of active WebSocket connections.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_connections_total",
		Help: "The total number of WebSocket connections accepted.",
	})
	StaleConnectionsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_connections_pruned_total",
		Help: "The total number of connections force-closed by the liveness sweeper.",
	})

	// Frame metrics
	FramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_frames_received_total",
		Help: "The total number of frames received from clients.",
	})
	FramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_frames_sent_total",
		Help: "The total number of frames sent to clients.",
	})
	SignalsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_relays_total",
		Help: "The total number of relayed signaling frames, by delivery path.",
	}, []string{"path"})

	// Bus metrics
	BusMessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_bus_messages_published_total",
		Help: "The total number of envelopes published to the broadcast bus.",
	}, []string{"bus_type"})
	BusPublishRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_bus_publish_retries_total",
		Help: "The total number of retries when publishing to the broadcast bus.",
	}, []string{"bus_type"})

	// Auth metrics
	AuthSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_auth_success_total",
		Help: "The total number of successful authentications.",
	})
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_auth_failures_total",
		Help: "The total number of failed authentications.",
	}, []string{"reason"})
)

// StartServer starts the HTTP server for Prometheus metrics.
func StartServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Info().Str("addr", addr).Str("path", path).Msg("starting metrics server")

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatal().Err(err).Msg("failed to start metrics server")
		}
	}()
}
