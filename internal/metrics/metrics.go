package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pairchat_ws_connections_active",
		Help: "Currently open websocket connections.",
	})
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_messages_sent_total",
		Help: "Messages accepted by the delivery coordinator.",
	})
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_ws_events_dropped_total",
		Help: "Outbound events dropped because a client send buffer was full.",
	})
	SweeperEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_presence_evictions_total",
		Help: "Stale sessions evicted by the presence sweeper.",
	})
	MediaDedupHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_media_dedup_hits_total",
		Help: "Uploads resolved to an existing object by content hash.",
	})
)

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
