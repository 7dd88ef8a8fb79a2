package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_gateway_connections_online",
		Help: "Number of live WebSocket connections registered on this gateway.",
	})

	DeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_gateway_delivered_total",
		Help: "Envelopes pushed successfully to a live connection.",
	})

	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_gateway_delivery_failures_total",
		Help: "Envelope pushes that failed and evicted the target connection.",
	})

	StoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_gateway_messages_stored_total",
		Help: "Message records appended to the durable store.",
	})

	StoreFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_gateway_store_failures_total",
		Help: "Durable append attempts that failed (best effort, logged).",
	})
)

// Handler exposes the prometheus registry for gin.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
