package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_active",
		Help: "The current number of active WebSocket connections.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_connections_total",
		Help: "The total number of WebSocket connections accepted.",
	})
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_messages_received_total",
		Help: "The total number of messages received from clients.",
	})
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_messages_sent_total",
		Help: "The total number of messages sent to clients.",
	})

	// Collaboration metrics
	ActiveDocuments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_documents_active",
		Help: "The current number of documents with a live session.",
	})
	DocumentSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_document_saves_total",
		Help: "The total number of document persistence attempts.",
	}, []string{"result"})
)
