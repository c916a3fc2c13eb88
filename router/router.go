package router

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	docHandler "coedit/internal/document"
	"coedit/internal/document/repository"
	"coedit/internal/document/service"
	"coedit/internal/health"
	"coedit/middleware"
	"coedit/socket"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Setup(db *sql.DB, hub *socket.Hub) http.Handler {
	mux := http.NewServeMux()

	// WebSocket
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r)
	})

	// REST API
	docRepo := repository.NewDocumentRepository(db)
	docService := service.NewDocumentService(docRepo)
	docs := docHandler.NewDocumentHandler(docService)

	mux.HandleFunc("GET /documents", docs.ListDocuments)
	mux.HandleFunc("POST /documents", docs.CreateDocument)
	mux.HandleFunc("GET /documents/{id}", docs.GetDocument)
	mux.HandleFunc("PUT /documents/{id}", docs.UpdateDocument)

	// Operational surface
	mux.Handle("GET /health", health.NewHandler(db, hub))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /{$}", serverInfo)

	return middleware.CORSMiddleware(mux)
}

func serverInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message":   "Collaborative Document Editor Real-time Server",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
