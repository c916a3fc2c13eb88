package health

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"coedit/socket"
)

// Handler reports relay liveness: session counts plus store connectivity.
type Handler struct {
	DB  *sql.DB
	Hub *socket.Hub
}

func NewHandler(db *sql.DB, hub *socket.Hub) *Handler {
	return &Handler{DB: db, Hub: hub}
}

type response struct {
	Status            string `json:"status"`
	Timestamp         string `json:"timestamp"`
	ActiveDocuments   int    `json:"activeDocuments"`
	TotalParticipants int    `json:"totalParticipants"`
	Database          string `json:"database"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	database := "connected"
	if err := h.DB.PingContext(r.Context()); err != nil {
		database = "disconnected"
	}

	stats := h.Hub.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response{
		Status:            "healthy",
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		ActiveDocuments:   stats.ActiveDocuments,
		TotalParticipants: stats.TotalParticipants,
		Database:          database,
	})
}
