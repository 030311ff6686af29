// Package httpapi assembles the HTTP surface of the relay: the room entry
// endpoint, the health check, the websocket upgrade path, and the static
// client assets.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kotobachat/kotoba/internal/auth"
	"github.com/kotobachat/kotoba/internal/logging"
)

// Options configures the router.
type Options struct {
	// RoomPassword gates room entry. Empty means the room is open and the
	// auth endpoint issues tickets unconditionally.
	RoomPassword string
	// TicketSecret signs issued entry tickets.
	TicketSecret []byte
	// TicketTTL bounds how long an issued ticket stays valid.
	TicketTTL time.Duration
	// StaticDir holds the client assets; empty disables static serving.
	StaticDir string
}

type authRequest struct {
	Password string `json:"password"`
}

type authResponse struct {
	OK     bool   `json:"ok"`
	Ticket string `json:"ticket,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRouter wires all routes. wsHandler serves the websocket endpoint.
func NewRouter(opts Options, wsHandler http.Handler, logger logging.Logger) *mux.Router {
	logger = logger.With("module", "httpapi")

	r := mux.NewRouter()
	r.HandleFunc("/api/room/auth", handleRoomAuth(opts, logger)).Methods("POST")
	r.HandleFunc("/api/health", handleHealth).Methods("GET")
	r.Handle("/ws", wsHandler).Methods("GET")
	if opts.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(opts.StaticDir)))
	}
	return r
}

// handleRoomAuth exchanges the room password for a signed entry ticket.
func handleRoomAuth(opts Options, logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, authResponse{OK: false})
			return
		}

		if opts.RoomPassword != "" && req.Password != opts.RoomPassword {
			logger.Warn(r.Context(), "room auth rejected")
			writeJSON(w, http.StatusUnauthorized, authResponse{OK: false})
			return
		}

		ticket, err := auth.IssueTicket(opts.TicketSecret, opts.TicketTTL)
		if err != nil {
			logger.Error(r.Context(), "ticket issue failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, authResponse{OK: false})
			return
		}
		writeJSON(w, http.StatusOK, authResponse{OK: true, Ticket: ticket})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "UP", Timestamp: time.Now()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
