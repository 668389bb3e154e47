// Package api serves the HTTP surface: room and map lookups, the invite
// page, the websocket upgrade endpoint, and health.
package api

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ninelife/gameserver/game/mapdata"
	"github.com/ninelife/gameserver/game/session"
	"github.com/ninelife/gameserver/transport/websocket"
)

//go:embed invite.html
var inviteHTML string

// Server is the HTTP server for the game.
type Server struct {
	registry *session.Manager
	maps     *mapdata.Manager
	ws       *websocket.Handler
	router   *mux.Router
	log      zerolog.Logger
}

// NewServer creates the HTTP server and wires its routes.
func NewServer(registry *session.Manager, maps *mapdata.Manager, ws *websocket.Handler, log zerolog.Logger) *Server {
	s := &Server{
		registry: registry,
		maps:     maps,
		ws:       ws,
		router:   mux.NewRouter(),
		log:      log.With().Str("component", "api").Logger(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods("GET")
	api.HandleFunc("/maps", s.handleListMaps).Methods("GET")
	api.HandleFunc("/maps/{id}", s.handleGetMap).Methods("GET")

	// Invite landing page for shared room links.
	s.router.HandleFunc("/room/{id}", s.handleInvitePage).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.ws.ServeWS)

	// Static files for the game client
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir("./static/")))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// respondJSON writes a JSON response with the provided status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error JSON payload.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"rooms":  s.registry.Count(),
	})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	room, err := s.registry.Get(vars["id"])
	if err != nil {
		if errors.Is(err, session.ErrRoomNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, room.Info())
}

func (s *Server) handleListMaps(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.maps.List())
}

func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	md, err := s.maps.Load(vars["id"])
	if err != nil {
		if errors.Is(err, mapdata.ErrMapNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, md)
}

// handleInvitePage renders a small landing page for a shared room link. The
// page is served even while the room fills up; joining happens over the
// websocket from the client.
func (s *Server) handleInvitePage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	roomID := strings.ToUpper(vars["id"])

	if _, err := s.registry.Get(roomID); err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, strings.ReplaceAll(inviteHTML, "{{ROOM_ID}}", roomID))
}
