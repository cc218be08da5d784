// Package server implements the Leadflow demo backend: the bootstrap snapshot
// endpoint, the user-initiated mutation endpoints, and the per-project
// WebSocket event stream. All state lives in Redis through the pipeline
// client; the server itself is stateless, so replicas sharing one Redis
// broadcast consistently.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dyluth/leadflow/pkg/pipeline"
)

// Server serves the Leadflow demo HTTP API and event stream.
type Server struct {
	client   *pipeline.Client
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

// New creates a server over a pipeline client and registers all routes.
func New(client *pipeline.Client) *Server {
	s := &Server{
		client: client,
		mux:    http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// The demo board is served from arbitrary origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/demo/bootstrap", s.handleBootstrap)
	s.mux.HandleFunc("GET /api/projects/{projectID}/users", s.handleUsers)
	s.mux.HandleFunc("POST /api/projects/{projectID}/leads/{leadID}/advance", s.handleAdvance)
	s.mux.HandleFunc("POST /api/projects/{projectID}/leads/{leadID}/assign", s.handleAssign)
	s.mux.HandleFunc("POST /api/projects/{projectID}/advance-random", s.handleAdvanceRandom)
	s.mux.HandleFunc("GET /ws/projects/{projectID}", s.handleStream)

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.client.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "redis unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleBootstrap serves the one-time snapshot for the instance's default
// project: project id, ordered steps, and the full lead set.
func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	projectID, err := s.client.DefaultProjectID(ctx)
	if err != nil {
		if pipeline.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "no demo project seeded")
			return
		}
		s.serverError(w, "bootstrap", err)
		return
	}

	snapshot, err := s.client.Snapshot(ctx, projectID)
	if err != nil {
		s.serverError(w, "bootstrap", err)
		return
	}

	s.logEvent("bootstrap_served", map[string]interface{}{
		"project_id": projectID,
		"leads":      len(snapshot.Leads),
	})

	// Users travel on their own endpoint, keyed by the project id served here
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"project_id": snapshot.ProjectID,
		"steps":      snapshot.Steps,
		"leads":      snapshot.Leads,
	})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.client.ListUsers(r.Context(), r.PathValue("projectID"))
	if err != nil {
		s.serverError(w, "users", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// handleAdvance moves a lead to the requested step, or to the next step in
// sequence when the body names no target.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		To string `json:"to"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := s.client.AdvanceLead(r.Context(), r.PathValue("projectID"), r.PathValue("leadID"), body.To)
	if err != nil {
		s.mutationError(w, "advance", err)
		return
	}

	s.logEvent("lead_advanced", map[string]interface{}{
		"project_id": r.PathValue("projectID"),
		"lead_id":    event.LeadID(),
	})

	writeEvent(w, event)
}

// handleAssign assigns a lead to a user; a null or absent to_user unassigns.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ToUser *string `json:"to_user"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	toUser := ""
	if body.ToUser != nil {
		toUser = *body.ToUser
	}

	event, err := s.client.AssignLead(r.Context(), r.PathValue("projectID"), r.PathValue("leadID"), toUser)
	if err != nil {
		s.mutationError(w, "assign", err)
		return
	}

	writeEvent(w, event)
}

// handleAdvanceRandom is the demo stimulus endpoint: advance one random lead
// that has not yet reached the final step.
func (s *Server) handleAdvanceRandom(w http.ResponseWriter, r *http.Request) {
	event, err := s.client.AdvanceRandomLead(r.Context(), r.PathValue("projectID"))
	if err != nil {
		s.mutationError(w, "advance-random", err)
		return
	}

	if event == nil {
		// Everything already closed; nothing to advance
		writeJSON(w, http.StatusOK, map[string]string{"status": "idle"})
		return
	}

	writeEvent(w, event)
}

// handleStream upgrades to WebSocket and relays the project's lead events,
// one JSON object per message, until the client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectID")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subscription, err := s.client.SubscribeLeadEvents(ctx, projectID)
	if err != nil {
		log.Printf("[server] failed to subscribe to lead events: %v", err)
		return
	}
	defer subscription.Close()

	s.logEvent("stream_attached", map[string]interface{}{"project_id": projectID})

	// Drain client frames so we notice the disconnect; inbound data is ignored
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-subscription.Events():
			if !ok {
				return
			}
			data, err := pipeline.EncodeEvent(event)
			if err != nil {
				log.Printf("[server] failed to encode lead event: %v", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case err, ok := <-subscription.Errors():
			if !ok {
				return
			}
			// Malformed publishes are dropped, the stream stays up
			log.Printf("[server] lead event subscription error: %v", err)
		}
	}
}

// mutationError maps pipeline errors onto HTTP statuses: unknown entities are
// the caller's fault, everything else is ours.
func (s *Server) mutationError(w http.ResponseWriter, op string, err error) {
	if pipeline.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "unknown project or lead")
		return
	}
	s.serverError(w, op, err)
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	log.Printf("[server] %s failed: %v", op, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// logEvent logs a structured event in JSON format.
func (s *Server) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "server"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[server] failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}

func decodeBody(r *http.Request, out interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeEvent(w http.ResponseWriter, event pipeline.Event) {
	data, err := pipeline.EncodeEvent(event)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[server] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
