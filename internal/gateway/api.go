// ABOUTME: HTTP API handlers exposing the gateway to the host application
// ABOUTME: Provides init, request proxying, roster, SSE signal stream, and health endpoints

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/2389/lcu-gateway/internal/notify"
)

// maxRequestBody caps the body accepted on PUT/POST /api/lcu/.
const maxRequestBody = 4 << 20

// StatusResponse is the JSON response for POST /api/init.
type StatusResponse struct {
	Status  string `json:"status"`
	Channel string `json:"channel"`
}

// LobbyResponse is the JSON response for GET /api/lobby.
type LobbyResponse struct {
	Members []string `json:"members"`
}

func (g *Gateway) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /health/ready", g.handleReady)

	mux.HandleFunc("POST /api/init", g.handleInit)
	mux.HandleFunc("GET /api/help", g.handleHelp)
	mux.HandleFunc("GET /api/lobby", g.handleLobby)
	mux.HandleFunc("GET /api/events", g.handleEvents)
	mux.HandleFunc("GET /api/lcu/{path...}", g.handleRequest)
	mux.HandleFunc("PUT /api/lcu/{path...}", g.handleRequest)
	mux.HandleFunc("POST /api/lcu/{path...}", g.handleRequest)
}

// Handler returns the host API handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// handleInit handles POST /api/init.
func (g *Gateway) handleInit(w http.ResponseWriter, r *http.Request) {
	if err := g.Initialize(r.Context()); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ErrClosed) {
			status = http.StatusServiceUnavailable
		}
		g.logger.Warn("initialize failed", "error", err)
		g.sendJSONError(w, status, err.Error())
		return
	}
	g.writeJSON(w, http.StatusOK, StatusResponse{
		Status:  g.Status().String(),
		Channel: g.ChannelState().String(),
	})
}

// handleRequest handles GET|PUT|POST /api/lcu/{path...} by forwarding the
// call to the control plane. Failures become a 502 with the error message.
func (g *Gateway) handleRequest(w http.ResponseWriter, r *http.Request) {
	path := "/" + r.PathValue("path")
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	var body any
	if r.Method != http.MethodGet {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "reading request body")
			return
		}
		if len(strings.TrimSpace(string(raw))) > 0 {
			if !json.Valid(raw) {
				g.sendJSONError(w, http.StatusBadRequest, "request body is not valid JSON")
				return
			}
			body = json.RawMessage(raw)
		}
	}

	result, err := g.Request(r.Context(), r.Method, path, body)
	if err != nil {
		g.logger.Debug("request failed", "method", r.Method, "path", path, "error", err)
		g.sendJSONError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result)
}

// handleHelp handles GET /api/help. The body is JSON null when the listing
// is unavailable.
func (g *Gateway) handleHelp(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(g.Help(r.Context()))
}

// handleLobby handles GET /api/lobby.
func (g *Gateway) handleLobby(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, LobbyResponse{Members: g.Roster()})
}

// handleEvents handles GET /api/events, streaming every notifier signal as a
// server-sent event. The current roster is sent first.
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	signals := g.Signals(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	g.writeSSEEvent(w, notify.SignalLobby, g.Roster())
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			g.writeSSEEvent(w, sig.Name, sig.Payload)
			flusher.Flush()
		}
	}
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the gateway has been initialized.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	status := g.Status()
	if status != Running {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "not ready (%s)", status)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (channel %s)", g.ChannelState())
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	_, _ = fmt.Fprintf(w, "event: %s\n", event)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, map[string]string{"error": message})
}
