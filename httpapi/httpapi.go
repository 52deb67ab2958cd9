// Package httpapi exposes the swatch engine over HTTP: page markup ingest
// and rendering, switch/navigate/reset per block, lifecycle event triggers,
// and the recorded analytics events.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/swatchsync/analytics"
	"github.com/hazyhaar/swatchsync/engine"
	"github.com/hazyhaar/swatchsync/reinit"
	"github.com/hazyhaar/swatchsync/swatchdata"
)

// Server wires the engine and coordinator into a chi router.
type Server struct {
	engine      *engine.Engine
	coordinator *reinit.Coordinator
	events      *analytics.Store // optional
	logger      *slog.Logger
}

// New creates a Server. The analytics store may be nil; the events endpoint
// then reports an empty list.
func New(eng *engine.Engine, coord *reinit.Coordinator, events *analytics.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: eng, coordinator: coord, events: events, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealthz)
	r.Get("/page", s.handleGetPage)
	r.Put("/page", s.handlePutPage)
	r.Get("/blocks", s.handleListBlocks)
	r.Post("/blocks/{blockID}/switch", s.handleSwitch)
	r.Post("/blocks/{blockID}/navigate", s.handleNavigate)
	r.Post("/blocks/{blockID}/reset", s.handleReset)
	r.Post("/lifecycle/{event}", s.handleLifecycle)
	r.Get("/events", s.handleEvents)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s.engine.Render()))
}

// handlePutPage replaces the page markup and fires a section-load lifecycle
// event so the coordinator re-initializes what the new markup contains.
func (s *Server) handlePutPage(w http.ResponseWriter, r *http.Request) {
	buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.engine.LoadMarkup(string(buf)); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.coordinator != nil {
		s.coordinator.NotifyLifecycle("shopify:section:load")
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "loaded"})
}

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.States())
}

func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	blockID := chi.URLParam(r, "blockID")

	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.engine.Switch(r.Context(), blockID, req.Index); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "committed", "block_id": blockID, "index": req.Index,
	})
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	blockID := chi.URLParam(r, "blockID")

	var req struct {
		Direction string `json:"direction,omitempty"`
		Index     *int   `json:"index,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var err error
	switch {
	case req.Index != nil:
		err = s.engine.GoToSlide(blockID, *req.Index)
	case req.Direction != "":
		err = s.engine.Navigate(blockID, req.Direction)
	default:
		s.writeError(w, http.StatusBadRequest,
			errors.New("direction or index required"))
		return
	}
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	blockID := chi.URLParam(r, "blockID")
	if err := s.engine.ResetAllImages(blockID); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "block_id": blockID})
}

// handleLifecycle lets the host page framework deliver its named events
// (e.g. shopify:section:load) to the coordinator.
func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "event")
	if s.coordinator != nil {
		s.coordinator.NotifyLifecycle(name)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "event": name})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusOK, []analytics.Event{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.events.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if events == nil {
		events = []analytics.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	var dataErr *swatchdata.DataError
	switch {
	case errors.Is(err, engine.ErrUnknownBlock):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, engine.ErrIndexRange), errors.As(err, &dataErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.logger.Error("httpapi: request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
