// Package server exposes the pipeline over HTTP for dashboard and webhook
// integrations. Pipeline submission is fire-and-forget: the handler returns
// as soon as the run is accepted onto the substrate.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/push"
	"github.com/sells-group/outreach-cli/internal/stage"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/internal/substrate"
)

// Server handles the HTTP API.
type Server struct {
	store  store.Store
	sub    substrate.Client
	pusher *push.Pusher
}

// New creates a Server.
func New(st store.Store, sub substrate.Client, pusher *push.Pusher) *Server {
	return &Server{store: st, sub: sub, pusher: pusher}
}

// Router builds the chi router with CORS for the given origins.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", s.handleListClients)
			r.Post("/", s.handleCreateClient)
			r.Get("/{clientID}", s.handleGetClient)
			r.Post("/{clientID}/profile", s.handleProfileClient)
		})
		r.Route("/leads", func(r chi.Router) {
			r.Get("/", s.handleListLeads)
			r.Post("/", s.handleCreateLead)
			r.Get("/{leadID}", s.handleGetLead)
			r.Get("/{leadID}/assets", s.handleListAssets)
			r.Post("/{leadID}/run", s.handleRunLead)
			r.Post("/{leadID}/push", s.handlePushLead)
		})
	})

	return r
}

// requestLogger logs each request on completion with its chi request ID.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.store.ListClients(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var c model.Client
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if c.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}
	if err := s.store.CreateClient(r.Context(), &c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetClient(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleProfileClient(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	if _, err := s.store.GetClient(r.Context(), clientID); err != nil {
		writeError(w, err)
		return
	}

	handle, err := s.sub.Invoke(r.Context(), stage.ClientProfile, stage.ClientPayload{ClientID: clientID})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":    "accepted",
		"client_id": clientID,
		"handle":    handle.ID,
	})
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.LeadFilter{ClientID: q.Get("client_id")}

	if v := q.Get("stage"); v != "" {
		m := model.StageMarker(v)
		if !m.Valid() {
			writeBadRequest(w, "unknown stage marker")
			return
		}
		filter.Marker = m
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	leads, err := s.store.ListLeads(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID        string `json:"client_id"`
		ProfileRef      string `json:"profile_ref"`
		Run             bool   `json:"run"`
		WantEmails      *bool  `json:"want_emails"`
		WantLandingPage *bool  `json:"want_landing_page"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ClientID == "" || req.ProfileRef == "" {
		writeBadRequest(w, "client_id and profile_ref are required")
		return
	}

	// Both asset families are generated unless the caller opts out.
	lead := &model.Lead{
		ClientID:        req.ClientID,
		ProfileRef:      req.ProfileRef,
		WantEmails:      req.WantEmails == nil || *req.WantEmails,
		WantLandingPage: req.WantLandingPage == nil || *req.WantLandingPage,
	}
	if err := s.store.CreateLead(r.Context(), lead); err != nil {
		writeError(w, err)
		return
	}

	if req.Run {
		if _, err := s.sub.Invoke(r.Context(), stage.Pipeline, stage.Payload{LeadID: lead.ID}); err != nil {
			zap.L().Error("failed to submit pipeline run",
				zap.String("lead_id", lead.ID),
				zap.Error(err))
		}
	}

	writeJSON(w, http.StatusCreated, lead)
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.store.GetLead(r.Context(), chi.URLParam(r, "leadID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	if _, err := s.store.GetLead(r.Context(), leadID); err != nil {
		writeError(w, err)
		return
	}
	assets, err := s.store.ListAssets(r.Context(), leadID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (s *Server) handleRunLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	if _, err := s.store.GetLead(r.Context(), leadID); err != nil {
		writeError(w, err)
		return
	}

	handle, err := s.sub.Invoke(r.Context(), stage.Pipeline, stage.Payload{LeadID: leadID})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"lead_id": leadID,
		"handle":  handle.ID,
	})
}

func (s *Server) handlePushLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ListID string `json:"list_id"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid request body")
			return
		}
	}

	result, err := s.pusher.PushLead(r.Context(), chi.URLParam(r, "leadID"), req.ListID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, store.ErrStageConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
