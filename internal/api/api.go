// Package api exposes the pipeline over HTTP: one endpoint to ask a
// question, one to check service health.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/adityatiwari12/chat-with-sql/internal/errors"
	"github.com/adityatiwari12/chat-with-sql/internal/logging"
	"github.com/adityatiwari12/chat-with-sql/internal/pipeline"
)

// Asker answers one question
type Asker interface {
	Process(ctx context.Context, question string) (pipeline.Outcome, error)
}

// ModelLister reports which models the inference service has available
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// DocCounter reports how many tables are indexed
type DocCounter interface {
	Len() int
}

// Pinger verifies the database is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the handlers' dependencies
type Server struct {
	asker  Asker
	models ModelLister
	docs   DocCounter
	db     Pinger
}

// NewServer creates the HTTP server facade. models, docs, and db may be nil
// when a deployment does not want that health check.
func NewServer(asker Asker, models ModelLister, docs DocCounter, db Pinger) *Server {
	return &Server{asker: asker, models: models, docs: docs, db: db}
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Post("/ask", s.handleAsk)
	r.Get("/healthz", s.handleHealth)

	return r
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	pipeline.Outcome

	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})

		return
	}

	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})

		return
	}

	outcome, err := s.asker.Process(r.Context(), req.Question)

	resp := askResponse{Outcome: outcome}
	if err != nil {
		resp.Error = err.Error()
		resp.ErrorType = string(errors.GetType(err))

		logging.WithFields(map[string]interface{}{
			"request_id": middleware.GetReqID(r.Context()),
			"error_type": resp.ErrorType,
		}).Warn("ask request failed")

		writeJSON(w, statusForError(err), resp)

		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// statusForError maps pipeline failure kinds onto HTTP statuses. A rejected
// candidate is the service working as intended, so validation failures are
// client-visible 422s rather than 5xx.
func statusForError(err error) int {
	switch errors.GetType(err) {
	case errors.ErrTypeValidation:
		return http.StatusUnprocessableEntity
	case errors.ErrTypeRetrieval, errors.ErrTypeGeneration, errors.ErrTypeCorrection:
		return http.StatusBadGateway
	case errors.ErrTypeExecution, errors.ErrTypeDatabase:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type healthResponse struct {
	Status        string   `json:"status"`
	Models        []string `json:"models,omitempty"`
	IndexedTables int      `json:"indexed_tables"`
	Problems      []string `json:"problems,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}

	if s.models != nil {
		models, err := s.models.ListModels(r.Context())
		if err != nil {
			resp.Problems = append(resp.Problems, "ollama unreachable: "+err.Error())
		} else {
			resp.Models = models
		}
	}

	if s.docs != nil {
		resp.IndexedTables = s.docs.Len()
		if resp.IndexedTables == 0 {
			resp.Problems = append(resp.Problems, "no tables indexed")
		}
	}

	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			resp.Problems = append(resp.Problems, "database unreachable: "+err.Error())
		}
	}

	status := http.StatusOK
	if len(resp.Problems) > 0 {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Errorf("failed to write response: %v", err)
	}
}
