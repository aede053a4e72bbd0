package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
)

// Result messages returned on success.
const (
	ResultUpdated = "successfully updated"
	ResultDeleted = "successfully deleted"
)

// Response is the body returned by update and delete, and by every
// operation that fails with a store error.
type Response struct {
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     string `json:"_id,omitempty"`
}

// Server provides the REST API handlers.
type Server struct {
	store store.Store
	log   zerolog.Logger

	// AllowOrigin is sent as Access-Control-Allow-Origin.
	AllowOrigin string
}

// NewServer creates a new API server backed by s.
func NewServer(s store.Store, l zerolog.Logger) *Server {
	return &Server{
		store:       s,
		log:         l,
		AllowOrigin: "*",
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.health)

	mux.HandleFunc("GET /api/issues/{project}", s.listIssues)
	mux.HandleFunc("POST /api/issues/{project}", s.createIssue)
	mux.HandleFunc("PUT /api/issues/{project}", s.updateIssue)
	mux.HandleFunc("DELETE /api/issues/{project}", s.deleteIssue)

	return requestLogger(s.log, recoverer(s.log, s.corsMiddleware(mux)))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.AllowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Error: msg})
}

// writeStoreError answers expected store errors with 200 and a JSON error body.
// Anything else is an infrastructure failure.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var ie *store.IssueError
	switch {
	case errors.As(err, &ie):
		writeJSON(w, http.StatusOK, Response{Error: ie.Error(), ID: ie.ID})
	case errors.Is(err, store.ErrValidation), errors.Is(err, store.ErrMissingID):
		writeJSON(w, http.StatusOK, Response{Error: err.Error()})
	default:
		s.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("store failure")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Debug().Err(err).Str("project", r.PathValue("project")).Msg("request rejected")
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Issues ---

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")

	filter := store.Filter{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			filter[key] = values[0]
		}
	}

	issues, err := s.store.ListIssues(r.Context(), project, filter)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if issues == nil {
		issues = []*models.Issue{}
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	body := readBody(w, r)

	issue, err := s.store.CreateIssue(r.Context(), project, store.CreateInput{
		Title:      body[models.FieldTitle],
		Text:       body[models.FieldText],
		CreatedBy:  body[models.FieldCreatedBy],
		AssignedTo: body[models.FieldAssignedTo],
		StatusText: body[models.FieldStatusText],
	})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.log.Info().Str("project", project).Str("_id", issue.ID).Msg("issue created")
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	body := readBody(w, r)
	id := body[models.FieldID]

	if err := s.store.UpdateIssue(r.Context(), project, store.UpdateInput{ID: id, Fields: body}); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.log.Info().Str("project", project).Str("_id", id).Msg("issue updated")
	writeJSON(w, http.StatusOK, Response{Result: ResultUpdated, ID: id})
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	body := readBody(w, r)
	id := body[models.FieldID]

	if err := s.store.DeleteIssue(r.Context(), project, id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.log.Info().Str("project", project).Str("_id", id).Msg("issue deleted")
	writeJSON(w, http.StatusOK, Response{Result: ResultDeleted, ID: id})
}
