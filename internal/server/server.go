// Package server exposes the HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"paperdesk/internal/app"
	"paperdesk/internal/util"
	"paperdesk/pkg/domain"
)

const defaultMaxUploadBytes = 32 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	MaxUploadBytes int64
}

// Server exposes HTTP endpoints for the research assistant.
type Server struct {
	app            *app.App
	maxUploadBytes int64
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:            cfg.App,
		maxUploadBytes: cfg.MaxUploadBytes,
		mux:            http.NewServeMux(),
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = defaultMaxUploadBytes
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/users", s.handleRegister)
	s.mux.Handle("/users/me", s.withUser(s.handleMe))
	s.mux.Handle("/users/me/stats", s.withUser(s.handleStats))
	s.mux.Handle("/pdfs", s.withUser(s.handlePDFs))
	s.mux.Handle("/pdfs/", s.withUser(s.handlePDFByID))
	s.mux.Handle("/chat", s.withUser(s.handleChat))
	s.mux.Handle("/chat/history", s.withUser(s.handleHistory))
	s.mux.Handle("/related-papers", s.withUser(s.handleRelatedPapers))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		externalID := strings.TrimSpace(r.Header.Get("X-User-Id"))
		if externalID == "" {
			writeError(w, http.StatusUnauthorized, "X-User-Id header required")
			return
		}
		user, err := s.app.LookupUser(r.Context(), externalID)
		if err != nil {
			if errors.Is(err, app.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unknown user")
				return
			}
			writeError(w, http.StatusInternalServerError, "lookup user failed")
			return
		}
		next(w, r, user)
	})
}

type registerRequest struct {
	ExternalID        string   `json:"externalId"`
	Email             string   `json:"email"`
	Name              string   `json:"name"`
	Username          string   `json:"username"`
	Organization      string   `json:"organization"`
	ResearchInterests []string `json:"researchInterests"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.app.Register(r.Context(), app.RegisterInput{
		ExternalID:        req.ExternalID,
		Email:             req.Email,
		Name:              req.Name,
		Username:          req.Username,
		Organization:      req.Organization,
		ResearchInterests: req.ResearchInterests,
	})
	if err != nil {
		if errors.Is(err, app.ErrDuplicateIdentity) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if err := s.app.DeleteAccount(r.Context(), user); err != nil {
			writeError(w, http.StatusInternalServerError, "delete account failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.Stats(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePDFs(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r, user)
	case http.MethodGet:
		pdfs, err := s.app.ListPDFs(r.Context(), user)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list failed")
			return
		}
		writeJSON(w, http.StatusOK, pdfs)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, user domain.User) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	pdf, err := s.app.UploadPDF(r.Context(), user, header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnsupportedFile):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrNoExtractableText):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "upload failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, pdf)
}

func (s *Server) handlePDFByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/pdfs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err := s.app.DeletePDF(r.Context(), user, id); err != nil {
		if errors.Is(err, app.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type chatRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ans, err := s.app.Ask(r.Context(), user, req.Question)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrEmptyQuestion):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrNoDocuments):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "chat failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		msgs, err := s.app.History(r.Context(), user)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "history failed")
			return
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 && n < len(msgs) {
				msgs = msgs[len(msgs)-n:]
			}
		}
		writeJSON(w, http.StatusOK, msgs)
	case http.MethodDelete:
		if err := s.app.ClearHistory(r.Context(), user); err != nil {
			writeError(w, http.StatusInternalServerError, "clear failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleRelatedPapers(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	related, err := s.app.RelatedWork(r.Context(), user)
	if err != nil {
		if errors.Is(err, app.ErrNoDocuments) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "related papers failed")
		return
	}
	writeJSON(w, http.StatusOK, related)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
