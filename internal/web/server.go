// Package web exposes generation sessions over a JSON API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"captoro/internal/caption"
	"captoro/internal/locale"
	"captoro/internal/media"
	"captoro/internal/session"
)

const (
	maxUploadBytes = 25 << 20
	maxJSONBytes   = 1 << 20

	LanguageCookie = "captoro_lang"
)

type Options struct {
	Sessions       *session.Registry
	Logger         *slog.Logger
	RequestTimeout time.Duration
}

type Server struct {
	sessions       *session.Registry
	logger         *slog.Logger
	requestTimeout time.Duration
}

type apiError struct {
	Error string `json:"error"`
}

type sessionResponse struct {
	ID    string        `json:"id"`
	State session.State `json:"state"`
}

type copyResponse struct {
	Text  string        `json:"text"`
	State session.State `json:"state"`
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewRegistry(nil)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &Server{sessions: sessions, logger: logger, requestTimeout: timeout}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		withLogging(s.logger),
	)

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/options", s.handleOptions)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.withSession(s.handleState))
			r.Delete("/", s.handleDelete)

			r.Put("/settings", s.withSession(s.handleSettings))
			r.Put("/idea", s.withSession(s.handleIdea))
			r.Put("/language", s.withSession(s.handleLanguage))
			r.Put("/profile", s.withSession(s.handleProfile))

			r.Post("/image", s.withSession(s.handleUpload))
			r.Delete("/image", s.withSession(s.handleRemoveImage))

			r.Post("/generate", s.withSession(s.handleGenerate))
			r.Post("/enhance", s.withSession(s.handleEnhance))

			r.Post("/next", s.withSession(s.handleNext))
			r.Post("/prev", s.withSession(s.handlePrev))
			r.Post("/select/{index}", s.withSession(s.handleSelect))

			r.Post("/compare", s.withSession(s.handleBeginCompare))
			r.Delete("/compare", s.withSession(s.handleEndCompare))

			r.Post("/copy", s.withSession(s.handleCopy))
		})
	})

	return r
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, id string, ctrl *session.Controller)

func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := uuid.Parse(id); err != nil {
			writeJSON(w, http.StatusNotFound, apiError{Error: "session not found"})
			return
		}
		ctrl, ok := s.sessions.Get(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, apiError{Error: "session not found"})
			return
		}
		next(w, r, id, ctrl)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	ctrl := s.sessions.Create(id)

	if err := ctrl.SetLanguage(requestLanguage(r)); err != nil {
		s.logger.Warn("apply request language failed", "session", id, "err", err)
	}

	s.logger.Info("session created", "session", id, "lang", ctrl.Language())
	writeJSON(w, http.StatusCreated, sessionResponse{ID: id, State: ctrl.Snapshot()})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request, id string, ctrl *session.Controller) {
	writeState(w, http.StatusOK, id, ctrl)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request, id string, ctrl *session.Controller) {
	var settings caption.Settings
	if !decodeJSON(w, r, &settings) {
		return
	}
	if err := ctrl.SetSettings(settings); err != nil {
		s.writeError(w, id, err)
		return
	}
	writeState(w, http.StatusOK, id, ctrl)
}

func (s *Server) handleIdea(w http.ResponseWriter, r *http.Request, id string, ctrl *session.Controller) {
	var body struct {
		Idea string `json:"idea"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	ctrl.SetIdea(body.Idea)
	writeState(w, http.StatusOK, id, ctrl)
}

func (s *Server) handleLanguage(w http.ResponseWriter, r *http.Request, id string, ctrl *session.Controller) {
	var body struct {
		Language string `json:"language"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	lang, ok := locale.Lookup(body.Language)
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "unsupported language"})
		return
	}
	if err := ctrl.SetLanguage(lang); err != nil {
		s.writeError(w, id, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     LanguageCookie,
		Value:    lang,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeState(w, http.StatusOK, id, ctrl)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, id string, ctrl *session.Controller) {
	var body struct {
		ProfileName string `json:"profileName"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := ctrl.SetProfileName(body.ProfileName); err != nil {
		s.writeError(w, id, err)
		return
	}
	writeState(w, http.StatusOK, id, ctrl)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, id string, ctrl *session.Controller) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "missing image"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "failed to read image"})
		return
	}

	dataURI, err := media.FromUpload(header.Header.Get("Content-Type"), data)
	if err != nil {
		s.writeError(w, id, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	s.logger.Info("image uploaded", "session", id, "bytes", len(data))
	if err := ctrl.Upload(ctx, dataURI); err != nil {
		s.writeError(w, id, err)
		return
	}
	writeState(w, http.StatusOK, id, ctrl)
}

func (s *Server) handleRemoveImage(w http.ResponseWriter, _ *http.Request, id string, ctrl *session.Controller) {
	ctrl.RemoveImage()
	writeState(w, http.StatusOK, id, ctrl)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, id string, ctrl *session.Controller) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	if err := ctrl.Generate(ctx); err != nil {
		s.writeError(w, id, err)
		return
	}
	writeState(w, http.StatusOK, id, ctrl)
}

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request, id string, ctrl *session.Controller) {
	var body struct {
		Instruction string `json:"instruction"`
		Suggestion  *int   `json:"suggestion"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	var err error
	if body.Suggestion != nil {
		err = ctrl.ApplySuggestion(ctx, *body.Suggestion)
	} else {
		err = ctrl.Enhance(ctx, body.Instruction)
	}
	if err != nil {
		s.writeError(w, id, err)
		return
	}
	writeState(w, http.StatusOK, id, ctrl)
}

func (s *Server) handleNext(w http.ResponseWriter, _ *http.Request, id string, ctrl *session.Controller) {
	ctrl.Next()
	writeState(w, http.StatusOK, id, ctrl)
}

func (s *Server) handlePrev(w http.ResponseWriter, _ *http.Request, id string, ctrl *session.Controller) {
	ctrl.Prev()
	writeState(w, http.StatusOK, id, ctrl)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, id string, ctrl *session.Controller) {
	idx, ok := parseIndex(chi.URLParam(r, "index"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid index"})
		return
	}
	ctrl.Select(idx)
	writeState(w, http.StatusOK, id, ctrl)
}

func (s *Server) handleBeginCompare(w http.ResponseWriter, _ *http.Request, id string, ctrl *session.Controller) {
	ctrl.BeginCompare()
	writeState(w, http.StatusOK, id, ctrl)
}

func (s *Server) handleEndCompare(w http.ResponseWriter, _ *http.Request, id string, ctrl *session.Controller) {
	ctrl.EndCompare()
	writeState(w, http.StatusOK, id, ctrl)
}

func (s *Server) handleCopy(w http.ResponseWriter, _ *http.Request, id string, ctrl *session.Controller) {
	text, ok := ctrl.Copy()
	if !ok {
		s.writeError(w, id, session.ErrNoCaption)
		return
	}
	writeJSON(w, http.StatusOK, copyResponse{Text: text, State: ctrl.Snapshot()})
}

// writeError maps session errors to HTTP statuses. Engine failures are
// already shown as a notification, so they answer 200 with the state.
func (s *Server) writeError(w http.ResponseWriter, id string, err error) {
	status := statusFor(err)
	if status == http.StatusOK {
		if ctrl, ok := s.sessions.Get(id); ok {
			writeState(w, http.StatusOK, id, ctrl)
			return
		}
		status = http.StatusNotFound
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "session", id, "err", err)
	}
	writeJSON(w, status, apiError{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrEngine), errors.Is(err, session.ErrNoEnhancement):
		return http.StatusOK
	case errors.Is(err, session.ErrNotReady):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrGenerationInProgress),
		errors.Is(err, session.ErrEnhancementInProgress),
		errors.Is(err, session.ErrNoImage),
		errors.Is(err, session.ErrNoCaption),
		errors.Is(err, session.ErrStaleResult):
		return http.StatusConflict
	case errors.Is(err, caption.ErrInvalidSettings),
		errors.Is(err, session.ErrEmptyInstruction),
		errors.Is(err, session.ErrNoSuggestion),
		errors.Is(err, media.ErrEmptyDataURI),
		errors.Is(err, media.ErrInvalidDataURI),
		errors.Is(err, media.ErrNotImage):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoEngine):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeState(w http.ResponseWriter, status int, id string, ctrl *session.Controller) {
	writeJSON(w, status, sessionResponse{ID: id, State: ctrl.Snapshot()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid json body"})
		return false
	}
	return true
}

func withLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"request_id", middleware.GetReqID(r.Context()),
				"dur_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
