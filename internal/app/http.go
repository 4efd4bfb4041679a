package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"sitecopy/api/internal/auth"
	"sitecopy/api/internal/authpw"
	"sitecopy/api/internal/content"
	"sitecopy/api/internal/editor"
	"sitecopy/api/internal/gitrepo"
	"sitecopy/api/internal/rbac"
	"sitecopy/api/internal/search"
	"sitecopy/api/internal/store"
	"sitecopy/api/internal/util"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	metrics    http.Handler
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	server := &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		validate:   validator.New(),
		logger:     service.logger,
	}
	if service.metrics != nil {
		server.metrics = service.metrics.Handler()
	}
	return server
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withMiddleware)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/api/ready", s.handleReady)
	r.Get("/api/content", s.handleContent)
	r.Get("/api/search", s.handleSearch)
	r.Post("/api/session/login", s.handleLogin)
	r.Get("/api/session", s.handleSessionStatus)
	if s.metrics != nil {
		r.Get("/metrics", s.metrics.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Post("/api/session/logout", s.handleLogout)
		r.With(s.authorize(rbac.ActionEdit)).Get("/api/editor", s.handleEditor)
		r.With(s.authorize(rbac.ActionEdit)).Post("/api/editor/fields", s.handleSetField)
		r.With(s.authorize(rbac.ActionEdit)).Put("/api/editor/arrays", s.handleReplaceArray)
		r.With(s.authorize(rbac.ActionEdit)).Put("/api/editor/lists", s.handleReplaceList)
		r.With(s.authorize(rbac.ActionSave)).Post("/api/editor/save", s.handleSave)
		r.With(s.authorize(rbac.ActionEdit)).Post("/api/editor/reload", s.handleReload)
		r.With(s.authorize(rbac.ActionHistory)).Get("/api/history", s.handleHistory)
		r.With(s.authorize(rbac.ActionHistory)).Get("/api/history/{hash}", s.handleHistoryAt)
	})
	return r
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for name, err := range s.service.Ready(ctx) {
		if err == nil {
			checks[name] = map[string]any{"status": "ok"}
			continue
		}
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks[name] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}
	checks["search"] = map[string]any{"status": "ok", "backend": searchBackend(s.service.search)}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func searchBackend(svc *search.Service) string {
	if svc.Healthy() {
		return "meilisearch"
	}
	return "scan"
}

func (s *HTTPServer) handleContent(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.Content(r.Context())
	if err != nil {
		s.logger.Error("load committed content", zap.String("request_id", requestIDFrom(r.Context())), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "CONTENT_UNAVAILABLE", "Site content is temporarily unavailable", nil)
		return
	}
	payload := map[string]any{"content": record.Document, "updatedAt": nil}
	if !record.UpdatedAt.IsZero() {
		payload["updatedAt"] = record.UpdatedAt
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	response := s.service.Search(search.Query{
		Text:    query.Get("q"),
		Section: query.Get("section"),
		Limit:   limit,
		Offset:  offset,
	})
	writeJSON(w, http.StatusOK, response)
}

type loginRequest struct {
	Password string `json:"password" validate:"required"`
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !s.decodeAndValidate(w, r, &body) {
		return
	}
	sess, snapshot, err := s.service.Login(r.Context(), body.Password)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":         sess.Token,
		"expiresAt":     sess.ExpiresAt,
		"authenticated": true,
		"editor":        snapshot,
	})
}

// handleSessionStatus never fails: an unusable token reads as logged out.
func (s *HTTPServer) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"authenticated": false,
		"state":         editor.StateUnauthenticated,
		"lastEditedAt":  nil,
	}
	if at := s.service.LastEdited(r.Context()); !at.IsZero() {
		payload["lastEditedAt"] = at
	}
	if token := bearerToken(r); token != "" {
		if sess, err := s.service.SessionFromToken(r.Context(), token); err == nil {
			payload["authenticated"] = true
			payload["expiresAt"] = sess.ExpiresAt
			if snapshot, err := s.service.Editor(r.Context(), sess); err == nil {
				payload["state"] = snapshot.State
				payload["dirty"] = snapshot.Dirty
			}
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Logout(r.Context(), sessionFrom(r.Context())); err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleEditor(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.service.Editor(r.Context(), sessionFrom(r.Context()))
	s.writeSnapshot(w, r, snapshot, err)
}

func (s *HTTPServer) handleSetField(w http.ResponseWriter, r *http.Request) {
	var body SetFieldInput
	if !s.decodeAndValidate(w, r, &body) {
		return
	}
	snapshot, err := s.service.SetField(r.Context(), sessionFrom(r.Context()), body)
	s.writeSnapshot(w, r, snapshot, err)
}

func (s *HTTPServer) handleReplaceArray(w http.ResponseWriter, r *http.Request) {
	var body ReplaceArrayInput
	if !s.decodeAndValidate(w, r, &body) {
		return
	}
	snapshot, err := s.service.ReplaceArray(r.Context(), sessionFrom(r.Context()), body)
	s.writeSnapshot(w, r, snapshot, err)
}

func (s *HTTPServer) handleReplaceList(w http.ResponseWriter, r *http.Request) {
	var body ReplaceListInput
	if !s.decodeAndValidate(w, r, &body) {
		return
	}
	snapshot, err := s.service.ReplaceList(r.Context(), sessionFrom(r.Context()), body)
	s.writeSnapshot(w, r, snapshot, err)
}

func (s *HTTPServer) handleSave(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Save(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		status, code, message, details := mapError(err)
		if details == nil {
			details = map[string]any{"editor": result.Snapshot}
		}
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleReload(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.service.Reload(r.Context(), sessionFrom(r.Context()))
	s.writeSnapshot(w, r, snapshot, err)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	commits, err := s.service.History(limit)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commits": commits})
}

func (s *HTTPServer) handleHistoryAt(w http.ResponseWriter, r *http.Request) {
	doc, commit, err := s.service.HistoryAt(chi.URLParam(r, "hash"))
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commit": commit, "content": doc})
}

func (s *HTTPServer) writeSnapshot(w http.ResponseWriter, r *http.Request, snapshot editor.Snapshot, err error) {
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"editor": snapshot})
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("code", code),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) decodeAndValidate(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return false
	}
	if err := s.validate.Struct(target); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", validationDetails(err))
		return false
	}
	return true
}

func validationDetails(err error) any {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
	}
	return map[string]any{"fields": fields}
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) Session {
	sess, _ := ctx.Value(sessionKey{}).(Session)
	return sess
}

func (s *HTTPServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		sess, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
				return
			}
			s.logger.Error("session lookup failed", zap.String("request_id", requestIDFrom(r.Context())), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func (s *HTTPServer) authorize(action rbac.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFrom(r.Context())
			if !s.service.Can(sess.Role, action) {
				s.logger.Warn("forbidden",
					zap.String("request_id", requestIDFrom(r.Context())),
					zap.String("role", string(sess.Role)),
					zap.String("action", string(action)),
				)
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewID("req")
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func mapError(err error) (status int, code, message string, details any) {
	var (
		domainErr *DomainError
		transport *store.TransportError
		mismatch  *content.TypeMismatchError
		unknown   *content.UnknownPathError
		index     *content.IndexError
		invalid   *content.InvalidValueError
	)
	switch {
	case errors.As(err, &domainErr):
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	case errors.Is(err, authpw.ErrNotConfigured):
		return http.StatusServiceUnavailable, "CONFIGURATION_ERROR", "Editing is not configured. Please contact support.", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Incorrect password", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.As(err, &transport):
		return http.StatusBadGateway, "TRANSPORT_ERROR", "Could not reach the content store", nil
	case errors.As(err, &mismatch):
		return http.StatusUnprocessableEntity, "TYPE_MISMATCH", mismatch.Error(), map[string]any{"path": mismatch.Path}
	case errors.As(err, &unknown):
		return http.StatusUnprocessableEntity, "UNKNOWN_PATH", unknown.Error(), map[string]any{"path": unknown.Path}
	case errors.As(err, &index):
		return http.StatusUnprocessableEntity, "INDEX_OUT_OF_RANGE", index.Error(), map[string]any{"path": index.Path, "index": index.Index, "length": index.Len}
	case errors.Is(err, content.ErrAmbiguousPath):
		return http.StatusUnprocessableEntity, "AMBIGUOUS_PATH", err.Error(), nil
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, "INVALID_VALUE", invalid.Error(), map[string]any{"path": invalid.Path}
	case errors.Is(err, editor.ErrSaveInFlight):
		return http.StatusConflict, "SAVE_IN_FLIGHT", "A save is already in progress", nil
	case errors.Is(err, editor.ErrNotOpen):
		return http.StatusConflict, "SESSION_CLOSED", "Editor session is closed", nil
	case errors.Is(err, gitrepo.ErrNoHistory):
		return http.StatusNotFound, "NOT_FOUND", "No publish history", nil
	case errors.Is(err, gitrepo.ErrUnknownRevision):
		return http.StatusNotFound, "NOT_FOUND", "Unknown revision", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
