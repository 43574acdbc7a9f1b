// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package web exposes the auth service over HTTP form posts, carrying the
// session token in a cookie.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/pkg/errutil"
)

// Codes produced by the web layer itself.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeForbiddenOrigin = "FORBIDDEN_ORIGIN"
	CodeInternal        = "INTERNAL"
)

// DefaultMaxBodyBytes caps form bodies.
const DefaultMaxBodyBytes = 16 << 10

// Service is the subset of auth.Service the handlers call.
type Service interface {
	CreateSession(ctx context.Context, username, password string) (*auth.SessionContext, error)
	DestroySession(ctx context.Context, token string) error
	CheckSession(ctx context.Context, token string) (*auth.SessionContext, error)
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
}

// RequestRecorder counts handled requests.
type RequestRecorder interface {
	HTTPRequest(route, code string)
}

// Config controls cookie attributes and request limits.
type Config struct {
	CookieName   string
	CookieSecure bool
	MaxBodyBytes int64
}

// Handler serves the login, logout, session and password endpoints.
type Handler struct {
	svc      Service
	cfg      Config
	logger   *slog.Logger
	recorder RequestRecorder
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithRecorder sets the request counter.
func WithRecorder(r RequestRecorder) Option {
	return func(h *Handler) { h.recorder = r }
}

// NewHandler creates a Handler.
func NewHandler(svc Service, cfg Config, opts ...Option) (*Handler, error) {
	if svc == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("auth service is required")
	}
	if cfg.CookieName == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("cookie name is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	h := &Handler{svc: svc, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h, nil
}

// Routes returns the endpoint mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /login", h.instrument("/login", h.sameOrigin(h.handleLogin)))
	mux.Handle("POST /logout", h.instrument("/logout", h.sameOrigin(h.handleLogout)))
	mux.Handle("GET /session", h.instrument("/session", h.handleSession))
	mux.Handle("POST /password", h.instrument("/password", h.sameOrigin(h.handlePassword)))
	return mux
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("passwd")

	session, err := h.svc.CreateSession(r.Context(), username, password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := h.sessionToken(r); ok {
		if err := h.svc.DestroySession(r.Context(), token); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, response{OK: true})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

func (h *Handler) handlePassword(w http.ResponseWriter, r *http.Request) {
	session, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	if !h.parseForm(w, r) {
		return
	}

	oldPassword := r.PostForm.Get("oldpw")
	newPassword := r.PostForm.Get("newpw1")
	if newPassword != r.PostForm.Get("newpw2") {
		writeJSON(w, http.StatusBadRequest, response{Error: auth.CodePasswordMismatch})
		return
	}

	if err := h.svc.ChangePassword(r.Context(), session.Username, oldPassword, newPassword); err != nil {
		// The caller already holds a session; a wrong old password is a
		// refusal, not a failed login.
		if errutil.HasCode(err, auth.CodeInvalidCredentials) {
			writeJSON(w, http.StatusForbidden, response{Error: auth.CodeInvalidCredentials})
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{OK: true})
}

// requireSession resolves the cookie to a live session or writes a 401.
func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request) (*auth.SessionContext, bool) {
	token, ok := h.sessionToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{Error: auth.CodeSessionInvalid})
		return nil, false
	}

	session, err := h.svc.CheckSession(r.Context(), token)
	if err != nil {
		if code := errutil.Code(err); code == auth.CodeSessionExpired || code == auth.CodeSessionInvalid {
			h.clearSessionCookie(w)
		}
		h.writeError(w, r, err)
		return nil, false
	}
	return session, true
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.logger.DebugContext(r.Context(), "malformed form", "error", err)
		writeJSON(w, http.StatusBadRequest, response{Error: CodeBadRequest})
		return false
	}
	return true
}

// sameOrigin rejects cross-site state changes. Requests without an Origin
// header (non-browser clients) pass.
func (h *Handler) sameOrigin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && !originMatchesHost(origin, r.Host) {
			h.logger.WarnContext(r.Context(), "cross-origin request rejected", "origin", origin, "host", r.Host)
			writeJSON(w, http.StatusForbidden, response{Error: CodeForbiddenOrigin})
			return
		}
		next(w, r)
	}
}

func originMatchesHost(origin, host string) bool {
	_, rest, ok := strings.Cut(origin, "://")
	return ok && strings.EqualFold(rest, host)
}

func (h *Handler) sessionToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(h.cfg.CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, session *auth.SessionContext) {
	c := &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
	if !session.ExpiresAt.IsZero() {
		c.Expires = session.ExpiresAt.UTC()
	}
	http.SetCookie(w, c)
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// writeError maps an oops code to a status and writes the JSON body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errutil.Code(err)
	status := statusFor(code)

	resp := response{Error: code}
	switch {
	case code == auth.CodePolicyViolation:
		if oopsErr, ok := oops.AsOops(err); ok {
			if rule, ok := oopsErr.Context()["rule"].(string); ok {
				resp.Rule = rule
			}
		}
	case status >= http.StatusInternalServerError:
		errutil.LogError(r.Context(), h.logger, "request failed", err)
		if status == http.StatusInternalServerError {
			resp.Error = CodeInternal
		}
	}
	writeJSON(w, status, resp)
}

func statusFor(code string) int {
	switch code {
	case auth.CodeInvalidCredentials, auth.CodeSessionInvalid, auth.CodeSessionExpired:
		return http.StatusUnauthorized
	case auth.CodePolicyViolation, auth.CodePasswordMismatch, auth.CodeInvalidUsername:
		return http.StatusBadRequest
	case auth.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		if h.recorder != nil {
			h.recorder.HTTPRequest(route, strconv.Itoa(sw.status))
		}
	})
}
