// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/authcore/authcore/internal/auth"
)

type response struct {
	OK        bool       `json:"ok"`
	Error     string     `json:"error,omitempty"`
	Rule      string     `json:"rule,omitempty"`
	Username  string     `json:"username,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func sessionResponse(s *auth.SessionContext) response {
	resp := response{OK: true, Username: s.Username}
	if !s.ExpiresAt.IsZero() {
		exp := s.ExpiresAt.UTC()
		resp.ExpiresAt = &exp
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
