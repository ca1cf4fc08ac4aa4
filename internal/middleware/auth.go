// SPDX-License-Identifier: AGPL-3.0-or-later

package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	applog "github.com/btouchard/keygate/pkg/logger"
)

// AdminAuth checks the bearer token on admin routes.
// A missing token yields 401, a wrong one 403.
func AdminAuth(token string, logger *slog.Logger, next http.HandlerFunc) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(applog.ComponentKey, "AUTH")
	expected := []byte(token)

	return func(w http.ResponseWriter, r *http.Request) {
		presented, ok := bearerToken(r)
		if !ok {
			logger.Warn("admin request without bearer token", "ip", getClientIP(r), "path", r.URL.Path)
			w.Header().Set("WWW-Authenticate", `Bearer realm="keygate"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
			logger.Warn("admin request with invalid token", "ip", getClientIP(r), "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}

		next(w, r)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
