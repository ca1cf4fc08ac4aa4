// SPDX-License-Identifier: AGPL-3.0-or-later

package http

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/btouchard/keygate/internal/app"
	"github.com/btouchard/keygate/internal/middleware"
	applog "github.com/btouchard/keygate/pkg/logger"
)

// RouterConfig holds the configuration for creating a new router.
type RouterConfig struct {
	Wallets     *app.WalletService
	Activity    *app.ActivityService
	RateLimiter *middleware.RateLimiter // nil disables rate limiting
	AdminToken  string                  // empty leaves the admin route unregistered
	Docs        fs.FS                   // served for unmatched paths; nil yields a 404 envelope
	Logger      *slog.Logger
}

// NewRouter creates a fully wired HTTP handler with all endpoints and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(applog.ComponentKey, "HTTP")

	handlers := NewHandlers(cfg.Wallets, cfg.Activity, logger)
	rl := cfg.RateLimiter

	r := mux.NewRouter()

	for _, e := range handlers.Endpoints() {
		h := serve(e, logger)
		if rl != nil {
			switch e.class {
			case rateCrypto:
				h = rl.CryptoMiddleware(h)
			case rateGenerate:
				h = rl.GenerateMiddleware(h)
			}
		}
		r.HandleFunc(e.Path, h).Methods(http.MethodGet)
	}

	if cfg.AdminToken != "" {
		admin := handlers.AdminEndpoint()
		h := middleware.AdminAuth(cfg.AdminToken, logger, serve(admin, logger))
		if rl != nil {
			h = rl.AdminMiddleware(h)
		}
		r.HandleFunc(admin.Path, h).Methods(http.MethodGet)
	} else {
		logger.Info("admin token not configured, activity listing disabled")
	}

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Unmatched paths fall through to the documentation page.
	if cfg.Docs != nil {
		r.NotFoundHandler = http.FileServer(http.FS(cfg.Docs))
	} else {
		r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusNotFound, "Not found")
		})
	}

	// mux middleware only wraps matched routes; wrap the whole router so
	// 404/405 responses get request ids and access logs too.
	var handler http.Handler = r
	handler = Recover(logger)(handler)
	handler = AccessLog(logger)(handler)
	handler = RequestID(handler)
	return handler
}

// serve binds the query string against the endpoint schema, runs the
// operation and writes the envelope.
func serve(e Endpoint, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := e.bind(r.URL.Query())
		if err != nil {
			fail(w, r, logger, err)
			return
		}

		data, err := e.Handle(r.Context(), params)
		if err != nil {
			fail(w, r, logger, err)
			return
		}

		writeSuccess(w, data)
	}
}
