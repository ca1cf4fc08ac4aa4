// SPDX-License-Identifier: AGPL-3.0-or-later

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/btouchard/keygate/internal/app"
	"github.com/btouchard/keygate/internal/domain"
	"github.com/btouchard/keygate/pkg/api"
)

const msgInternal = "Internal server error"

// operationMessages are the only texts a capability failure may expose.
var operationMessages = []struct {
	kind    error
	message string
}{
	{domain.ErrSigning, "Failed to sign message"},
	{domain.ErrVerification, "Failed to verify signature"},
	{domain.ErrWalletGeneration, "Failed to generate wallet"},
	{domain.ErrKeyConversion, "Failed to derive wallet from private key"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, api.Envelope[any]{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.NewError(message))
}

// classify maps an error to its status and client-safe message.
func classify(err error) (int, string) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest, validation.Reason
	}

	var operation *domain.OperationError
	if errors.As(err, &operation) {
		for _, m := range operationMessages {
			if errors.Is(operation.Kind, m.kind) {
				return http.StatusInternalServerError, m.message
			}
		}
		return http.StatusInternalServerError, msgInternal
	}

	if errors.Is(err, domain.ErrJournalDisabled) {
		return http.StatusNotFound, "Activity journal is not enabled"
	}

	return http.StatusInternalServerError, msgInternal
}

// fail logs err with the request id and writes the error envelope.
// Causes are logged in full and never written to the client.
func fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, message := classify(err)
	requestID := app.RequestIDFrom(r.Context())

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"path", r.URL.Path,
			"status", status,
			"error", err,
			"request_id", requestID,
		)
	} else {
		logger.Debug("request rejected",
			"path", r.URL.Path,
			"status", status,
			"reason", message,
			"request_id", requestID,
		)
	}

	writeError(w, status, message)
}
