package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/securebank/ledger/internal/services"
)

const defaultMaxBodyBytes = 1_048_576

// decodeJSON reads exactly one JSON object into dst and validates it. On
// failure the error response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *services.ValidationHelper, maxBytes int64, dst any) bool {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := v.ValidateStruct(dst); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindNotFound, services.KindSenderNotFound, services.KindRecipientNotFound:
		return http.StatusNotFound
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	case services.KindInvalidRequest, services.KindAccountMismatch, services.KindLinkedAccountMissing:
		return http.StatusBadRequest
	case services.KindInsufficientFunds, services.KindCreditLimitExceeded:
		return http.StatusUnprocessableEntity
	case services.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends err as a kind-tagged error response. Internal causes are
// logged and never echoed to the client.
func writeError(w http.ResponseWriter, err error) {
	kind := services.KindOf(err)
	message := "An Internal Error Occurred"

	var e *services.Error
	if errors.As(err, &e) && kind != services.KindInternal {
		message = e.Message
	}
	if kind == services.KindInternal || kind == services.KindTransferFailed {
		log.Printf("[HTTP] %s: %v", kind, err)
	}

	services.SendKindError(w, kind, message, statusFor(kind))
}

// caller resolves the authenticated caller or writes a 401.
func caller(w http.ResponseWriter, r *http.Request) (services.Caller, bool) {
	c, err := services.CallerFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return services.Caller{}, false
	}
	return c, true
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		services.SendErrorResponse(w, "Invalid id", http.StatusBadRequest, nil)
		return 0, false
	}
	return id, true
}
