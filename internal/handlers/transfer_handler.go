package handlers

import (
	"net/http"

	"github.com/securebank/ledger/internal/services"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
)

type TransferHandler struct {
	service   *services.TransferService
	validator *services.ValidationHelper
	maxBytes  int64
}

func NewTransferHandler(service *services.TransferService, maxBytes int64) *TransferHandler {
	return &TransferHandler{
		service:   service,
		validator: services.NewValidationHelper(),
		maxBytes:  maxBytes,
	}
}

// CreateTransfer moves money between two accounts
// @Summary Transfer funds
// @Description Debits the sender and credits the recipient atomically. A repeated Idempotency-Key returns the first result.
// @Tags Transfers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Client supplied idempotency key"
// @Param request body services.TransferRequest true "Transfer request"
// @Success 201 {object} models.TransferRecord
// @Success 200 {object} models.TransferRecord "Replayed result"
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /transfers [post]
func (h *TransferHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.TransferRequest
	if !decodeJSON(w, r, h.validator, h.maxBytes, &req) {
		return
	}

	rec, replayed, err := h.service.TransferOnce(r.Context(), c, r.Header.Get(idempotencyKeyHeader), req)
	if err != nil {
		writeError(w, err)
		return
	}
	if replayed {
		w.Header().Set(replayedHeader, "true")
		writeJSON(w, http.StatusOK, rec)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// ListTransfers lists transfers sent from the caller's accounts
// @Tags Transfers
// @Security BearerAuth
// @Router /transfers [get]
func (h *TransferHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	transfers, err := h.service.ListTransfers(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfers)
}

// GetTransfer returns one transfer
// @Tags Transfers
// @Security BearerAuth
// @Router /transfers/{id} [get]
func (h *TransferHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	rec, err := h.service.GetTransfer(r.Context(), c, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
