package handlers

import (
	"context"
	"net/http"

	"github.com/securebank/ledger/internal/models"
	"github.com/securebank/ledger/internal/services"
	"github.com/shopspring/decimal"
)

type cardOperation func(ctx context.Context, caller services.Caller, cardID int64, amount decimal.Decimal) (*models.CreditCard, error)

type CardHandler struct {
	service   *services.CardService
	validator *services.ValidationHelper
	maxBytes  int64
}

func NewCardHandler(service *services.CardService, maxBytes int64) *CardHandler {
	return &CardHandler{
		service:   service,
		validator: services.NewValidationHelper(),
		maxBytes:  maxBytes,
	}
}

// IssueCard links a new credit card to an account
// @Summary Issue card
// @Tags Cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.IssueCardRequest true "Card details"
// @Success 201 {object} models.CreditCard
// @Failure 409 {object} services.ErrorResponse
// @Router /cards [post]
func (h *CardHandler) IssueCard(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.IssueCardRequest
	if !decodeJSON(w, r, h.validator, h.maxBytes, &req) {
		return
	}
	card, err := h.service.IssueCard(r.Context(), c, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// ListCards lists cards linked to the caller's accounts
// @Tags Cards
// @Security BearerAuth
// @Router /cards [get]
func (h *CardHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	cards, err := h.service.ListCards(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// GetCard returns one card
// @Tags Cards
// @Security BearerAuth
// @Router /cards/{id} [get]
func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	card, err := h.service.GetCard(r.Context(), c, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// ChargeCard adds a purchase to the card balance
// @Summary Charge card
// @Tags Cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Card ID"
// @Param request body services.CardAmountRequest true "Charge amount"
// @Success 200 {object} models.CreditCard
// @Failure 422 {object} services.ErrorResponse
// @Router /cards/{id}/charge [post]
func (h *CardHandler) ChargeCard(w http.ResponseWriter, r *http.Request) {
	h.cardAmount(w, r, h.service.ChargeCard)
}

// PayCard pays the card down from its linked account
// @Summary Pay card
// @Tags Cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Card ID"
// @Param request body services.CardAmountRequest true "Payment amount"
// @Success 200 {object} models.CreditCard
// @Router /cards/{id}/payment [post]
func (h *CardHandler) PayCard(w http.ResponseWriter, r *http.Request) {
	h.cardAmount(w, r, h.service.PayCardFromAccount)
}

func (h *CardHandler) cardAmount(w http.ResponseWriter, r *http.Request, apply cardOperation) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req services.CardAmountRequest
	if !decodeJSON(w, r, h.validator, h.maxBytes, &req) {
		return
	}
	card, err := apply(r.Context(), c, id, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}
