package handlers

import (
	"net/http"

	"github.com/securebank/ledger/internal/services"
)

type AccountHandler struct {
	service   *services.AccountService
	validator *services.ValidationHelper
	maxBytes  int64
}

func NewAccountHandler(service *services.AccountService, maxBytes int64) *AccountHandler {
	return &AccountHandler{
		service:   service,
		validator: services.NewValidationHelper(),
		maxBytes:  maxBytes,
	}
}

// ListAccounts lists the caller's accounts, or every account for admins
// @Summary List accounts
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Account
// @Failure 401 {object} services.ErrorResponse
// @Router /accounts [get]
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	accounts, err := h.service.ListAccounts(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// OpenAccount opens a new account
// @Summary Open account
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.OpenAccountRequest true "Account details"
// @Success 201 {object} models.Account
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /accounts [post]
func (h *AccountHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.OpenAccountRequest
	if !decodeJSON(w, r, h.validator, h.maxBytes, &req) {
		return
	}
	acct, err := h.service.OpenAccount(r.Context(), c, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

// GetAccount returns one account
// @Summary Get account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} models.Account
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id} [get]
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	acct, err := h.service.GetAccount(r.Context(), c, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// UpdateAccount changes an account's number or type
// @Summary Update account details
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param request body services.UpdateAccountRequest true "New details"
// @Success 200 {object} models.Account
// @Router /accounts/{id} [put]
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req services.UpdateAccountRequest
	if !decodeJSON(w, r, h.validator, h.maxBytes, &req) {
		return
	}
	acct, err := h.service.UpdateAccountDetails(r.Context(), c, id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// CloseAccount deletes an account with no ledger history
// @Summary Close account
// @Tags Accounts
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 204
// @Failure 409 {object} services.ErrorResponse
// @Router /accounts/{id} [delete]
func (h *AccountHandler) CloseAccount(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.CloseAccount(r.Context(), c, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
