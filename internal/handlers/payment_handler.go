package handlers

import (
	"net/http"

	"github.com/securebank/ledger/internal/services"
)

// PaymentHandler serves bill payments, loans and investments.
type PaymentHandler struct {
	service   *services.PaymentService
	validator *services.ValidationHelper
	maxBytes  int64
}

func NewPaymentHandler(service *services.PaymentService, maxBytes int64) *PaymentHandler {
	return &PaymentHandler{
		service:   service,
		validator: services.NewValidationHelper(),
		maxBytes:  maxBytes,
	}
}

// PayBill debits an account for a bill
// @Summary Pay bill
// @Tags Bills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.BillPaymentRequest true "Bill payment"
// @Success 201 {object} models.BillPayment
// @Failure 422 {object} services.ErrorResponse
// @Router /bills [post]
func (h *PaymentHandler) PayBill(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.BillPaymentRequest
	if !decodeJSON(w, r, h.validator, h.maxBytes, &req) {
		return
	}
	bill, err := h.service.PayBill(r.Context(), c, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bill)
}

// ListBills lists bill payments on the caller's accounts
// @Tags Bills
// @Security BearerAuth
// @Router /bills [get]
func (h *PaymentHandler) ListBills(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	bills, err := h.service.ListBillPayments(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

// GetBill returns one bill payment
// @Tags Bills
// @Security BearerAuth
// @Router /bills/{id} [get]
func (h *PaymentHandler) GetBill(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	bill, err := h.service.GetBillPayment(r.Context(), c, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// OriginateLoan credits an account with a new loan
// @Summary Originate loan
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.LoanRequest true "Loan terms"
// @Success 201 {object} models.LoanView
// @Router /loans [post]
func (h *PaymentHandler) OriginateLoan(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.LoanRequest
	if !decodeJSON(w, r, h.validator, h.maxBytes, &req) {
		return
	}
	loan, err := h.service.OriginateLoan(r.Context(), c, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

// ListLoans lists loans with their monthly repayment
// @Tags Loans
// @Security BearerAuth
// @Router /loans [get]
func (h *PaymentHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	loans, err := h.service.ListLoans(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

// GetLoan returns one loan
// @Tags Loans
// @Security BearerAuth
// @Router /loans/{id} [get]
func (h *PaymentHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	loan, err := h.service.GetLoan(r.Context(), c, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// PurchaseInvestment debits an account for an investment
// @Summary Purchase investment
// @Tags Investments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.InvestmentRequest true "Investment"
// @Success 201 {object} models.InvestmentView
// @Failure 422 {object} services.ErrorResponse
// @Router /investments [post]
func (h *PaymentHandler) PurchaseInvestment(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.InvestmentRequest
	if !decodeJSON(w, r, h.validator, h.maxBytes, &req) {
		return
	}
	inv, err := h.service.PurchaseInvestment(r.Context(), c, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// ListInvestments lists investments with their returns
// @Tags Investments
// @Security BearerAuth
// @Router /investments [get]
func (h *PaymentHandler) ListInvestments(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	investments, err := h.service.ListInvestments(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, investments)
}

// GetInvestment returns one investment
// @Tags Investments
// @Security BearerAuth
// @Router /investments/{id} [get]
func (h *PaymentHandler) GetInvestment(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	inv, err := h.service.GetInvestment(r.Context(), c, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
