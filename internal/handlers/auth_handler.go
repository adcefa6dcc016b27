package handlers

import (
	"net/http"

	mW "github.com/securebank/ledger/internal/middleware"
	"github.com/securebank/ledger/internal/services"
)

type AuthHandler struct {
	service   *services.UserService
	validator *services.ValidationHelper
	maxBytes  int64
}

func NewAuthHandler(service *services.UserService, maxBytes int64) *AuthHandler {
	return &AuthHandler{
		service:   service,
		validator: services.NewValidationHelper(),
		maxBytes:  maxBytes,
	}
}

// Register creates a new user
// @Summary Register user
// @Description Register a new user account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body services.RegisterRequest true "Registration details"
// @Success 201 {object} services.AuthResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if !decodeJSON(w, r, h.validator, h.maxBytes, &req) {
		return
	}
	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Login authenticates a user
// @Summary Login user
// @Description Authenticate user and return JWT token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body services.LoginRequest true "Login credentials"
// @Success 200 {object} services.AuthResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if !decodeJSON(w, r, h.validator, h.maxBytes, &req) {
		return
	}
	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout revokes the bearer token
// @Summary Logout user
// @Description Logout user and blacklist token
// @Tags Authentication
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, err := mW.BearerToken(r); err == nil {
		h.service.Logout(r.Context(), token)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
