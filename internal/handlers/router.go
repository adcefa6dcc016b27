package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	mW "github.com/securebank/ledger/internal/middleware"
)

// Handlers groups everything the router mounts under /api/v1.
type Handlers struct {
	Auth      *AuthHandler
	Accounts  *AccountHandler
	Payments  *PaymentHandler
	Cards     *CardHandler
	Transfers *TransferHandler
}

func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Auth.Register)
		r.Post("/auth/login", h.Auth.Login)
		r.Post("/auth/logout", h.Auth.Logout)

		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/accounts", h.Accounts.ListAccounts)
			r.Post("/accounts", h.Accounts.OpenAccount)
			r.Get("/accounts/{id}", h.Accounts.GetAccount)
			r.Put("/accounts/{id}", h.Accounts.UpdateAccount)
			r.Delete("/accounts/{id}", h.Accounts.CloseAccount)

			r.Get("/bills", h.Payments.ListBills)
			r.Post("/bills", h.Payments.PayBill)
			r.Get("/bills/{id}", h.Payments.GetBill)

			r.Get("/cards", h.Cards.ListCards)
			r.Post("/cards", h.Cards.IssueCard)
			r.Get("/cards/{id}", h.Cards.GetCard)
			r.Post("/cards/{id}/charge", h.Cards.ChargeCard)
			r.Post("/cards/{id}/payment", h.Cards.PayCard)

			r.Get("/loans", h.Payments.ListLoans)
			r.Post("/loans", h.Payments.OriginateLoan)
			r.Get("/loans/{id}", h.Payments.GetLoan)

			r.Get("/investments", h.Payments.ListInvestments)
			r.Post("/investments", h.Payments.PurchaseInvestment)
			r.Get("/investments/{id}", h.Payments.GetInvestment)

			r.Get("/transfers", h.Transfers.ListTransfers)
			r.Post("/transfers", h.Transfers.CreateTransfer)
			r.Get("/transfers/{id}", h.Transfers.GetTransfer)
		})
	})

	return r
}
