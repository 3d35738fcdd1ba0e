package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"parkingsystem/internal/auth"
)

type Handlers struct {
	Public    *PublicHandler
	Admin     *AdminHandler
	AdminAuth *AdminAuthHandler
	Stripe    *StripeWebhookHandler
}

// NewRouter registers every endpoint. Routes under /admin, except login,
// require a bearer token signed with jwtSecret.
func NewRouter(h Handlers, jwtSecret string) *mux.Router {
	r := mux.NewRouter()

	// Public endpoints
	r.HandleFunc("/api/areas", h.Public.ListAreas).Methods(http.MethodGet)
	r.HandleFunc("/api/rates", h.Public.ListRates).Methods(http.MethodGet)
	r.HandleFunc("/api/vehicles", h.Public.RegisterVehicle).Methods(http.MethodPost)
	r.HandleFunc("/api/vehicles/{id}", h.Public.GetVehicle).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions", h.Public.OpenSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}", h.Public.GetSession).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}/quote", h.Public.QuoteSession).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}/close", h.Public.CloseSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/payment", h.Public.EnsurePayment).Methods(http.MethodPost)
	r.HandleFunc("/api/payments/{id}/checkout", h.Public.StartCheckout).Methods(http.MethodPost)
	r.HandleFunc("/api/checkout/result", h.Public.CheckoutResult).Methods(http.MethodGet)
	r.HandleFunc("/api/stripe/webhook", h.Stripe.HandleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/admin/login", h.AdminAuth.Login).Methods(http.MethodPost)

	// Admin endpoints (protected)
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(auth.AdminAuthMiddleware(jwtSecret))
	admin.HandleFunc("/admins", h.AdminAuth.CreateUserAdmin).Methods(http.MethodPost)
	admin.HandleFunc("/areas", h.Admin.ListAreas).Methods(http.MethodGet)
	admin.HandleFunc("/areas", h.Admin.CreateArea).Methods(http.MethodPost)
	admin.HandleFunc("/areas/{id}", h.Admin.UpdateArea).Methods(http.MethodPut)
	admin.HandleFunc("/areas/{id}", h.Admin.DeleteArea).Methods(http.MethodDelete)
	admin.HandleFunc("/rates", h.Admin.ListRates).Methods(http.MethodGet)
	admin.HandleFunc("/rates/{vehicle_class}", h.Admin.UpdateRate).Methods(http.MethodPut)
	admin.HandleFunc("/sessions", h.Admin.ListSessions).Methods(http.MethodGet)
	admin.HandleFunc("/payments", h.Admin.ListPayments).Methods(http.MethodGet)
	admin.HandleFunc("/payments/summary", h.Admin.PaymentSummary).Methods(http.MethodGet)
	admin.HandleFunc("/payments/{id}/status", h.Admin.UpdatePaymentStatus).Methods(http.MethodPut)

	return r
}
