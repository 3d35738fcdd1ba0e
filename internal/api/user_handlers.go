package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"parkingsystem/internal/db"
	"parkingsystem/internal/entities"
	apperrors "parkingsystem/internal/errors"
	"parkingsystem/internal/service"
	"parkingsystem/internal/utils"
)

// PublicHandler serves the attendant and driver facing endpoints.
type PublicHandler struct {
	Sessions *service.SessionService
	Payments *service.PaymentService
	Vehicles *service.VehicleService
	Admin    *service.AdminService
}

func NewPublicHandler(sessions *service.SessionService, payments *service.PaymentService,
	vehicles *service.VehicleService, admin *service.AdminService) *PublicHandler {
	return &PublicHandler{Sessions: sessions, Payments: payments, Vehicles: vehicles, Admin: admin}
}

func (h *PublicHandler) ListAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := h.Admin.ListAreas(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]entities.AreaResponse, 0, len(areas))
	for _, a := range areas {
		resp = append(resp, entities.NewAreaResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PublicHandler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Admin.ListRates(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]entities.RateResponse, 0, len(rates))
	for _, rate := range rates {
		resp = append(resp, entities.NewRateResponse(rate))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PublicHandler) RegisterVehicle(w http.ResponseWriter, r *http.Request) {
	var req entities.VehicleRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.Vehicles.RegisterVehicle(r.Context(), service.RegisterVehicleRequest{
		Plate:        req.Plate,
		VehicleClass: req.VehicleClass,
		OwnerName:    req.OwnerName,
		OwnerEmail:   req.OwnerEmail,
		OwnerPhone:   req.OwnerPhone,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entities.NewVehicleResponse(*v))
}

func (h *PublicHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := h.Vehicles.GetVehicle(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.NewVehicleResponse(*v))
}

func (h *PublicHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req entities.OpenSessionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	var class db.VehicleClass
	if req.VehicleClass != "" {
		c, ok := utils.ParseVehicleClass(req.VehicleClass)
		if !ok {
			writeError(w, r, apperrors.ErrBadRequest("Unknown vehicle class "+req.VehicleClass))
			return
		}
		class = c
	}
	if req.AreaID <= 0 {
		writeError(w, r, apperrors.ErrBadRequest("area_id is required"))
		return
	}

	session, err := h.Sessions.OpenSession(r.Context(), req.VehicleID, class, req.AreaID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entities.NewSessionResponse(*session))
}

func (h *PublicHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.Sessions.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.NewSessionResponse(*session))
}

func (h *PublicHandler) QuoteSession(w http.ResponseWriter, r *http.Request) {
	quote, err := h.Sessions.QuoteFee(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.QuoteResponse{
		SessionID: quote.Session.ID,
		Hours:     quote.Hours,
		Fee:       quote.Fee,
		At:        quote.At,
	})
}

func (h *PublicHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	var req entities.CloseSessionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.Sessions.CloseSession(r.Context(), mux.Vars(r)["id"], db.PaymentMethod(strings.ToLower(req.Method)))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.CloseSessionResponse{
		Session:   entities.NewSessionResponse(*result.Session),
		Fee:       result.Fee,
		PaymentID: result.PaymentID,
	})
}

// EnsurePayment returns the payment to settle a closed session with.
func (h *PublicHandler) EnsurePayment(w http.ResponseWriter, r *http.Request) {
	var req entities.PaymentRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Payments.EnsurePayment(r.Context(), mux.Vars(r)["id"], db.PaymentMethod(strings.ToLower(req.Method)))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.NewPaymentResponse(*p))
}

func (h *PublicHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	checkout, err := h.Payments.StartCheckout(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.CheckoutResponse{CheckoutID: checkout.ID, CheckoutURL: checkout.URL})
}

// CheckoutResult is where the gateway sends the driver back after paying.
func (h *PublicHandler) CheckoutResult(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("session_id")
	if ref == "" {
		writeError(w, r, apperrors.ErrBadRequest("session_id required"))
		return
	}
	p, err := h.Payments.GetPaymentByGatewayRef(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.NewPaymentResponse(*p))
}
