package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"parkingsystem/internal/db"
	"parkingsystem/internal/entities"
	apperrors "parkingsystem/internal/errors"
	"parkingsystem/internal/repository"
	"parkingsystem/internal/service"
	"parkingsystem/internal/utils"
)

type AdminHandler struct {
	Admin    *service.AdminService
	Sessions *service.SessionService
	Payments *service.PaymentService
}

func NewAdminHandler(admin *service.AdminService, sessions *service.SessionService, payments *service.PaymentService) *AdminHandler {
	return &AdminHandler{Admin: admin, Sessions: sessions, Payments: payments}
}

func (h *AdminHandler) ListAreas(w http.ResponseWriter, r *http.Request) {
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

func (h *AdminHandler) CreateArea(w http.ResponseWriter, r *http.Request) {
	var req entities.AreaRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	area, err := h.Admin.CreateArea(r.Context(), req.Name, req.Capacity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entities.NewAreaResponse(*area))
}

func (h *AdminHandler) UpdateArea(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req entities.AreaRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	area, err := h.Admin.UpdateArea(r.Context(), id, req.Name, req.Capacity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.NewAreaResponse(*area))
}

func (h *AdminHandler) DeleteArea(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Admin.DeleteArea(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Area deleted"})
}

func (h *AdminHandler) ListRates(w http.ResponseWriter, r *http.Request) {
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

func (h *AdminHandler) UpdateRate(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["vehicle_class"]
	class, ok := utils.ParseVehicleClass(name)
	if !ok {
		writeError(w, r, apperrors.ErrBadRequest("Unknown vehicle class "+name))
		return
	}
	var req entities.RateRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	rate, err := h.Admin.UpdateRate(r.Context(), db.RateSchedule{
		VehicleClass: class,
		Hourly:       req.Hourly,
		Daily:        req.Daily,
		Weekly:       req.Weekly,
		Monthly:      req.Monthly,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.NewRateResponse(*rate))
}

func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.SessionFilter{
		Status:    db.SessionStatus(q.Get("status")),
		VehicleID: q.Get("vehicle_id"),
	}
	if q.Get("area_id") != "" {
		areaID, err := queryInt(r, "area_id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		filter.AreaID = int64(areaID)
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter.Limit = limit

	sessions, err := h.Sessions.ListSessions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := entities.SessionsList{Total: len(sessions), Sessions: make([]entities.SessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, entities.NewSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	payments, err := h.Payments.ListPayments(r.Context(), repository.PaymentFilter{
		Status:    db.PaymentStatus(q.Get("status")),
		Method:    db.PaymentMethod(q.Get("method")),
		SessionID: q.Get("session_id"),
		Limit:     limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]entities.PaymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, entities.NewPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) PaymentSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Payments.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := entities.PaymentSummaryResponse{Collected: summary.Collected, Pending: summary.Pending}
	for _, t := range summary.Totals {
		resp.Totals = append(resp.Totals, entities.StatusTotal{Status: t.Status, Count: t.Count, Amount: t.Amount})
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdatePaymentStatus lets an operator re-flag a payment, e.g. after
// collecting cash.
func (h *AdminHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req entities.PaymentStatusRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.Payments.MarkStatus(r.Context(), id, db.PaymentStatus(strings.ToLower(req.Status))); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Payments.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.NewPaymentResponse(*p))
}
