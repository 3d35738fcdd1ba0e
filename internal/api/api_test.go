package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"parkingsystem/internal/api"
	"parkingsystem/internal/db"
	"parkingsystem/internal/entities"
	"parkingsystem/internal/repository"
	"parkingsystem/internal/repository/repotest"
	"parkingsystem/internal/service"
)

const (
	jwtSecret     = "api-test-secret"
	webhookSecret = "whsec_test"
)

type fakeGateway struct{ n int }

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req service.CheckoutRequest) (*service.CheckoutSession, error) {
	g.n++
	id := fmt.Sprintf("cs_test_%d", g.n)
	return &service.CheckoutSession{ID: id, URL: "https://checkout.example/" + id}, nil
}

type APITestSuite struct {
	suite.Suite
	router   http.Handler
	payments *service.PaymentService
	token    string
}

func (s *APITestSuite) SetupTest() {
	ctx := context.Background()
	store := repotest.NewStore(s.T())

	ledger := repository.NewOccupancyLedger()
	areaRepo := repository.NewAreaRepository(store)
	rateRepo := repository.NewRateRepository(store)
	vehicleRepo := repository.NewVehicleRepository(store)
	sessionRepo := repository.NewSessionRepository(store)
	paymentRepo := repository.NewPaymentRepository(store)

	s.payments = service.NewPaymentService(store, paymentRepo, sessionRepo, vehicleRepo)
	sessions := service.NewSessionService(store, ledger, sessionRepo, vehicleRepo, rateRepo, s.payments)
	s.payments.SetBillSettler(sessions)
	admin := service.NewAdminService(store, areaRepo, rateRepo)
	vehicles := service.NewVehicleService(store, vehicleRepo)
	authSvc := service.NewAdminAuthService(repository.NewAdminAuthRepository(store), jwtSecret)
	require.NoError(s.T(), authSvc.CreateAdmin(ctx, "ops@example.com", "ops-password"))

	s.router = api.NewRouter(api.Handlers{
		Public:    api.NewPublicHandler(sessions, s.payments, vehicles, admin),
		Admin:     api.NewAdminHandler(admin, sessions, s.payments),
		AdminAuth: api.NewAdminAuthHandler(authSvc),
		Stripe:    api.NewStripeWebhookHandler(webhookSecret, s.payments),
	}, jwtSecret)

	var login api.LoginResponse
	s.do(http.MethodPost, "/admin/login", "", api.LoginRequest{Email: "ops@example.com", Password: "ops-password"}, http.StatusOK, &login)
	require.NotEmpty(s.T(), login.Token)
	s.token = login.Token
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

// do sends body as JSON, checks the status code and decodes the response
// into out when out is not nil. It returns the raw response body.
func (s *APITestSuite) do(method, path, token string, body interface{}, wantCode int, out interface{}) string {
	s.T().Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(s.T(), err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(s.T(), wantCode, rec.Code, "%s %s: %s", method, path, rec.Body.String())
	if out != nil {
		require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Body.String()
}

func (s *APITestSuite) createArea(name string, cars int) entities.AreaResponse {
	var area entities.AreaResponse
	s.do(http.MethodPost, "/admin/areas", s.token, map[string]interface{}{
		"name":     name,
		"capacity": map[string]int{"4-wheeler": cars, "2-wheeler": 2},
	}, http.StatusCreated, &area)
	return area
}

func (s *APITestSuite) registerCar(plate string) entities.VehicleResponse {
	var v entities.VehicleResponse
	s.do(http.MethodPost, "/api/vehicles", "", entities.VehicleRequest{
		Plate: plate, VehicleClass: "car", OwnerName: "Asha",
	}, http.StatusCreated, &v)
	return v
}

func (s *APITestSuite) park(vehicleID string, areaID int64) entities.SessionResponse {
	var session entities.SessionResponse
	s.do(http.MethodPost, "/api/sessions", "", entities.OpenSessionRequest{VehicleID: vehicleID, AreaID: areaID},
		http.StatusCreated, &session)
	return session
}

func (s *APITestSuite) TestParkingFlow() {
	t := s.T()
	area := s.createArea("Main", 1)
	car := s.registerCar("ka-01-ab-1234")
	assert.Equal(t, "KA01AB1234", car.Plate)

	session := s.park(car.ID, area.ID)
	assert.Equal(t, "open", string(session.Status))
	assert.Equal(t, "4-wheeler", string(session.VehicleClass))

	var areas []entities.AreaResponse
	s.do(http.MethodGet, "/api/areas", "", nil, http.StatusOK, &areas)
	require.Len(t, areas, 1)
	for _, slot := range areas[0].Slots {
		if slot.VehicleClass == "4-wheeler" {
			assert.Equal(t, 1, slot.Occupied)
			assert.Equal(t, 0, slot.Free)
		}
	}

	body := s.do(http.MethodPost, "/api/sessions", "", entities.OpenSessionRequest{VehicleID: car.ID, AreaID: area.ID}, http.StatusConflict, nil)
	assert.Contains(t, body, "vehicle is already parked")

	other := s.registerCar("KA02CD5678")
	body = s.do(http.MethodPost, "/api/sessions", "", entities.OpenSessionRequest{VehicleID: other.ID, AreaID: area.ID}, http.StatusConflict, nil)
	assert.Contains(t, body, "parking area is full for this vehicle class")

	var quote entities.QuoteResponse
	s.do(http.MethodGet, "/api/sessions/"+session.ID+"/quote", "", nil, http.StatusOK, &quote)
	assert.Equal(t, "20", quote.Fee.String())

	var closed entities.CloseSessionResponse
	s.do(http.MethodPost, "/api/sessions/"+session.ID+"/close", "", nil, http.StatusOK, &closed)
	assert.Equal(t, "20", closed.Fee.String())
	assert.Equal(t, "pending", string(closed.Session.BillStatus))
	require.NotEmpty(t, closed.PaymentID)

	body = s.do(http.MethodPost, "/api/sessions/"+session.ID+"/close", "", nil, http.StatusConflict, nil)
	assert.Contains(t, body, "Parking session is no longer valid")

	var payment entities.PaymentResponse
	s.do(http.MethodPost, "/api/sessions/"+session.ID+"/payment", "", nil, http.StatusOK, &payment)
	assert.Equal(t, closed.PaymentID, payment.ID)

	s.do(http.MethodPut, "/admin/payments/"+payment.ID+"/status", s.token,
		entities.PaymentStatusRequest{Status: "completed"}, http.StatusOK, &payment)
	assert.Equal(t, "completed", string(payment.Status))

	var stored entities.SessionResponse
	s.do(http.MethodGet, "/api/sessions/"+session.ID, "", nil, http.StatusOK, &stored)
	assert.Equal(t, "paid", string(stored.BillStatus))

	var summary entities.PaymentSummaryResponse
	s.do(http.MethodGet, "/admin/payments/summary", s.token, nil, http.StatusOK, &summary)
	assert.Equal(t, "20", summary.Collected.String())
	require.Len(t, summary.Totals, 3)

	var list entities.SessionsList
	s.do(http.MethodGet, fmt.Sprintf("/admin/sessions?status=closed&area_id=%d", area.ID), s.token, nil, http.StatusOK, &list)
	assert.Equal(t, 1, list.Total)

	// The freed slot can be taken again.
	s.park(other.ID, area.ID)
}

func (s *APITestSuite) TestNotFoundAndValidation() {
	t := s.T()
	body := s.do(http.MethodGet, "/api/sessions/nope", "", nil, http.StatusNotFound, nil)
	assert.Contains(t, body, "Parking session is no longer valid")

	s.do(http.MethodGet, "/api/vehicles/nope", "", nil, http.StatusNotFound, nil)
	s.do(http.MethodPost, "/api/sessions", "", entities.OpenSessionRequest{VehicleID: "x", VehicleClass: "tank", AreaID: 1}, http.StatusBadRequest, nil)
	s.do(http.MethodPost, "/api/sessions", "", entities.OpenSessionRequest{VehicleID: "x"}, http.StatusBadRequest, nil)
	s.do(http.MethodPost, "/api/vehicles", "", entities.VehicleRequest{Plate: "A1", VehicleClass: "spaceship"}, http.StatusBadRequest, nil)
	s.do(http.MethodPut, "/admin/areas/abc", s.token, entities.AreaRequest{Name: "x"}, http.StatusBadRequest, nil)
	s.do(http.MethodGet, "/admin/sessions?limit=-4", s.token, nil, http.StatusBadRequest, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/vehicles", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func (s *APITestSuite) TestAdminRoutesRequireToken() {
	s.do(http.MethodGet, "/admin/areas", "", nil, http.StatusUnauthorized, nil)
	s.do(http.MethodGet, "/admin/areas", "forged", nil, http.StatusUnauthorized, nil)
	s.do(http.MethodPost, "/admin/login", "", api.LoginRequest{Email: "ops@example.com", Password: "wrong"}, http.StatusUnauthorized, nil)
	s.do(http.MethodGet, "/admin/areas", s.token, nil, http.StatusOK, nil)
}

func (s *APITestSuite) TestAdminAreaAndRateManagement() {
	t := s.T()
	area := s.createArea("Deck", 2)
	car := s.registerCar("MH12ZZ0001")
	s.park(car.ID, area.ID)

	s.do(http.MethodPut, fmt.Sprintf("/admin/areas/%d", area.ID), s.token,
		entities.AreaRequest{Capacity: map[db.VehicleClass]int{db.FourWheeler: 0}}, http.StatusConflict, nil)
	var updated entities.AreaResponse
	s.do(http.MethodPut, fmt.Sprintf("/admin/areas/%d", area.ID), s.token,
		entities.AreaRequest{Name: "Upper Deck", Capacity: map[db.VehicleClass]int{db.FourWheeler: 5}}, http.StatusOK, &updated)
	assert.Equal(t, "Upper Deck", updated.Name)

	s.do(http.MethodDelete, fmt.Sprintf("/admin/areas/%d", area.ID), s.token, nil, http.StatusConflict, nil)
	empty := s.createArea("Empty", 1)
	s.do(http.MethodDelete, fmt.Sprintf("/admin/areas/%d", empty.ID), s.token, nil, http.StatusOK, nil)

	var rate entities.RateResponse
	s.do(http.MethodPut, "/admin/rates/bike", s.token, map[string]string{
		"hourly": "5", "daily": "40", "weekly": "200", "monthly": "600",
	}, http.StatusOK, &rate)
	assert.Equal(t, "2-wheeler", string(rate.VehicleClass))
	assert.Equal(t, "40", rate.Daily.String())

	s.do(http.MethodPut, "/admin/rates/bike", s.token, map[string]string{
		"hourly": "-5", "daily": "40", "weekly": "200", "monthly": "600",
	}, http.StatusBadRequest, nil)
	s.do(http.MethodPut, "/admin/rates/boat", s.token, map[string]string{}, http.StatusBadRequest, nil)

	var rates []entities.RateResponse
	s.do(http.MethodGet, "/api/rates", "", nil, http.StatusOK, &rates)
	assert.Len(t, rates, 3)
}

func (s *APITestSuite) closedOnlinePayment() (sessionID, paymentID string) {
	area := s.createArea("Online", 1)
	car := s.registerCar("DL01XY0001")
	session := s.park(car.ID, area.ID)
	var closed entities.CloseSessionResponse
	s.do(http.MethodPost, "/api/sessions/"+session.ID+"/close", "", entities.CloseSessionRequest{Method: "online"}, http.StatusOK, &closed)
	return session.ID, closed.PaymentID
}

func (s *APITestSuite) postWebhook(eventType, checkoutID, paymentStatus string, secret string) int {
	payload, err := json.Marshal(map[string]interface{}{
		"id":          "evt_test",
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":             checkoutID,
				"object":         "checkout.session",
				"payment_status": paymentStatus,
			},
		},
	})
	require.NoError(s.T(), err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec.Code
}

func (s *APITestSuite) TestCheckoutAndWebhook() {
	t := s.T()
	sessionID, paymentID := s.closedOnlinePayment()

	body := s.do(http.MethodPost, "/api/payments/"+paymentID+"/checkout", "", nil, http.StatusServiceUnavailable, nil)
	assert.Contains(t, body, "Online payment is not available right now")

	s.payments.SetGateway(&fakeGateway{})
	var checkout entities.CheckoutResponse
	s.do(http.MethodPost, "/api/payments/"+paymentID+"/checkout", "", nil, http.StatusOK, &checkout)
	assert.Equal(t, "cs_test_1", checkout.CheckoutID)

	assert.Equal(t, http.StatusBadRequest, s.postWebhook("checkout.session.completed", checkout.CheckoutID, "paid", "whsec_wrong"))
	assert.Equal(t, http.StatusOK, s.postWebhook("checkout.session.completed", checkout.CheckoutID, "unpaid", webhookSecret))

	var payment entities.PaymentResponse
	s.do(http.MethodGet, "/api/checkout/result?session_id="+checkout.CheckoutID, "", nil, http.StatusOK, &payment)
	assert.Equal(t, "pending", string(payment.Status))

	assert.Equal(t, http.StatusOK, s.postWebhook("checkout.session.async_payment_succeeded", checkout.CheckoutID, "paid", webhookSecret))
	s.do(http.MethodGet, "/api/checkout/result?session_id="+checkout.CheckoutID, "", nil, http.StatusOK, &payment)
	assert.Equal(t, "completed", string(payment.Status))

	var session entities.SessionResponse
	s.do(http.MethodGet, "/api/sessions/"+sessionID, "", nil, http.StatusOK, &session)
	assert.Equal(t, "paid", string(session.BillStatus))

	assert.Equal(t, http.StatusOK, s.postWebhook("checkout.session.completed", "cs_unknown", "paid", webhookSecret))
	assert.Equal(t, http.StatusOK, s.postWebhook("customer.created", "cs_ignored", "", webhookSecret))
	s.do(http.MethodGet, "/api/checkout/result", "", nil, http.StatusBadRequest, nil)
}

func (s *APITestSuite) TestWebhookExpiredFailsPayment() {
	_, paymentID := s.closedOnlinePayment()
	s.payments.SetGateway(&fakeGateway{})
	var checkout entities.CheckoutResponse
	s.do(http.MethodPost, "/api/payments/"+paymentID+"/checkout", "", nil, http.StatusOK, &checkout)

	assert.Equal(s.T(), http.StatusOK, s.postWebhook("checkout.session.expired", checkout.CheckoutID, "unpaid", webhookSecret))
	var payment entities.PaymentResponse
	s.do(http.MethodGet, "/api/checkout/result?session_id="+checkout.CheckoutID, "", nil, http.StatusOK, &payment)
	assert.Equal(s.T(), "failed", string(payment.Status))
}

func TestWebhookWithoutSecret(t *testing.T) {
	h := api.NewStripeWebhookHandler("", nil)
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewBufferString("{}")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
