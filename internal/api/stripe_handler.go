package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"parkingsystem/internal/db"
	apperrors "parkingsystem/internal/errors"
	"parkingsystem/internal/service"
)

const (
	checkoutCompleted          = "checkout.session.completed"
	checkoutAsyncPaymentOK     = "checkout.session.async_payment_succeeded"
	checkoutAsyncPaymentFailed = "checkout.session.async_payment_failed"
	checkoutExpired            = "checkout.session.expired"
	paymentStatusUnpaid        = "unpaid"
)

type StripeWebhookHandler struct {
	StripeSecret   string
	paymentService *service.PaymentService
}

func NewStripeWebhookHandler(stripeSecret string, paymentService *service.PaymentService) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		StripeSecret:   stripeSecret,
		paymentService: paymentService,
	}
}

func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.StripeSecret == "" {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	const maxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Stripe: error reading body: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.StripeSecret)
	if err != nil {
		log.Printf("Stripe: webhook signature verification failed: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var status db.PaymentStatus
	switch event.Type {
	case checkoutCompleted, checkoutAsyncPaymentOK:
		status = db.PaymentCompleted
	case checkoutAsyncPaymentFailed, checkoutExpired:
		status = db.PaymentFailed
	default:
		log.Printf("Stripe: unhandled event type: %s", event.Type)
		w.WriteHeader(http.StatusOK)
		return
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		log.Printf("Stripe: error parsing checkout.session: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if sess.ID == "" {
		log.Printf("Stripe: no session ID in %s", event.Type)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	// Delayed methods complete the checkout before the money arrives; the
	// async_payment events settle them later.
	if event.Type == checkoutCompleted && sess.PaymentStatus == paymentStatusUnpaid {
		log.Printf("Stripe: checkout %s completed, payment still processing", sess.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.paymentService.MarkStatusByGatewayRef(r.Context(), sess.ID, status); err != nil {
		if errors.Is(err, apperrors.ErrPaymentNotFound) {
			log.Printf("Stripe: no payment for checkout %s, ignoring %s", sess.ID, event.Type)
			w.WriteHeader(http.StatusOK)
			return
		}
		log.Printf("Stripe: DB error handling %s for checkout %s: %v", event.Type, sess.ID, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
