package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/robfig/cron/v3"

	"parkingsystem/internal/api"
	"parkingsystem/internal/config"
	"parkingsystem/internal/repository"
	"parkingsystem/internal/service"
)

type app struct {
	store   *repository.Store
	handler http.Handler
	jobs    *service.JobService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := repository.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, err
	}

	ledger := repository.NewOccupancyLedger()
	areaRepo := repository.NewAreaRepository(store)
	rateRepo := repository.NewRateRepository(store)
	vehicleRepo := repository.NewVehicleRepository(store)
	sessionRepo := repository.NewSessionRepository(store)
	paymentRepo := repository.NewPaymentRepository(store)

	paymentSvc := service.NewPaymentService(store, paymentRepo, sessionRepo, vehicleRepo)
	sessionSvc := service.NewSessionService(store, ledger, sessionRepo, vehicleRepo, rateRepo, paymentSvc)
	paymentSvc.SetBillSettler(sessionSvc)

	if cfg.StripeEnabled() {
		paymentSvc.SetGateway(service.NewStripeService(cfg.StripeSecretKey, cfg.Currency, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL))
	} else {
		log.Println("Stripe not configured, online checkout disabled")
	}
	if cfg.EmailEnabled() || cfg.SMSEnabled() {
		notifier := service.NewNotifier(service.NotifyConfig{
			SendGridAPIKey:   cfg.SendGridAPIKey,
			FromEmail:        cfg.SendGridFromEmail,
			FromName:         cfg.SendGridFromName,
			TwilioAccountSID: cfg.TwilioAccountSID,
			TwilioAuthToken:  cfg.TwilioAuthToken,
			TwilioFromNumber: cfg.TwilioFromNumber,
		})
		paymentSvc.SetNotifier(service.NewSenderService(notifier, cfg.Timezone))
	}

	adminSvc := service.NewAdminService(store, areaRepo, rateRepo)
	vehicleSvc := service.NewVehicleService(store, vehicleRepo)
	authSvc := service.NewAdminAuthService(repository.NewAdminAuthRepository(store), cfg.JWTSecret)

	router := api.NewRouter(api.Handlers{
		Public:    api.NewPublicHandler(sessionSvc, paymentSvc, vehicleSvc, adminSvc),
		Admin:     api.NewAdminHandler(adminSvc, sessionSvc, paymentSvc),
		AdminAuth: api.NewAdminAuthHandler(authSvc),
		Stripe:    api.NewStripeWebhookHandler(cfg.StripeWebhookSecret, paymentSvc),
	}, cfg.JWTSecret)

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)
	var h http.Handler = cors(router)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	h = handlers.CombinedLoggingHandler(os.Stdout, h)

	return &app{
		store:   store,
		handler: h,
		jobs:    service.NewJobService(repository.NewJobRepository(store), cfg.PaymentExpiry),
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer a.store.Close()

	c := cron.New()
	if err := a.jobs.Schedule(c, cfg.ReconcileSchedule, cfg.PaymentExpirySchedule); err != nil {
		log.Fatalf("Failed to schedule jobs: %v", err)
	}
	c.Start()
	defer c.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("Server running on port %s (%s)", cfg.Port, cfg.DBDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}
