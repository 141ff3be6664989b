package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paysession-be/internal/checkout"
	"paysession-be/internal/config"
	"paysession-be/internal/confirm"
	"paysession-be/internal/db"
	"paysession-be/internal/gateway"
	"paysession-be/internal/logger"
	"paysession-be/internal/middleware"
	"paysession-be/internal/notification"
	"paysession-be/internal/payment"
	httptransport "paysession-be/internal/transport/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	initDBFunc      = db.NewDatabase
	startServerFunc = startServer
)

// server is the composed application: the HTTP handler plus the background
// loops it depends on.
type server struct {
	handler  http.Handler
	notifier *payment.PGNotifier
	limiter  *middleware.RateLimiter
	closers  []func() error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server exited:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Init(cfg.AppEnv, cfg.LogLevel)
	defer logger.Sync()

	database, err := initDBFunc(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	srv, err := newServer(cfg, database)
	if err != nil {
		return err
	}
	defer srv.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go srv.limiter.Run(ctx)
	go func() {
		if err := srv.notifier.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("status notifier stopped", zap.Error(err))
		}
	}()

	return startServerFunc(ctx, ":"+cfg.AppPort, srv.handler, cfg.ShutdownTimeout)
}

func newServer(cfg *config.Config, database *sql.DB) (*server, error) {
	s := &server{}

	// Status store
	listener, notifier := payment.NewPGListener(cfg.DSN())
	s.closers = append(s.closers, listener.Close)
	s.notifier = notifier

	paymentRepo := payment.NewRepository(database)
	store := payment.NewStore(paymentRepo, notifier)
	paymentSvc := payment.NewService(paymentRepo)

	// Confirmation
	marker, err := newMarker(cfg, database, s)
	if err != nil {
		return nil, err
	}

	var publisher notification.Publisher = notification.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := notification.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		s.closers = append(s.closers, kp.Close)
		publisher = kp
	}

	backend := confirm.NewHTTPBackend(cfg.BackendConfirmURL, cfg.BackendTimeout)
	coordinator := confirm.NewCoordinator(marker, store, backend, publisher)

	// Gateway
	hub := gateway.NewHub()
	client := gateway.NewClient(gateway.ClientConfig{
		ClientID:      cfg.Gateway.ClientID,
		SecretKey:     cfg.Gateway.SecretKey,
		BaseURL:       cfg.Gateway.BaseURL,
		SDKURL:        cfg.Gateway.SDKURL,
		CallbackToken: cfg.Gateway.CallbackToken,
		Timeout:       cfg.Gateway.HTTPTimeout,
	}, hub)
	bootstrap := gateway.NewBootstrap(client, client, cfg.Gateway.PollInterval, cfg.Gateway.PollAttempts)
	reserved := gateway.NewReservedCodec(cfg.ReservedSigningKey, cfg.ReservedTTL)

	// Checkout
	initiator := checkout.NewInitiator(checkout.Config{
		ClientID:       cfg.Gateway.ClientID,
		HasCredentials: cfg.Gateway.HasCredentials(),
		ReturnURL:      cfg.Gateway.ReturnURL,
		Origin:         cfg.Gateway.Origin,
		GoodsName:      cfg.Gateway.GoodsName,
		Timeout:        cfg.Gateway.CheckoutTimeout,
		Transfer: checkout.TransferAccount{
			Bank:    cfg.TransferBank,
			Account: cfg.TransferAccount,
			Holder:  cfg.TransferHolder,
		},
	}, client, bootstrap, reserved, coordinator)
	redirects := checkout.NewRedirectHandler(coordinator, reserved, cfg.ProcessingBudget)
	watcher := payment.NewWatcher(store, initiator.InProgress)

	// Transport
	s.limiter = middleware.NewRateLimiter(cfg.InternalServiceKey)
	handler := httptransport.New(httptransport.Deps{
		Sessions:  paymentSvc,
		Checkout:  initiator,
		Redirects: redirects,
		Watcher:   watcher,
		Verifier:  client,
		Callbacks: hub,
		Views: checkout.Views{
			Success:  cfg.SuccessViewURL,
			Failure:  cfg.FailureViewURL,
			Checkout: cfg.CheckoutViewURL,
		},
		DB:    database,
		Stats: coordinator,
	})
	s.handler = httptransport.NewRouter(handler,
		middleware.CORS(cfg.Gateway.Origin),
		s.limiter.Middleware,
	)

	logger.L().Info("server composed",
		zap.String("env", cfg.AppEnv),
		zap.String("marker_backend", cfg.MarkerBackend),
		zap.Bool("kafka", len(cfg.KafkaBrokers) > 0),
		zap.Bool("gateway_credentials", cfg.Gateway.HasCredentials()),
	)
	return s, nil
}

func newMarker(cfg *config.Config, database *sql.DB, s *server) (confirm.Marker, error) {
	switch cfg.MarkerBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s.closers = append(s.closers, rdb.Close)
		return confirm.NewRedisMarker(rdb, cfg.MarkerTTL), nil
	case "postgres":
		return confirm.NewPostgresMarker(database, cfg.MarkerTTL), nil
	case "memory":
		return confirm.NewMemoryMarker(cfg.MarkerTTL), nil
	default:
		return nil, fmt.Errorf("unknown marker backend %q", cfg.MarkerBackend)
	}
}

func (s *server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.L().Warn("close failed", zap.Error(err))
		}
	}
}

// startServer serves until ctx is done, then drains in-flight requests.
func startServer(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("http server listening", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.L().Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
