package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"shop-checkout/internal/client"
	"shop-checkout/internal/config"
	"shop-checkout/internal/logger"
	"shop-checkout/internal/repository"
	"shop-checkout/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

// app holds the wiring every command shares.
type app struct {
	cfg *config.Config
	log *slog.Logger
	db  *gorm.DB

	publisher  client.EventPublisher
	shopClient client.ShopClient

	session  service.SessionService
	shop     service.ShopService
	checkout service.CheckoutService
	webhook  service.WebhookService
}

func newApp(ctx context.Context) (*app, error) {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	log := logger.New(cfg.Log).With("env", cfg.Environment.Name)

	db, err := client.InitDBClient(cfg.Database)
	if err != nil {
		return nil, err
	}

	publisher, err := client.NewEventPublisher(cfg.NATS.URL, log)
	if err != nil {
		// events are optional, the checkout runs without them
		log.Warn("event publishing disabled", "error", err)
		publisher, _ = client.NewEventPublisher("", log)
	}

	sessionRepo := repository.NewSessionRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)
	paymentAttemptRepo := repository.NewPaymentAttemptRepository(db)

	session := service.NewSessionService(sessionRepo)
	if err := session.Load(ctx); err != nil {
		return nil, err
	}

	shopClient := client.NewShopClient(cfg.APIURL, cfg.Checkout.RequestTimeout, session)
	shop := service.NewShopService(shopClient, session, log)

	return &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		publisher:  publisher,
		shopClient: shopClient,
		session:    session,
		shop:       shop,
		checkout:   service.NewCheckoutService(shopClient, shop, paymentAttemptRepo, publisher, cfg.Checkout, log),
		webhook: service.NewWebhookService(
			cfg.Webhook.Secret,
			client.NewWebhookForwarder(cfg.Webhook.BackendURL, cfg.Webhook.ForwardPath, cfg.Checkout.RequestTimeout),
			webhookEventRepo,
			publisher,
			log,
		),
	}, nil
}

func (a *app) Close() {
	a.publisher.Close()
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (a *app) requireLogin() error {
	if !a.session.LoggedIn() {
		return &exitError{code: exitUnauthorized, err: client.ErrNoSession}
	}
	return nil
}
