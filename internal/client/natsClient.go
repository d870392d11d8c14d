package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectOrderCreated    = "checkout.order.created"
	SubjectPaymentOutcome  = "checkout.payment.outcome"
	SubjectWebhookReceived = "payment.webhook.received"
)

type EventPublisher interface {
	Publish(ctx context.Context, subject string, event any) error
	Close()
}

type natsPublisherImpl struct {
	nc  *nats.Conn
	log *slog.Logger
}

// NewEventPublisher connects to NATS. An empty url yields a publisher that
// drops every event, so callers never need a nil check.
func NewEventPublisher(url string, log *slog.Logger) (EventPublisher, error) {
	if url == "" {
		return noopPublisher{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var nc *nats.Conn
	var err error

	for i := 0; i < 3; i++ {
		nc, err = nats.Connect(url,
			nats.Name("shop-checkout"),
			nats.MaxReconnects(5),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				log.Warn("nats disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info("nats reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err == nil {
			log.Info("connected to nats", "url", url)
			return &natsPublisherImpl{nc: nc, log: log}, nil
		}

		log.Warn("failed to connect to nats", "attempt", i+1, "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to nats: %w", err)
		case <-time.After(2 * time.Second):
		}
	}

	return nil, fmt.Errorf("connect to nats after retries: %w", err)
}

func (p *natsPublisherImpl) Publish(ctx context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	for i := 0; i < 3; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err = p.nc.Publish(subject, data); err != nil {
			p.log.Warn("publish to nats failed", "subject", subject, "attempt", i+1, "error", err)
			continue
		}
		if err = p.nc.FlushTimeout(2 * time.Second); err != nil {
			p.log.Warn("flush nats connection failed", "subject", subject, "error", err)
			continue
		}
		return nil
	}

	return fmt.Errorf("publish %s after retries: %w", subject, err)
}

func (p *natsPublisherImpl) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }
func (noopPublisher) Close()                                     {}
