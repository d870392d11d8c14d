package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"shop-checkout/internal/client"
	"shop-checkout/internal/dto"
	"shop-checkout/internal/model"
	"shop-checkout/internal/repository"
	"time"
)

const (
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
)

var (
	ErrWebhookSecretMissing = errors.New("webhook secret not configured")
	ErrInvalidSignature     = errors.New("invalid signature")
)

type WebhookService interface {
	// HandleWebhook verifies a provider callback and relays it to the
	// backend. Only verification problems are returned; relay failures are
	// logged.
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) error
}

type webhookServiceImpl struct {
	secret           string
	forwarder        client.WebhookForwarder
	webhookEventRepo repository.WebhookEventRepository
	publisher        client.EventPublisher
	log              *slog.Logger
}

func NewWebhookService(
	secret string,
	forwarder client.WebhookForwarder,
	webhookEventRepo repository.WebhookEventRepository,
	publisher client.EventPublisher,
	log *slog.Logger,
) WebhookService {
	return &webhookServiceImpl{
		secret:           secret,
		forwarder:        forwarder,
		webhookEventRepo: webhookEventRepo,
		publisher:        publisher,
		log:              log,
	}
}

// cashfreeEvent is the subset of the provider payload the relay logs.
type cashfreeEvent struct {
	Type string `json:"type"`
	Data struct {
		Order struct {
			OrderID dto.OrderID `json:"order_id"`
		} `json:"order"`
	} `json:"data"`
}

type WebhookReceivedEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type,omitempty"`
	OrderID    string    `json:"order_id,omitempty"`
	Forwarded  bool      `json:"forwarded"`
	ReceivedAt time.Time `json:"received_at"`
}

// Sign returns base64(HMAC-SHA256(secret, "{timestamp}.{body}")).
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (s *webhookServiceImpl) HandleWebhook(ctx context.Context, headers http.Header, body []byte) error {
	if s.secret == "" {
		return ErrWebhookSecretMissing
	}

	signature := headers.Get(HeaderWebhookSignature)
	timestamp := headers.Get(HeaderWebhookTimestamp)
	expected := Sign(s.secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}

	digest := sha256.Sum256([]byte(signature))
	eventID := hex.EncodeToString(digest[:])

	seen, err := s.webhookEventRepo.Exists(ctx, eventID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if seen {
		s.log.Info("duplicate webhook delivery", "event_id", eventID)
		return nil
	}

	var payload cashfreeEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		s.log.Warn("decode webhook payload", "error", err)
	}

	forwarded := true
	if err := s.forwarder.Forward(ctx, headers, body); err != nil {
		forwarded = false
		s.log.Error("forward webhook to backend", "event_id", eventID, "order_id", payload.Data.Order.OrderID, "error", err)
	}

	event := &model.WebhookEvent{
		EventID:   eventID,
		EventType: payload.Type,
		OrderID:   payload.Data.Order.OrderID.String(),
		Forwarded: forwarded,
	}
	// only successful relays are remembered, the provider retries the rest
	if forwarded {
		if err := s.webhookEventRepo.MarkProcessed(ctx, event); err != nil {
			s.log.Error("mark webhook processed", "event_id", eventID, "error", err)
		}
	}

	err = s.publisher.Publish(ctx, client.SubjectWebhookReceived, &WebhookReceivedEvent{
		EventID:    eventID,
		EventType:  event.EventType,
		OrderID:    event.OrderID,
		Forwarded:  forwarded,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("publish event", "subject", client.SubjectWebhookReceived, "error", err)
	}
	return nil
}
