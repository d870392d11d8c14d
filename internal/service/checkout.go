package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"shop-checkout/internal/checkout"
	"shop-checkout/internal/client"
	"shop-checkout/internal/config"
	"shop-checkout/internal/dto"
	"shop-checkout/internal/model"
	"shop-checkout/internal/repository"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CheckoutService interface {
	// CreateOrder validates the address and turns the cart into an unpaid
	// order. An invalid address never reaches the backend.
	CreateOrder(ctx context.Context, addr checkout.Address, cartTotal decimal.Decimal) (*checkout.PendingOrder, error)

	Pay(ctx context.Context, method checkout.Method, order *checkout.PendingOrder) (*checkout.Payment, error)
	PayWithUPI(ctx context.Context, order *checkout.PendingOrder) (*checkout.Payment, error)
	PayWithCard(ctx context.Context, order *checkout.PendingOrder) (*checkout.Payment, error)

	// AlreadyPaid reports whether a payment for orderID was confirmed
	// from this machine before.
	AlreadyPaid(ctx context.Context, orderID dto.OrderID) (bool, error)

	// NewPoller returns a status poller wired to the backend and session.
	// Outcomes are published as events before notify is called.
	NewPoller(overrides checkout.PollerConfig, notify func(checkout.Outcome)) *checkout.Poller
}

type checkoutServiceImpl struct {
	shopClient  client.ShopClient
	shop        ShopService
	attemptRepo repository.PaymentAttemptRepository
	publisher   client.EventPublisher
	cfg         config.Checkout
	log         *slog.Logger
}

func NewCheckoutService(
	shopClient client.ShopClient,
	shop ShopService,
	attemptRepo repository.PaymentAttemptRepository,
	publisher client.EventPublisher,
	cfg config.Checkout,
	log *slog.Logger,
) CheckoutService {
	return &checkoutServiceImpl{
		shopClient:  shopClient,
		shop:        shop,
		attemptRepo: attemptRepo,
		publisher:   publisher,
		cfg:         cfg,
		log:         log,
	}
}

type OrderCreatedEvent struct {
	OrderID    string    `json:"order_id"`
	TotalPrice string    `json:"total_price"`
	CreatedAt  time.Time `json:"created_at"`
}

type PaymentOutcomeEvent struct {
	OrderID       string    `json:"order_id"`
	State         string    `json:"state"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Error         string    `json:"error,omitempty"`
	At            time.Time `json:"at"`
}

func (s *checkoutServiceImpl) CreateOrder(ctx context.Context, addr checkout.Address, cartTotal decimal.Decimal) (*checkout.PendingOrder, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	res, err := s.shopClient.Checkout(ctx, addr.ShippingAddress())
	if err != nil {
		var apiErr *client.APIError
		switch {
		case errors.As(err, &apiErr):
			return nil, err
		case errors.Is(err, client.ErrUnauthorized):
			if clearErr := s.shop.Clear(ctx); clearErr != nil {
				s.log.Warn("clear expired session", "error", clearErr)
			}
			return nil, err
		case errors.Is(err, client.ErrNoSession):
			return nil, err
		default:
			s.log.Error("create order", "error", err)
			return nil, fmt.Errorf("%w: %v", checkout.ErrOrderCreation, err)
		}
	}
	if res.OrderID == "" {
		return nil, fmt.Errorf("%w: backend returned no order id", checkout.ErrOrderCreation)
	}

	order := &checkout.PendingOrder{
		ID:         res.OrderID,
		TotalPrice: res.TotalPrice,
		CartTotal:  cartTotal,
	}
	s.log.Info("order created", "order_id", order.ID, "total_price", order.TotalPrice.StringFixed(2))

	s.publish(ctx, client.SubjectOrderCreated, &OrderCreatedEvent{
		OrderID:    order.ID.String(),
		TotalPrice: order.TotalPrice.StringFixed(2),
		CreatedAt:  time.Now().UTC(),
	})
	return order, nil
}

func (s *checkoutServiceImpl) Pay(ctx context.Context, method checkout.Method, order *checkout.PendingOrder) (*checkout.Payment, error) {
	switch method {
	case checkout.MethodUPI:
		return s.PayWithUPI(ctx, order)
	case checkout.MethodCard:
		return s.PayWithCard(ctx, order)
	default:
		return nil, fmt.Errorf("%w: %q", checkout.ErrUnknownMethod, method)
	}
}

func (s *checkoutServiceImpl) PayWithUPI(ctx context.Context, order *checkout.PendingOrder) (*checkout.Payment, error) {
	res, err := s.shopClient.CreateUPIPayment(ctx, order.ID)
	if err != nil {
		return nil, s.paymentError(ctx, "upi", order.ID, err)
	}
	if res.QRCodeURL == "" {
		return nil, fmt.Errorf("upi payment for order %s: backend returned no qr code", order.ID)
	}

	payment := &checkout.Payment{
		Method:    checkout.MethodUPI,
		OrderID:   checkout.CanonicalOrderID(res.OrderID, order.ID),
		Amount:    checkout.ResolveAmount(res.Amount, order.TotalPrice, order.CartTotal),
		QRCodeURL: res.QRCodeURL,
	}
	s.log.Info("upi payment created", "order_id", payment.OrderID, "amount", payment.Amount.StringFixed(2))
	s.recordAttempt(ctx, payment)
	return payment, nil
}

func (s *checkoutServiceImpl) PayWithCard(ctx context.Context, order *checkout.PendingOrder) (*checkout.Payment, error) {
	res, err := s.shopClient.CreateCardPayment(ctx, order.ID)
	if err != nil {
		return nil, s.paymentError(ctx, "card", order.ID, err)
	}
	if res.PaymentLink == "" {
		return nil, fmt.Errorf("card payment for order %s: backend returned no payment link", order.ID)
	}

	payment := &checkout.Payment{
		Method:      checkout.MethodCard,
		OrderID:     checkout.CanonicalOrderID(res.OrderID, order.ID),
		Amount:      checkout.ResolveAmount(order.TotalPrice, order.CartTotal),
		PaymentLink: res.PaymentLink,
	}
	s.log.Info("card payment link created", "order_id", payment.OrderID)
	s.recordAttempt(ctx, payment)
	return payment, nil
}

func (s *checkoutServiceImpl) AlreadyPaid(ctx context.Context, orderID dto.OrderID) (bool, error) {
	paid, err := s.attemptRepo.IsPaid(ctx, checkout.NormalizeOrderID(orderID.String(), s.cfg.OrderIDPrefix))
	if err != nil {
		return false, fmt.Errorf("check payment attempts: %w", err)
	}
	return paid, nil
}

func (s *checkoutServiceImpl) NewPoller(overrides checkout.PollerConfig, notify func(checkout.Outcome)) *checkout.Poller {
	cfg := overrides
	if cfg.Interval <= 0 {
		cfg.Interval = s.cfg.PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = s.cfg.PaymentTimeout
	}
	if cfg.OrderIDPrefix == "" {
		cfg.OrderIDPrefix = s.cfg.OrderIDPrefix
	}
	cfg.Notify = func(o checkout.Outcome) {
		event := &PaymentOutcomeEvent{
			OrderID:       o.OrderID,
			State:         o.State.String(),
			TransactionID: o.TransactionID,
			At:            time.Now().UTC(),
		}
		if o.Err != nil {
			event.Error = o.Err.Error()
		}
		s.settleAttempt(o)
		s.publish(context.Background(), client.SubjectPaymentOutcome, event)

		if notify != nil {
			notify(o)
		}
	}

	return checkout.NewPoller(s.shopClient, s.shop, cfg, s.log)
}

func (s *checkoutServiceImpl) paymentError(ctx context.Context, method string, orderID dto.OrderID, err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		if clearErr := s.shop.Clear(ctx); clearErr != nil {
			s.log.Warn("clear expired session", "error", clearErr)
		}
		return err
	}
	s.log.Error("create payment", "method", method, "order_id", orderID, "error", err)
	return fmt.Errorf("%s payment for order %s: %w", method, orderID, err)
}

func (s *checkoutServiceImpl) recordAttempt(ctx context.Context, p *checkout.Payment) {
	err := s.attemptRepo.Create(ctx, &model.PaymentAttempt{
		OrderID: checkout.NormalizeOrderID(p.OrderID.String(), s.cfg.OrderIDPrefix),
		Method:  string(p.Method),
		Amount:  p.Amount.StringFixed(2),
	})
	if err != nil {
		s.log.Warn("record payment attempt", "order_id", p.OrderID, "error", err)
	}
}

// settleAttempt stores a poll outcome against the attempt that started it.
// Polls without an attempt (payment-return) have nothing to settle.
func (s *checkoutServiceImpl) settleAttempt(o checkout.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.attemptRepo.MarkOutcome(ctx, o.OrderID, o.State.String(), o.TransactionID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warn("settle payment attempt", "order_id", o.OrderID, "error", err)
	}
}

// publish is best effort; the checkout never fails because the event bus is
// down.
func (s *checkoutServiceImpl) publish(ctx context.Context, subject string, event any) {
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		s.log.Warn("publish event", "subject", subject, "error", err)
	}
}
