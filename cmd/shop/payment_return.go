package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"shop-checkout/internal/checkout"
	"shop-checkout/internal/client"
	"shop-checkout/internal/dto"
	"shop-checkout/internal/service"
)

// paymentReturn confirms a payment after the user comes back from the hosted
// payment page: one immediate check, then short polling only while PENDING.
type paymentReturn struct {
	lookup  checkout.StatusLookup
	session checkout.Session
	prefix  string
	log     *slog.Logger

	// newPoller returns the attempt-capped poller used for PENDING orders.
	newPoller func() *checkout.Poller
}

func (r *paymentReturn) run(ctx context.Context, out io.Writer, rawOrderID string) error {
	orderID := checkout.NormalizeOrderID(rawOrderID, r.prefix)
	fmt.Fprintf(out, "Verifying payment for order %s...\n", orderID)

	res, err := r.lookup.OrderStatus(ctx, orderID)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			if clearErr := r.session.Clear(context.WithoutCancel(ctx)); clearErr != nil {
				r.log.Warn("clear expired session", "error", clearErr)
			}
		}
		if client.IsAuthError(err) {
			return &exitError{code: exitUnauthorized, err: err}
		}
		return fmt.Errorf("could not check payment status right now: %w", err)
	}

	status, err := checkout.ParseStatus(res.Status)
	if err != nil {
		r.log.Info("payment status not settled", "order_id", orderID, "status", res.Status)
		return checkout.ErrStatusUndetermined
	}

	switch status {
	case checkout.StatusPaid:
		if err := r.session.ReconcileCartCount(ctx); err != nil {
			r.log.Warn("reconcile cart count", "error", err)
		}
		printConfirmation(out, orderID, res.Transaction())
		return nil
	case checkout.StatusFailed:
		return &exitError{
			code: exitPaymentEnded,
			err:  &checkout.TerminalPaymentError{OrderID: orderID, Status: status},
		}
	case checkout.StatusPending:
		poller := r.newPoller()
		if !poller.Start(ctx, orderID) {
			return errors.New("a payment check is already running")
		}
		fmt.Fprintln(out, "Payment is still pending, checking again shortly...")
		return waitForOutcome(ctx, out, poller)
	default:
		return checkout.ErrStatusUndetermined
	}
}

// pendingOrderFor rebuilds a pending order from the order history so a
// retried payment still shows what it charges.
func pendingOrderFor(ctx context.Context, shop service.ShopService, prefix string, id dto.OrderID, log *slog.Logger) (*checkout.PendingOrder, error) {
	order := &checkout.PendingOrder{ID: id}

	orders, err := shop.Orders(ctx)
	if err != nil {
		if client.IsAuthError(err) {
			return nil, err
		}
		log.Warn("load order history for amount", "order_id", id, "error", err)
		return order, nil
	}

	want := checkout.NormalizeOrderID(id.String(), prefix)
	for _, o := range orders {
		if checkout.NormalizeOrderID(o.ID.String(), prefix) == want {
			order.TotalPrice = o.Total
			break
		}
	}
	return order, nil
}
