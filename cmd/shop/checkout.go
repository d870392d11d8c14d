package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"shop-checkout/internal/checkout"
	"shop-checkout/internal/client"
	"shop-checkout/internal/display"
	"shop-checkout/internal/dto"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func checkoutCmd(deps func() *app) *cobra.Command {
	var (
		addr   checkout.Address
		method string
		qrOut  string
	)

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart and wait for payment confirmation",
		Long: `Place an order for the current cart, request a payment artifact and wait
until the payment is confirmed, fails, or the 5 minute payment window ends.

Press Enter while waiting to check the payment status immediately.
Ctrl-C stops waiting; the order stays on the orders page.

Example:
  shop checkout --name "Asha Rao" --phone 9876543210 --street "12 MG Road" \
    --city Bengaluru --state Karnataka --pincode 560001 --method upi`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := deps()
			if err := a.requireLogin(); err != nil {
				return err
			}

			m, err := checkout.ParseMethod(method)
			if err != nil {
				return err
			}
			// validated again by CreateOrder; checked here so a bad form
			// never costs a cart round trip
			if err := addr.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			cart, err := a.shop.Cart(ctx)
			if err != nil {
				return err
			}
			if len(cart.Items) == 0 {
				return checkout.ErrEmptyCart
			}

			order, err := a.checkout.CreateOrder(ctx, addr, cart.TotalPrice)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s placed\n", order.ID)

			return payAndWait(cmd, a, m, order, qrOut)
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr.FullName, "name", "", "recipient full name")
	f.StringVar(&addr.Phone, "phone", "", "10 digit phone number")
	f.StringVar(&addr.Street, "street", "", "street address")
	f.StringVar(&addr.Landmark, "landmark", "", "landmark (optional)")
	f.StringVar(&addr.City, "city", "", "city")
	f.StringVar(&addr.State, "state", "", "state")
	f.StringVar(&addr.Pincode, "pincode", "", "6 digit pincode")
	f.StringVarP(&method, "method", "m", string(checkout.MethodUPI), "payment method: upi or card")
	f.StringVar(&qrOut, "qr-out", "", "also save the QR code as a PNG at this path")

	return cmd
}

func payCmd(deps func() *app) *cobra.Command {
	var (
		method string
		qrOut  string
	)

	cmd := &cobra.Command{
		Use:   "pay <orderId>",
		Short: "Retry payment for an order that was placed but not paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := deps()
			if err := a.requireLogin(); err != nil {
				return err
			}

			m, err := checkout.ParseMethod(method)
			if err != nil {
				return err
			}

			orderID := dto.OrderID(args[0])
			paid, err := a.checkout.AlreadyPaid(cmd.Context(), orderID)
			if err != nil {
				return err
			}
			if paid {
				return fmt.Errorf("order %s is already paid", orderID)
			}

			order, err := pendingOrderFor(cmd.Context(), a.shop, a.cfg.Checkout.OrderIDPrefix, orderID, a.log)
			if err != nil {
				return err
			}
			return payAndWait(cmd, a, m, order, qrOut)
		},
	}

	cmd.Flags().StringVarP(&method, "method", "m", string(checkout.MethodUPI), "payment method: upi or card")
	cmd.Flags().StringVar(&qrOut, "qr-out", "", "also save the QR code as a PNG at this path")

	return cmd
}

func paymentReturnCmd(deps func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "payment-return <orderId>",
		Short: "Confirm a payment after returning from the hosted payment page",
		Long: `Check the payment status of an order once. A paid or failed order is
reported right away; a pending one is re-checked every poll interval for a
limited number of attempts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := deps()
			if err := a.requireLogin(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			attempts := a.cfg.Checkout.ReturnPollAttempts
			flow := &paymentReturn{
				lookup:  a.shopClient,
				session: a.shop,
				prefix:  a.cfg.Checkout.OrderIDPrefix,
				log:     a.log,
				newPoller: func() *checkout.Poller {
					return a.checkout.NewPoller(checkout.PollerConfig{
						MaxAttempts: attempts,
						Timeout:     time.Duration(attempts+1) * a.cfg.Checkout.PollInterval,
					}, nil)
				},
			}
			return flow.run(ctx, cmd.OutOrStdout(), args[0])
		},
	}
}

func orderStatusCmd(deps func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "order-status <orderId>",
		Short: "Look up the payment status of an order once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := deps()
			if err := a.requireLogin(); err != nil {
				return err
			}

			orderID := checkout.NormalizeOrderID(args[0], a.cfg.Checkout.OrderIDPrefix)
			res, err := a.shopClient.OrderStatus(cmd.Context(), orderID)
			if err != nil {
				if errors.Is(err, client.ErrUnauthorized) {
					_ = a.shop.Clear(cmd.Context())
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Order %s: %s\n", orderID, res.Status)
			if txn := res.Transaction(); txn != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Transaction: %s\n", txn)
			}
			return nil
		},
	}
}

// payAndWait requests the payment artifact, shows it with the countdown and
// blocks until the poller reaches an outcome or the user interrupts.
func payAndWait(cmd *cobra.Command, a *app, method checkout.Method, order *checkout.PendingOrder, qrOut string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	payment, err := a.checkout.Pay(ctx, method, order)
	if err != nil {
		return fmt.Errorf("%w\nretry with: shop pay %s --method %s", err, order.ID, method)
	}
	if err := display.Artifact(out, payment, qrOut); err != nil {
		return err
	}

	poller := a.checkout.NewPoller(checkout.PollerConfig{}, nil)
	if !poller.Start(ctx, payment.OrderID.String()) {
		return errors.New("a payment check is already running")
	}

	countdownCtx, cancelCountdown := context.WithCancel(ctx)
	countdownDone := make(chan struct{})
	go func() {
		defer close(countdownDone)
		display.Countdown(countdownCtx, out, time.Now().Add(a.cfg.Checkout.PaymentTimeout))
	}()

	go checkOnEnter(ctx, cmd.InOrStdin(), poller)

	fmt.Fprintln(out, "Waiting for payment confirmation. Press Enter to check now, Ctrl-C to stop.")

	select {
	case <-poller.Done():
	case <-ctx.Done():
	}
	cancelCountdown()
	<-countdownDone

	return waitForOutcome(ctx, out, poller)
}

// checkOnEnter turns each line on in into a manual status check.
func checkOnEnter(ctx context.Context, in io.Reader, poller *checkout.Poller) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil || poller.State() != checkout.StatePolling {
			return
		}
		go poller.CheckNow(ctx)
	}
}

// waitForOutcome blocks until the poll session ends and turns its outcome
// into the command result.
func waitForOutcome(ctx context.Context, out io.Writer, poller *checkout.Poller) error {
	select {
	case <-poller.Done():
	case <-ctx.Done():
		poller.Stop()
	}

	o := poller.Outcome()
	switch o.State {
	case checkout.StateConfirmed:
		printConfirmation(out, o.OrderID, o.TransactionID)
		return nil
	case checkout.StateFailed, checkout.StateCancelled, checkout.StateExpired:
		return &exitError{code: exitPaymentEnded, err: o.Err}
	case checkout.StateUnauthorized:
		return &exitError{code: exitUnauthorized, err: o.Err}
	case checkout.StateTimedOut:
		err := o.Err
		if errors.Is(err, checkout.ErrPaymentTimeout) {
			err = fmt.Errorf("%w. Please check your orders", err)
		}
		return &exitError{code: exitTimedOut, err: err}
	default:
		return &exitError{code: exitInterrupted, err: fmt.Errorf("stopped waiting; order %s is on the orders page", o.OrderID)}
	}
}

func printConfirmation(out io.Writer, orderID, transactionID string) {
	fmt.Fprintln(out, "Payment successful!")
	fmt.Fprintf(out, "Order:       %s\n", orderID)
	if transactionID != "" {
		fmt.Fprintf(out, "Transaction: %s\n", transactionID)
	}
}
