package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"shop-checkout/internal/client"

	"github.com/spf13/cobra"
)

var Version = "dev"

const (
	exitOK           = 0
	exitFailure      = 1
	exitPaymentEnded = 2 // FAILED, CANCELLED or EXPIRED
	exitUnauthorized = 3
	exitTimedOut     = 4
	exitInterrupted  = 130
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	var a *app

	rootCmd := &cobra.Command{
		Use:           "shop",
		Short:         "Shop client: cart, checkout and payment confirmation",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = newApp(cmd.Context())
			return err
		},
	}

	deps := func() *app { return a }

	rootCmd.AddCommand(loginCmd(deps))
	rootCmd.AddCommand(registerCmd(deps))
	rootCmd.AddCommand(logoutCmd(deps))
	rootCmd.AddCommand(productsCmd(deps))
	rootCmd.AddCommand(cartCmd(deps))
	rootCmd.AddCommand(ordersCmd(deps))
	rootCmd.AddCommand(checkoutCmd(deps))
	rootCmd.AddCommand(payCmd(deps))
	rootCmd.AddCommand(paymentReturnCmd(deps))
	rootCmd.AddCommand(orderStatusCmd(deps))
	rootCmd.AddCommand(webhookCmd(deps))

	os.Exit(execute(rootCmd, os.Stderr, func() {
		if a != nil {
			a.Close()
		}
	}))
}

// execute runs root and maps its error to an exit code. release runs on every
// path, including a failed command, before the code is returned.
func execute(root *cobra.Command, stderr io.Writer, release func()) int {
	defer release()

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	var exitErr *exitError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &exitErr):
		return exitErr.code
	case client.IsAuthError(err):
		return exitUnauthorized
	default:
		return exitFailure
	}
}
