package main

import (
	"fmt"
	"shop-checkout/internal/dto"

	"github.com/spf13/cobra"
)

func loginCmd(deps func() *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := deps()
			if err := a.shop.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (cart: %d items)\n", email, a.session.CartCount())
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func registerCmd(deps func() *app) *cobra.Command {
	var req dto.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := deps().shop.Register(cmd.Context(), &req); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Registration successful, you can log in now")
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Name, "name", "n", "", "full name")
	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func logoutCmd(deps func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := deps().shop.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
