package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func productsCmd(deps func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List the product catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := deps()
			if err := a.requireLogin(); err != nil {
				return err
			}

			products, err := a.shop.Products(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
			for _, p := range products {
				fmt.Fprintf(tw, "%d\t%s\t%s\t₹%s\t%d\n", p.ID, p.Name, p.Category, p.Price.StringFixed(2), p.Stock)
			}
			return tw.Flush()
		},
	}
}

func cartCmd(deps func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show or change the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := deps()
			if err := a.requireLogin(); err != nil {
				return err
			}

			cart, err := a.shop.Cart(cmd.Context())
			if err != nil {
				return err
			}
			if len(cart.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Your cart is empty")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PRODUCT\tNAME\tQTY\tPRICE")
			for _, it := range cart.Items {
				fmt.Fprintf(tw, "%d\t%s\t%d\t₹%s\n", it.ProductID, it.ProductName, it.Quantity, it.Price.StringFixed(2))
			}
			fmt.Fprintf(tw, "\t\tTOTAL\t₹%s\n", cart.TotalPrice.StringFixed(2))
			return tw.Flush()
		},
	}

	cmd.AddCommand(cartChangeCmd(deps, "add", "Add a product to the cart", true))
	cmd.AddCommand(cartChangeCmd(deps, "update", "Set the quantity of a cart item", true))
	cmd.AddCommand(cartChangeCmd(deps, "remove", "Remove a product from the cart", false))

	return cmd
}

func cartChangeCmd(deps func() *app, action, short string, withQty bool) *cobra.Command {
	var quantity int

	use := action + " <productId>"
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := deps()
			if err := a.requireLogin(); err != nil {
				return err
			}

			productID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid product id %q", args[0])
			}

			ctx := cmd.Context()
			switch action {
			case "add":
				err = a.shop.AddToCart(ctx, productID, quantity)
			case "update":
				err = a.shop.UpdateCartItem(ctx, productID, quantity)
			case "remove":
				err = a.shop.RemoveFromCart(ctx, productID)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Cart updated (%d items)\n", a.session.CartCount())
			return nil
		},
	}

	if withQty {
		cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "item quantity")
	}
	return cmd
}

func ordersCmd(deps func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "Show order history",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := deps()
			if err := a.requireLogin(); err != nil {
				return err
			}

			orders, err := a.shop.Orders(cmd.Context())
			if err != nil {
				return err
			}
			if len(orders) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No orders yet")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ORDER\tDATE\tSTATUS\tITEMS\tTOTAL")
			for _, o := range orders {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t₹%s\n", o.ID, o.OrderDate, o.Status, len(o.Items), o.Total.StringFixed(2))
			}
			return tw.Flush()
		},
	}
}
