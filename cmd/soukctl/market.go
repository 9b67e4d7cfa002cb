package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/rpc"
	"github.com/spf13/cobra"
)

func newNotificationsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notes"},
		Short:   "Show the activity feed",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Activity.List(ctx)
			if err != nil {
				return err
			}
			c.print(resp, func() {
				if len(resp.Items) == 0 {
					fmt.Println("No notifications.")
					return
				}
				for _, n := range resp.Items {
					mark := " "
					if !n.Read {
						mark = "•"
					}
					fmt.Printf("%s %s  %-10s %s: %s\n", mark, n.CreatedAt.Local().Format("01-02 15:04"), n.Category, n.Title, n.Message)
				}
				fmt.Printf("\n%d unread\n", resp.Unread)
			})
			return nil
		},
	}

	readCmd := &cobra.Command{
		Use:   "read [id]",
		Short: "Mark one notification, or all of them, as read",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			if len(args) == 1 {
				return c.client.Activity.MarkRead(ctx, args[0])
			}
			n, err := c.client.Activity.MarkAllRead(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Marked %d as read.\n", n)
			return nil
		},
	}
	cmd.AddCommand(readCmd)
	return cmd
}

func productLine(p backend.Product) string {
	fav := " "
	if p.IsFavorited {
		fav = "♥"
	}
	stock := strconv.Itoa(p.Stock) + " left"
	if !p.InStock() {
		stock = "sold out"
	}
	return fmt.Sprintf("%s %-6s %-30s %10s %s  %s", fav, p.ID, p.Title, p.Price.StringFixed(2), p.Currency, stock)
}

func newProductsCmd(c *cli) *cobra.Command {
	var q rpc.ProductsRequest
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Browse the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Market.Products(ctx, &q)
			if err != nil {
				return err
			}
			c.print(resp, func() {
				for _, p := range resp.Products {
					fmt.Println(productLine(p))
				}
				if resp.HasMore {
					fmt.Printf("\n%d products, more with --page %d\n", resp.Count, max(q.Page, 1)+1)
				}
			})
			return nil
		},
	}
	cmd.Flags().StringVarP(&q.Search, "search", "q", "", "search text")
	cmd.Flags().StringVar(&q.Category, "category", "", "category slug")
	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")

	showCmd := &cobra.Command{
		Use:   "show <product-id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Market.Product(ctx, args[0])
			if err != nil {
				return err
			}
			c.print(resp, func() {
				p := resp.Product
				fmt.Println(productLine(p))
				if p.Seller != nil {
					fmt.Printf("  sold by %s (#%s)\n", p.Seller.Username, p.Seller.ID)
				}
				if p.Description != "" {
					fmt.Printf("\n%s\n", p.Description)
				}
			})
			return nil
		},
	}

	favCmd := &cobra.Command{
		Use:   "favorite <product-id>",
		Short: "Toggle a product's favorite flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			fav, err := c.client.Market.ToggleFavorite(ctx, args[0])
			if err != nil {
				return err
			}
			c.print(rpc.FavoriteResponse{Favorited: fav}, func() {
				if fav {
					fmt.Println("Added to favorites.")
				} else {
					fmt.Println("Removed from favorites.")
				}
			})
			return nil
		},
	}

	cmd.AddCommand(showCmd, favCmd)
	return cmd
}

func printCart(c *cli, resp *rpc.CartResponse) {
	c.print(resp, func() {
		if len(resp.Cart.Items) == 0 {
			fmt.Println("Cart is empty.")
			return
		}
		for _, it := range resp.Cart.Items {
			note := ""
			if !it.Product.InStock() {
				note = "  (unavailable)"
			}
			fmt.Printf("%-6s %3d × %-30s %10s%s\n", it.ID, it.Quantity, it.Product.Title, it.Subtotal.StringFixed(2), note)
		}
		fmt.Printf("\nTotal %s, %d of %d items available\n", resp.Cart.Total.StringFixed(2), len(resp.Available), len(resp.Cart.Items))
	})
}

func newCartCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Market.Cart(ctx)
			if err != nil {
				return err
			}
			printCart(c, resp)
			return nil
		},
	}

	var qty int
	addCmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Market.AddToCart(ctx, &rpc.CartItemRequest{ProductID: args[0], Quantity: qty})
			if err != nil {
				return err
			}
			printCart(c, resp)
			return nil
		},
	}
	addCmd.Flags().IntVarP(&qty, "quantity", "n", 1, "quantity")

	setCmd := &cobra.Command{
		Use:   "set <item-id> <quantity>",
		Short: "Change an item's quantity (0 removes it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be a number: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Market.UpdateCartItem(ctx, &rpc.CartItemRequest{ItemID: args[0], Quantity: n})
			if err != nil {
				return err
			}
			printCart(c, resp)
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <item-id>",
		Short: "Remove an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Market.RemoveCartItem(ctx, &rpc.CartItemRequest{ItemID: args[0]})
			if err != nil {
				return err
			}
			printCart(c, resp)
			return nil
		},
	}

	var checkout rpc.CheckoutRequest
	checkoutCmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the available items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Market.Checkout(ctx, &checkout)
			if err != nil {
				return err
			}
			printOrder(c, resp)
			return nil
		},
	}
	checkoutCmd.Flags().StringVar(&checkout.ShippingAddress, "address", "", "shipping address")
	checkoutCmd.Flags().StringVar(&checkout.PaymentMethod, "payment", "", "payment method")
	_ = checkoutCmd.MarkFlagRequired("address")

	cmd.AddCommand(addCmd, setCmd, removeCmd, checkoutCmd)
	return cmd
}

func orderLine(o backend.Order) string {
	line := fmt.Sprintf("%-6s %-11s %10s  %s", o.ID, o.Status, o.Total.StringFixed(2), o.CreatedAt.Local().Format("2006-01-02"))
	if o.TrackingNumber != "" {
		line += fmt.Sprintf("  %s %s", o.Carrier, o.TrackingNumber)
	}
	return line
}

func printOrder(c *cli, resp *rpc.OrderResponse) {
	c.print(resp, func() {
		fmt.Println(orderLine(resp.Order))
		for _, it := range resp.Order.Items {
			fmt.Printf("  %3d × %-30s %10s\n", it.Quantity, it.Product.Title, it.Price.StringFixed(2))
		}
		if resp.CanCancel {
			fmt.Println("  (can still be cancelled)")
		}
	})
}

func newOrdersCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Market.Orders(ctx)
			if err != nil {
				return err
			}
			c.print(resp, func() {
				if len(resp.Orders) == 0 {
					fmt.Println("No orders.")
					return
				}
				for _, o := range resp.Orders {
					fmt.Println(orderLine(o))
				}
			})
			return nil
		},
	}

	cancelCmd := &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Market.CancelOrder(ctx, args[0])
			if err != nil {
				return err
			}
			printOrder(c, resp)
			return nil
		},
	}

	var carrier string
	trackCmd := &cobra.Command{
		Use:   "track <order-id> <tracking-number>",
		Short: "Attach a tracking number (sellers)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Market.AddTracking(ctx, &rpc.TrackingRequest{OrderID: args[0], Carrier: carrier, Number: args[1]})
			if err != nil {
				return err
			}
			printOrder(c, resp)
			return nil
		},
	}
	trackCmd.Flags().StringVar(&carrier, "carrier", "", "shipping carrier")

	cmd.AddCommand(cancelCmd, trackCmd)
	return cmd
}
