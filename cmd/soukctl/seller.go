package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/rpc"
	"github.com/spf13/cobra"
)

func applicationLine(a backend.SellerApplication) string {
	line := fmt.Sprintf("%-6s %-9s %-24s", a.ID, a.Status, a.ShopName)
	if a.User != nil {
		line += " " + a.User.Username
	}
	if a.RejectionReason != "" {
		line += "  (" + a.RejectionReason + ")"
	}
	return line
}

func printApplication(c *cli, resp *rpc.ApplicationResponse) {
	c.print(resp, func() { fmt.Println(applicationLine(resp.Application)) })
}

func newSellerCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seller",
		Short: "Seller onboarding and review",
	}

	var apply rpc.ApplyRequest
	var photos []string
	applyCmd := &cobra.Command{
		Use:   "apply <shop-name>",
		Short: "Apply to become a seller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apply.ShopName = args[0]
			for _, path := range photos {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				apply.Photos = append(apply.Photos, rpc.Photo{Name: filepath.Base(path), Data: data})
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*c.timeout)
			defer cancel()
			resp, err := c.client.Market.Apply(ctx, &apply)
			if err != nil {
				return err
			}
			printApplication(c, resp)
			return nil
		},
	}
	applyCmd.Flags().StringVar(&apply.Description, "description", "", "what the shop sells")
	applyCmd.Flags().StringVar(&apply.Phone, "phone", "", "contact phone")
	applyCmd.Flags().StringSliceVar(&photos, "photo", nil, "photo file (repeatable)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show your own application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Market.MyApplication(ctx)
			if err != nil {
				return err
			}
			printApplication(c, resp)
			return nil
		},
	}

	var filter string
	listCmd := &cobra.Command{
		Use:   "applications",
		Short: "List applications (staff)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Market.Applications(ctx, filter)
			if err != nil {
				return err
			}
			c.print(resp, func() {
				if len(resp.Applications) == 0 {
					fmt.Println("No applications.")
					return
				}
				for _, a := range resp.Applications {
					fmt.Println(applicationLine(a))
				}
			})
			return nil
		},
	}
	listCmd.Flags().StringVar(&filter, "status", "", "pending, approved or rejected")

	approveCmd := &cobra.Command{
		Use:   "approve <application-id>",
		Short: "Approve an application (staff)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Market.ApproveApplication(ctx, args[0])
			if err != nil {
				return err
			}
			printApplication(c, resp)
			return nil
		},
	}

	var reason string
	rejectCmd := &cobra.Command{
		Use:   "reject <application-id>",
		Short: "Reject an application (staff)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Market.RejectApplication(ctx, &rpc.ReviewRequest{ApplicationID: args[0], Reason: reason})
			if err != nil {
				return err
			}
			printApplication(c, resp)
			return nil
		},
	}
	rejectCmd.Flags().StringVar(&reason, "reason", "", "reason shown to the applicant")

	cmd.AddCommand(applyCmd, statusCmd, listCmd, approveCmd, rejectCmd)
	return cmd
}
