package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/rpc"
	"github.com/matheus3301/souk/internal/tui/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Session.Status(ctx, &rpc.StatusRequest{})
			if err != nil {
				return err
			}
			c.print(resp, func() {
				fmt.Printf("Session:   %s\n", resp.Session)
				if resp.SignedIn && resp.User != nil {
					fmt.Printf("User:      %s (#%s)\n", resp.User.Username, resp.User.ID)
				} else if resp.SignedIn {
					fmt.Println("User:      signed in")
				} else {
					fmt.Println("User:      not signed in")
				}
				fmt.Printf("Realtime:  %s\n", resp.Realtime)
				fmt.Printf("Unread:    %d messages, %d notifications\n", resp.TotalUnread, resp.UnreadNotifications)
				fmt.Printf("Queued:    %d\n", resp.QueuedMessages)
				fmt.Printf("Archive:   %d chats, %d messages\n", resp.ChatCount, resp.MessageCount)
				fmt.Printf("Uptime:    %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
			})
			return nil
		},
	}
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

func printUser(c *cli, resp *rpc.LoginResponse) {
	c.print(resp, func() {
		if resp.User != nil {
			fmt.Printf("Signed in as %s.\n", resp.User.Username)
			return
		}
		fmt.Println("Signed in.")
	})
}

func newLoginCmd(c *cli) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in with email and password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				p, err := readPassword("Password: ")
				if err != nil {
					return err
				}
				password = p
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Session.Login(ctx, &rpc.LoginRequest{Email: args[0], Password: password})
			if err != nil {
				return err
			}
			printUser(c, resp)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func newRegisterCmd(c *cli) *cobra.Command {
	var req backend.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register <email> <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Email, req.Username = args[0], args[1]
			p, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			p2, err := readPassword("Repeat password: ")
			if err != nil {
				return err
			}
			req.Password, req.Password2 = p, p2

			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Session.Register(ctx, &rpc.RegisterRequest{RegisterRequest: req})
			if err != nil {
				return err
			}
			c.print(resp, func() { fmt.Println(resp.Message) })
			return nil
		},
	}
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	return cmd
}

func newVerifyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "resend-verification <email>",
		Short: "Send the verification email again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			if _, err := c.client.Session.ResendVerification(ctx, &rpc.ResendVerificationRequest{Email: args[0]}); err != nil {
				return err
			}
			fmt.Println("Verification email sent.")
			return nil
		},
	}
}

func newOAuthCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oauth",
		Short: "Sign in through an identity provider",
	}

	var redirect string
	var showQR bool
	urlCmd := &cobra.Command{
		Use:   "url <provider>",
		Short: "Print the provider's authorization URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Session.OAuthURL(ctx, &rpc.OAuthURLRequest{Provider: args[0], RedirectURI: redirect})
			if err != nil {
				return err
			}
			c.print(resp, func() {
				fmt.Println(resp.URL)
				if !showQR {
					return
				}
				if qr, err := ui.RenderQR(resp.URL, "  "); err == nil {
					fmt.Printf("\n%s", qr)
				}
			})
			return nil
		},
	}
	urlCmd.Flags().StringVar(&redirect, "redirect-uri", "", "redirect URI registered with the provider")
	urlCmd.Flags().BoolVar(&showQR, "qr", false, "also print the URL as a QR code")

	var state string
	callbackCmd := &cobra.Command{
		Use:   "callback <provider> <code>",
		Short: "Complete sign-in with the code the provider returned",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Session.OAuthCallback(ctx, &rpc.OAuthCallbackRequest{Provider: args[0], Code: args[1], State: state})
			if err != nil {
				return err
			}
			printUser(c, resp)
			return nil
		},
	}
	callbackCmd.Flags().StringVar(&state, "state", "", "state value returned by the provider")

	cmd.AddCommand(urlCmd, callbackCmd)
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and wipe local data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			if err := c.client.Session.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Signed out.")
			return nil
		},
	}
}

func newReconnectCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reconnect",
		Short: "Reopen the realtime connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			return c.client.Session.Reconnect(ctx)
		},
	}
}

func newEventsCmd(c *cli) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream daemon events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			stream, err := c.client.Session.WatchEvents(ctx, &rpc.WatchRequest{Prefix: prefix})
			if err != nil {
				return err
			}
			for {
				evt, err := stream.Recv()
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				c.print(evt, func() {
					at := time.UnixMilli(evt.OccurredAtMs).Format("15:04:05")
					fmt.Printf("%s %-24s %s\n", at, evt.Kind, string(evt.Payload))
				})
			}
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only events whose kind starts with prefix (chat., realtime., ...)")
	return cmd
}
