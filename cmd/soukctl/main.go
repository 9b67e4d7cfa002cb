package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/souk/internal/rpc"
	"github.com/matheus3301/souk/internal/session"
	"github.com/matheus3301/souk/internal/tui/client"
	"github.com/spf13/cobra"
)

// cli carries the state shared by every command.
type cli struct {
	sessionName string
	jsonOut     bool
	autoStart   bool
	timeout     time.Duration

	client *client.Client
}

func main() {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "soukctl",
		Short: "Control a souk marketplace session",
		Long:  "soukctl talks to the soukd daemon of a session: sign in, chat, browse the market and manage orders.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.connect()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.client != nil {
				_ = c.client.Close()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&c.sessionName, "session", "s", "", "session name (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&c.autoStart, "start", true, "start soukd when it is not running")
	rootCmd.PersistentFlags().DurationVar(&c.timeout, "timeout", 15*time.Second, "per-command timeout")

	rootCmd.AddCommand(
		newStatusCmd(c),
		newLoginCmd(c),
		newRegisterCmd(c),
		newVerifyCmd(c),
		newOAuthCmd(c),
		newLogoutCmd(c),
		newReconnectCmd(c),
		newEventsCmd(c),
		newChatCmd(c),
		newNotificationsCmd(c),
		newProductsCmd(c),
		newCartCmd(c),
		newOrdersCmd(c),
		newSellerCmd(c),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", rpc.ErrorMessage(err))
		os.Exit(1)
	}
}

func (c *cli) connect() error {
	name := session.Resolve(c.sessionName)
	if err := session.ValidateName(name); err != nil {
		return err
	}
	c.sessionName = name

	socketPath := session.SocketPath(name)
	if c.autoStart {
		if err := client.Ensure(name, socketPath, 10*time.Second, os.Stderr); err != nil {
			return err
		}
	}
	cl, err := client.New(socketPath)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for session %q: %w", name, err)
	}
	c.client = cl
	return nil
}

// print writes v as JSON when --json is set, otherwise calls human.
func (c *cli) print(v any, human func()) {
	if c.jsonOut {
		outputJSON(v)
		return
	}
	human()
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
