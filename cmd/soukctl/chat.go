package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/matheus3301/souk/internal/rpc"
	"github.com/spf13/cobra"
)

func newChatCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Conversations and messages",
	}
	cmd.AddCommand(
		newChatListCmd(c),
		newChatShowCmd(c),
		newChatWatchCmd(c),
		newChatSendCmd(c),
		newChatSendImageCmd(c),
		newChatStartCmd(c),
		newChatSearchCmd(c),
		newChatOutboxCmd(c),
	)
	return cmd
}

func printMessages(msgs []rpc.Message) {
	for _, m := range msgs {
		printMessage(m)
	}
}

func printMessage(m rpc.Message) {
	body := m.Content
	if m.Type == "image" {
		body = "[image] " + m.ImageURL
	}
	mark := ""
	switch m.Status {
	case "sending":
		mark = " …"
	case "failed":
		mark = " ✗ " + m.Error
	}
	fmt.Printf("%s  #%-6s %s%s\n", m.CreatedAt.Local().Format("01-02 15:04"), m.SenderID, body, mark)
}

func newChatListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Chat.ListConversations(ctx)
			if err != nil {
				return err
			}
			c.print(resp, func() {
				if len(resp.Conversations) == 0 {
					fmt.Println("No conversations.")
					return
				}
				for _, conv := range resp.Conversations {
					preview := ""
					if conv.LastMessage != nil {
						preview = conv.LastMessage.Content
					}
					if len(conv.Typing) > 0 {
						preview = "typing…"
					}
					unread := ""
					if conv.Unread > 0 {
						unread = fmt.Sprintf("(%d)", conv.Unread)
					}
					fmt.Printf("%-6s %-20s %-5s %-20s %s\n", conv.ID, conv.Other.Username, unread, conv.ProductTitle, preview)
				}
				fmt.Printf("\n%d unread\n", resp.TotalUnread)
			})
			return nil
		},
	}
}

func newChatShowCmd(c *cli) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "show <chat-id>",
		Short: "Print a conversation and mark it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Chat.Open(ctx, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = c.client.Chat.Close(context.WithoutCancel(ctx), args[0]) }()
			for p := 2; p <= page; p++ {
				resp, err = c.client.Chat.LoadHistory(ctx, &rpc.HistoryRequest{ChatID: args[0], Page: p})
				if err != nil {
					return err
				}
				if !resp.HasMore {
					break
				}
			}
			c.print(resp, func() { printMessages(resp.Messages) })
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "pages", 1, "number of history pages to load")
	return cmd
}

func newChatWatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <chat-id>",
		Short: "Open a conversation and follow new messages until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			stream, err := c.client.Session.WatchEvents(ctx, &rpc.WatchRequest{Prefix: "chat."})
			if err != nil {
				return err
			}
			resp, err := c.client.Chat.Open(ctx, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = c.client.Chat.Close(context.WithoutCancel(ctx), args[0]) }()
			printMessages(resp.Messages)

			for {
				evt, err := stream.Recv()
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				if evt.Kind != "chat.message" {
					continue
				}
				var me rpc.MessageEvent
				if json.Unmarshal(evt.Payload, &me) == nil && me.ChatID == args[0] {
					printMessage(me.Message)
				}
			}
		},
	}
}

func newChatSendCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "send <chat-id> <text...>",
		Short: "Send a text message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Chat.SendText(ctx, &rpc.SendTextRequest{ChatID: args[0], Text: strings.Join(args[1:], " ")})
			if err != nil {
				return err
			}
			c.print(resp, func() { printMessage(resp.Message) })
			return nil
		},
	}
}

func newChatSendImageCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "send-image <chat-id> <file>",
		Short: "Send an image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*c.timeout)
			defer cancel()
			resp, err := c.client.Chat.SendImage(ctx, &rpc.SendImageRequest{ChatID: args[0], Name: filepath.Base(args[1]), Data: data})
			if err != nil {
				return err
			}
			c.print(resp, func() { printMessage(resp.Message) })
			return nil
		},
	}
}

func newChatStartCmd(c *cli) *cobra.Command {
	var product string
	cmd := &cobra.Command{
		Use:   "start <user-id>",
		Short: "Start (or reopen) a conversation with a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Chat.StartChat(ctx, &rpc.StartChatRequest{UserID: args[0], ProductID: product})
			if err != nil {
				return err
			}
			c.print(resp, func() { fmt.Printf("Conversation %s\n", resp.ChatID) })
			return nil
		},
	}
	cmd.Flags().StringVar(&product, "product", "", "product the conversation is about")
	return cmd
}

func newChatSearchCmd(c *cli) *cobra.Command {
	var chatID string
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Full-text search over archived messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Chat.Search(ctx, &rpc.SearchRequest{Query: strings.Join(args, " "), ChatID: chatID, Limit: limit})
			if err != nil {
				return err
			}
			c.print(resp, func() {
				if len(resp.Results) == 0 {
					fmt.Println("No matches.")
					return
				}
				for _, r := range resp.Results {
					fmt.Printf("%s  chat %-6s #%-6s %s\n", r.CreatedAt.Local().Format(time.DateTime), r.ChatID, r.SenderID, r.Snippet)
				}
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&chatID, "chat", "", "restrict to one conversation")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results")
	return cmd
}

func newChatOutboxCmd(c *cli) *cobra.Command {
	var chatID string
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "List messages waiting to be delivered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()
			resp, err := c.client.Chat.ListOutbox(ctx, chatID)
			if err != nil {
				return err
			}
			c.print(resp, func() {
				if len(resp.Entries) == 0 {
					fmt.Println("Outbox is empty.")
					return
				}
				for _, e := range resp.Entries {
					fmt.Printf("%-8s chat %-6s %-8s attempts=%d %s %s\n", e.Status, e.ChatID, e.Kind, e.Attempts, e.Body, e.Error)
				}
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&chatID, "chat", "", "restrict to one conversation")
	return cmd
}
