package api

import (
	"github.com/matheus3301/souk/internal/activity"
	"github.com/matheus3301/souk/internal/chat"
	"github.com/matheus3301/souk/internal/rpc"
)

// eventPayload converts bus payloads that have a wire shape. Everything else is
// encoded as is.
func eventPayload(p any) any {
	switch v := p.(type) {
	case chat.MessageEvent:
		return rpc.MessageEvent{
			ChatID:         string(v.ChatID),
			Message:        messageToRPC(v.Message),
			ReplacedTempID: v.ReplacedTempID,
			Incoming:       v.Incoming,
		}
	case chat.TypingChange:
		users := make([]string, 0, len(v.Users))
		for _, u := range v.Users {
			users = append(users, string(u))
		}
		return rpc.TypingEvent{ChatID: string(v.ChatID), Users: users}
	case activity.Item:
		return notificationToRPC(v)
	default:
		return p
	}
}
