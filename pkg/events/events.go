package events

import (
	"context"
	"time"
)

// Session event types pushed to the user's sockets.
const (
	TypeUser          = "user"
	TypeConversations = "conversations"
	TypeSelected      = "selected"
	TypeMessages      = "messages"
	TypeRoom          = "room"
	TypeNotice        = "notice"
	TypeAlert         = "alert"
	TypeSignedOut     = "signed_out"
)

const ChannelPrefixUser = "channel:user:"

type Event struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

func New(eventType string, data any) Event {
	return Event{Type: eventType, Data: data, Timestamp: time.Now().UnixMilli()}
}

// UserChannel is the fan-out channel for every socket of one user.
func UserChannel(userID string) string {
	return ChannelPrefixUser + userID
}

type Publisher interface {
	Publish(ctx context.Context, channel string, event Event) error
}

// Alert tells which controller raised a failure message.
type Alert struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}
