package httpdto

import (
	"circle-chat/internal/chat"
	"circle-chat/internal/domain/conversation"
	"circle-chat/internal/domain/message"
	"circle-chat/internal/domain/user"
)

type SessionResponse struct {
	User        *user.User `json:"user"`
	GifsEnabled bool       `json:"gifs_enabled"`
}

type DirectConversationRequest struct {
	FriendID string `json:"friendId" binding:"required"`
}

type EditRequest struct {
	Content string `json:"content"`
}

type MembersRequest struct {
	Members []string `json:"members" binding:"required"`
}

type ConversationsResponse struct {
	Conversations []conversation.Conversation `json:"conversations"`
	SelectedID    string                      `json:"selected_id,omitempty"`
}

type MessagesResponse struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []message.Message `json:"messages"`
}

type RoomResponse struct {
	State chat.RoomState `json:"state"`
	Alert string         `json:"alert,omitempty"`
}

type FriendsResponse struct {
	Friends []user.User `json:"friends"`
}

type GifsResponse struct {
	Enabled bool     `json:"enabled"`
	URLs    []string `json:"urls"`
}

type NoticeResponse struct {
	Notice string `json:"notice,omitempty"`
}
