// Package database seeds a document store with development data.
package database

import (
	"context"
	"fmt"
	"log"

	"circle-chat/internal/chat"
	"circle-chat/internal/domain/conversation"
	"circle-chat/internal/domain/message"
	"circle-chat/internal/domain/user"
	"circle-chat/internal/store"

	"github.com/google/uuid"
)

var roster = []struct{ username, displayName string }{
	{"alice", "Alice Martin"},
	{"bob", "Bob Chen"},
	{"carol", "Carol Diaz"},
	{"dave", "Dave Okafor"},
	{"erin", "Erin Walsh"},
	{"frank", "Frank Moreau"},
}

// SeedConfig holds configuration for seeding the store
type SeedConfig struct {
	UserCount int
	GroupName string
}

func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		UserCount: 4,
		GroupName: "Circle Team",
	}
}

type SeedResult struct {
	Users         []user.User
	Conversations []conversation.Conversation
	Messages      int
}

// Seed writes mutually befriended users, one direct conversation between the first two
// and a group with everyone. Ids are stable except the group's, so re-running overwrites.
func Seed(ctx context.Context, s store.DocumentStore, cfg *SeedConfig) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}
	count := cfg.UserCount
	if count < 2 {
		count = 2
	}
	if count > len(roster) {
		count = len(roster)
	}

	result := &SeedResult{}
	ids := make([]string, count)
	for i := range count {
		ids[i] = roster[i].username
	}

	log.Println("Seeding users...")
	for i, id := range ids {
		friends := make([]string, 0, count-1)
		for _, other := range ids {
			if other != id {
				friends = append(friends, other)
			}
		}
		u := user.User{
			ID:           id,
			Username:     roster[i].username,
			DisplayName:  roster[i].displayName,
			Friends:      friends,
			BlockedUsers: []string{},
		}
		if err := s.Set(ctx, chat.CollectionUsers, id, map[string]any{
			"username":     u.Username,
			"displayName":  u.DisplayName,
			"friends":      u.Friends,
			"blockedUsers": u.BlockedUsers,
		}); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", id, err)
		}
		result.Users = append(result.Users, u)
	}

	log.Println("Seeding conversations...")
	first, second := result.Users[0], result.Users[1]
	direct := conversation.Conversation{
		ID:           conversation.DirectID(first.ID, second.ID),
		Kind:         conversation.KindDirect,
		Participants: []string{first.ID, second.ID},
		LastMessage:  "Hey " + second.DisplayName + "!",
		CreatedBy:    first.ID,
	}
	if err := s.Set(ctx, chat.CollectionChats, direct.ID, map[string]any{
		"type":            string(direct.Kind),
		"participants":    direct.Participants,
		"lastMessage":     direct.LastMessage,
		"lastMessageTime": store.ServerTimestamp,
		"createdBy":       direct.CreatedBy,
		"createdAt":       store.ServerTimestamp,
	}); err != nil {
		return nil, fmt.Errorf("seed direct conversation: %w", err)
	}
	if err := seedMessage(ctx, s, direct.ID, first.ID, direct.LastMessage); err != nil {
		return nil, err
	}
	result.Messages++
	result.Conversations = append(result.Conversations, direct)

	group := conversation.Conversation{
		ID:           uuid.NewString(),
		Kind:         conversation.KindGroup,
		Participants: ids,
		GroupName:    cfg.GroupName,
		Admins:       []string{first.ID},
		CreatedBy:    first.ID,
		LastMessage:  first.Label() + " created the group",
	}
	if err := s.Set(ctx, chat.CollectionChats, group.ID, map[string]any{
		"type":            string(group.Kind),
		"participants":    group.Participants,
		"groupName":       group.GroupName,
		"admins":          group.Admins,
		"createdBy":       group.CreatedBy,
		"createdAt":       store.ServerTimestamp,
		"lastMessage":     group.LastMessage,
		"lastMessageTime": store.ServerTimestamp,
	}); err != nil {
		return nil, fmt.Errorf("seed group: %w", err)
	}
	if err := seedMessage(ctx, s, group.ID, message.SystemSender, group.LastMessage); err != nil {
		return nil, err
	}
	result.Messages++
	result.Conversations = append(result.Conversations, group)

	log.Printf("Seeded %d users, %d conversations, %d messages", len(result.Users), len(result.Conversations), result.Messages)
	return result, nil
}

func seedMessage(ctx context.Context, s store.DocumentStore, chatID, senderID, content string) error {
	data := map[string]any{
		"chatId":    chatID,
		"senderId":  senderID,
		"content":   content,
		"timestamp": store.ServerTimestamp,
		"isEdited":  false,
		"isDeleted": false,
	}
	if senderID == message.SystemSender {
		data["system"] = true
	}
	if _, err := s.Add(ctx, store.Sub(chat.CollectionChats, chatID, chat.SubcollectionMsgs), data); err != nil {
		return fmt.Errorf("seed message in %s: %w", chatID, err)
	}
	return nil
}
