package chat

import (
	"strings"

	"circle-chat/internal/domain/conversation"
	"circle-chat/internal/domain/message"
	"circle-chat/internal/domain/user"
	"circle-chat/internal/store"
)

const (
	CollectionUsers    = "users"
	CollectionChats    = "chats"
	SubcollectionMsgs  = "messages"
	fieldParticipants  = "participants"
	fieldMembers       = "members"
	fieldAdmins        = "admins"
	fieldType          = "type"
	fieldGroupName     = "groupName"
	fieldGroupPhoto    = "groupPhoto"
	fieldLastMessage   = "lastMessage"
	fieldLastMsgTime   = "lastMessageTime"
	fieldCreatedBy     = "createdBy"
	fieldCreatedAt     = "createdAt"
	fieldBlockedUsers  = "blockedUsers"
	fieldContent       = "content"
	fieldIsEdited      = "isEdited"
	fieldEditedAt      = "editedAt"
	fieldTimestamp     = "timestamp"
	fieldSenderID      = "senderId"
	fieldMessageChatID = "chatId"
)

// Legacy names, read in priority order after the canonical one. Writes never use them.
var (
	membersKeys = []string{fieldParticipants, fieldMembers}
	photoKeys   = []string{fieldGroupPhoto, "groupImage"}
	adminKeys   = []string{"groupAdmin", "adminId", fieldCreatedBy}
	bodyKeys    = []string{fieldContent, "text"}
	editedKeys  = []string{fieldIsEdited, "edited"}
)

func messagesPath(chatID string) string {
	return store.Sub(CollectionChats, chatID, SubcollectionMsgs)
}

func decodeUser(doc store.Document) user.User {
	u := user.User{
		ID:           doc.ID,
		Username:     store.String(doc.Data, "username"),
		DisplayName:  store.String(doc.Data, "displayName"),
		ProfilePic:   store.String(doc.Data, "profilePic"),
		Friends:      store.Strings(doc.Data, "friends"),
		BlockedUsers: store.Strings(doc.Data, fieldBlockedUsers),
	}
	if u.DisplayName == "" {
		u.DisplayName = u.Username
	}
	return u
}

func isGroupRecord(data map[string]any) bool {
	return store.String(data, fieldType) == string(conversation.KindGroup) ||
		store.Bool(data, "isGroup") ||
		strings.TrimSpace(store.String(data, fieldGroupName)) != ""
}

func decodeConversation(doc store.Document) conversation.Conversation {
	c := conversation.Conversation{
		ID:              doc.ID,
		Kind:            conversation.KindDirect,
		Participants:    store.Strings(doc.Data, membersKeys...),
		LastMessage:     store.String(doc.Data, fieldLastMessage),
		LastMessageTime: store.Time(doc.Data, fieldLastMsgTime),
		Blocked:         store.Bool(doc.Data, "blocked", "isBlocked"),
		CreatedBy:       store.String(doc.Data, fieldCreatedBy),
		CreatedAt:       store.Time(doc.Data, fieldCreatedAt),
	}
	if !isGroupRecord(doc.Data) {
		return c
	}

	c.Kind = conversation.KindGroup
	c.GroupName = store.String(doc.Data, fieldGroupName)
	c.GroupPhoto = store.String(doc.Data, photoKeys...)
	c.Admins = store.Strings(doc.Data, fieldAdmins)
	if len(c.Admins) == 0 {
		if admin := store.String(doc.Data, adminKeys...); admin != "" {
			c.Admins = []string{admin}
		}
	}
	return c
}

func decodeMessage(chatID string, doc store.Document) message.Message {
	m := message.Message{
		ID:        doc.ID,
		ChatID:    chatID,
		SenderID:  store.String(doc.Data, fieldSenderID),
		Content:   store.String(doc.Data, bodyKeys...),
		ImageURL:  store.String(doc.Data, "imageUrl"),
		GifURL:    store.String(doc.Data, "gifUrl"),
		Timestamp: store.Time(doc.Data, fieldTimestamp),
		Edited:    store.Bool(doc.Data, editedKeys...),
		EditedAt:  store.Time(doc.Data, fieldEditedAt),
		Deleted:   store.Bool(doc.Data, "isDeleted"),
		DeletedAt: store.Time(doc.Data, "deletedAt"),
		DeletedBy: store.String(doc.Data, "deletedBy"),
		System:    store.Bool(doc.Data, "system"),
	}
	if stored := store.String(doc.Data, fieldMessageChatID); stored != "" {
		m.ChatID = stored
	}
	if m.SenderID == message.SystemSender {
		m.System = true
	}
	return m
}

func encodeNewMessage(chatID, senderID, content, imageURL, gifURL string) map[string]any {
	data := map[string]any{
		fieldMessageChatID: chatID,
		fieldSenderID:      senderID,
		fieldContent:       content,
		fieldTimestamp:     store.ServerTimestamp,
		fieldIsEdited:      false,
		"isDeleted":        false,
	}
	if imageURL != "" {
		data["imageUrl"] = imageURL
	}
	if gifURL != "" {
		data["gifUrl"] = gifURL
	}
	if senderID == message.SystemSender {
		data["system"] = true
	}
	return data
}

func encodeEdit(e message.Edit) []store.Update {
	return []store.Update{
		{Path: fieldContent, Value: e.Content},
		{Path: fieldIsEdited, Value: true},
		{Path: fieldEditedAt, Value: e.EditedAt},
	}
}

func encodeDirect(self, other string) map[string]any {
	return map[string]any{
		fieldType:         string(conversation.KindDirect),
		fieldParticipants: []string{self, other},
		fieldLastMessage:  "",
		fieldLastMsgTime:  store.ServerTimestamp,
		fieldCreatedBy:    self,
		fieldCreatedAt:    store.ServerTimestamp,
	}
}

func encodeGroup(c conversation.Conversation) map[string]any {
	data := map[string]any{
		fieldType:         string(conversation.KindGroup),
		fieldParticipants: c.Participants,
		fieldGroupName:    c.GroupName,
		fieldAdmins:       c.Admins,
		fieldCreatedBy:    c.CreatedBy,
		fieldCreatedAt:    store.ServerTimestamp,
		fieldLastMessage:  c.LastMessage,
		fieldLastMsgTime:  store.ServerTimestamp,
	}
	if c.GroupPhoto != "" {
		data[fieldGroupPhoto] = c.GroupPhoto
	}
	return data
}

func summaryUpdates(preview string) []store.Update {
	return []store.Update{
		{Path: fieldLastMessage, Value: preview},
		{Path: fieldLastMsgTime, Value: store.ServerTimestamp},
	}
}
