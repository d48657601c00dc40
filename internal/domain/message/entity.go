package message

import (
	"slices"
	"strings"
	"time"
)

// SystemSender is the sender id on messages authored by the app itself.
const SystemSender = "system"

const (
	ImagePlaceholder = "📷 Image"
	GifPlaceholder   = "GIF"
)

// Message is a document in chats/{chatId}/messages.
type Message struct {
	ID        string     `json:"id"`
	ChatID    string     `json:"chat_id"`
	SenderID  string     `json:"sender_id"`
	Content   string     `json:"content"`
	ImageURL  string     `json:"image_url,omitempty"`
	GifURL    string     `json:"gif_url,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Edited    bool       `json:"is_edited"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	Deleted   bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy string     `json:"deleted_by,omitempty"`
	System    bool       `json:"system,omitempty"`
}

// Preview is the text stored as the conversation's lastMessage.
func Preview(content, imageURL, gifURL string) string {
	if text := strings.TrimSpace(content); text != "" {
		return text
	}
	if imageURL != "" {
		return ImagePlaceholder
	}
	if gifURL != "" {
		return GifPlaceholder
	}
	return ""
}

func (m Message) Preview() string {
	return Preview(m.Content, m.ImageURL, m.GifURL)
}

// SortByTimestamp orders messages ascending by timestamp. Ties keep arrival order.
// A missing timestamp is a pending server write and sorts after every stamped message.
func SortByTimestamp(msgs []Message) {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		switch {
		case a.Timestamp == nil && b.Timestamp == nil:
			return 0
		case a.Timestamp == nil:
			return 1
		case b.Timestamp == nil:
			return -1
		}
		return a.Timestamp.Compare(*b.Timestamp)
	})
}

// Edit is the payload written when the author saves an edit.
type Edit struct {
	MessageID string
	Content   string
	EditedAt  time.Time
}

// ApplyEdit patches the matching message in place. Applying the same edit twice is a no-op,
// and an edit older than the one already applied is ignored.
func ApplyEdit(msgs []Message, e Edit) bool {
	for i := range msgs {
		if msgs[i].ID != e.MessageID {
			continue
		}
		if msgs[i].EditedAt != nil && msgs[i].EditedAt.After(e.EditedAt) {
			return false
		}
		at := e.EditedAt
		msgs[i].Content = e.Content
		msgs[i].Edited = true
		msgs[i].EditedAt = &at
		return true
	}
	return false
}
