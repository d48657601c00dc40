package conversation

import (
	"slices"
	"strings"
	"time"

	"circle-chat/internal/domain/message"
	"circle-chat/internal/domain/user"
)

type Kind string

const (
	KindDirect Kind = "direct"
	KindGroup  Kind = "group"
)

// Conversation is a document in the chats collection, either a direct pair or a group.
type Conversation struct {
	ID              string            `json:"id"`
	Kind            Kind              `json:"type"`
	Participants    []string          `json:"participants"`
	LastMessage     string            `json:"last_message"`
	LastMessageTime *time.Time        `json:"last_message_time,omitempty"`
	Messages        []message.Message `json:"messages,omitempty"`

	// Blocked is a record-level block flag with no known direction.
	Blocked bool `json:"blocked,omitempty"`

	// Direct only. Read-only copy of the counterpart's profile.
	OtherUser *user.User `json:"other_user,omitempty"`

	// Group only.
	GroupName  string     `json:"group_name,omitempty"`
	GroupPhoto string     `json:"group_photo,omitempty"`
	Admins     []string   `json:"admins,omitempty"`
	CreatedBy  string     `json:"created_by,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

func (c Conversation) IsGroup() bool {
	return c.Kind == KindGroup
}

func (c Conversation) HasMember(id string) bool {
	return slices.Contains(c.Participants, id)
}

func (c Conversation) IsAdmin(id string) bool {
	return c.IsGroup() && slices.Contains(c.Admins, id)
}

// OtherParticipant returns the first participant that is not self.
func (c Conversation) OtherParticipant(self string) string {
	for _, p := range c.Participants {
		if p != self {
			return p
		}
	}
	return ""
}

// IsDirectPair reports whether c is a two-party conversation between exactly a and b.
func (c Conversation) IsDirectPair(a, b string) bool {
	if c.IsGroup() || len(c.Participants) != 2 {
		return false
	}
	return c.HasMember(a) && c.HasMember(b) && a != b
}

// Title is the group name or the counterpart's label.
func (c Conversation) Title() string {
	if c.IsGroup() {
		return c.GroupName
	}
	if c.OtherUser != nil {
		return c.OtherUser.Label()
	}
	return ""
}

// Matches is the case-insensitive search used by the conversation list.
func (c Conversation) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(c.Title()), term) {
		return true
	}
	if c.OtherUser != nil && strings.Contains(strings.ToLower(c.OtherUser.Username), term) {
		return true
	}
	return strings.Contains(strings.ToLower(c.LastMessage), term)
}

// Summary drops the message history, which only the selected conversation carries.
func (c Conversation) Summary() Conversation {
	c.Messages = nil
	return c
}

// SortByRecent orders conversations by LastMessageTime descending. A missing time counts
// as the zero time and sorts last.
func SortByRecent(convs []Conversation) {
	slices.SortStableFunc(convs, func(a, b Conversation) int {
		return recency(b).Compare(recency(a))
	})
}

func recency(c Conversation) time.Time {
	if c.LastMessageTime == nil {
		return time.Time{}
	}
	return *c.LastMessageTime
}

// DirectID is the deterministic id of the direct conversation between a and b.
func DirectID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "direct_" + a + "_" + b
}
