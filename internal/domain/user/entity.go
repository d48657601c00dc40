package user

import "slices"

// User is the profile record stored under users/{id}.
type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	DisplayName  string   `json:"display_name"`
	ProfilePic   string   `json:"profile_pic,omitempty"`
	Friends      []string `json:"friends"`
	BlockedUsers []string `json:"blocked_users"`
}

// Fallback is the degraded profile used when a lookup fails or the document is missing.
func Fallback(id string) User {
	return User{
		ID:           id,
		Username:     id,
		DisplayName:  id,
		Friends:      []string{},
		BlockedUsers: []string{},
	}
}

func (u User) HasBlocked(id string) bool {
	return id != "" && slices.Contains(u.BlockedUsers, id)
}

func (u User) IsFriend(id string) bool {
	return id != "" && slices.Contains(u.Friends, id)
}

// Label is the name shown in previews and system messages.
func (u User) Label() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}

func (u User) Clone() User {
	u.Friends = slices.Clone(u.Friends)
	u.BlockedUsers = slices.Clone(u.BlockedUsers)
	return u
}
