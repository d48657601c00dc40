package chat

import "errors"

var (
	ErrNoConversation = errors.New("no conversation selected")
	ErrNothingToSend  = errors.New("nothing to send")
	ErrSendInFlight   = errors.New("a message is already being sent")
	ErrBlocked        = errors.New("conversation is blocked")
	ErrNotAuthor      = errors.New("only the author can edit this message")
	ErrNoEdit         = errors.New("no edit in progress")
	ErrEmptyEdit      = errors.New("edited message cannot be empty")

	ErrGroupNameRequired    = errors.New("group name is required")
	ErrGroupMembersRequired = errors.New("select at least one member")
	ErrNotAdmin             = errors.New("only group admins can do this")
	ErrNotGroup             = errors.New("conversation is not a group")
	ErrNotMember            = errors.New("not a member of this conversation")
	ErrSelfConversation     = errors.New("cannot start a conversation with yourself")
	ErrSignedOut            = errors.New("no signed-in user")
)
