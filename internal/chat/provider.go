// Package chat is the real-time chat state layer of one signed-in user: identity,
// conversation index, message stream and the room, list and group controllers.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"circle-chat/internal/domain/conversation"
	"circle-chat/internal/domain/message"
	"circle-chat/internal/domain/user"
	"circle-chat/internal/storage"
	"circle-chat/internal/store"
	circle_errors "circle-chat/pkg/errors"
	"circle-chat/pkg/logger"
)

// Auth is the identity collaborator. *auth.Provider implements it.
type Auth interface {
	IdentitySource
	SignOut(ctx context.Context) error
}

// GifSearcher is the animated-image picker. *giphy.Client implements it.
type GifSearcher interface {
	Enabled() bool
	Search(ctx context.Context, query string) []string
}

type Options struct {
	InviteBaseURL string
	NoticeTTL     time.Duration
}

type Deps struct {
	Auth    Auth
	Store   store.DocumentStore
	Blobs   storage.BlobStore
	Cache   ProfileCache
	Gifs    GifSearcher
	Options Options
	Log     *logger.Logger
}

// Provider owns every listener of one user's chat state. Components talk to each other
// only through the Values they publish; the wiring lives in Start.
type Provider struct {
	auth  Auth
	store store.DocumentStore
	gifs  GifSearcher
	log   *logger.Logger

	profiles *ProfileResolver
	identity *IdentityResolver
	index    *ConversationIndex
	stream   *MessageStream
	room     *Room
	list     *ListController
	groups   *GroupController

	mu      sync.Mutex
	started bool
	cancels []func()
}

func NewProvider(d Deps) *Provider {
	log := d.Log
	if log == nil {
		log = logger.NewNop()
	}
	profiles := NewProfileResolver(d.Store, d.Cache, log)
	identity := NewIdentityResolver(d.Auth, d.Store, profiles, log)
	current := identity.Current()
	index := NewConversationIndex(d.Store, profiles, log)
	stream := NewMessageStream(d.Store, log)
	groups := NewGroupController(d.Store, d.Blobs, current, d.Options.InviteBaseURL, log)
	room := NewRoom(d.Store, d.Blobs, stream, groups, log)
	list := NewListController(d.Store, profiles, index, stream, groups, current, d.Options.NoticeTTL, log)

	p := &Provider{
		auth:     d.Auth,
		store:    d.Store,
		gifs:     d.Gifs,
		log:      log,
		profiles: profiles,
		identity: identity,
		index:    index,
		stream:   stream,
		room:     room,
		list:     list,
		groups:   groups,
	}
	groups.OnCreated = p.onGroupCreated
	return p
}

// Start wires the read models together and subscribes to identity changes.
func (p *Provider) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.cancels = []func(){
		p.identity.Current().Watch(p.onUser),
		p.index.List().Watch(p.stream.Sync),
		p.stream.Selected().Watch(p.room.SetConversation),
	}
	p.mu.Unlock()

	p.identity.Start()
}

func (p *Provider) onUser(u *user.User) {
	p.index.SetUser(u)
	p.room.SetUser(u)
	if u == nil {
		p.stream.Select(nil)
	}
}

func (p *Provider) onGroupCreated(c conversation.Conversation) {
	p.index.Upsert(c)
	p.stream.Select(&c)
}

func (p *Provider) User() *Value[*user.User] {
	return p.identity.Current()
}

func (p *Provider) Conversations() *Value[[]conversation.Conversation] {
	return p.index.List()
}

func (p *Provider) Selected() *Value[*conversation.Conversation] {
	return p.stream.Selected()
}

func (p *Provider) Messages() *Value[[]message.Message] {
	return p.stream.Messages()
}

func (p *Provider) Room() *Room {
	return p.room
}

func (p *Provider) List() *ListController {
	return p.list
}

func (p *Provider) Groups() *GroupController {
	return p.groups
}

// Select focuses a conversation from the published list.
func (p *Provider) Select(id string) error {
	c, ok := p.index.Find(id)
	if !ok {
		return fmt.Errorf("conversation %s: %w", id, circle_errors.ErrNotFound)
	}
	p.stream.Select(&c)
	return nil
}

func (p *Provider) Deselect() {
	p.stream.Select(nil)
}

// Block adds id to the current user's block list.
func (p *Provider) Block(ctx context.Context, id string) error {
	return p.updateBlocked(ctx, id, store.ArrayUnion(id))
}

func (p *Provider) Unblock(ctx context.Context, id string) error {
	return p.updateBlocked(ctx, id, store.ArrayRemove(id))
}

func (p *Provider) updateBlocked(ctx context.Context, id string, value any) error {
	self := p.identity.Current().Get()
	if self == nil {
		return ErrSignedOut
	}
	if id = strings.TrimSpace(id); id == "" || id == self.ID {
		return circle_errors.ErrInvalidInput
	}
	if err := p.store.Update(ctx, CollectionUsers, self.ID, []store.Update{
		{Path: fieldBlockedUsers, Value: value},
	}); err != nil {
		return fmt.Errorf("update block list: %w", err)
	}
	p.profiles.Invalidate(ctx, self.ID)
	return nil
}

// SearchGifs returns no results when the picker is disabled.
func (p *Provider) SearchGifs(ctx context.Context, query string) []string {
	if p.gifs == nil || !p.gifs.Enabled() {
		return nil
	}
	return p.gifs.Search(ctx, query)
}

func (p *Provider) GifsEnabled() bool {
	return p.gifs != nil && p.gifs.Enabled()
}

// Close stops every listener: identity, profile, conversations, messages and the room's
// counterpart listener.
func (p *Provider) Close() {
	p.mu.Lock()
	cancels := p.cancels
	p.cancels = nil
	p.started = false
	p.mu.Unlock()

	p.identity.Stop()
	for _, cancel := range cancels {
		cancel()
	}
	p.index.Stop()
	p.stream.Stop()
	p.room.Stop()
	p.list.Stop()
}

// SignOut tears every listener down before signing out, so no listener sees the
// permission errors of a signed-out session.
func (p *Provider) SignOut(ctx context.Context) error {
	p.Close()
	if p.auth == nil {
		return nil
	}
	return p.auth.SignOut(ctx)
}
