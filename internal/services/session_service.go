package services

import (
	"context"
	"sync"
	"time"

	"circle-chat/internal/auth"
	"circle-chat/internal/chat"
	"circle-chat/internal/domain/conversation"
	"circle-chat/internal/domain/message"
	"circle-chat/internal/domain/user"
	"circle-chat/internal/storage"
	"circle-chat/internal/store"
	circle_errors "circle-chat/pkg/errors"
	"circle-chat/pkg/events"
	"circle-chat/pkg/logger"
)

const defaultPublishTimeout = 2 * time.Second

type SessionConfig struct {
	InviteBaseURL  string
	NoticeTTL      time.Duration
	PublishTimeout time.Duration
}

type SessionDeps struct {
	Verifier *auth.Verifier
	Store    store.DocumentStore
	Blobs    storage.BlobStore
	Cache    chat.ProfileCache
	Gifs     chat.GifSearcher
	Events   events.Publisher
	Config   SessionConfig
	Log      *logger.Logger
}

// Session is the chat state of one signed-in user, shared by all of their sockets.
type Session struct {
	UserID   string
	Provider *chat.Provider

	auth    *auth.Provider
	cancels []func()
}

func (s *Session) stopWatching() {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
}

// SessionService keeps one Session per user and relays its state changes as events.
type SessionService struct {
	verifier *auth.Verifier
	store    store.DocumentStore
	blobs    storage.BlobStore
	cache    chat.ProfileCache
	gifs     chat.GifSearcher
	events   events.Publisher
	cfg      SessionConfig
	log      *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionService(d SessionDeps) *SessionService {
	log := d.Log
	if log == nil {
		log = logger.NewNop()
	}
	cfg := d.Config
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	blobs := d.Blobs
	if blobs == nil {
		blobs = storage.Disabled{}
	}
	return &SessionService{
		verifier: d.Verifier,
		store:    d.Store,
		blobs:    blobs,
		cache:    d.Cache,
		gifs:     d.Gifs,
		events:   d.Events,
		cfg:      cfg,
		log:      log.Named("sessions"),
		sessions: make(map[string]*Session),
	}
}

func (s *SessionService) Verify(token string) (auth.Identity, error) {
	return s.verifier.Parse(token)
}

// Open signs token in, reusing the user's live session when there is one.
func (s *SessionService) Open(ctx context.Context, token string) (*Session, error) {
	id, err := s.verifier.Parse(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.sessions[id.UserID]; ok {
		s.mu.Unlock()
		if _, err := existing.auth.SignIn(token); err != nil {
			return nil, err
		}
		return existing, nil
	}
	sess := s.newSession(id.UserID)
	s.sessions[id.UserID] = sess
	s.mu.Unlock()

	sess.Provider.Start()
	if _, err := sess.auth.SignIn(token); err != nil {
		s.drop(id.UserID, sess)
		sess.stopWatching()
		sess.Provider.Close()
		return nil, err
	}
	s.log.Ctx(ctx).Infof("session opened for %s", id.UserID)
	return sess, nil
}

func (s *SessionService) newSession(userID string) *Session {
	log := s.log.Named(userID)
	identity := auth.NewProvider(s.verifier, log)
	p := chat.NewProvider(chat.Deps{
		Auth:  identity,
		Store: s.store,
		Blobs: s.blobs,
		Cache: s.cache,
		Gifs:  s.gifs,
		Options: chat.Options{
			InviteBaseURL: s.cfg.InviteBaseURL,
			NoticeTTL:     s.cfg.NoticeTTL,
		},
		Log: log,
	})

	sess := &Session{UserID: userID, Provider: p, auth: identity}
	alert := func(source string) func(string) {
		return func(text string) {
			s.publish(userID, events.TypeAlert, events.Alert{Source: source, Text: text})
		}
	}
	sess.cancels = []func(){
		p.User().Watch(func(u *user.User) { s.publish(userID, events.TypeUser, u) }),
		p.Conversations().Watch(func(list []conversation.Conversation) {
			s.publish(userID, events.TypeConversations, list)
		}),
		p.Selected().Watch(func(c *conversation.Conversation) { s.publish(userID, events.TypeSelected, c) }),
		p.Messages().Watch(func(msgs []message.Message) { s.publish(userID, events.TypeMessages, msgs) }),
		p.Room().State().Watch(func(st chat.RoomState) { s.publish(userID, events.TypeRoom, st) }),
		p.List().Notice().Watch(func(text string) { s.publish(userID, events.TypeNotice, text) }),
		p.Room().Alert().Watch(alert("room")),
		p.List().Alert().Watch(alert("list")),
		p.Groups().Alert().Watch(alert("groups")),
	}
	return sess
}

func (s *SessionService) publish(userID, eventType string, data any) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PublishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, events.UserChannel(userID), events.New(eventType, data)); err != nil {
		s.log.Debugf("publish %s to %s: %v", eventType, userID, err)
	}
}

func (s *SessionService) Get(userID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

func (s *SessionService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Snapshot returns the current state of userID's session as the events a fresh socket needs.
func (s *SessionService) Snapshot(userID string) ([]events.Event, bool) {
	sess, ok := s.Get(userID)
	if !ok {
		return nil, false
	}
	p := sess.Provider
	return []events.Event{
		events.New(events.TypeUser, p.User().Get()),
		events.New(events.TypeConversations, p.Conversations().Get()),
		events.New(events.TypeSelected, p.Selected().Get()),
		events.New(events.TypeMessages, p.Messages().Get()),
		events.New(events.TypeRoom, p.Room().State().Get()),
		events.New(events.TypeNotice, p.List().Notice().Get()),
	}, true
}

// Close signs userID out and tears the session down.
func (s *SessionService) Close(ctx context.Context, userID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()
	if !ok {
		return circle_errors.ErrNotFound
	}

	sess.stopWatching()
	err := sess.Provider.SignOut(ctx)
	s.publish(userID, events.TypeSignedOut, nil)
	s.log.Ctx(ctx).Infof("session closed for %s", userID)
	return err
}

func (s *SessionService) CloseAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range all {
		sess.stopWatching()
		sess.Provider.Close()
	}
}

func (s *SessionService) drop(userID string, sess *Session) {
	s.mu.Lock()
	if s.sessions[userID] == sess {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()
}
