package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"circle-chat/internal/domain/conversation"
	"circle-chat/internal/domain/user"
	"circle-chat/internal/store"
	"circle-chat/pkg/diagnostics"
	"circle-chat/pkg/logger"
)

type Tab string

const (
	TabConversations Tab = "conversations"
	TabFriends       Tab = "friends"
)

const DefaultNoticeTTL = 3 * time.Second

// ListController drives the conversation and friend lists.
type ListController struct {
	store    store.DocumentStore
	profiles *ProfileResolver
	index    *ConversationIndex
	stream   *MessageStream
	groups   *GroupController
	current  *Value[*user.User]
	notice   *Value[string]
	alert    *Value[string]
	log      *logger.Logger
	ttl      time.Duration

	mu          sync.Mutex
	tab         Tab
	search      string
	friends     []user.User
	noticeTimer *time.Timer
}

func NewListController(s store.DocumentStore, profiles *ProfileResolver, index *ConversationIndex, stream *MessageStream, groups *GroupController, current *Value[*user.User], noticeTTL time.Duration, log *logger.Logger) *ListController {
	if log == nil {
		log = logger.NewNop()
	}
	if noticeTTL <= 0 {
		noticeTTL = DefaultNoticeTTL
	}
	return &ListController{
		store:    s,
		profiles: profiles,
		index:    index,
		stream:   stream,
		groups:   groups,
		current:  current,
		notice:   NewValue(""),
		alert:    NewValue(""),
		log:      log.Named("list"),
		ttl:      noticeTTL,
		tab:      TabConversations,
	}
}

// Notice is a short confirmation that clears itself.
func (l *ListController) Notice() *Value[string] {
	return l.notice
}

func (l *ListController) Alert() *Value[string] {
	return l.alert
}

func (l *ListController) DismissAlert() {
	l.alert.Set("")
}

func (l *ListController) SetTab(t Tab) {
	if t != TabFriends {
		t = TabConversations
	}
	l.mu.Lock()
	l.tab = t
	l.mu.Unlock()
}

func (l *ListController) Tab() Tab {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tab
}

// SetSearch sets the term shared by both tabs.
func (l *ListController) SetSearch(term string) {
	l.mu.Lock()
	l.search = term
	l.mu.Unlock()
}

func (l *ListController) Search() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.search
}

func (l *ListController) VisibleConversations() []conversation.Conversation {
	term := l.Search()
	var out []conversation.Conversation
	for _, c := range l.index.List().Get() {
		if c.Matches(term) {
			out = append(out, c)
		}
	}
	return out
}

func (l *ListController) VisibleFriends() []user.User {
	l.mu.Lock()
	term := strings.ToLower(strings.TrimSpace(l.search))
	friends := l.friends
	l.mu.Unlock()

	var out []user.User
	for _, f := range friends {
		if term == "" ||
			strings.Contains(strings.ToLower(f.DisplayName), term) ||
			strings.Contains(strings.ToLower(f.Username), term) {
			out = append(out, f)
		}
	}
	return out
}

// LoadFriends resolves the current user's friends. Unreadable profiles fall back.
func (l *ListController) LoadFriends(ctx context.Context) ([]user.User, error) {
	self := l.current.Get()
	if self == nil {
		return nil, ErrSignedOut
	}

	friends := make([]user.User, len(self.Friends))
	var wg sync.WaitGroup
	for i, id := range self.Friends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer diagnostics.Recover(l.log, "friend lookup")
			friends[i] = l.profiles.Resolve(ctx, id)
		}()
	}
	wg.Wait()

	l.mu.Lock()
	l.friends = friends
	l.mu.Unlock()
	return friends, nil
}

// StartConversation selects the existing direct conversation with friendID or creates it.
// New conversations use the pair's deterministic id, so a concurrent start from the other
// side lands on the same record.
func (l *ListController) StartConversation(ctx context.Context, friendID string) (conversation.Conversation, error) {
	self := l.current.Get()
	if self == nil {
		return conversation.Conversation{}, ErrSignedOut
	}
	friendID = strings.TrimSpace(friendID)
	if friendID == "" || friendID == self.ID {
		return conversation.Conversation{}, ErrSelfConversation
	}

	c, found, err := l.findDirect(ctx, self.ID, friendID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !found {
		c, err = l.createDirect(ctx, self.ID, friendID)
		if err != nil {
			return conversation.Conversation{}, err
		}
	}

	if c.OtherUser == nil {
		other := l.profiles.Resolve(ctx, friendID)
		c.OtherUser = &other
	}
	l.index.Upsert(c)
	l.stream.Select(&c)
	return c, nil
}

func (l *ListController) findDirect(ctx context.Context, self, friend string) (conversation.Conversation, bool, error) {
	if c, ok := l.index.Find(conversation.DirectID(self, friend)); ok && c.IsDirectPair(self, friend) {
		return c, true, nil
	}
	for _, field := range membersKeys {
		q := store.Query{Collection: CollectionChats}.Where(field, store.OpArrayContains, self)
		docs, err := l.store.Documents(ctx, q)
		if err != nil {
			return conversation.Conversation{}, false, fmt.Errorf("scan conversations: %w", err)
		}
		for _, doc := range docs {
			if c := decodeConversation(doc); c.IsDirectPair(self, friend) {
				return c, true, nil
			}
		}
	}
	return conversation.Conversation{}, false, nil
}

func (l *ListController) createDirect(ctx context.Context, self, friend string) (conversation.Conversation, error) {
	id := conversation.DirectID(self, friend)
	err := l.store.Create(ctx, CollectionChats, id, encodeDirect(self, friend))
	if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return conversation.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	doc, err := l.store.Get(ctx, CollectionChats, id)
	if err != nil {
		return conversation.Conversation{}, fmt.Errorf("read conversation %s: %w", id, err)
	}
	return decodeConversation(doc), nil
}

// Delete leaves a group or deletes a direct conversation from a list action.
func (l *ListController) Delete(ctx context.Context, id string) error {
	c, ok := l.index.Find(id)
	if !ok {
		doc, err := l.store.Get(ctx, CollectionChats, id)
		if err != nil {
			l.fail("delete conversation", err)
			return fmt.Errorf("load conversation %s: %w", id, err)
		}
		c = decodeConversation(doc)
	}

	var err error
	notice := "Conversation deleted"
	if c.IsGroup() {
		err = l.groups.leave(ctx, id)
		notice = "You left the group"
	} else {
		err = deleteConversation(ctx, l.store, id)
	}
	if err != nil {
		l.fail("delete conversation", err)
		return err
	}

	if l.stream.SelectedID() == id {
		l.stream.Select(nil)
	}
	l.showNotice(notice)
	return nil
}

func (l *ListController) showNotice(text string) {
	l.notice.Set(text)
	version := l.notice.Version()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.noticeTimer != nil {
		l.noticeTimer.Stop()
	}
	l.noticeTimer = time.AfterFunc(l.ttl, func() {
		if l.notice.Version() == version {
			l.notice.Set("")
		}
	})
}

func (l *ListController) fail(action string, err error) {
	if diagnostics.IsBenign(err) {
		l.log.Debugf("%s: %v", action, err)
		return
	}
	l.log.Warnf("%s failed: %v", action, err)
	l.alert.Set(userMessage(action, err))
}

// Stop cancels a pending notice dismissal.
func (l *ListController) Stop() {
	l.mu.Lock()
	if l.noticeTimer != nil {
		l.noticeTimer.Stop()
		l.noticeTimer = nil
	}
	l.mu.Unlock()
}
