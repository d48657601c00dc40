package chat

import (
	"context"
	"slices"
	"sync"

	"circle-chat/internal/domain/conversation"
	"circle-chat/internal/domain/user"
	"circle-chat/internal/store"
	"circle-chat/pkg/diagnostics"
	"circle-chat/pkg/logger"
)

// maxProfileLookups bounds the parallel counterpart lookups of one push.
const maxProfileLookups = 8

// ConversationIndex keeps the sorted list of conversations the current user belongs to.
// Records are matched on the canonical participants field and on the legacy members field,
// and merged by id.
type ConversationIndex struct {
	store    store.DocumentStore
	profiles *ProfileResolver
	list     *Value[[]conversation.Conversation]
	log      *logger.Logger

	mu        sync.Mutex
	userID    string
	gen       uint64
	stops     []func()
	sources   [2][]store.Document
	seq       uint64
	published uint64

	pubMu sync.Mutex
}

func NewConversationIndex(s store.DocumentStore, profiles *ProfileResolver, log *logger.Logger) *ConversationIndex {
	if log == nil {
		log = logger.NewNop()
	}
	return &ConversationIndex{
		store:    s,
		profiles: profiles,
		list:     NewValue([]conversation.Conversation{}),
		log:      log.Named("index"),
	}
}

func (ix *ConversationIndex) List() *Value[[]conversation.Conversation] {
	return ix.list
}

// Find returns the published conversation with id.
func (ix *ConversationIndex) Find(id string) (conversation.Conversation, bool) {
	for _, c := range ix.list.Get() {
		if c.ID == id {
			return c, true
		}
	}
	return conversation.Conversation{}, false
}

// SetUser re-subscribes when the user id changes. Profile-only updates are ignored.
func (ix *ConversationIndex) SetUser(u *user.User) {
	id := ""
	if u != nil {
		id = u.ID
	}

	ix.mu.Lock()
	if id == ix.userID {
		ix.mu.Unlock()
		return
	}
	ix.userID = id
	ix.gen++
	gen := ix.gen
	stops := ix.stops
	ix.stops = nil
	ix.sources = [2][]store.Document{}
	ix.seq++
	seq := ix.seq
	ix.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	ix.publish(gen, seq, []conversation.Conversation{})
	if id == "" {
		return
	}

	var started []func()
	for source, field := range membersKeys {
		q := store.Query{Collection: CollectionChats}.Where(field, store.OpArrayContains, id)
		started = append(started, ix.store.Listen(q, func(snap store.Snapshot) {
			ix.onSnapshot(gen, source, snap)
		}))
	}

	ix.mu.Lock()
	if ix.gen != gen {
		ix.mu.Unlock()
		for _, stop := range started {
			stop()
		}
		return
	}
	ix.stops = started
	ix.mu.Unlock()
}

// Stop drops both listeners and clears the list.
func (ix *ConversationIndex) Stop() {
	ix.SetUser(nil)
}

// Upsert inserts c ahead of the subscription catching up. A record already delivered by
// the subscription is kept, only gaining the counterpart profile if it lacked one. Records
// that arrive after sign-out, or that the current user is not in, are dropped.
func (ix *ConversationIndex) Upsert(c conversation.Conversation) {
	ix.pubMu.Lock()
	defer ix.pubMu.Unlock()

	ix.mu.Lock()
	self := ix.userID
	ix.mu.Unlock()
	if self == "" || !c.HasMember(self) {
		return
	}

	list := slices.Clone(ix.list.Get())
	if i := slices.IndexFunc(list, func(x conversation.Conversation) bool { return x.ID == c.ID }); i >= 0 {
		if list[i].OtherUser != nil || c.OtherUser == nil {
			return
		}
		list[i].OtherUser = c.OtherUser
	} else {
		list = append(list, c.Summary())
	}
	conversation.SortByRecent(list)
	ix.list.Set(list)
}

func (ix *ConversationIndex) onSnapshot(gen uint64, source int, snap store.Snapshot) {
	ix.mu.Lock()
	if ix.gen != gen {
		ix.mu.Unlock()
		return
	}
	ix.seq++
	seq := ix.seq
	self := ix.userID
	if snap.Err != nil {
		ix.sources[source] = nil
		ix.mu.Unlock()
		ix.log.Debugf("conversation listener %s: %v", membersKeys[source], snap.Err)
		ix.publish(gen, seq, []conversation.Conversation{})
		return
	}
	ix.sources[source] = snap.Docs
	docs := mergeByID(ix.sources[0], ix.sources[1])
	ix.mu.Unlock()

	ix.publish(gen, seq, ix.build(self, docs))
}

// build decodes, resolves counterparts in parallel and sorts. Each lookup falls back on
// its own, so one failure never holds back the list.
func (ix *ConversationIndex) build(self string, docs []store.Document) []conversation.Conversation {
	convs := make([]conversation.Conversation, len(docs))
	for i, doc := range docs {
		convs[i] = decodeConversation(doc)
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	sem := make(chan struct{}, maxProfileLookups)
	var wg sync.WaitGroup
	for i := range convs {
		if convs[i].IsGroup() {
			continue
		}
		other := convs[i].OtherParticipant(self)
		if other == "" {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, other string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer diagnostics.Recover(ix.log, "index profile lookup")
			u := ix.profiles.Resolve(ctx, other)
			convs[i].OtherUser = &u
		}(i, other)
	}
	wg.Wait()

	conversation.SortByRecent(convs)
	return convs
}

// publish drops pushes older than the last one published.
func (ix *ConversationIndex) publish(gen, seq uint64, convs []conversation.Conversation) {
	ix.pubMu.Lock()
	defer ix.pubMu.Unlock()

	ix.mu.Lock()
	if ix.gen != gen || seq <= ix.published {
		ix.mu.Unlock()
		return
	}
	ix.published = seq
	ix.mu.Unlock()

	ix.list.Set(convs)
}

func mergeByID(sets ...[]store.Document) []store.Document {
	seen := make(map[string]struct{})
	var out []store.Document
	for _, set := range sets {
		for _, doc := range set {
			if _, ok := seen[doc.ID]; ok {
				continue
			}
			seen[doc.ID] = struct{}{}
			out = append(out, doc)
		}
	}
	return out
}
