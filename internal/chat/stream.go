package chat

import (
	"slices"
	"sync"

	"circle-chat/internal/domain/conversation"
	"circle-chat/internal/domain/message"
	"circle-chat/internal/store"
	"circle-chat/pkg/logger"
)

// MessageStream owns the selection and the live message list of the selected
// conversation. Only one message listener exists at a time.
type MessageStream struct {
	store    store.DocumentStore
	messages *Value[[]message.Message]
	selected *Value[*conversation.Conversation]
	log      *logger.Logger

	mu      sync.Mutex
	gen     uint64
	stop    func()
	current *conversation.Conversation
	msgs    []message.Message
	pending map[string]message.Edit

	pubMu sync.Mutex
}

func NewMessageStream(s store.DocumentStore, log *logger.Logger) *MessageStream {
	if log == nil {
		log = logger.NewNop()
	}
	return &MessageStream{
		store:    s,
		messages: NewValue([]message.Message{}),
		selected: NewValue[*conversation.Conversation](nil),
		log:      log.Named("stream"),
		pending:  make(map[string]message.Edit),
	}
}

func (ms *MessageStream) Messages() *Value[[]message.Message] {
	return ms.messages
}

// Selected carries the selected conversation with its Messages populated.
func (ms *MessageStream) Selected() *Value[*conversation.Conversation] {
	return ms.selected
}

func (ms *MessageStream) SelectedID() string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.current == nil {
		return ""
	}
	return ms.current.ID
}

// Select switches the message listener to c, or drops it for nil. The previous listener
// is fully stopped before the next one starts, and history is never carried over.
func (ms *MessageStream) Select(c *conversation.Conversation) {
	ms.mu.Lock()
	ms.gen++
	gen := ms.gen
	stop := ms.stop
	ms.stop = nil
	ms.msgs = nil
	ms.pending = make(map[string]message.Edit)
	ms.current = nil
	if c != nil {
		summary := c.Summary()
		ms.current = &summary
	}
	ms.mu.Unlock()

	if stop != nil {
		stop()
	}
	ms.publish(gen)
	if c == nil {
		return
	}

	chatID := c.ID
	q := store.Query{Collection: messagesPath(chatID)}.Order(fieldTimestamp, false)
	stop = ms.store.Listen(q, func(snap store.Snapshot) {
		ms.onSnapshot(gen, chatID, snap)
	})

	ms.mu.Lock()
	if ms.gen != gen {
		ms.mu.Unlock()
		stop()
		return
	}
	ms.stop = stop
	ms.mu.Unlock()
}

func (ms *MessageStream) Stop() {
	ms.Select(nil)
}

// Sync refreshes the selected conversation's summary fields from the published list.
func (ms *MessageStream) Sync(list []conversation.Conversation) {
	ms.mu.Lock()
	if ms.current == nil {
		ms.mu.Unlock()
		return
	}
	i := slices.IndexFunc(list, func(c conversation.Conversation) bool { return c.ID == ms.current.ID })
	if i < 0 {
		ms.mu.Unlock()
		return
	}
	updated := list[i].Summary()
	if updated.OtherUser == nil {
		updated.OtherUser = ms.current.OtherUser
	}
	ms.current = &updated
	gen := ms.gen
	ms.mu.Unlock()

	ms.publish(gen)
}

// ApplyLocalEdit patches an edit in ahead of the listener. The patch holds until a push
// carries an editedAt at least as recent.
func (ms *MessageStream) ApplyLocalEdit(e message.Edit) {
	ms.mu.Lock()
	if ms.current == nil {
		ms.mu.Unlock()
		return
	}
	if prev, ok := ms.pending[e.MessageID]; !ok || !e.EditedAt.Before(prev.EditedAt) {
		ms.pending[e.MessageID] = e
	}
	message.ApplyEdit(ms.msgs, e)
	gen := ms.gen
	ms.mu.Unlock()

	ms.publish(gen)
}

func (ms *MessageStream) onSnapshot(gen uint64, chatID string, snap store.Snapshot) {
	ms.mu.Lock()
	if ms.gen != gen {
		ms.mu.Unlock()
		return
	}
	if snap.Err != nil {
		ms.msgs = nil
		ms.mu.Unlock()
		ms.log.Debugf("message listener %s: %v", chatID, snap.Err)
		ms.publish(gen)
		return
	}

	msgs := make([]message.Message, len(snap.Docs))
	for i, doc := range snap.Docs {
		msgs[i] = decodeMessage(chatID, doc)
	}
	message.SortByTimestamp(msgs)
	ms.reconcile(msgs)
	ms.msgs = msgs
	ms.mu.Unlock()

	ms.publish(gen)
}

// reconcile drops pending edits the store has caught up with and re-applies the rest.
func (ms *MessageStream) reconcile(msgs []message.Message) {
	for id, e := range ms.pending {
		i := slices.IndexFunc(msgs, func(m message.Message) bool { return m.ID == id })
		if i < 0 {
			delete(ms.pending, id)
			continue
		}
		if at := msgs[i].EditedAt; at != nil && !at.Before(e.EditedAt) {
			delete(ms.pending, id)
			continue
		}
		message.ApplyEdit(msgs, e)
	}
}

func (ms *MessageStream) publish(gen uint64) {
	ms.pubMu.Lock()
	defer ms.pubMu.Unlock()

	ms.mu.Lock()
	if ms.gen != gen {
		ms.mu.Unlock()
		return
	}
	msgs := slices.Clone(ms.msgs)
	if msgs == nil {
		msgs = []message.Message{}
	}
	var selected *conversation.Conversation
	if ms.current != nil {
		c := *ms.current
		c.Messages = slices.Clone(msgs)
		selected = &c
	}
	ms.mu.Unlock()

	ms.messages.Set(msgs)
	ms.selected.Set(selected)
}
