package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"circle-chat/internal/domain/conversation"
	"circle-chat/internal/domain/message"
	"circle-chat/internal/domain/user"
	"circle-chat/internal/resilience"
	"circle-chat/internal/storage"
	"circle-chat/internal/store"
	"circle-chat/pkg/diagnostics"
	circle_errors "circle-chat/pkg/errors"
	"circle-chat/pkg/logger"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusComposing Status = "composing"
	StatusSending   Status = "sending"
	StatusError     Status = "error"
)

const (
	ReasonYouBlocked  = "You blocked this user"
	ReasonTheyBlocked = "This user has blocked you"
	ReasonBlocked     = "This chat is blocked"
)

const chatImagesPrefix = "chat_images"

// Attachment is an image picked for upload.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Draft is the composer content: free text plus at most one image and one GIF.
type Draft struct {
	Text   string
	Image  *Attachment
	GifURL string
}

func (d Draft) Empty() bool {
	return strings.TrimSpace(d.Text) == "" && d.Image == nil && d.GifURL == ""
}

type EditState struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
	CanSave   bool   `json:"can_save"`
}

// RoomState is the published view of the room.
type RoomState struct {
	ConversationID string     `json:"conversation_id,omitempty"`
	Status         Status     `json:"status"`
	DraftText      string     `json:"draft_text"`
	HasImage       bool       `json:"has_image"`
	GifURL         string     `json:"gif_url,omitempty"`
	Sending        bool       `json:"sending"`
	Editing        *EditState `json:"editing,omitempty"`
	Blocked        bool       `json:"blocked"`
	BlockReason    string     `json:"block_reason,omitempty"`
}

// Room is the controller of the selected conversation.
type Room struct {
	store  store.DocumentStore
	blobs  storage.BlobStore
	stream *MessageStream
	groups *GroupController
	state  *Value[RoomState]
	alert  *Value[string]
	log    *logger.Logger
	now    func() time.Time

	mu          sync.Mutex
	self        *user.User
	conv        *conversation.Conversation
	counterpart *user.User
	watching    string
	watchGen    uint64
	stopWatch   func()
	draft       Draft
	status      Status
	sending     bool
	edit        *EditState
	saving      bool
	blocked     bool
	reason      string
}

func NewRoom(s store.DocumentStore, blobs storage.BlobStore, stream *MessageStream, groups *GroupController, log *logger.Logger) *Room {
	if log == nil {
		log = logger.NewNop()
	}
	if blobs == nil {
		blobs = storage.Disabled{}
	}
	return &Room{
		store:  s,
		blobs:  blobs,
		stream: stream,
		groups: groups,
		state:  NewValue(RoomState{Status: StatusIdle}),
		alert:  NewValue(""),
		log:    log.Named("room"),
		now:    time.Now,
		status: StatusIdle,
	}
}

func (r *Room) State() *Value[RoomState] {
	return r.state
}

// Alert holds the last user-facing failure, or "".
func (r *Room) Alert() *Value[string] {
	return r.alert
}

func (r *Room) DismissAlert() {
	r.alert.Set("")
}

func (r *Room) Blocked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blocked
}

func (r *Room) BlockReason() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason
}

// SetUser feeds the current user in.
func (r *Room) SetUser(u *user.User) {
	r.mu.Lock()
	if u == nil {
		r.self = nil
	} else {
		cp := u.Clone()
		r.self = &cp
	}
	r.mu.Unlock()
	r.refresh()
}

// SetConversation feeds the selected conversation in. A different id resets the
// composer and any edit.
func (r *Room) SetConversation(c *conversation.Conversation) {
	r.mu.Lock()
	prevID := ""
	if r.conv != nil {
		prevID = r.conv.ID
	}
	if c == nil {
		r.conv = nil
	} else {
		cp := *c
		r.conv = &cp
	}
	if c == nil || c.ID != prevID {
		r.draft = Draft{}
		r.edit = nil
		r.status = StatusIdle
		r.counterpart = nil
	}
	if r.conv != nil && r.conv.OtherUser != nil && r.counterpart == nil {
		other := r.conv.OtherUser.Clone()
		r.counterpart = &other
	}
	r.mu.Unlock()
	r.refresh()
}

// Stop drops the counterpart listener.
func (r *Room) Stop() {
	r.mu.Lock()
	stop := r.stopWatch
	r.stopWatch = nil
	r.watching = ""
	r.watchGen++
	r.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (r *Room) SetText(text string) {
	r.updateDraft(func(d *Draft) { d.Text = text })
}

func (r *Room) AttachImage(a Attachment) {
	r.updateDraft(func(d *Draft) { d.Image = &a })
}

func (r *Room) ClearImage() {
	r.updateDraft(func(d *Draft) { d.Image = nil })
}

func (r *Room) SelectGif(url string) {
	r.updateDraft(func(d *Draft) { d.GifURL = strings.TrimSpace(url) })
}

func (r *Room) ClearGif() {
	r.updateDraft(func(d *Draft) { d.GifURL = "" })
}

func (r *Room) updateDraft(fn func(*Draft)) {
	r.mu.Lock()
	fn(&r.draft)
	if !r.sending {
		r.status = composeStatus(r.draft)
	}
	r.mu.Unlock()
	r.publish()
}

func composeStatus(d Draft) Status {
	if d.Empty() {
		return StatusIdle
	}
	return StatusComposing
}

// Send posts the draft. Empty drafts, a send already in flight and blocked conversations
// are rejected without touching the store.
func (r *Room) Send(ctx context.Context) error {
	r.mu.Lock()
	switch {
	case r.conv == nil || r.self == nil:
		r.mu.Unlock()
		return ErrNoConversation
	case r.draft.Empty():
		r.mu.Unlock()
		return ErrNothingToSend
	case r.sending:
		r.mu.Unlock()
		return ErrSendInFlight
	case r.blocked:
		r.mu.Unlock()
		return ErrBlocked
	}
	r.sending = true
	r.status = StatusSending
	draft := r.draft
	chatID := r.conv.ID
	senderID := r.self.ID
	r.mu.Unlock()
	r.publish()

	defer func() {
		r.mu.Lock()
		r.sending = false
		r.mu.Unlock()
		r.publish()
	}()

	if err := r.send(ctx, chatID, senderID, draft); err != nil {
		r.mu.Lock()
		r.status = StatusError
		r.mu.Unlock()
		r.fail("send message", err)
		return err
	}

	r.mu.Lock()
	if r.conv != nil && r.conv.ID == chatID {
		r.draft = Draft{}
		r.status = StatusIdle
	}
	r.mu.Unlock()
	return nil
}

func (r *Room) send(ctx context.Context, chatID, senderID string, d Draft) error {
	imageURL := ""
	if d.Image != nil {
		key := storage.ObjectKey(chatImagesPrefix, chatID, r.now(), d.Image.Name)
		url, err := r.blobs.Upload(ctx, key, d.Image.ContentType, d.Image.Data)
		if err != nil {
			return fmt.Errorf("upload image: %w", err)
		}
		imageURL = url
	}

	text := strings.TrimSpace(d.Text)
	data := encodeNewMessage(chatID, senderID, text, imageURL, d.GifURL)
	if _, err := r.store.Add(ctx, messagesPath(chatID), data); err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	preview := message.Preview(text, imageURL, d.GifURL)
	if err := r.store.Update(ctx, CollectionChats, chatID, summaryUpdates(preview)); err != nil {
		return fmt.Errorf("update conversation summary: %w", err)
	}
	return nil
}

// StartEdit opens an edit on one of the user's own messages, discarding any other edit.
func (r *Room) StartEdit(messageID string) error {
	msgs := r.stream.Messages().Get()

	r.mu.Lock()
	if r.self == nil || r.conv == nil {
		r.mu.Unlock()
		return ErrNoConversation
	}
	var target *message.Message
	for i := range msgs {
		if msgs[i].ID == messageID {
			target = &msgs[i]
			break
		}
	}
	if target == nil {
		r.mu.Unlock()
		return fmt.Errorf("message %s: %w", messageID, circle_errors.ErrNotFound)
	}
	if target.SenderID != r.self.ID {
		r.mu.Unlock()
		return ErrNotAuthor
	}
	r.edit = &EditState{MessageID: messageID, Text: target.Content}
	r.mu.Unlock()
	r.publish()
	return nil
}

func (r *Room) SetEditText(text string) {
	r.mu.Lock()
	if r.edit == nil {
		r.mu.Unlock()
		return
	}
	r.edit.Text = text
	r.mu.Unlock()
	r.publish()
}

// CanSaveEdit gates the save affordance.
func (r *Room) CanSaveEdit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canSaveLocked()
}

func (r *Room) canSaveLocked() bool {
	return r.edit != nil && !r.saving && strings.TrimSpace(r.edit.Text) != ""
}

func (r *Room) CancelEdit() {
	r.mu.Lock()
	r.edit = nil
	r.mu.Unlock()
	r.publish()
}

// SaveEdit writes the edit and patches it into the local list without waiting for the
// listener. The edit stays open on failure.
func (r *Room) SaveEdit(ctx context.Context) error {
	r.mu.Lock()
	switch {
	case r.edit == nil || r.conv == nil:
		r.mu.Unlock()
		return ErrNoEdit
	case strings.TrimSpace(r.edit.Text) == "":
		r.mu.Unlock()
		return ErrEmptyEdit
	case r.saving:
		r.mu.Unlock()
		return ErrSendInFlight
	}
	r.saving = true
	e := message.Edit{
		MessageID: r.edit.MessageID,
		Content:   strings.TrimSpace(r.edit.Text),
		EditedAt:  r.now().UTC(),
	}
	chatID := r.conv.ID
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.saving = false
		r.mu.Unlock()
		r.publish()
	}()

	if err := r.store.Update(ctx, messagesPath(chatID), e.MessageID, encodeEdit(e)); err != nil {
		r.fail("save edit", err)
		return fmt.Errorf("save edit: %w", err)
	}
	r.stream.ApplyLocalEdit(e)

	r.mu.Lock()
	if r.edit != nil && r.edit.MessageID == e.MessageID {
		r.edit = nil
	}
	r.mu.Unlock()
	return nil
}

// Leave leaves a group or deletes a direct conversation, then deselects it.
func (r *Room) Leave(ctx context.Context) error {
	r.mu.Lock()
	if r.conv == nil {
		r.mu.Unlock()
		return ErrNoConversation
	}
	c := *r.conv
	r.mu.Unlock()

	var err error
	if c.IsGroup() {
		err = r.groups.leave(ctx, c.ID)
	} else {
		err = deleteConversation(ctx, r.store, c.ID)
	}
	if err != nil {
		r.fail("leave conversation", err)
		return err
	}
	if r.stream.SelectedID() == c.ID {
		r.stream.Select(nil)
	}
	return nil
}

// refresh recomputes block state and keeps the counterpart listener on the right user.
func (r *Room) refresh() {
	r.mu.Lock()
	want := ""
	if r.self != nil && r.conv != nil && !r.conv.IsGroup() {
		want = r.conv.OtherParticipant(r.self.ID)
	}
	var stop func()
	start := false
	gen := r.watchGen
	if want != r.watching {
		stop = r.stopWatch
		r.stopWatch = nil
		r.watching = want
		r.watchGen++
		gen = r.watchGen
		start = want != ""
	}
	r.blocked, r.reason = blockState(r.self, r.conv, r.counterpart)
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
	r.publish()
	if start {
		r.watchCounterpart(gen, want)
	}
}

func (r *Room) watchCounterpart(gen uint64, id string) {
	q := store.Query{Collection: CollectionUsers}.Where(store.DocumentID, store.OpEqual, id)
	stop := r.store.Listen(q, func(snap store.Snapshot) {
		if snap.Err != nil || len(snap.Docs) == 0 {
			return
		}
		u := decodeUser(snap.Docs[0])
		r.mu.Lock()
		if r.watchGen != gen {
			r.mu.Unlock()
			return
		}
		r.counterpart = &u
		r.blocked, r.reason = blockState(r.self, r.conv, r.counterpart)
		r.mu.Unlock()
		r.publish()
	})

	r.mu.Lock()
	if r.watchGen != gen {
		r.mu.Unlock()
		stop()
		return
	}
	r.stopWatch = stop
	r.mu.Unlock()
}

// blockState checks both directions. The generic reason covers a record flagged blocked
// without a direction.
func blockState(self *user.User, c *conversation.Conversation, other *user.User) (bool, string) {
	if self == nil || c == nil || c.IsGroup() {
		return false, ""
	}
	otherID := c.OtherParticipant(self.ID)
	switch {
	case self.HasBlocked(otherID):
		return true, ReasonYouBlocked
	case other != nil && other.ID == otherID && other.HasBlocked(self.ID):
		return true, ReasonTheyBlocked
	case c.Blocked:
		return true, ReasonBlocked
	}
	return false, ""
}

func (r *Room) fail(action string, err error) {
	if diagnostics.IsBenign(err) || resilience.IsTransient(err) || errors.Is(err, context.Canceled) {
		r.log.Debugf("%s: %v", action, err)
		return
	}
	r.log.Warnf("%s failed: %v", action, err)
	r.alert.Set(userMessage(action, err))
}

func (r *Room) publish() {
	r.mu.Lock()
	st := RoomState{
		Status:      r.status,
		DraftText:   r.draft.Text,
		HasImage:    r.draft.Image != nil,
		GifURL:      r.draft.GifURL,
		Sending:     r.sending,
		Blocked:     r.blocked,
		BlockReason: r.reason,
	}
	if r.conv != nil {
		st.ConversationID = r.conv.ID
	}
	if r.edit != nil {
		e := *r.edit
		e.CanSave = r.canSaveLocked()
		st.Editing = &e
	}
	r.mu.Unlock()
	r.state.Set(st)
}

// deleteConversation removes a conversation record and its messages.
func deleteConversation(ctx context.Context, s store.DocumentStore, id string) error {
	if err := s.DeleteCollection(ctx, messagesPath(id)); err != nil {
		return fmt.Errorf("delete messages of %s: %w", id, err)
	}
	if err := s.Delete(ctx, CollectionChats, id); err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}

func userMessage(action string, err error) string {
	switch {
	case errors.Is(err, store.ErrPermissionDenied):
		return fmt.Sprintf("Could not %s: permission denied", action)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Sprintf("Could not %s: conversation no longer exists", action)
	case errors.Is(err, storage.ErrNotConfigured):
		return fmt.Sprintf("Could not %s: uploads are not available", action)
	}
	return fmt.Sprintf("Could not %s. Please try again.", action)
}
