package chat

import (
	"context"
	"fmt"
	"slices"
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

	"github.com/google/uuid"
)

const groupPhotosPrefix = "group_photos"

type GroupForm struct {
	Name    string
	Members []string
	Photo   *Attachment
}

// GroupUpdate patches name and/or photo. Nil fields are left alone.
type GroupUpdate struct {
	Name  *string
	Photo *Attachment
}

type GroupCreated struct {
	Conversation conversation.Conversation `json:"conversation"`
	InviteURL    string                    `json:"invite_url"`
}

type GroupController struct {
	store      store.DocumentStore
	blobs      storage.BlobStore
	current    *Value[*user.User]
	inviteBase string
	log        *logger.Logger
	now        func() time.Time

	// OnCreated receives every new group so it can be listed and selected right away.
	OnCreated func(conversation.Conversation)

	alert *Value[string]

	mu    sync.Mutex
	draft GroupForm
}

func NewGroupController(s store.DocumentStore, blobs storage.BlobStore, current *Value[*user.User], inviteBase string, log *logger.Logger) *GroupController {
	if log == nil {
		log = logger.NewNop()
	}
	if blobs == nil {
		blobs = storage.Disabled{}
	}
	return &GroupController{
		store:      s,
		blobs:      blobs,
		current:    current,
		inviteBase: strings.TrimRight(inviteBase, "/"),
		log:        log.Named("groups"),
		now:        time.Now,
		alert:      NewValue(""),
	}
}

func (g *GroupController) Alert() *Value[string] {
	return g.alert
}

func (g *GroupController) DismissAlert() {
	g.alert.Set("")
}

// Draft is the creation form in progress.
func (g *GroupController) Draft() GroupForm {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.draft
}

func (g *GroupController) SetDraft(f GroupForm) {
	g.mu.Lock()
	g.draft = f
	g.mu.Unlock()
}

func (g *GroupController) InviteURL(id string) string {
	return g.inviteBase + "/join/" + id
}

// Create persists a group and its announcement message. A failed photo upload only
// drops the photo.
func (g *GroupController) Create(ctx context.Context, form GroupForm) (GroupCreated, error) {
	self := g.current.Get()
	if self == nil {
		return GroupCreated{}, ErrSignedOut
	}
	name := strings.TrimSpace(form.Name)
	if name == "" {
		return GroupCreated{}, ErrGroupNameRequired
	}
	members := cleanIDs(form.Members, self.ID)
	if len(members) == 0 {
		return GroupCreated{}, ErrGroupMembersRequired
	}

	id := uuid.NewString()
	photo := ""
	if form.Photo != nil {
		key := storage.ObjectKey(groupPhotosPrefix, id, g.now(), form.Photo.Name)
		url, err := g.blobs.Upload(ctx, key, form.Photo.ContentType, form.Photo.Data)
		if err != nil {
			g.log.Warnf("group %s photo upload failed, creating without photo: %v", id, err)
		} else {
			photo = url
		}
	}

	now := g.now().UTC()
	announcement := fmt.Sprintf("%s created the group", self.Label())
	c := conversation.Conversation{
		ID:              id,
		Kind:            conversation.KindGroup,
		Participants:    append([]string{self.ID}, members...),
		LastMessage:     announcement,
		LastMessageTime: &now,
		GroupName:       name,
		GroupPhoto:      photo,
		Admins:          []string{self.ID},
		CreatedBy:       self.ID,
		CreatedAt:       &now,
	}
	if err := g.store.Create(ctx, CollectionChats, id, encodeGroup(c)); err != nil {
		return GroupCreated{}, g.fail("create group", err)
	}
	sys := encodeNewMessage(id, message.SystemSender, announcement, "", "")
	if _, err := g.store.Add(ctx, messagesPath(id), sys); err != nil {
		g.log.Warnf("group %s announcement not written: %v", id, err)
	}

	g.SetDraft(GroupForm{})
	created := GroupCreated{Conversation: c, InviteURL: g.InviteURL(id)}
	if g.OnCreated != nil {
		g.OnCreated(c)
	}
	return created, nil
}

// UpdateInfo renames or re-photos a group. Admins only; last writer wins.
func (g *GroupController) UpdateInfo(ctx context.Context, id string, upd GroupUpdate) error {
	self, c, err := g.load(ctx, id)
	if err != nil {
		return err
	}
	if !c.IsAdmin(self.ID) {
		return ErrNotAdmin
	}

	var updates []store.Update
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return ErrGroupNameRequired
		}
		updates = append(updates, store.Update{Path: fieldGroupName, Value: name})
	}
	if upd.Photo != nil {
		key := storage.ObjectKey(groupPhotosPrefix, id, g.now(), upd.Photo.Name)
		url, err := g.blobs.Upload(ctx, key, upd.Photo.ContentType, upd.Photo.Data)
		if err != nil {
			return g.fail("update group photo", err)
		}
		updates = append(updates, store.Update{Path: fieldGroupPhoto, Value: url})
	}
	if len(updates) == 0 {
		return nil
	}
	if err := g.store.Update(ctx, CollectionChats, id, updates); err != nil {
		return g.fail("update group", err)
	}
	return nil
}

// Leave removes the current user. The sole admin hands over to the first remaining member
// in stored member order; the last member deletes the group and its messages.
func (g *GroupController) Leave(ctx context.Context, id string) error {
	if err := g.leave(ctx, id); err != nil {
		return g.fail("leave group", err)
	}
	return nil
}

// leave is Leave without the alert, for controllers that present failures themselves.
func (g *GroupController) leave(ctx context.Context, id string) error {
	self, c, doc, err := g.loadDoc(ctx, id)
	if err != nil {
		return err
	}
	if !c.HasMember(self.ID) {
		return ErrNotMember
	}

	remaining := slices.DeleteFunc(slices.Clone(c.Participants), func(p string) bool { return p == self.ID })
	if len(remaining) == 0 {
		if err := deleteConversation(ctx, g.store, id); err != nil {
			return err
		}
		g.log.Infof("group %s deleted after its last member left", id)
		return nil
	}

	canonical := hasCanonicalMembers(doc.Data)
	var updates []store.Update
	if canonical {
		updates = append(updates, store.Update{Path: fieldParticipants, Value: store.ArrayRemove(self.ID)})
	} else {
		// Legacy record: the canonical field starts as the full remaining roster.
		updates = append(updates, store.Update{Path: fieldParticipants, Value: remaining})
	}
	if _, legacy := doc.Data[fieldMembers]; legacy {
		updates = append(updates, store.Update{Path: fieldMembers, Value: store.ArrayRemove(self.ID)})
	}

	// Only the handover overwrites admins; it races with concurrent leaves (last writer wins).
	admins := slices.DeleteFunc(slices.Clone(c.Admins), func(a string) bool {
		return a == self.ID || !slices.Contains(remaining, a)
	})
	switch {
	case len(admins) == 0:
		updates = append(updates, store.Update{Path: fieldAdmins, Value: []string{remaining[0]}})
		g.log.Infof("group %s admin transferred from %s to %s", id, self.ID, remaining[0])
	case c.IsAdmin(self.ID) && len(store.Strings(doc.Data, fieldAdmins)) > 0:
		updates = append(updates, store.Update{Path: fieldAdmins, Value: store.ArrayRemove(self.ID)})
	}
	updates = append(updates, summaryUpdates(fmt.Sprintf("%s left the group", self.Label()))...)
	if err := g.store.Update(ctx, CollectionChats, id, updates); err != nil {
		return fmt.Errorf("leave group %s: %w", id, err)
	}
	return nil
}

// AddMembers adds users to a group. Admins only.
func (g *GroupController) AddMembers(ctx context.Context, id string, ids []string) error {
	self, c, doc, err := g.loadDoc(ctx, id)
	if err != nil {
		return err
	}
	if !c.IsAdmin(self.ID) {
		return ErrNotAdmin
	}
	add := slices.DeleteFunc(cleanIDs(ids, self.ID), c.HasMember)
	if len(add) == 0 {
		return ErrGroupMembersRequired
	}
	if !hasCanonicalMembers(doc.Data) {
		// Legacy record: carry the existing members over to the canonical field.
		add = append(slices.Clone(c.Participants), add...)
	}
	values := make([]any, len(add))
	for i, m := range add {
		values[i] = m
	}
	if err := g.store.Update(ctx, CollectionChats, id, []store.Update{
		{Path: fieldParticipants, Value: store.ArrayUnion(values...)},
	}); err != nil {
		return g.fail("add members", err)
	}
	return nil
}

// hasCanonicalMembers reports whether the roster already lives in participants. An empty
// participants array on a legacy record does not count.
func hasCanonicalMembers(data map[string]any) bool {
	return len(store.Strings(data, fieldParticipants)) > 0
}

func (g *GroupController) load(ctx context.Context, id string) (user.User, conversation.Conversation, error) {
	self, c, _, err := g.loadDoc(ctx, id)
	return self, c, err
}

func (g *GroupController) loadDoc(ctx context.Context, id string) (user.User, conversation.Conversation, store.Document, error) {
	self := g.current.Get()
	if self == nil {
		return user.User{}, conversation.Conversation{}, store.Document{}, ErrSignedOut
	}
	doc, err := g.store.Get(ctx, CollectionChats, id)
	if err != nil {
		if store.IsNotFound(err) {
			err = fmt.Errorf("group %s: %w", id, circle_errors.ErrNotFound)
		} else {
			err = fmt.Errorf("load group %s: %w", id, err)
		}
		return user.User{}, conversation.Conversation{}, store.Document{}, err
	}
	c := decodeConversation(doc)
	if !c.IsGroup() {
		return user.User{}, conversation.Conversation{}, store.Document{}, ErrNotGroup
	}
	return *self, c, doc, nil
}

// fail surfaces a store or upload failure and returns it wrapped.
func (g *GroupController) fail(action string, err error) error {
	if !diagnostics.IsBenign(err) && !resilience.IsTransient(err) {
		g.log.Warnf("%s failed: %v", action, err)
		g.alert.Set(userMessage(action, err))
	}
	return fmt.Errorf("%s: %w", action, err)
}

// cleanIDs trims, dedupes and drops empty ids and self, keeping first-seen order.
func cleanIDs(ids []string, self string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == self || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
