package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"circle-chat/internal/domain/message"
	"circle-chat/internal/store"
	"circle-chat/internal/store/memstore"
)

func groupFixture(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New()
	seedUser(t, s, "alice", "alice", map[string]any{"displayName": "Alice"})
	seedUser(t, s, "bob", "bob", map[string]any{"displayName": "Bob"})
	seedUser(t, s, "carol", "carol", map[string]any{"displayName": "Carol"})
	return s
}

func TestCreateGroupValidation(t *testing.T) {
	s := groupFixture(t)
	sess := newSession(t, s, "alice")
	groups := sess.provider.Groups()

	before := s.Writes()
	if _, err := groups.Create(context.Background(), GroupForm{Name: "   ", Members: []string{"bob"}}); !errors.Is(err, ErrGroupNameRequired) {
		t.Fatalf("expected ErrGroupNameRequired, got %v", err)
	}
	if _, err := groups.Create(context.Background(), GroupForm{Name: "Team", Members: []string{"alice", " "}}); !errors.Is(err, ErrGroupMembersRequired) {
		t.Fatalf("expected ErrGroupMembersRequired, got %v", err)
	}
	if s.Writes() != before {
		t.Fatalf("invalid forms must not write")
	}
}

func TestCreateGroup(t *testing.T) {
	s := groupFixture(t)
	sess := newSession(t, s, "alice")
	groups := sess.provider.Groups()
	groups.SetDraft(GroupForm{Name: "Team"})

	created, err := groups.Create(context.Background(), GroupForm{
		Name:    "  Team  ",
		Members: []string{"bob", "carol", "bob"},
		Photo:   &Attachment{Name: "team.jpg", ContentType: "image/jpeg", Data: []byte{1}},
	})
	if err != nil {
		t.Fatal(err)
	}

	c := created.Conversation
	if c.GroupName != "Team" || !equalStrings(c.Participants, []string{"alice", "bob", "carol"}) || !c.IsAdmin("alice") {
		t.Fatalf("unexpected group %+v", c)
	}
	if created.InviteURL != "https://circle.test/join/"+c.ID {
		t.Fatalf("invite url = %q", created.InviteURL)
	}
	if !strings.HasPrefix(c.GroupPhoto, "https://cdn.test/group_photos/"+c.ID+"/") {
		t.Fatalf("photo = %q", c.GroupPhoto)
	}

	doc, ok := chatDoc(t, s, c.ID)
	if !ok || store.String(doc.Data, "type") != "group" {
		t.Fatalf("group record not persisted: %+v", doc)
	}
	msgs := sess.provider.Messages().Get()
	if len(msgs) != 1 || msgs[0].SenderID != message.SystemSender || msgs[0].Content != "Alice created the group" {
		t.Fatalf("expected one system message, got %+v", msgs)
	}
	if sel := sess.provider.Selected().Get(); sel == nil || sel.ID != c.ID {
		t.Fatalf("new group should be selected")
	}
	found := false
	for _, conv := range sess.provider.Conversations().Get() {
		found = found || conv.ID == c.ID
	}
	if !found {
		t.Fatalf("new group should be listed")
	}
	if groups.Draft().Name != "" {
		t.Fatalf("form should reset after creation")
	}
}

func TestCreateGroupSurvivesPhotoFailure(t *testing.T) {
	s := groupFixture(t)
	sess := newSession(t, s, "alice")
	sess.blobs.err = errors.New("bucket unavailable")

	created, err := sess.provider.Groups().Create(context.Background(), GroupForm{
		Name:    "Team",
		Members: []string{"bob"},
		Photo:   &Attachment{Name: "team.jpg", Data: []byte{1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.Conversation.GroupPhoto != "" {
		t.Fatalf("group should be created without a photo")
	}
	if _, ok := chatDoc(t, s, created.Conversation.ID); !ok {
		t.Fatalf("group record missing")
	}
}

func TestLeaveTransfersAdmin(t *testing.T) {
	s := groupFixture(t)
	seedChat(t, s, "g1", map[string]any{
		"type": "group", "groupName": "G",
		"participants": []string{"alice", "bob", "carol"},
		"admins":       []string{"alice"},
	})
	sess := newSession(t, s, "alice")

	if err := sess.provider.Groups().Leave(context.Background(), "g1"); err != nil {
		t.Fatal(err)
	}
	doc, ok := chatDoc(t, s, "g1")
	if !ok {
		t.Fatalf("group should survive while members remain")
	}
	c := decodeConversation(doc)
	if !equalStrings(c.Participants, []string{"bob", "carol"}) {
		t.Fatalf("participants = %v", c.Participants)
	}
	if !equalStrings(c.Admins, []string{"bob"}) {
		t.Fatalf("admin should pass to exactly the first remaining member, got %v", c.Admins)
	}
	if c.LastMessage != "Alice left the group" {
		t.Fatalf("lastMessage = %q", c.LastMessage)
	}
	if len(sess.provider.Conversations().Get()) != 0 {
		t.Fatalf("left group should drop out of the list")
	}
}

func TestLeaveKeepsOtherAdmins(t *testing.T) {
	s := groupFixture(t)
	seedChat(t, s, "g1", map[string]any{
		"type": "group", "groupName": "G",
		"participants": []string{"alice", "bob", "carol"},
		"admins":       []string{"alice", "carol"},
	})
	sess := newSession(t, s, "alice")

	if err := sess.provider.Groups().Leave(context.Background(), "g1"); err != nil {
		t.Fatal(err)
	}
	doc, _ := chatDoc(t, s, "g1")
	if c := decodeConversation(doc); !equalStrings(c.Admins, []string{"carol"}) {
		t.Fatalf("admins = %v", c.Admins)
	}
}

func TestLastMemberLeaveDeletesGroup(t *testing.T) {
	s := groupFixture(t)
	seedChat(t, s, "g1", map[string]any{
		"type": "group", "groupName": "G",
		"participants": []string{"alice"},
		"admins":       []string{"alice"},
	})
	seedMessage(t, s, "g1", "m1", map[string]any{"senderId": "system", "content": "created", "timestamp": at(1)})
	sess := newSession(t, s, "alice")

	if err := sess.provider.Groups().Leave(context.Background(), "g1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := chatDoc(t, s, "g1"); ok {
		t.Fatalf("group should be deleted, not left adminless")
	}
	if n := countDocs(t, s, messagesPath("g1")); n != 0 {
		t.Fatalf("messages should be deleted, %d left", n)
	}
}

func TestLeaveLegacyGroup(t *testing.T) {
	s := groupFixture(t)
	seedChat(t, s, "g1", map[string]any{
		"isGroup": true, "groupName": "Old",
		"members":    []string{"alice", "bob"},
		"groupAdmin": "alice",
	})
	sess := newSession(t, s, "alice")

	if err := sess.provider.Groups().Leave(context.Background(), "g1"); err != nil {
		t.Fatal(err)
	}
	doc, _ := chatDoc(t, s, "g1")
	c := decodeConversation(doc)
	if c.HasMember("alice") || !c.HasMember("bob") || !equalStrings(c.Admins, []string{"bob"}) {
		t.Fatalf("legacy group not updated: %+v", c)
	}
}

func TestUpdateInfoRequiresAdmin(t *testing.T) {
	s := groupFixture(t)
	seedChat(t, s, "g1", map[string]any{
		"type": "group", "groupName": "G",
		"participants": []string{"alice", "bob"},
		"admins":       []string{"alice"},
	})
	alice := newSession(t, s, "alice")
	bob := newSession(t, s, "bob")

	name := "Renamed"
	if err := bob.provider.Groups().UpdateInfo(context.Background(), "g1", GroupUpdate{Name: &name}); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	if err := alice.provider.Groups().UpdateInfo(context.Background(), "g1", GroupUpdate{
		Name:  &name,
		Photo: &Attachment{Name: "p.png", Data: []byte{1}},
	}); err != nil {
		t.Fatal(err)
	}
	doc, _ := chatDoc(t, s, "g1")
	c := decodeConversation(doc)
	if c.GroupName != "Renamed" || c.GroupPhoto == "" {
		t.Fatalf("update not applied: %+v", c)
	}
}

func TestAddMembers(t *testing.T) {
	s := groupFixture(t)
	seedChat(t, s, "g1", map[string]any{
		"type": "group", "groupName": "G",
		"participants": []string{"alice", "bob"},
		"admins":       []string{"alice"},
	})
	sess := newSession(t, s, "alice")

	if err := sess.provider.Groups().AddMembers(context.Background(), "g1", []string{"bob"}); !errors.Is(err, ErrGroupMembersRequired) {
		t.Fatalf("existing members only should be rejected, got %v", err)
	}
	if err := sess.provider.Groups().AddMembers(context.Background(), "g1", []string{"carol", "bob"}); err != nil {
		t.Fatal(err)
	}
	doc, _ := chatDoc(t, s, "g1")
	if c := decodeConversation(doc); !equalStrings(c.Participants, []string{"alice", "bob", "carol"}) {
		t.Fatalf("participants = %v", c.Participants)
	}
}

func TestLegacyGroupKeepsRosterAcrossLeaveAndAdd(t *testing.T) {
	s := groupFixture(t)
	seedUser(t, s, "dave", "dave", map[string]any{"displayName": "Dave"})
	seedChat(t, s, "g1", map[string]any{
		"isGroup": true, "groupName": "Old",
		"members":    []string{"alice", "bob", "carol"},
		"groupAdmin": "alice",
	})
	alice := newSession(t, s, "alice")
	bob := newSession(t, s, "bob")

	if err := alice.provider.Groups().Leave(context.Background(), "g1"); err != nil {
		t.Fatal(err)
	}
	doc, _ := chatDoc(t, s, "g1")
	if got := store.Strings(doc.Data, "participants"); !equalStrings(got, []string{"bob", "carol"}) {
		t.Fatalf("canonical roster after leave = %v", got)
	}

	if err := bob.provider.Groups().AddMembers(context.Background(), "g1", []string{"dave"}); err != nil {
		t.Fatal(err)
	}
	doc, _ = chatDoc(t, s, "g1")
	if c := decodeConversation(doc); !equalStrings(c.Participants, []string{"bob", "carol", "dave"}) {
		t.Fatalf("participants = %v", c.Participants)
	}
}

func TestAddMembersIgnoresEmptyCanonicalRoster(t *testing.T) {
	s := groupFixture(t)
	seedChat(t, s, "g1", map[string]any{
		"isGroup": true, "groupName": "Old",
		"participants": []string{},
		"members":      []string{"alice", "bob"},
		"groupAdmin":   "alice",
	})
	sess := newSession(t, s, "alice")

	if err := sess.provider.Groups().AddMembers(context.Background(), "g1", []string{"carol"}); err != nil {
		t.Fatal(err)
	}
	doc, _ := chatDoc(t, s, "g1")
	if c := decodeConversation(doc); !equalStrings(c.Participants, []string{"alice", "bob", "carol"}) {
		t.Fatalf("participants = %v", c.Participants)
	}
}

func TestMemberLeaveLeavesAdminsAlone(t *testing.T) {
	s := groupFixture(t)
	seedChat(t, s, "g1", map[string]any{
		"type": "group", "groupName": "G",
		"participants": []string{"alice", "bob", "carol"},
		"admins":       []string{"alice", "zed"},
	})
	sess := newSession(t, s, "bob")

	if err := sess.provider.Groups().Leave(context.Background(), "g1"); err != nil {
		t.Fatal(err)
	}
	doc, _ := chatDoc(t, s, "g1")
	if got := store.Strings(doc.Data, "admins"); !equalStrings(got, []string{"alice", "zed"}) {
		t.Fatalf("a non-admin leaving must not rewrite admins, got %v", got)
	}
}
