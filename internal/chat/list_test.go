package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"circle-chat/internal/domain/conversation"
	"circle-chat/internal/store/memstore"
)

func listFixture(t *testing.T) (*memstore.Store, *testSession) {
	t.Helper()
	s := memstore.New()
	seedUser(t, s, "alice", "alice", map[string]any{"friends": []string{"bob", "carol"}})
	seedUser(t, s, "bob", "bob", map[string]any{"displayName": "Bob Builder"})
	seedUser(t, s, "carol", "carol", map[string]any{"displayName": "Carol"})
	return s, newSession(t, s, "alice")
}

func TestStartConversationReusesExistingPair(t *testing.T) {
	s, sess := listFixture(t)
	// Legacy auto-id record for the pair, plus a group that also contains both.
	seedChat(t, s, "legacy-auto-id", map[string]any{"participants": []string{"bob", "alice"}})
	seedChat(t, s, "g1", map[string]any{"type": "group", "groupName": "G", "participants": []string{"alice", "bob"}})

	before := s.Writes()
	c, err := sess.provider.List().StartConversation(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != "legacy-auto-id" {
		t.Fatalf("expected the existing conversation, got %s", c.ID)
	}
	if s.Writes() != before {
		t.Fatalf("reusing a conversation must not write")
	}
	if sel := sess.provider.Selected().Get(); sel == nil || sel.ID != "legacy-auto-id" {
		t.Fatalf("existing conversation should be selected")
	}
}

func TestStartConversationCreatesExactlyOne(t *testing.T) {
	s, sess := listFixture(t)
	list := sess.provider.List()

	c, err := list.StartConversation(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != conversation.DirectID("alice", "bob") {
		t.Fatalf("unexpected id %s", c.ID)
	}
	if n := countDocs(t, s, CollectionChats); n != 1 {
		t.Fatalf("expected one record, got %d", n)
	}
	if c.OtherUser == nil || c.OtherUser.DisplayName != "Bob Builder" {
		t.Fatalf("counterpart not resolved: %+v", c.OtherUser)
	}
	if sel := sess.provider.Selected().Get(); sel == nil || sel.ID != c.ID {
		t.Fatalf("new conversation should be selected")
	}

	again, err := list.StartConversation(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != c.ID || countDocs(t, s, CollectionChats) != 1 {
		t.Fatalf("second start must reuse the record")
	}
}

func TestStartConversationFromBothSidesConverges(t *testing.T) {
	s, alice := listFixture(t)
	bob := newSession(t, s, "bob")

	a, err := alice.provider.List().StartConversation(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	b, err := bob.provider.List().StartConversation(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID || countDocs(t, s, CollectionChats) != 1 {
		t.Fatalf("both sides should share one record: %s vs %s", a.ID, b.ID)
	}
}

func TestStartConversationRejectsSelf(t *testing.T) {
	_, sess := listFixture(t)
	if _, err := sess.provider.List().StartConversation(context.Background(), "alice"); !errors.Is(err, ErrSelfConversation) {
		t.Fatalf("expected ErrSelfConversation, got %v", err)
	}
}

func TestSearchFiltersActiveTab(t *testing.T) {
	s, sess := listFixture(t)
	seedChat(t, s, "c-bob", map[string]any{"participants": []string{"alice", "bob"}, "lastMessage": "see you", "lastMessageTime": at(2)})
	seedChat(t, s, "c-carol", map[string]any{"participants": []string{"alice", "carol"}, "lastMessageTime": at(1)})
	list := sess.provider.List()

	if _, err := list.LoadFriends(context.Background()); err != nil {
		t.Fatal(err)
	}
	list.SetSearch("builder")
	if got := ids(list.VisibleConversations()); !equalStrings(got, []string{"c-bob"}) {
		t.Fatalf("conversations = %v", got)
	}
	list.SetTab(TabFriends)
	friends := list.VisibleFriends()
	if len(friends) != 1 || friends[0].ID != "bob" {
		t.Fatalf("friends = %+v", friends)
	}
	if list.Tab() != TabFriends || list.Search() != "builder" {
		t.Fatalf("search term should be shared across tabs")
	}

	list.SetSearch("")
	if len(list.VisibleFriends()) != 2 || len(list.VisibleConversations()) != 2 {
		t.Fatalf("empty search should show everything")
	}
}

func TestDeleteDirectShowsNotice(t *testing.T) {
	s, sess := listFixture(t)
	seedChat(t, s, "c1", map[string]any{"participants": []string{"alice", "bob"}})
	list := sess.provider.List()
	if err := sess.provider.Select("c1"); err != nil {
		t.Fatal(err)
	}

	if err := list.Delete(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := chatDoc(t, s, "c1"); ok {
		t.Fatalf("record should be deleted")
	}
	if sess.provider.Selected().Get() != nil {
		t.Fatalf("deleted conversation should be deselected")
	}
	if list.Notice().Get() == "" {
		t.Fatalf("expected a confirmation notice")
	}

	deadline := time.Now().Add(2 * time.Second)
	for list.Notice().Get() != "" {
		if time.Now().After(deadline) {
			t.Fatal("notice did not dismiss itself")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDeleteFailureAlerts(t *testing.T) {
	s, sess := listFixture(t)
	seedChat(t, s, "c1", map[string]any{"participants": []string{"alice", "bob"}})
	list := sess.provider.List()

	s.FailNext("deleteCollection", errors.New("permission denied"))
	if err := list.Delete(context.Background(), "c1"); err == nil {
		t.Fatalf("expected failure")
	}
	if list.Alert().Get() == "" {
		t.Fatalf("expected an alert")
	}
	if _, ok := chatDoc(t, s, "c1"); !ok {
		t.Fatalf("record should survive a failed delete")
	}
	if list.Notice().Get() != "" {
		t.Fatalf("no confirmation on failure")
	}
}

func TestDeleteGroupFromListLeaves(t *testing.T) {
	s, sess := listFixture(t)
	seedChat(t, s, "g1", map[string]any{
		"type": "group", "groupName": "G",
		"participants": []string{"alice", "bob", "carol"},
		"admins":       []string{"alice"},
	})
	if err := sess.provider.Select("g1"); err != nil {
		t.Fatal(err)
	}

	if err := sess.provider.List().Delete(context.Background(), "g1"); err != nil {
		t.Fatal(err)
	}
	doc, ok := chatDoc(t, s, "g1")
	if !ok {
		t.Fatalf("group should survive while members remain")
	}
	c := decodeConversation(doc)
	if c.HasMember("alice") || !equalStrings(c.Admins, []string{"bob"}) {
		t.Fatalf("leave not applied: %+v", c)
	}
	if sess.provider.Selected().Get() != nil {
		t.Fatalf("left group should be deselected")
	}
	if got := sess.provider.List().Notice().Get(); got != "You left the group" {
		t.Fatalf("notice = %q", got)
	}
}

func TestDeleteGroupFromListAsLastMember(t *testing.T) {
	s, sess := listFixture(t)
	seedChat(t, s, "g1", map[string]any{
		"type": "group", "groupName": "G",
		"participants": []string{"alice"},
		"admins":       []string{"alice"},
	})
	seedMessage(t, s, "g1", "m1", map[string]any{"senderId": "system", "content": "created", "timestamp": at(1)})

	if err := sess.provider.List().Delete(context.Background(), "g1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := chatDoc(t, s, "g1"); ok {
		t.Fatalf("group should be deleted")
	}
	if n := countDocs(t, s, messagesPath("g1")); n != 0 {
		t.Fatalf("messages should be deleted, %d left", n)
	}
}
