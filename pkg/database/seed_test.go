package database

import (
	"context"
	"testing"

	"circle-chat/internal/chat"
	"circle-chat/internal/domain/conversation"
	"circle-chat/internal/store"
	"circle-chat/internal/store/memstore"
)

func TestSeed(t *testing.T) {
	s := memstore.New()
	res, err := Seed(context.Background(), s, &SeedConfig{UserCount: 3, GroupName: "Crew"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Users) != 3 || len(res.Conversations) != 2 || res.Messages != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	alice, err := s.Get(context.Background(), chat.CollectionUsers, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if friends := store.Strings(alice.Data, "friends"); len(friends) != 2 {
		t.Fatalf("friends = %v", friends)
	}

	direct, err := s.Get(context.Background(), chat.CollectionChats, conversation.DirectID("alice", "bob"))
	if err != nil {
		t.Fatal(err)
	}
	if store.String(direct.Data, "type") != "direct" {
		t.Fatalf("direct record = %+v", direct.Data)
	}

	msgs, err := s.Documents(context.Background(), store.Query{Collection: store.Sub(chat.CollectionChats, res.Conversations[1].ID, chat.SubcollectionMsgs)})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || store.String(msgs[0].Data, "senderId") != "system" {
		t.Fatalf("group messages = %+v", msgs)
	}
}

func TestSeedClampsUserCount(t *testing.T) {
	res, err := Seed(context.Background(), memstore.New(), &SeedConfig{UserCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Users) != 2 {
		t.Fatalf("expected at least a pair, got %d", len(res.Users))
	}
}
