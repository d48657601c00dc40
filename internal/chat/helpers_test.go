package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"circle-chat/internal/auth"
	"circle-chat/internal/domain/conversation"
	"circle-chat/internal/store"
	"circle-chat/internal/store/memstore"
)

const testSecret = "test-secret"

type upload struct {
	Key         string
	ContentType string
	Size        int
}

type fakeBlobs struct {
	mu      sync.Mutex
	uploads []upload
	err     error
}

func (f *fakeBlobs) Upload(ctx context.Context, key, contentType string, body []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.uploads = append(f.uploads, upload{Key: key, ContentType: contentType, Size: len(body)})
	return "https://cdn.test/" + key, nil
}

func (f *fakeBlobs) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.uploads))
	for i, u := range f.uploads {
		out[i] = u.Key
	}
	return out
}

type testSession struct {
	t        *testing.T
	store    *memstore.Store
	blobs    *fakeBlobs
	auth     *auth.Provider
	provider *Provider
}

// newSession signs userID in and starts a provider on s.
func newSession(t *testing.T, s *memstore.Store, userID string) *testSession {
	t.Helper()
	verifier := auth.NewVerifier(testSecret)
	authProvider := auth.NewProvider(verifier, nil)
	token, err := verifier.Issue(userID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := authProvider.SignIn(token); err != nil {
		t.Fatal(err)
	}

	blobs := &fakeBlobs{}
	p := NewProvider(Deps{
		Auth:  authProvider,
		Store: s,
		Blobs: blobs,
		Options: Options{
			InviteBaseURL: "https://circle.test",
			NoticeTTL:     50 * time.Millisecond,
		},
	})
	p.Start()
	t.Cleanup(p.Close)
	return &testSession{t: t, store: s, blobs: blobs, auth: authProvider, provider: p}
}

func seedUser(t *testing.T, s *memstore.Store, id, username string, fields map[string]any) {
	t.Helper()
	data := map[string]any{
		"username":     username,
		"friends":      []string{},
		"blockedUsers": []string{},
	}
	for k, v := range fields {
		data[k] = v
	}
	if err := s.Set(context.Background(), CollectionUsers, id, data); err != nil {
		t.Fatal(err)
	}
}

func seedChat(t *testing.T, s *memstore.Store, id string, data map[string]any) {
	t.Helper()
	if err := s.Set(context.Background(), CollectionChats, id, data); err != nil {
		t.Fatal(err)
	}
}

func seedMessage(t *testing.T, s *memstore.Store, chatID, id string, data map[string]any) {
	t.Helper()
	if err := s.Set(context.Background(), messagesPath(chatID), id, data); err != nil {
		t.Fatal(err)
	}
}

func chatDoc(t *testing.T, s *memstore.Store, id string) (store.Document, bool) {
	t.Helper()
	doc, err := s.Get(context.Background(), CollectionChats, id)
	if store.IsNotFound(err) {
		return store.Document{}, false
	}
	if err != nil {
		t.Fatal(err)
	}
	return doc, true
}

func countDocs(t *testing.T, s *memstore.Store, collection string) int {
	t.Helper()
	docs, err := s.Documents(context.Background(), store.Query{Collection: collection})
	if err != nil {
		t.Fatal(err)
	}
	return len(docs)
}

func at(sec int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, sec, 0, time.UTC)
}

func directConv(id, a, b string) conversation.Conversation {
	return conversation.Conversation{ID: id, Kind: conversation.KindDirect, Participants: []string{a, b}}
}
