package resilience

import (
	"context"

	"circle-chat/internal/store"
)

// GuardedStore reports every store error, listener errors included, to the recoverer.
// Errors are still returned to the caller unchanged.
type GuardedStore struct {
	store.DocumentStore
	rec *Recoverer
}

func Guard(s store.DocumentStore, rec *Recoverer) *GuardedStore {
	return &GuardedStore{DocumentStore: s, rec: rec}
}

func (g *GuardedStore) observe(err error) error {
	if err != nil {
		g.rec.Report(err)
	}
	return err
}

func (g *GuardedStore) Get(ctx context.Context, collection, id string) (store.Document, error) {
	doc, err := g.DocumentStore.Get(ctx, collection, id)
	return doc, g.observe(err)
}

func (g *GuardedStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	return g.observe(g.DocumentStore.Set(ctx, collection, id, data))
}

func (g *GuardedStore) Create(ctx context.Context, collection, id string, data map[string]any) error {
	return g.observe(g.DocumentStore.Create(ctx, collection, id, data))
}

func (g *GuardedStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id, err := g.DocumentStore.Add(ctx, collection, data)
	return id, g.observe(err)
}

func (g *GuardedStore) Update(ctx context.Context, collection, id string, updates []store.Update) error {
	return g.observe(g.DocumentStore.Update(ctx, collection, id, updates))
}

func (g *GuardedStore) Delete(ctx context.Context, collection, id string) error {
	return g.observe(g.DocumentStore.Delete(ctx, collection, id))
}

func (g *GuardedStore) DeleteCollection(ctx context.Context, collection string) error {
	return g.observe(g.DocumentStore.DeleteCollection(ctx, collection))
}

func (g *GuardedStore) Documents(ctx context.Context, q store.Query) ([]store.Document, error) {
	docs, err := g.DocumentStore.Documents(ctx, q)
	return docs, g.observe(err)
}

func (g *GuardedStore) Listen(q store.Query, fn func(store.Snapshot)) func() {
	return g.DocumentStore.Listen(q, func(snap store.Snapshot) {
		if snap.Err != nil {
			g.rec.Report(snap.Err)
		}
		fn(snap)
	})
}
