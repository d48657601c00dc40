// Package firestore implements store.DocumentStore on Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"circle-chat/internal/store"
	"circle-chat/pkg/diagnostics"
	"circle-chat/pkg/logger"

	gfs "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Store talks to Firestore directly. The Go SDK has no client-side network toggle, so
// DisableNetwork/EnableNetwork gate the live listeners: disabling tears every snapshot
// stream down, enabling re-opens them. One-shot reads and writes are not gated.
type Store struct {
	Client *gfs.Client
	log    *logger.Logger

	mu      sync.Mutex
	online  bool
	epochCh chan struct{}
}

func New(ctx context.Context, projectID string, log *logger.Logger) (*Store, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("firestore project id is required")
	}
	client, err := gfs.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return NewWithClient(client, log), nil
}

func NewWithClient(client *gfs.Client, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{
		Client:  client,
		log:     log.Named("firestore"),
		online:  true,
		epochCh: make(chan struct{}),
	}
}

func (s *Store) Close() error {
	if s.Client == nil {
		return nil
	}
	return s.Client.Close()
}

func (s *Store) col(path string) *gfs.CollectionRef {
	return s.Client.Collection(path)
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	if s.Client == nil {
		return store.Document{}, errors.New("firestore client is nil")
	}
	snap, err := s.col(collection).Doc(id).Get(ctx)
	if err != nil {
		return store.Document{}, mapErr(err)
	}
	if !snap.Exists() {
		return store.Document{}, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return store.Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any) error {
	_, err := s.col(collection).Doc(id).Set(ctx, encode(data))
	return mapErr(err)
}

func (s *Store) Create(ctx context.Context, collection, id string, data map[string]any) error {
	_, err := s.col(collection).Doc(id).Create(ctx, encode(data))
	return mapErr(err)
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	ref, _, err := s.col(collection).Add(ctx, encode(data))
	if err != nil {
		return "", mapErr(err)
	}
	return ref.ID, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, updates []store.Update) error {
	if len(updates) == 0 {
		return nil
	}
	patch := make([]gfs.Update, 0, len(updates))
	for _, u := range updates {
		patch = append(patch, gfs.Update{Path: u.Path, Value: encodeValue(u.Value)})
	}
	_, err := s.col(collection).Doc(id).Update(ctx, patch)
	return mapErr(err)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.col(collection).Doc(id).Delete(ctx)
	return mapErr(err)
}

func (s *Store) DeleteCollection(ctx context.Context, collection string) error {
	it := s.col(collection).Documents(ctx)
	defer it.Stop()

	bw := s.Client.BulkWriter(ctx)
	var jobs []writeJob
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			return mapErr(err)
		}
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return mapErr(err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	return firstJobErr(jobs)
}

// writeJob is the part of *firestore.BulkWriterJob that reports a write's outcome.
type writeJob interface {
	Results() (*gfs.WriteResult, error)
}

// firstJobErr waits for every job and returns the first failure.
func firstJobErr(jobs []writeJob) error {
	var first error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil && first == nil {
			first = mapErr(err)
		}
	}
	return first
}

func (s *Store) Documents(ctx context.Context, q store.Query) ([]store.Document, error) {
	it := s.query(q).Documents(ctx)
	defer it.Stop()

	var docs []store.Document
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, mapErr(err)
		}
		docs = append(docs, store.Document{ID: doc.Ref.ID, Data: doc.Data()})
	}
	return docs, nil
}

func (s *Store) query(q store.Query) gfs.Query {
	col := s.col(q.Collection)
	query := col.Query
	for _, f := range q.Filters {
		if f.Field == store.DocumentID {
			id, _ := f.Value.(string)
			query = query.Where(gfs.DocumentID, string(f.Op), col.Doc(id))
			continue
		}
		query = query.Where(f.Field, string(f.Op), f.Value)
	}
	if q.OrderBy != "" {
		dir := gfs.Asc
		if q.Desc {
			dir = gfs.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	return query
}

func (s *Store) DisableNetwork(ctx context.Context) error {
	s.setOnline(false)
	s.log.Infof("network disabled, live listeners paused")
	return nil
}

func (s *Store) EnableNetwork(ctx context.Context) error {
	s.setOnline(true)
	s.log.Infof("network enabled, live listeners resuming")
	return nil
}

func (s *Store) setOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.online == online {
		return
	}
	s.online = online
	close(s.epochCh)
	s.epochCh = make(chan struct{})
}

// waitOnline blocks until the network is enabled. The returned channel closes on the next
// network state change.
func (s *Store) waitOnline(stop <-chan struct{}) (<-chan struct{}, bool) {
	for {
		s.mu.Lock()
		online, ch := s.online, s.epochCh
		s.mu.Unlock()
		if online {
			return ch, true
		}
		select {
		case <-stop:
			return nil, false
		case <-ch:
		}
	}
}

func (s *Store) Listen(q store.Query, fn func(store.Snapshot)) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	query := s.query(q)

	go func() {
		defer close(done)
		defer diagnostics.Recover(s.log, "firestore listener "+q.Collection)
		for {
			epoch, ok := s.waitOnline(stop)
			if !ok {
				return
			}
			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				select {
				case <-stop:
				case <-epoch:
				case <-ctx.Done():
				}
				cancel()
			}()

			err := pump(ctx, query, fn)
			interrupted := ctx.Err() != nil
			cancel()

			select {
			case <-stop:
				return
			default:
			}
			if interrupted {
				continue
			}
			fn(store.Snapshot{Err: mapErr(err)})
			// Stay quiet until a network cycle or stop.
			select {
			case <-stop:
				return
			case <-epoch:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stop) })
		<-done
	}
}

func pump(ctx context.Context, query gfs.Query, fn func(store.Snapshot)) error {
	it := query.Snapshots(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err != nil {
			return err
		}
		raw, err := snap.Documents.GetAll()
		if err != nil {
			return err
		}
		docs := make([]store.Document, 0, len(raw))
		for _, d := range raw {
			docs = append(docs, store.Document{ID: d.Ref.ID, Data: d.Data()})
		}
		fn(store.Snapshot{Docs: docs})
	}
}

func encode(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = encodeValue(v)
	}
	return out
}

func encodeValue(v any) any {
	switch {
	case store.IsServerTimestamp(v):
		return gfs.ServerTimestamp
	case store.IsDeleteField(v):
		return gfs.Delete
	}
	if values, ok := store.AsArrayUnion(v); ok {
		return gfs.ArrayUnion(values...)
	}
	if values, ok := store.AsArrayRemove(v); ok {
		return gfs.ArrayRemove(values...)
	}
	return v
}

// mapErr keeps the gRPC status in the chain so the resilience layer can still read it.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %w", store.ErrAlreadyExists, err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %w", store.ErrPermissionDenied, err)
	case codes.Unavailable:
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return err
}
