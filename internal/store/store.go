// Package store defines the document-store collaborator the chat core runs on.
// Collections are slash-separated paths, so a subcollection is "chats/{id}/messages".
package store

import (
	"context"
	"errors"
	"path"
	"time"

	circle_errors "circle-chat/pkg/errors"
)

var (
	ErrNotFound         = circle_errors.ErrNotFound
	ErrAlreadyExists    = circle_errors.ErrAlreadyExists
	ErrPermissionDenied = circle_errors.ErrPermissionDenied
	ErrUnavailable      = circle_errors.ErrServiceUnavailable
)

// DocumentID filters on the document's own id.
const DocumentID = "__name__"

type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Desc       bool
}

func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) Order(field string, desc bool) Query {
	q.OrderBy = field
	q.Desc = desc
	return q
}

type Document struct {
	ID   string
	Data map[string]any
}

// Snapshot is one push from a live listener: the full current result set, or an error.
// After an error push the listener stays registered and resumes after a network cycle.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Update is a single field patch. Value may be a plain value or one of the sentinels below.
type Update struct {
	Path  string
	Value any
}

type arrayUnion struct{ values []any }
type arrayRemove struct{ values []any }
type serverTimestamp struct{}
type deleteField struct{}

func ArrayUnion(values ...any) any  { return arrayUnion{values: values} }
func ArrayRemove(values ...any) any { return arrayRemove{values: values} }

var (
	ServerTimestamp any = serverTimestamp{}
	DeleteField     any = deleteField{}
)

// Sentinel inspection for adapters.

func AsArrayUnion(v any) ([]any, bool) {
	u, ok := v.(arrayUnion)
	return u.values, ok
}

func AsArrayRemove(v any) ([]any, bool) {
	r, ok := v.(arrayRemove)
	return r.values, ok
}

func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

func IsDeleteField(v any) bool {
	_, ok := v.(deleteField)
	return ok
}

type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set writes the whole document, creating or replacing it.
	Set(ctx context.Context, collection, id string, data map[string]any) error
	// Create fails with ErrAlreadyExists when the document exists.
	Create(ctx context.Context, collection, id string, data map[string]any) error
	// Add creates a document with a generated id.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	Update(ctx context.Context, collection, id string, updates []Update) error
	Delete(ctx context.Context, collection, id string) error
	// DeleteCollection removes every document of a (sub)collection.
	DeleteCollection(ctx context.Context, collection string) error
	Documents(ctx context.Context, q Query) ([]Document, error)
	// Listen pushes the full result set on every change until stop is called.
	// stop blocks until no further push can be delivered.
	Listen(q Query, fn func(Snapshot)) (stop func())
	DisableNetwork(ctx context.Context) error
	EnableNetwork(ctx context.Context) error
}

// Sub returns the path of a subcollection under collection/id.
func Sub(collection, id, sub string) string {
	return path.Join(collection, id, sub)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Field readers shared by decoders and adapters.

func String(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func Bool(data map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := data[k].(bool); ok {
			return v
		}
	}
	return false
}

// Strings reads the first key that holds a non-empty string array. Malformed values are
// skipped rather than failing the decode.
func Strings(data map[string]any, keys ...string) []string {
	for _, k := range keys {
		var out []string
		switch v := data[k].(type) {
		case []string:
			out = append(out, v...)
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					out = append(out, s)
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return []string{}
}

func Time(data map[string]any, keys ...string) *time.Time {
	for _, k := range keys {
		switch v := data[k].(type) {
		case time.Time:
			if !v.IsZero() {
				t := v.UTC()
				return &t
			}
		case *time.Time:
			if v != nil && !v.IsZero() {
				t := v.UTC()
				return &t
			}
		}
	}
	return nil
}
