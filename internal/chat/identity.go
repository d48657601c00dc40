package chat

import (
	"context"
	"slices"
	"sync"
	"time"

	"circle-chat/internal/auth"
	"circle-chat/internal/domain/user"
	"circle-chat/internal/store"
	"circle-chat/pkg/logger"
)

// IdentitySource pushes the signed-in identity, or nil, on every change.
type IdentitySource interface {
	OnIdentityChange(fn func(*auth.Identity)) (unsubscribe func())
}

const lookupTimeout = 10 * time.Second

// IdentityResolver maps identity changes to the current user profile and keeps the
// profile live so block lists propagate.
type IdentityResolver struct {
	source   IdentitySource
	store    store.DocumentStore
	profiles *ProfileResolver
	current  *Value[*user.User]
	log      *logger.Logger

	mu          sync.Mutex
	gen         uint64
	stopped     bool
	unsubscribe func()
	stopProfile func()

	pubMu sync.Mutex
}

func NewIdentityResolver(source IdentitySource, s store.DocumentStore, profiles *ProfileResolver, log *logger.Logger) *IdentityResolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &IdentityResolver{
		source:   source,
		store:    s,
		profiles: profiles,
		current:  NewValue[*user.User](nil),
		log:      log.Named("identity"),
	}
}

func (r *IdentityResolver) Current() *Value[*user.User] {
	return r.current
}

// Start subscribes to identity changes. The source delivers the current identity
// immediately, so Start returns with the profile already resolved.
func (r *IdentityResolver) Start() {
	r.mu.Lock()
	if r.unsubscribe != nil {
		r.mu.Unlock()
		return
	}
	r.stopped = false
	r.mu.Unlock()

	unsubscribe := r.source.OnIdentityChange(r.onIdentity)

	r.mu.Lock()
	r.unsubscribe = unsubscribe
	r.mu.Unlock()
}

// Stop drops the identity subscription and the profile listener and clears the user.
func (r *IdentityResolver) Stop() {
	r.mu.Lock()
	r.gen++
	r.stopped = true
	unsubscribe, stopProfile := r.unsubscribe, r.stopProfile
	r.unsubscribe, r.stopProfile = nil, nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if stopProfile != nil {
		stopProfile()
	}

	r.pubMu.Lock()
	r.current.Set(nil)
	r.pubMu.Unlock()
}

func (r *IdentityResolver) onIdentity(id *auth.Identity) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.gen++
	gen := r.gen
	stopProfile := r.stopProfile
	r.stopProfile = nil
	r.mu.Unlock()

	if stopProfile != nil {
		stopProfile()
	}
	if id == nil {
		r.publish(gen, nil)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	u, found, err := r.profiles.Load(ctx, id.UserID)
	if err != nil {
		r.log.Warnf("profile load for %s failed: %v", id.UserID, err)
		r.publish(gen, nil)
		return
	}
	if !found {
		r.log.Infof("no profile document for %s", id.UserID)
		r.publish(gen, nil)
		return
	}
	r.publish(gen, &u)

	q := store.Query{Collection: CollectionUsers}.Where(store.DocumentID, store.OpEqual, id.UserID)
	stop := r.store.Listen(q, func(snap store.Snapshot) {
		r.onProfile(gen, snap)
	})

	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		stop()
		return
	}
	r.stopProfile = stop
	r.mu.Unlock()
}

func (r *IdentityResolver) onProfile(gen uint64, snap store.Snapshot) {
	if snap.Err != nil {
		// Keep the last known profile; the listener resumes after recovery.
		r.log.Debugf("profile listener: %v", snap.Err)
		return
	}
	if len(snap.Docs) == 0 {
		r.publish(gen, nil)
		return
	}
	u := decodeUser(snap.Docs[0])
	r.profiles.Observe(context.Background(), u)

	if prev := r.current.Get(); prev != nil && sameUser(*prev, u) {
		return
	}
	r.publish(gen, &u)
}

func (r *IdentityResolver) publish(gen uint64, u *user.User) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	r.mu.Lock()
	stale := r.gen != gen
	r.mu.Unlock()
	if stale {
		return
	}
	r.current.Set(u)
}

func sameUser(a, b user.User) bool {
	return a.ID == b.ID &&
		a.Username == b.Username &&
		a.DisplayName == b.DisplayName &&
		a.ProfilePic == b.ProfilePic &&
		slices.Equal(a.Friends, b.Friends) &&
		slices.Equal(a.BlockedUsers, b.BlockedUsers)
}
