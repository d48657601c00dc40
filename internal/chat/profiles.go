package chat

import (
	"context"
	"errors"

	"circle-chat/internal/domain/user"
	"circle-chat/internal/store"
	"circle-chat/pkg/logger"
)

// ProfileCache is a read-through cache of user profiles. *redis.ProfileCache implements it.
type ProfileCache interface {
	GetProfile(ctx context.Context, id string) (*user.User, error)
	SetProfile(ctx context.Context, u user.User) error
	InvalidateProfile(ctx context.Context, id string) error
}

// ProfileResolver looks up users/{id}. It is shared by the identity resolver, the
// conversation index and the list controller.
type ProfileResolver struct {
	store store.DocumentStore
	cache ProfileCache
	log   *logger.Logger
}

// NewProfileResolver accepts a nil cache.
func NewProfileResolver(s store.DocumentStore, cache ProfileCache, log *logger.Logger) *ProfileResolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &ProfileResolver{store: s, cache: cache, log: log.Named("profiles")}
}

// Load fetches the profile document, bypassing the cache. A missing document is
// (zero, false, nil).
func (p *ProfileResolver) Load(ctx context.Context, id string) (user.User, bool, error) {
	doc, err := p.store.Get(ctx, CollectionUsers, id)
	if err != nil {
		if store.IsNotFound(err) {
			return user.User{}, false, nil
		}
		return user.User{}, false, err
	}
	u := decodeUser(doc)
	p.remember(ctx, u)
	return u, true, nil
}

// Resolve never fails: a missing profile, a permission fault or any other error yields
// user.Fallback(id).
func (p *ProfileResolver) Resolve(ctx context.Context, id string) user.User {
	if p.cache != nil {
		cached, err := p.cache.GetProfile(ctx, id)
		if err != nil {
			p.log.Debugf("profile cache read %s: %v", id, err)
		}
		if cached != nil {
			return *cached
		}
	}

	u, found, err := p.Load(ctx, id)
	switch {
	case err != nil && errors.Is(err, store.ErrPermissionDenied):
		p.log.Debugf("profile %s not readable, using fallback", id)
		return user.Fallback(id)
	case err != nil:
		p.log.Warnf("profile %s lookup failed: %v", id, err)
		return user.Fallback(id)
	case !found:
		return user.Fallback(id)
	}
	return u
}

// Observe records a profile seen on a live listener.
func (p *ProfileResolver) Observe(ctx context.Context, u user.User) {
	p.remember(ctx, u)
}

func (p *ProfileResolver) Invalidate(ctx context.Context, id string) {
	if p.cache == nil {
		return
	}
	if err := p.cache.InvalidateProfile(ctx, id); err != nil {
		p.log.Debugf("profile cache invalidate %s: %v", id, err)
	}
}

func (p *ProfileResolver) remember(ctx context.Context, u user.User) {
	if p.cache == nil {
		return
	}
	if err := p.cache.SetProfile(ctx, u); err != nil {
		p.log.Debugf("profile cache write %s: %v", u.ID, err)
	}
}
