// Package auth is the identity collaborator: it verifies ID tokens issued by the external
// identity provider and pushes identity changes to subscribers.
package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	circle_errors "circle-chat/pkg/errors"
	"circle-chat/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

type Identity struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Parse(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, circle_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, circle_errors.ErrUnauthorized
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, circle_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, circle_errors.ErrUnauthorized
	}

	id := Identity{UserID: strings.TrimSpace(claims.Subject), Email: claims.Email}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Issue signs a token for userID. Used by local tooling and tests; production tokens come
// from the identity provider.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Provider holds the signed-in identity of one session.
type Provider struct {
	verifier *Verifier
	log      *logger.Logger

	mu        sync.Mutex
	current   *Identity
	listeners map[int]func(*Identity)
	nextID    int

	// notifyMu keeps listeners seeing changes in the order they happened.
	notifyMu sync.Mutex
}

func NewProvider(verifier *Verifier, log *logger.Logger) *Provider {
	if log == nil {
		log = logger.NewNop()
	}
	return &Provider{
		verifier:  verifier,
		log:       log.Named("auth"),
		listeners: make(map[int]func(*Identity)),
	}
}

// OnIdentityChange registers fn and immediately calls it with the current identity.
func (p *Provider) OnIdentityChange(fn func(*Identity)) func() {
	p.notifyMu.Lock()
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	current := p.current
	p.mu.Unlock()
	fn(copyIdentity(current))
	p.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) Current() *Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyIdentity(p.current)
}

func (p *Provider) SignIn(token string) (Identity, error) {
	id, err := p.verifier.Parse(token)
	if err != nil {
		return Identity{}, err
	}
	p.set(&id)
	p.log.Infof("signed in %s", id.UserID)
	return id, nil
}

func (p *Provider) SignOut(ctx context.Context) error {
	p.set(nil)
	return nil
}

func (p *Provider) set(id *Identity) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	same := (p.current == nil && id == nil) ||
		(p.current != nil && id != nil && p.current.UserID == id.UserID)
	p.current = copyIdentity(id)
	fns := make([]func(*Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	if same {
		return
	}
	for _, fn := range fns {
		fn(copyIdentity(id))
	}
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
