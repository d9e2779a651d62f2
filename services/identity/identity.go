// Package identity resolves the claims embedded in access tokens. The engine
// asks for them at every rotation so role and profile changes take effect on
// the next refresh instead of living on in stale copies.
package identity

import (
	"context"
	"errors"
	"sync"
)

var ErrUnknownIdentity = errors.New("unknown identity")

type Claims struct {
	Subject  string `json:"sub"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Provider interface {
	Resolve(ctx context.Context, userID string) (Claims, error)
}

// StaticProvider keeps identities in memory. Useful for tests and for
// embedding the engine where users are known up front.
type StaticProvider struct {
	mu    sync.RWMutex
	users map[string]Claims
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{users: make(map[string]Claims)}
}

func (p *StaticProvider) Set(userID string, claims Claims) {
	if claims.Subject == "" {
		claims.Subject = userID
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[userID] = claims
}

func (p *StaticProvider) Remove(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.users, userID)
}

func (p *StaticProvider) Resolve(_ context.Context, userID string) (Claims, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	claims, ok := p.users[userID]
	if !ok {
		return Claims{}, ErrUnknownIdentity
	}
	return claims, nil
}
