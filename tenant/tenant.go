/*
Package tenant binds a shop identity to each call.

PURPOSE:
  Every row the ledger writes is tagged with the shop it belongs to. The
  shop is resolved once per user session and then travels in the
  context.Context of each call. There is no package-level cache: the
  Resolver owns its cache, keyed by user, and SignOut drops the entry so
  a later session for another shop can never inherit a stale identity.

USAGE:
  resolver := tenant.NewResolver(store)
  ctx, err := resolver.Bind(ctx, userID)   // on each authenticated request
  ...
  shopID, err := tenant.ShopFrom(ctx)      // inside ledger operations
  ...
  resolver.SignOut(userID)                 // on sign-out

SEE ALSO:
  - api/auth.go: middleware calling Bind, signout route calling SignOut
*/
package tenant

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/shop-ledger/core"
)

type ctxKey struct{}

// WithShop returns a context carrying shopID.
func WithShop(ctx context.Context, shopID core.ShopID) context.Context {
	return context.WithValue(ctx, ctxKey{}, shopID)
}

// ShopFrom returns the shop bound to ctx, or ErrNoShop.
func ShopFrom(ctx context.Context) (core.ShopID, error) {
	id, ok := ctx.Value(ctxKey{}).(core.ShopID)
	if !ok || id == "" {
		return "", core.ErrNoShop
	}
	return id, nil
}

// Resolver caches user -> shop resolutions for the lifetime of a session.
type Resolver struct {
	lookup core.TenantStore

	mu       sync.RWMutex
	sessions map[core.UserID]core.ShopID
}

func NewResolver(lookup core.TenantStore) *Resolver {
	return &Resolver{
		lookup:   lookup,
		sessions: make(map[core.UserID]core.ShopID),
	}
}

// Resolve returns the user's shop, asking the store only on the first call
// of a session. Users without a shop get ErrNoShop and nothing is cached.
func (r *Resolver) Resolve(ctx context.Context, userID core.UserID) (core.ShopID, error) {
	r.mu.RLock()
	shopID, ok := r.sessions[userID]
	r.mu.RUnlock()
	if ok {
		return shopID, nil
	}

	shopID, err := r.lookup.ShopForUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolve shop for user %s: %w", userID, err)
	}
	if shopID == "" {
		return "", core.ErrNoShop
	}

	r.mu.Lock()
	r.sessions[userID] = shopID
	r.mu.Unlock()
	return shopID, nil
}

// Bind resolves the user's shop and returns a context carrying it.
func (r *Resolver) Bind(ctx context.Context, userID core.UserID) (context.Context, error) {
	shopID, err := r.Resolve(ctx, userID)
	if err != nil {
		return ctx, err
	}
	return WithShop(ctx, shopID), nil
}

// SignOut invalidates the cached shop of userID.
func (r *Resolver) SignOut(userID core.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Invalidate drops every cached session, e.g. after an admin toggled a shop.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[core.UserID]core.ShopID)
}
