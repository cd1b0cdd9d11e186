package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/logger"
)

type ctxKey int

const ctxUserID ctxKey = iota

// authClaims carries only the verified subject. Role claims sent by a
// client are never trusted; roles are read from the store.
type authClaims struct {
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token whose subject is userID.
func (h *Handler) IssueToken(userID core.UserID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := authClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

// Authenticate verifies the bearer token and puts the user id in the
// request context.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return h.secret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok || claims.Subject == "" {
			writeError(w, http.StatusUnauthorized, "Invalid token claims", nil)
			return
		}

		userID := core.UserID(claims.Subject)
		log := h.log.With().
			Str("user_id", string(userID)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Logger()
		ctx := context.WithValue(r.Context(), ctxUserID, userID)
		ctx = logger.WithContext(ctx, log)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BindShop resolves the caller's shop and binds it to the request context.
// Users without an active shop are rejected.
func (h *Handler) BindShop(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
			return
		}
		ctx, err := h.Resolver.Bind(r.Context(), userID)
		if err != nil {
			if errors.Is(err, core.ErrNoShop) {
				writeError(w, http.StatusForbidden, "No active shop for this user", err)
				return
			}
			h.writeDomainError(w, r, "Failed to resolve shop", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SignOut drops the caller's cached shop binding.
// POST /api/auth/signout
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFrom(r.Context())
	h.Resolver.SignOut(userID)
	w.WriteHeader(http.StatusNoContent)
}

func userFrom(ctx context.Context) (core.UserID, bool) {
	id, ok := ctx.Value(ctxUserID).(core.UserID)
	return id, ok && id != ""
}
