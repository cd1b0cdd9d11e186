/*
admin.go - Super-admin side-channel for shop management

PURPOSE:
  A single endpoint taking {"action": ..., params...}. It runs outside any
  shop binding: the caller is identified by the verified token subject
  and must hold the super_admin role in the store. Role claims inside
  the token are ignored.

ACTIONS:
  list_pending_users  Users owning no shop, super admins excluded
  list_shops          Every shop
  create_shop         {shop_name, owner_email}; grants shop_owner
  toggle_shop         {shop_id, active}; drops cached shop bindings

VALIDATION:
  shop_name is 2-100 characters after trimming; owner_email must look
  like an address. Both are checked here, never trusted from the client.
*/
package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/logger"
)

const (
	minShopName = 2
	maxShopName = 100
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AdminRequest is the side-channel body.
type AdminRequest struct {
	Action     string `json:"action"`
	ShopName   string `json:"shop_name,omitempty"`
	OwnerEmail string `json:"owner_email,omitempty"`
	ShopID     string `json:"shop_id,omitempty"`
	Active     *bool  `json:"active,omitempty"`
}

type UserDTO struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

type ShopDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
	Active  bool   `json:"active"`
}

func toShopDTO(s core.Shop) ShopDTO {
	return ShopDTO{ID: string(s.ID), Name: s.Name, OwnerID: string(s.OwnerID), Active: s.Active}
}

// AdminShops dispatches an admin action.
// POST /api/admin/shops
func (h *Handler) AdminShops(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := userFrom(ctx)
	isAdmin, err := h.Store.HasRole(ctx, userID, core.RoleSuperAdmin)
	if err != nil {
		h.writeDomainError(w, r, "Failed to check role", err)
		return
	}
	if !isAdmin {
		writeError(w, http.StatusForbidden, "Forbidden", core.ErrForbidden)
		return
	}

	var req AdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	log := logger.FromContext(ctx, h.log)

	switch req.Action {
	case "list_pending_users":
		users, err := h.pendingUsers(r)
		if err != nil {
			h.writeDomainError(w, r, "Failed to list users", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})

	case "list_shops":
		shops, err := h.Store.ListShops(ctx)
		if err != nil {
			h.writeDomainError(w, r, "Failed to list shops", err)
			return
		}
		dtos := make([]ShopDTO, len(shops))
		for i, s := range shops {
			dtos[i] = toShopDTO(s)
		}
		writeJSON(w, http.StatusOK, map[string]any{"shops": dtos})

	case "create_shop":
		shop, err := h.createShop(r, req)
		if err != nil {
			h.writeDomainError(w, r, "Failed to create shop", err)
			return
		}
		log.Info().Str("shop_id", string(shop.ID)).Str("owner_id", string(shop.OwnerID)).Msg("shop created")
		writeJSON(w, http.StatusCreated, map[string]any{"shop": toShopDTO(shop)})

	case "toggle_shop":
		if req.ShopID == "" || req.Active == nil {
			h.writeDomainError(w, r, "Invalid request", core.Invalid("shop_id", "shop_id and active are required"))
			return
		}
		shop, err := h.Store.SetShopActive(ctx, core.ShopID(req.ShopID), *req.Active)
		if err != nil {
			h.writeDomainError(w, r, "Failed to toggle shop", err)
			return
		}
		// bindings of the toggled shop's users must be resolved again
		h.Resolver.Invalidate()
		log.Info().Str("shop_id", req.ShopID).Bool("active", shop.Active).Msg("shop toggled")
		writeJSON(w, http.StatusOK, map[string]any{"shop": toShopDTO(shop)})

	default:
		writeError(w, http.StatusBadRequest, "Unknown action", nil)
	}
}

func (h *Handler) pendingUsers(r *http.Request) ([]UserDTO, error) {
	ctx := r.Context()
	users, err := h.Store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	shops, err := h.Store.ListShops(ctx)
	if err != nil {
		return nil, err
	}
	owners := make(map[core.UserID]bool, len(shops))
	for _, s := range shops {
		owners[s.OwnerID] = true
	}

	out := []UserDTO{}
	for _, u := range users {
		if owners[u.ID] {
			continue
		}
		admin, err := h.Store.HasRole(ctx, u.ID, core.RoleSuperAdmin)
		if err != nil {
			return nil, err
		}
		if admin {
			continue
		}
		out = append(out, UserDTO{ID: string(u.ID), Email: u.Email, CreatedAt: u.CreatedAt.Format(dateLayout)})
	}
	return out, nil
}

func (h *Handler) createShop(r *http.Request, req AdminRequest) (core.Shop, error) {
	name := strings.TrimSpace(req.ShopName)
	email := strings.TrimSpace(req.OwnerEmail)
	if n := utf8.RuneCountInString(name); n < minShopName || n > maxShopName {
		return core.Shop{}, core.Invalid("shop_name", "must be %d-%d characters", minShopName, maxShopName)
	}
	if !emailPattern.MatchString(email) {
		return core.Shop{}, core.Invalid("owner_email", "is not a valid email address")
	}

	ctx := r.Context()
	owner, err := h.Store.FindUserByEmail(ctx, email)
	if err != nil {
		return core.Shop{}, err
	}
	shop, err := h.Store.InsertShop(ctx, core.Shop{Name: name, OwnerID: owner.ID, Active: true})
	if err != nil {
		return core.Shop{}, err
	}
	if err := h.Store.GrantRole(ctx, owner.ID, core.RoleShopOwner); err != nil {
		return core.Shop{}, err
	}
	return shop, nil
}
