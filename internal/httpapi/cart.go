package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"zazoom-be/internal/cart"
	"zazoom-be/internal/logger"
	"zazoom-be/internal/middleware"
	"zazoom-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProfileCookie keeps an anonymous shopper on the same cart across visits.
const ProfileCookie = "zazoom_profile"

const profileCookieAge = 30 * 24 * time.Hour

type profileKey struct{}

// withProfile resolves the cart profile from the header, then the cookie,
// and issues a fresh one otherwise.
func (s *Server) withProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profileID := strings.TrimSpace(r.Header.Get(middleware.ProfileHeader))
		if profileID == "" {
			if c, err := r.Cookie(ProfileCookie); err == nil {
				profileID = c.Value
			}
		}
		if profileID == "" {
			profileID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     ProfileCookie,
				Value:    profileID,
				Path:     "/",
				MaxAge:   int(profileCookieAge.Seconds()),
				HttpOnly: true,
				Secure:   s.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := logger.WithProfileID(r.Context(), profileID)
		ctx = context.WithValue(ctx, profileKey{}, profileID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func profileFrom(ctx context.Context) string {
	id, _ := ctx.Value(profileKey{}).(string)
	return id
}

// withCart runs fn on the request's cart with the profile locked and
// returns the cart as fn left it.
func (s *Server) withCart(r *http.Request, fn func(*cart.Store) error) (cart.State, error) {
	if s.Carts == nil {
		return cart.State{}, errUnavailable
	}
	var st cart.State
	err := s.Carts.Do(r.Context(), profileFrom(r.Context()), func(c *cart.Store) error {
		if err := fn(c); err != nil {
			return err
		}
		st = c.State()
		return nil
	})
	return st, err
}

type cartResponse struct {
	Items     []cart.Line     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

func writeCart(w http.ResponseWriter, code int, st cart.State) {
	utils.WriteJSON(w, code, cartResponse{
		Items:     st.Lines,
		Total:     st.Total,
		ItemCount: st.ItemCount(),
	})
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	st, err := s.withCart(r, func(*cart.Store) error { return nil })
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, st)
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var item cart.Item
	if err := utils.DecodeJSON(r, &item); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	st, err := s.withCart(r, func(c *cart.Store) error {
		return c.AddItem(r.Context(), item)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, st)
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (s *Server) updateQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := utils.DecodeJSON(r, &req); err != nil || req.Quantity == nil {
		utils.WriteJSONError(w, "quantity is required", http.StatusBadRequest)
		return
	}

	st, err := s.withCart(r, func(c *cart.Store) error {
		return c.UpdateQuantity(r.Context(), chi.URLParam(r, "productID"), *req.Quantity)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, st)
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	st, err := s.withCart(r, func(c *cart.Store) error {
		return c.RemoveItem(r.Context(), chi.URLParam(r, "productID"))
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, st)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	st, err := s.withCart(r, func(c *cart.Store) error {
		return c.Clear(r.Context())
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, st)
}
