package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"zazoom-be/internal/auth"
	"zazoom-be/internal/metrics"
	"zazoom-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCors(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := CORS([]string{"http://localhost:3000"})(next)

	t.Run("Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/cart", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), ProfileHeader)
	})

	t.Run("Normal request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/cart", nil)
		req.Header.Set("Origin", "https://evil.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestAdminOnly(t *testing.T) {
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	reached := func(t *testing.T) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name, ok := utils.GetAdminFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, "root", name)
			w.WriteHeader(http.StatusOK)
		})
	}

	t.Run("Missing Token", func(t *testing.T) {
		w := httptest.NewRecorder()
		AdminOnly(issuer)(http.NotFoundHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Invalid Token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		w := httptest.NewRecorder()

		AdminOnly(issuer)(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Valid Token", func(t *testing.T) {
		token, _, err := issuer.Generate("root", utils.RoleAdmin)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		AdminOnly(issuer)(reached(t)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Cookie Token", func(t *testing.T) {
		token, _, err := issuer.Generate("root", utils.RoleAdmin)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
		w := httptest.NewRecorder()

		AdminOnly(issuer)(reached(t)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Wrong Role", func(t *testing.T) {
		token, _, err := issuer.Generate("driver", "driver")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		AdminOnly(issuer)(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestLimiter(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("Strict tier for checkout", func(t *testing.T) {
		l := NewLimiter("")
		handler := l.Middleware(ok)

		codes := make([]int, 0, burstStrict+1)
		for i := 0; i <= burstStrict; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
			req.Header.Set(ProfileHeader, "p-1")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			codes = append(codes, w.Code)
		}

		assert.Equal(t, http.StatusOK, codes[0])
		assert.Equal(t, http.StatusTooManyRequests, codes[burstStrict])

		// a different profile has its own bucket
		req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
		req.Header.Set(ProfileHeader, "p-2")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Tiers", func(t *testing.T) {
		l := NewLimiter("svc-key")

		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		_, _, tier := l.resolveRateTier(req)
		assert.Equal(t, "general", tier)

		req = httptest.NewRequest(http.MethodPost, "/api/orders/abc/payment", nil)
		_, _, tier = l.resolveRateTier(req)
		assert.Equal(t, "strict", tier)

		req = httptest.NewRequest(http.MethodPost, "/api/admin/login", nil)
		req.Header.Set("X-Service-Auth", "svc-key")
		_, _, tier = l.resolveRateTier(req)
		assert.Equal(t, "internal", tier)
	})

	t.Run("Identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		assert.Equal(t, "ip:10.0.0.1", identity(req))

		req.Header.Set(ProfileHeader, "p-9")
		assert.Equal(t, "profile:p-9", identity(req))

		req = req.WithContext(utils.SetAdminContext(req.Context(), "root", utils.RoleAdmin))
		assert.Equal(t, "admin:root", identity(req))
	})

	t.Run("Prune", func(t *testing.T) {
		l := NewLimiter("")
		l.getVisitor("ip:1:general", limitGeneral, burstGeneral)
		l.prune(time.Now().Add(visitorTTL + time.Second))
		assert.Empty(t, l.visitors)
	})
}

func TestMetrics(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/api/orders/{id}", "404")
	before := testutil.ToFloat64(counter)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders/123", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders/456", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}
