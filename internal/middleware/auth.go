package middleware

import (
	"net/http"

	"zazoom-be/internal/auth"
	"zazoom-be/internal/logger"
	"zazoom-be/internal/utils"

	"go.uber.org/zap"
)

// AdminOnly rejects requests without a valid admin token and stores the
// admin identity on the context for handlers.
func AdminOnly(issuer *auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := auth.ExtractAccessToken(r)
			if tokenStr == "" {
				utils.WriteJSONError(w, "authentication required", http.StatusUnauthorized)
				return
			}

			claims, err := issuer.Parse(tokenStr)
			if err != nil {
				logger.FromCtx(r.Context()).Warn("rejected admin token",
					zap.String("layer", "middleware"),
					zap.Error(err),
				)
				utils.WriteJSONError(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}
			if claims.Role != utils.RoleAdmin {
				utils.WriteJSONError(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := utils.SetAdminContext(r.Context(), claims.Username, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
