package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"babywatch/internal/auth"

	"go.uber.org/zap"
)

type contextKey string

const ownerIDKey contextKey = "owner_id"

// OwnerID 从请求上下文取出已认证的 owner 标识
func OwnerID(r *http.Request) string {
	if v, ok := r.Context().Value(ownerIDKey).(string); ok {
		return v
	}
	return ""
}

// RequireAuth 认证中间件：校验 Bearer Token 并把 owner 标识写入上下文
// Token 校验交给身份提供方，这里只信任其返回的标识
func RequireAuth(verifier auth.TokenVerifier, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				errorJSON(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			ownerID, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidToken) {
					logger.Error("Token verification failed", zap.Error(err))
					errorJSON(w, http.StatusInternalServerError, "token verification failed")
					return
				}
				errorJSON(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ownerIDKey, ownerID)
			next(w, r.WithContext(ctx))
		}
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
