package auth

import (
	"context"
	"log"
	"net/http"
	"strings"

	"leads-admin/internal/shared/model"
)

// 免认证路由白名单（前缀匹配）
var publicPrefixes = []string{
	"/auth/login",
	"/auth/register",
	"/auth/logout",
	"/health",
	"/metrics",
}

func isPublicRoute(path string) bool {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// UserLoader 中间件所需的用户查询接口
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// extractToken 从 cookie 或 Authorization 头提取令牌
func extractToken(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return ""
}

// Middleware 创建认证中间件
//
// 令牌解析成功后仍按 ID 回查用户：用户被删或被停用的旧令牌必须立即失效。
// 任何失败都清 cookie 并拒绝（浏览器请求重定向到登录页，API 请求 401），
// 绝不放行到 handler。
func Middleware(cfg Config, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 公开路由：直接放行
			if isPublicRoute(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				deny(w, r, cfg, "missing credentials")
				return
			}

			claims, err := ParseToken(cfg, token)
			if err != nil {
				log.Printf("[auth] token parse error: %v", err)
				deny(w, r, cfg, "invalid or expired token")
				return
			}

			user, err := users.GetUserByID(r.Context(), claims.Subject)
			if err != nil {
				log.Printf("[auth] GetUserByID error: %v", err)
				deny(w, r, cfg, "internal error")
				return
			}
			if user == nil || !user.IsActive {
				deny(w, r, cfg, "account not found or disabled")
				return
			}

			ctx := WithAuthUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// deny 认证失败：清 cookie，浏览器重定向，API 返回 401
func deny(w http.ResponseWriter, r *http.Request, cfg Config, message string) {
	ClearTokenCookie(w, cfg)
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	writeError(w, http.StatusUnauthorized, message)
}

// AdminOnly 管理员专属路由中间件
func AdminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := GetAuthUser(r.Context())
		if user == nil || user.Role != model.UserRoleAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	}
}
