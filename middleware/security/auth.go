package security

import (
	"net/http"
	"strings"

	"Chatty/tools/errs"
	jwtlib "Chatty/tools/security"

	"github.com/gin-gonic/gin"
)

// —— context key ——
// 后续 handler 统一用它读取当前用户。
const CtxUserIDKey = "userId"

type Options struct {
	JWT jwtlib.Options

	CookieName                string // 默认 "jwt"
	EnableAuthorizationBearer bool   // 默认 true
}

func DefaultOptions(jwt jwtlib.Options) *Options {
	return &Options{
		JWT:                       jwt,
		CookieName:                "jwt",
		EnableAuthorizationBearer: true,
	}
}

// Middleware 取 cookie 或 Authorization: Bearer 里的令牌，校验后把
// userId 写入 context；失败直接 401 截断。
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		if v, err := c.Cookie(opts.CookieName); err == nil {
			token = strings.TrimSpace(v)
		}
		if token == "" && opts.EnableAuthorizationBearer {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
				if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
					token = strings.TrimSpace(authz[len("bearer "):])
				}
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthorized)
			return
		}

		userID, err := jwtlib.Verify(opts.JWT, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired)
			return
		}
		c.Set(CtxUserIDKey, userID)
		c.Next()
	}
}

// UserID 从 context 取当前用户，auth 路由里一定非空。
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}
