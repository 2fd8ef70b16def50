package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ybmbakes/bakery-backend/internal/auth"
)

// sessionCookie is the admin session cookie. HttpOnly and SameSite=Lax;
// Secure outside local development.
const sessionCookie = "admin_session"

// rolePending2FA marks a token issued after password verification but
// before the second factor. The auth middleware rejects it.
const rolePending2FA = "2fa_pending"

const sessionKey = "admin_session_ctx"

// requireAdmin validates the session cookie and stores the session on the
// request context.
func requireAdmin(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookie)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		sess, err := cfg.Tokens.Validate(token)
		if err != nil || sess.Role == rolePending2FA {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *auth.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*auth.Session)
	return sess
}

func setSessionCookie(c *gin.Context, cfg HandlerConfig, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, maxAge, "/", cfg.CookieDomain, cfg.SecureCookies, true)
}

func clearSessionCookie(c *gin.Context, cfg HandlerConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "", -1, "/", cfg.CookieDomain, cfg.SecureCookies, true)
}
