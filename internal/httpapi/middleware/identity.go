package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sentinel-chat/internal/auth"
	"github.com/suPer8Hu/sentinel-chat/internal/common"
	"github.com/suPer8Hu/sentinel-chat/internal/identity"
)

const (
	IdentityKey = "identity"
	TokenCookie = "sentinel_token"
)

type IdentityOptions struct {
	JWTSecret        string
	TokenTTL         time.Duration
	AnonymousAllowed bool
	Header           string
	// PasswordRequired rejects requests without a token from /auth/login.
	PasswordRequired bool
}

// Identity resolves the caller once and pins the result in a signed cookie,
// so later requests on the same browser reuse it. A bearer token or the
// cookie wins over resolving again.
func Identity(opts IdentityOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := tokenIdentity(c, opts.JWTSecret); ok {
			c.Set(IdentityKey, id)
			c.Next()
			return
		}
		if opts.PasswordRequired {
			common.Abort(c, http.StatusUnauthorized, 40101, "unauthorized")
			return
		}

		id := identity.Resolve(opts.AnonymousAllowed, c.Request.Header, opts.Header)
		token, err := auth.SignJWT(id, opts.JWTSecret, opts.TokenTTL)
		if err != nil {
			common.Abort(c, http.StatusInternalServerError, 20003, "failed to sign token")
			return
		}
		SetTokenCookie(c, token, opts.TokenTTL)
		c.Set(IdentityKey, id)
		c.Next()
	}
}

func SetTokenCookie(c *gin.Context, token string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(TokenCookie, token, int(ttl.Seconds()), "/", "", false, true)
}

func tokenIdentity(c *gin.Context, secret string) (string, bool) {
	raw := ""
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		raw = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	} else if v, err := c.Cookie(TokenCookie); err == nil {
		raw = v
	}
	if raw == "" {
		return "", false
	}
	id, err := auth.ParseJWT(raw, secret)
	if err != nil {
		return "", false
	}
	return id, true
}

func IdentityFrom(c *gin.Context) (string, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
