package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	HeaderSecret = "X-Presale-Secret"
	QuerySecret  = "secret"
)

// RequireSecret guards privileged routes. A request passes with the shared
// secret in the X-Presale-Secret header or the secret query parameter, or
// with a bearer token signed by it. An empty secret rejects everything.
func RequireSecret(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	verifier := JWT{Secret: []byte(secret)}
	return func(c *gin.Context) {
		if !Authorized(c.Request, secret, verifier) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func Authorized(r *http.Request, secret string, verifier JWT) bool {
	if secret == "" || r == nil {
		return false
	}
	for _, candidate := range []string{
		r.Header.Get(HeaderSecret),
		r.URL.Query().Get(QuerySecret),
	} {
		if candidate != "" && equal(candidate, secret) {
			return true
		}
	}
	if tok := bearerToken(r.Header.Get("Authorization")); tok != "" {
		if _, err := verifier.Verify(tok); err == nil {
			return true
		}
	}
	return false
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func bearerToken(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
