package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func guarded(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/ingest", RequireSecret(secret), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func status(r *gin.Engine, req *http.Request) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireSecret(t *testing.T) {
	const secret = "s3cret"
	r := guarded(secret)

	signed, _, err := JWT{Secret: []byte(secret)}.Sign(Claims{Scope: "ingest"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	forged, _, _ := JWT{Secret: []byte("other")}.Sign(Claims{Scope: "ingest"})
	expired, _, _ := JWT{Secret: []byte(secret)}.Sign(Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})

	cases := []struct {
		name   string
		mutate func(*http.Request)
		want   int
	}{
		{"none", func(*http.Request) {}, http.StatusUnauthorized},
		{"header", func(r *http.Request) { r.Header.Set(HeaderSecret, secret) }, http.StatusNoContent},
		{"wrong header", func(r *http.Request) { r.Header.Set(HeaderSecret, "s3cre") }, http.StatusUnauthorized},
		{"query", func(r *http.Request) { r.URL.RawQuery = "secret=" + secret }, http.StatusNoContent},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+signed) }, http.StatusNoContent},
		{"raw secret as bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+secret) }, http.StatusUnauthorized},
		{"forged bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+forged) }, http.StatusUnauthorized},
		{"expired bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) }, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
		tc.mutate(req)
		if got := status(r, req); got != tc.want {
			t.Fatalf("%s: status=%d want=%d", tc.name, got, tc.want)
		}
	}
}

func TestRequireSecretEmptyAlwaysRejects(t *testing.T) {
	r := guarded("")
	req := httptest.NewRequest(http.MethodPost, "/ingest?secret=", nil)
	req.Header.Set(HeaderSecret, "")
	if got := status(r, req); got != http.StatusUnauthorized {
		t.Fatalf("status=%d want=401", got)
	}
}
