package paas

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type platformStub struct {
	mu     sync.Mutex
	logins int
	logs   []CreateLogRequest
	auth   []string
}

func (s *platformStub) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		switch r.URL.Path {
		case "/api/v1/auth/login":
			s.logins++
			_ = json.NewEncoder(w).Encode(map[string]any{
				"token":      "tok-1",
				"expires_at": time.Now().Add(time.Hour).Format(time.RFC3339),
			})
		case "/api/v1/logs":
			var req CreateLogRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode log: %v", err)
			}
			s.logs = append(s.logs, req)
			s.auth = append(s.auth, r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusCreated)
		default:
			http.NotFound(w, r)
		}
	})
}

func TestCreateLogLogsInOnceAndDefaultsAgent(t *testing.T) {
	stub := &platformStub{}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL + "/", APIKey: "key"}
	for i := 0; i < 2; i++ {
		if err := c.CreateLog(context.Background(), CreateLogRequest{Action: "presale_ingest", Level: "info"}); err != nil {
			t.Fatalf("create log: %v", err)
		}
	}
	if stub.logins != 1 {
		t.Fatalf("logins=%d want=1", stub.logins)
	}
	if len(stub.logs) != 2 || stub.logs[0].Agent != DefaultAgent {
		t.Fatalf("logs=%+v", stub.logs)
	}
	if stub.auth[1] != "Bearer tok-1" {
		t.Fatalf("authorization=%q", stub.auth[1])
	}
}

func TestLogBestEffortCtxWithoutClient(t *testing.T) {
	// must be a no-op rather than a panic
	LogBestEffortCtx(context.Background(), "presale_ingest", "info", nil)
	var c *Client
	if err := c.CreateLog(context.Background(), CreateLogRequest{}); err != nil {
		t.Fatalf("nil client err=%v", err)
	}
}

func TestLevelFromStatus(t *testing.T) {
	cases := map[int]string{200: "info", 409: "warn", 502: "error"}
	for status, want := range cases {
		if got := LevelFromStatus(status); got != want {
			t.Fatalf("status=%d level=%s want=%s", status, got, want)
		}
	}
}
