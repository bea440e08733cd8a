package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type rpcTransport struct {
	url  string
	http *http.Client
}

func newRPCTransport(url string, timeout time.Duration) *rpcTransport {
	return &rpcTransport{url: url, http: &http.Client{Timeout: timeout}}
}

type rpcRequest struct {
	Method string           `json:"method"`
	Params []map[string]any `json:"params"`
}

func (t *rpcTransport) call(ctx context.Context, command string, params map[string]any) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{Method: command, Params: []map[string]any{params}})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Status: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var env struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &decodeError{err: err}
	}
	var st statusJSON
	if err := json.Unmarshal(env.Result, &st); err != nil {
		return nil, &decodeError{err: err}
	}
	if err := st.err(command); err != nil {
		return nil, err
	}
	return env.Result, nil
}

func (t *rpcTransport) close() error {
	t.http.CloseIdleConnections()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
