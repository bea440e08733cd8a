package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"presale/internal/ledger"
)

// APIError is a non-2xx answer from an explorer API.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s http %d", e.Provider, e.Status)
}

// NotFound reports whether the explorer has no such resource.
func (e *APIError) NotFound() bool {
	return e.Status == http.StatusNotFound
}

type cacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type fetcher struct {
	provider  string
	baseURL   string
	http      *http.Client
	cache     cacheStore
	ttl       time.Duration
	userAgent string
}

func (f fetcher) buildURL(path string, query map[string]string) (string, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(f.baseURL), "/"))
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := u.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f fetcher) get(ctx context.Context, key string, u string) (json.RawMessage, error) {
	if f.cache != nil && key != "" {
		if b, found, err := f.cache.Get(ctx, key); err == nil && found && json.Valid(b) {
			return json.RawMessage(b), nil
		}
	}

	client := f.http
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Provider: f.provider, Status: resp.StatusCode, Body: string(b)}
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("%s: invalid json response", f.provider)
	}

	if f.cache != nil && key != "" {
		ttl := f.ttl
		if ttl <= 0 {
			ttl = 30 * time.Second
		}
		_ = f.cache.Set(ctx, key, b, ttl)
	}
	return json.RawMessage(b), nil
}

func cacheKey(provider, method string, parts map[string]string) string {
	// Example: explorer:xrpscan:transactions:account=r...:page=2
	sb := strings.Builder{}
	sb.WriteString("explorer:")
	sb.WriteString(provider)
	sb.WriteString(":")
	sb.WriteString(method)
	if len(parts) > 0 {
		keys := make([]string, 0, len(parts))
		for k := range parts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(":")
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(parts[k])
		}
	}
	return sb.String()
}

// decodeRows decodes explorer history rows. Explorers only index validated
// ledgers, so rows without an explicit flag count as validated.
func decodeRows(rows []json.RawMessage) ([]ledger.Transaction, error) {
	out := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func decodeRow(row json.RawMessage) (ledger.Transaction, error) {
	tx, err := ledger.DecodeEntry(row)
	if err != nil {
		return ledger.Transaction{}, err
	}
	var flag struct {
		Validated *bool `json:"validated"`
	}
	_ = json.Unmarshal(row, &flag)
	if flag.Validated == nil {
		tx.Validated = true
	}
	return tx, nil
}
