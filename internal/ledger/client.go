package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"presale/internal/config"
)

const DefaultURL = "wss://xrplcluster.com"

var ErrAccountNotFound = errors.New("account not found")

// RPCError is an error status returned by the node for a well-formed request.
type RPCError struct {
	Command string
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ledger %s: %s: %s", e.Command, e.Code, e.Message)
	}
	return fmt.Sprintf("ledger %s: %s", e.Command, e.Code)
}

func (e *RPCError) Is(target error) bool {
	return target == ErrAccountNotFound && e.Code == "actNotFound"
}

// HTTPError is a non-200 answer from a JSON-RPC endpoint.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("ledger http %d: %s", e.Status, e.Body)
}

// transport sends one command and returns the raw "result" object.
type transport interface {
	call(ctx context.Context, command string, params map[string]any) (json.RawMessage, error)
	close() error
}

type AccountTxRequest struct {
	Account        string
	LedgerIndexMin int64
	// LedgerIndexMax of -1 means the most recent validated ledger.
	LedgerIndexMax int64
	Forward        bool
	Limit          int
	Marker         json.RawMessage
}

type AccountTxPage struct {
	Transactions []Transaction
	// Marker is nil on the last page.
	Marker json.RawMessage
}

type AccountInfo struct {
	Account      string
	BalanceDrops int64
	Sequence     int64
}

type TrustLine struct {
	Account  string `json:"account"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
	Limit    string `json:"limit"`
}

// Client issues account queries against a node with bounded retries.
type Client struct {
	tr         transport
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// New selects a pool of cfg.WSConns websocket connections for ws:// and wss://
// URLs and JSON-RPC over HTTP for http:// and https://.
func New(cfg config.LedgerConfig, logger *zap.Logger) (*Client, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		raw = DefaultURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse ledger url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	var tr transport
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		tr = newWSPool(raw, cfg.WSConns)
	case "http", "https":
		tr = newRPCTransport(raw, timeout)
	default:
		return nil, fmt.Errorf("unsupported ledger url scheme %q", u.Scheme)
	}
	return &Client{
		tr:         tr,
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: 250 * time.Millisecond,
		logger:     logger,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.tr == nil {
		return nil
	}
	return c.tr.close()
}

func (c *Client) AccountTx(ctx context.Context, req AccountTxRequest) (AccountTxPage, error) {
	if strings.TrimSpace(req.Account) == "" {
		return AccountTxPage{}, fmt.Errorf("account is required")
	}
	params := map[string]any{
		"account":          req.Account,
		"ledger_index_min": req.LedgerIndexMin,
		"ledger_index_max": req.LedgerIndexMax,
		"forward":          req.Forward,
		"binary":           false,
	}
	if req.Limit > 0 {
		params["limit"] = req.Limit
	}
	if len(req.Marker) > 0 {
		params["marker"] = req.Marker
	}
	raw, err := c.do(ctx, "account_tx", params)
	if err != nil {
		return AccountTxPage{}, err
	}
	var res struct {
		Transactions []json.RawMessage `json:"transactions"`
		Marker       json.RawMessage   `json:"marker"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return AccountTxPage{}, fmt.Errorf("decode account_tx: %w", err)
	}
	page := AccountTxPage{Transactions: make([]Transaction, 0, len(res.Transactions))}
	for _, item := range res.Transactions {
		tx, err := DecodeEntry(item)
		if err != nil {
			return AccountTxPage{}, err
		}
		page.Transactions = append(page.Transactions, tx)
	}
	if m := strings.TrimSpace(string(res.Marker)); m != "" && m != "null" {
		page.Marker = res.Marker
	}
	return page, nil
}

func (c *Client) AccountInfo(ctx context.Context, account string) (AccountInfo, error) {
	raw, err := c.do(ctx, "account_info", map[string]any{
		"account":      account,
		"ledger_index": "validated",
	})
	if err != nil {
		return AccountInfo{}, err
	}
	var res struct {
		AccountData struct {
			Account  string      `json:"Account"`
			Balance  string      `json:"Balance"`
			Sequence json.Number `json:"Sequence"`
		} `json:"account_data"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return AccountInfo{}, fmt.Errorf("decode account_info: %w", err)
	}
	bal, err := strconv.ParseInt(strings.TrimSpace(res.AccountData.Balance), 10, 64)
	if err != nil {
		return AccountInfo{}, fmt.Errorf("parse balance %q: %w", res.AccountData.Balance, err)
	}
	seq, _ := res.AccountData.Sequence.Int64()
	return AccountInfo{Account: res.AccountData.Account, BalanceDrops: bal, Sequence: seq}, nil
}

// AccountLines lists trust lines of account, restricted to peer when set.
func (c *Client) AccountLines(ctx context.Context, account, peer string) ([]TrustLine, error) {
	params := map[string]any{
		"account":      account,
		"ledger_index": "validated",
	}
	if peer != "" {
		params["peer"] = peer
	}
	var out []TrustLine
	for page := 0; page < 50; page++ {
		raw, err := c.do(ctx, "account_lines", params)
		if err != nil {
			return nil, err
		}
		var res struct {
			Lines  []TrustLine     `json:"lines"`
			Marker json.RawMessage `json:"marker"`
		}
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("decode account_lines: %w", err)
		}
		out = append(out, res.Lines...)
		if m := strings.TrimSpace(string(res.Marker)); m == "" || m == "null" {
			break
		}
		params["marker"] = res.Marker
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, command string, params map[string]any) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.retry(ctx, command, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		raw, err := c.tr.call(attemptCtx, command, params)
		if err != nil {
			return err
		}
		out = raw
		return nil
	})
	return out, err
}

type statusJSON struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

func (s statusJSON) err(command string) error {
	if s.Status == "error" || s.Error != "" {
		return &RPCError{Command: command, Code: s.Error, Message: s.ErrorMessage}
	}
	return nil
}
