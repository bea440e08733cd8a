package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"nhooyr.io/websocket"
)

// DefaultWSConns is the websocket pool size when none is configured.
const DefaultWSConns = 4

// wsTransport keeps one lazily dialed connection and serializes requests on it.
// Any read or write failure drops the connection; the next call redials.
type wsTransport struct {
	url string

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
}

func newWSTransport(url string) *wsTransport {
	return &wsTransport{url: url}
}

type wsResponse struct {
	ID           *uint64         `json:"id"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Error        string          `json:"error"`
	ErrorMessage string          `json:"error_message"`
	Result       json.RawMessage `json:"result"`
}

func (t *wsTransport) call(ctx context.Context, command string, params map[string]any) (json.RawMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		conn, _, err := websocket.Dial(ctx, t.url, nil)
		if err != nil {
			return nil, fmt.Errorf("dial ledger ws: %w", err)
		}
		// account_tx pages of 200 records with metadata exceed the 32KB default.
		conn.SetReadLimit(16 << 20)
		t.conn = conn
	}

	t.nextID++
	id := t.nextID
	msg := make(map[string]any, len(params)+2)
	for k, v := range params {
		msg[k] = v
	}
	msg["id"] = id
	msg["command"] = command
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if err := t.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		t.reset()
		return nil, fmt.Errorf("write ledger ws: %w", err)
	}

	for {
		_, data, err := t.conn.Read(ctx)
		if err != nil {
			t.reset()
			return nil, fmt.Errorf("read ledger ws: %w", err)
		}
		var resp wsResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			t.reset()
			return nil, &decodeError{err: err}
		}
		// Stream messages and stale responses from an abandoned request are skipped.
		if resp.ID == nil || *resp.ID != id {
			continue
		}
		st := statusJSON{Status: resp.Status, Error: resp.Error, ErrorMessage: resp.ErrorMessage}
		if err := st.err(command); err != nil {
			return nil, err
		}
		return resp.Result, nil
	}
}

func (t *wsTransport) reset() {
	if t.conn != nil {
		_ = t.conn.Close(websocket.StatusGoingAway, "reset")
		t.conn = nil
	}
}

func (t *wsTransport) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close(websocket.StatusNormalClosure, "")
	t.conn = nil
	return err
}

// wsPool hands each call an idle connection and waits when all are busy.
// Connections dial on first use, so an idle pool holds no sockets.
type wsPool struct {
	idle chan *wsTransport
	all  []*wsTransport
}

func newWSPool(url string, size int) *wsPool {
	if size <= 0 {
		size = DefaultWSConns
	}
	p := &wsPool{idle: make(chan *wsTransport, size)}
	for i := 0; i < size; i++ {
		t := newWSTransport(url)
		p.all = append(p.all, t)
		p.idle <- t
	}
	return p
}

func (p *wsPool) call(ctx context.Context, command string, params map[string]any) (json.RawMessage, error) {
	var t *wsTransport
	select {
	case t = <-p.idle:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { p.idle <- t }()
	return t.call(ctx, command, params)
}

func (p *wsPool) close() error {
	var errs []error
	for _, t := range p.all {
		if err := t.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
