package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Node error codes that describe a temporarily unavailable server rather than a bad request.
var transientRPCCodes = map[string]bool{
	"tooBusy":     true,
	"noNetwork":   true,
	"noCurrent":   true,
	"noClosed":    true,
	"slowDown":    true,
	"lgrNotFound": true,
}

// isRecoverable classifies err for retry. Cancellation and request errors are
// final; transport failures and overloaded nodes are retried.
func isRecoverable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return transientRPCCodes[rpcErr.Code]
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status == 429 || httpErr.Status >= 500
	}
	var decodeErr *decodeError
	if errors.As(err, &decodeErr) {
		return false
	}
	return true
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func (c *Client) retry(ctx context.Context, command string, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryDelay
	eb.MaxInterval = 5 * time.Second
	eb.MaxElapsedTime = 0

	maxRetries := c.maxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxRetries)), ctx)

	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && !isRecoverable(ctx, err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		if c.logger != nil {
			c.logger.Warn("ledger request failed, retrying",
				zap.String("command", command),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}
	})
}
