package service

import (
	"errors"
	"fmt"

	"presale/internal/source"
)

// Validation codes double as the "error" field of 400 responses.
const (
	CodeBadAddress          = "bad_address"
	CodeBadHash             = "bad_hash"
	CodeInvalidAmount       = "invalid_amount"
	CodeNoTotal             = "no_total"
	CodeMissingDestination  = "missing_destination"
	CodeInvalidBody         = "invalid_body"
	CodeDestinationMismatch = "destination_mismatch"
	CodeInvalidSince        = "invalid_since"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrIngestInProgress = errors.New("ingest already running for destination")
	ErrNotInSnapshot    = fmt.Errorf("address not in snapshot: %w", ErrNotFound)
	ErrNoTrustline      = errors.New("no trust line for token")
	ErrAllSourcesFailed = source.ErrAllSourcesFailed
)

type ValidationError struct {
	Code   string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Code
	}
	return e.Code + ": " + e.Detail
}

func invalid(code, format string, args ...any) error {
	return &ValidationError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// UpstreamError marks a failure of an external data source.
type UpstreamError struct {
	Source string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func upstream(src string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Source: src, Err: err}
}

var (
	errNoAggregates    = errors.New("aggregate store not configured")
	errEmptyAggregates = errors.New("aggregates not populated yet")
)
