package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"presale/internal/aggregate"
	"presale/internal/config"
	"presale/internal/ledger"
	"presale/internal/source"
)

const (
	ClaimSourceSnapshot = "snapshot"
	ClaimSourceStatic   = "static"
)

type TrustLineReader interface {
	AccountLines(ctx context.Context, account, peer string) ([]ledger.TrustLine, error)
}

// ClaimService answers read-only claim questions. It never submits a payout.
type ClaimService struct {
	Aggregates *aggregate.Store
	Ledger     TrustLineReader
	// Static is the configured fallback allocation map.
	Static map[string]string
	Token  config.TokenConfig
}

type ClaimPreview struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
	Source  string `json:"source"`
}

type ClaimEligibility struct {
	OK        bool   `json:"ok"`
	Address   string `json:"address"`
	Amount    string `json:"amount"`
	Trustline bool   `json:"trustline"`
}

func (s *ClaimService) PreviewClaim(ctx context.Context, address string) (ClaimPreview, error) {
	address = strings.TrimSpace(address)
	if !ledger.IsClassicAddress(address) {
		return ClaimPreview{}, invalid(CodeBadAddress, "%q is not a classic address", address)
	}
	if s.Aggregates != nil {
		rec, err := s.Aggregates.Snapshot(ctx)
		if err != nil {
			return ClaimPreview{}, err
		}
		if rec != nil {
			if amount, ok := rec.Allocations[address]; ok {
				return ClaimPreview{Address: address, Amount: amount, Source: ClaimSourceSnapshot}, nil
			}
		}
	}
	if amount, ok := s.Static[address]; ok && amount != "" {
		return ClaimPreview{Address: address, Amount: amount, Source: ClaimSourceStatic}, nil
	}
	return ClaimPreview{}, fmt.Errorf("%s: %w", address, ErrNotInSnapshot)
}

// ClaimEligibility checks the snapshot entry and that the address trusts the
// token issuer for the token currency.
func (s *ClaimService) ClaimEligibility(ctx context.Context, address string) (ClaimEligibility, error) {
	preview, err := s.PreviewClaim(ctx, address)
	if err != nil {
		return ClaimEligibility{}, err
	}
	out := ClaimEligibility{Address: preview.Address, Amount: preview.Amount}
	if s.Ledger == nil || s.Token.Issuer == "" {
		return out, upstream(source.NameLedger, errors.New("trust line lookup not configured"))
	}
	lines, err := s.Ledger.AccountLines(ctx, preview.Address, s.Token.Issuer)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return out, ErrNoTrustline
		}
		return out, upstream(source.NameLedger, err)
	}
	for _, l := range lines {
		if l.Account == s.Token.Issuer && CurrencyMatches(l.Currency, s.Token.Currency) {
			out.Trustline = true
			out.OK = true
			return out, nil
		}
	}
	return out, ErrNoTrustline
}

// CurrencyMatches compares a trust line currency with a configured code. Codes
// longer than three characters travel as 40 hex digits on the ledger.
func CurrencyMatches(lineCurrency, want string) bool {
	lineCurrency = strings.TrimSpace(lineCurrency)
	want = strings.TrimSpace(want)
	if want == "" {
		return false
	}
	if strings.EqualFold(lineCurrency, want) {
		return true
	}
	return strings.EqualFold(lineCurrency, CurrencyHex(want))
}

// CurrencyHex renders a currency code in its 160-bit hex form.
func CurrencyHex(code string) string {
	b := make([]byte, 20)
	copy(b, code)
	return strings.ToUpper(hex.EncodeToString(b))
}
