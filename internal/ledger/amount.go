package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const DropsPerXRP = 1_000_000

var (
	dropsPattern = regexp.MustCompile(`^[0-9]+$`)
	// 100 billion XRP, the total native supply.
	maxDrops = decimal.New(1, 17)
)

type AmountKind int

const (
	// AmountUnknown covers absent fields and placeholders such as "unavailable".
	AmountUnknown AmountKind = iota
	AmountNative
	AmountIssued
)

func (k AmountKind) String() string {
	switch k {
	case AmountNative:
		return "native"
	case AmountIssued:
		return "issued"
	default:
		return "unknown"
	}
}

type IssuedAmount struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer"`
	Value    string `json:"value"`
}

// Amount is either a native drops string or an issued-currency object.
type Amount struct {
	Kind   AmountKind
	Drops  int64
	Issued IssuedAmount
}

func NativeAmount(drops int64) Amount {
	return Amount{Kind: AmountNative, Drops: drops}
}

func (a Amount) IsNative() bool { return a.Kind == AmountNative }

func (a *Amount) UnmarshalJSON(b []byte) error {
	*a = Amount{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if !dropsPattern.MatchString(s) {
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("drops out of range: %s", s)
		}
		*a = NativeAmount(n)
		return nil
	case '{':
		var iss IssuedAmount
		if err := json.Unmarshal(b, &iss); err != nil {
			return err
		}
		// Some explorers render native amounts as {"currency":"XRP","value":"1.5"}.
		if strings.EqualFold(iss.Currency, "XRP") && iss.Issuer == "" {
			drops, err := XRPToDrops(iss.Value)
			if err != nil {
				return nil
			}
			*a = NativeAmount(drops)
			return nil
		}
		*a = Amount{Kind: AmountIssued, Issued: iss}
		return nil
	default:
		// Bare numbers are explorer-rendered XRP values.
		drops, err := XRPToDrops(string(b))
		if err != nil {
			return nil
		}
		*a = NativeAmount(drops)
		return nil
	}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AmountNative:
		return json.Marshal(strconv.FormatInt(a.Drops, 10))
	case AmountIssued:
		return json.Marshal(a.Issued)
	default:
		return []byte("null"), nil
	}
}

// DropsToXRP converts drops to display units with six decimal places.
func DropsToXRP(drops int64) decimal.Decimal {
	return decimal.New(drops, -6)
}

// XRPToDrops parses a decimal XRP value into drops, rejecting sub-drop precision.
func XRPToDrops(value string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	drops := d.Shift(6)
	if !drops.IsInteger() {
		return 0, fmt.Errorf("sub-drop precision: %s", value)
	}
	if drops.Abs().GreaterThan(maxDrops) {
		return 0, fmt.Errorf("amount out of range: %s", value)
	}
	return drops.IntPart(), nil
}
