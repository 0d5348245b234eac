package web

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// payloadError is a webhook body problem reported to the caller as 400.
type payloadError string

func (e payloadError) Error() string { return string(e) }

// tradePayload is a webhook body as sent by TradingView alerts. Numeric
// fields may arrive as JSON numbers or numeric strings, depending on how
// the alert template was written.
type tradePayload struct {
	raw map[string]json.RawMessage
}

func parseTradePayload(body []byte) (*tradePayload, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) == 0 {
		return nil, payloadError("Invalid JSON")
	}
	return &tradePayload{raw: raw}, nil
}

// text returns the string value of key, or "" when absent or not a string.
func (p *tradePayload) text(key string) string {
	v, ok := p.raw[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}

// number returns the first present, non-zero value among keys. Zero, null
// and empty strings count as absent.
func (p *tradePayload) number(keys ...string) (decimal.Decimal, bool, error) {
	for _, key := range keys {
		v, ok := p.raw[key]
		if !ok {
			continue
		}
		d, present, err := parseNumber(v)
		if err != nil {
			return decimal.Zero, false, err
		}
		if present {
			return d, true, nil
		}
	}
	return decimal.Zero, false, nil
}

func parseNumber(v json.RawMessage) (decimal.Decimal, bool, error) {
	s := strings.TrimSpace(string(v))
	if s == "null" || s == `""` || s == "false" {
		return decimal.Zero, false, nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON([]byte(s)); err != nil {
		return decimal.Zero, false, err
	}
	if d.IsZero() {
		return decimal.Zero, false, nil
	}
	return d, true, nil
}

// optionalNumber reads an optional field and maps parse errors to a 400.
func (p *tradePayload) optionalNumber(label string, keys ...string) (float64, error) {
	d, ok, err := p.number(keys...)
	if err != nil {
		return 0, payloadError(fmt.Sprintf("Invalid %s value", label))
	}
	if !ok {
		return 0, nil
	}
	return d.InexactFloat64(), nil
}
