package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedSnapshot is returned when the payload is not a balances object.
var ErrMalformedSnapshot = errors.New("malformed balances snapshot")

type wireSnapshot struct {
	AsOf        *string                        `json:"asOf"`
	Accounts    []*wireAccount                 `json:"accounts"`
	Summary     *wireSummary                   `json:"summary"`
	GrandTotals map[string]decimal.NullDecimal `json:"grandTotals"`
}

type wireAccount struct {
	Person          string              `json:"person"`
	Account         string              `json:"account"`
	DisplayCurrency string              `json:"displayCurrency"`
	Total           decimal.NullDecimal `json:"total"`
	Free            decimal.NullDecimal `json:"free"`
	Portfolio       decimal.NullDecimal `json:"portfolio"`
	Error           string              `json:"error"`
}

type wireSummary struct {
	Grand    *wireTotals     `json:"grand"`
	ByPerson json.RawMessage `json:"byPerson"`
}

type wireTotals struct {
	TotalGBP     decimal.NullDecimal `json:"total_gbp"`
	FreeGBP      decimal.NullDecimal `json:"free_gbp"`
	PortfolioGBP decimal.NullDecimal `json:"portfolio_gbp"`
}

// DecodeSnapshot turns a raw /balances body into a fully typed Snapshot.
//
// Defaults applied here and nowhere else:
//   - missing or null numeric totals become 0
//   - free/portfolio figures stay invalid (absent) when not sent
//   - unrecognized or missing displayCurrency becomes GBP
//   - byPerson keeps the order the keys appear in the payload
//   - grandTotals.GBP falls back to summary.grand.total_gbp when absent
//   - other grandTotals entries that are null or absent are unavailable
//
// A body that is not a JSON object, or whose fields have the wrong JSON type,
// yields an error wrapping ErrMalformedSnapshot.
func DecodeSnapshot(body []byte) (Snapshot, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Snapshot{}, fmt.Errorf("%w: expected a JSON object", ErrMalformedSnapshot)
	}

	var w wireSnapshot
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	out := Snapshot{
		Accounts:    make([]Account, 0, len(w.Accounts)),
		GrandTotals: make(GrandTotals, len(Recognized)),
	}

	if w.AsOf != nil {
		out.AsOfRaw = strings.TrimSpace(*w.AsOf)
		out.AsOf = parseTimestamp(out.AsOfRaw)
	}

	for _, a := range w.Accounts {
		if a == nil {
			continue
		}
		out.Accounts = append(out.Accounts, Account{
			Person:    a.Person,
			Name:      a.Account,
			Currency:  ParseCurrency(a.DisplayCurrency),
			Total:     orZero(a.Total),
			Free:      a.Free,
			Portfolio: a.Portfolio,
			Error:     a.Error,
		})
	}

	if w.Summary != nil {
		if w.Summary.Grand != nil {
			out.Summary.Grand = w.Summary.Grand.totals()
		}
		people, err := decodeByPerson(w.Summary.ByPerson)
		if err != nil {
			return Snapshot{}, err
		}
		out.Summary.ByPerson = people
	}

	for code, v := range w.GrandTotals {
		c := Currency(strings.ToUpper(strings.TrimSpace(code)))
		out.GrandTotals[c] = v
	}
	if v, ok := out.GrandTotals[BaseCurrency]; !ok || !v.Valid {
		out.GrandTotals[BaseCurrency] = decimal.NewNullDecimal(out.Summary.Grand.TotalGBP)
	}

	return out, nil
}

// decodeByPerson walks the byPerson object token by token so that key order
// survives; a Go map would lose it.
func decodeByPerson(raw json.RawMessage) ([]PersonEntry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: byPerson: %v", ErrMalformedSnapshot, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: byPerson must be an object", ErrMalformedSnapshot)
	}

	var people []PersonEntry
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: byPerson key: %v", ErrMalformedSnapshot, err)
		}
		name, _ := tok.(string)

		var t wireTotals
		if err := dec.Decode(&t); err != nil {
			return nil, fmt.Errorf("%w: byPerson[%q]: %v", ErrMalformedSnapshot, name, err)
		}

		entry := PersonEntry{Name: name, Totals: t.totals()}
		// Duplicate keys: last value wins, first position is kept.
		if i, dup := index[name]; dup {
			people[i] = entry
			continue
		}
		index[name] = len(people)
		people = append(people, entry)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: byPerson: %v", ErrMalformedSnapshot, err)
	}
	return people, nil
}

func (t wireTotals) totals() Totals {
	return Totals{
		TotalGBP:     orZero(t.TotalGBP),
		FreeGBP:      t.FreeGBP,
		PortfolioGBP: t.PortfolioGBP,
	}
}

func orZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp accepts RFC 3339 and zone-less ISO timestamps (read as UTC).
// It returns the zero time when nothing matches.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
