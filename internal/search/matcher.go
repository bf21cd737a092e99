// Package search builds the server-side payer filter and applies the
// client-side name matching pass on top of the ledger results. The ledger
// only filters on email and phone; given/family names are matched here
// after the remote query returns.
package search

import (
	"strings"

	"github.com/adaeze-umeh/donation-receipts/internal/ledger"
)

// Mode selects how filter fields are compared.
type Mode string

const (
	// ModeExact requires case-insensitive full equality.
	ModeExact Mode = "exact"
	// ModeFuzzy requires case-insensitive substring containment.
	ModeFuzzy Mode = "fuzzy"
)

// ParseMode maps a caller-supplied mode string onto a Mode, defaulting to
// exact for anything unrecognized.
func ParseMode(s string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(s))) == ModeFuzzy {
		return ModeFuzzy
	}
	return ModeExact
}

// Filter is an ephemeral per-search set of criteria. Empty fields are not
// applied at all.
type Filter struct {
	First string
	Last  string
	Email string
	Phone string
	Mode  Mode
}

// RemoteFilter derives the server-side portion of the filter: email and
// phone wrapped as {exact: v} or {fuzzy: v} depending on mode, absent
// fields omitted entirely. Whether the ledger's own fuzzy semantics equal
// the substring semantics applied to names here is left to the ledger; the
// mode is passed through untouched.
func (f Filter) RemoteFilter() ledger.CustomerFilter {
	var cf ledger.CustomerFilter
	if f.Email != "" {
		cf.EmailAddress = wrap(f.Email, f.Mode)
	}
	if f.Phone != "" {
		cf.PhoneNumber = wrap(f.Phone, f.Mode)
	}
	return cf
}

func wrap(value string, mode Mode) *ledger.TextFilter {
	if mode == ModeFuzzy {
		return &ledger.TextFilter{Fuzzy: value}
	}
	return &ledger.TextFilter{Exact: value}
}

// Match applies the client-side name pass. A payer passes only if both
// provided name fields match under the active mode; an absent filter field
// is automatically satisfied. The ledger's order is preserved.
func Match(payers []ledger.Payer, f Filter) []ledger.Payer {
	out := make([]ledger.Payer, 0, len(payers))
	for _, p := range payers {
		if matchName(p.GivenName, f.First, f.Mode) && matchName(p.FamilyName, f.Last, f.Mode) {
			out = append(out, p)
		}
	}
	return out
}

func matchName(value, want string, mode Mode) bool {
	if want == "" {
		return true
	}
	value = strings.ToLower(value)
	want = strings.ToLower(want)
	if mode == ModeFuzzy {
		return strings.Contains(value, want)
	}
	return value == want
}
