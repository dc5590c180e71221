// Package expiration defines the "expire after" rule applied to purchased
// paywall products: a magnitude plus units, where zero means the purchase
// never expires.
//
// Date math in this package fails open. A rule that cannot be evaluated
// (unknown units, broken timezone data) reports "not expired": the visitor
// already paid, so a computation error must never take their access away.
package expiration

import (
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/content-paywall/internal/clock"
)

// MaxValue is the largest accepted expiration magnitude. Values are clamped
// to [0, MaxValue] at the settings boundary.
const MaxValue = 365

// DefaultValue means no expiration.
const DefaultValue = 0

// ExpireAfter is the expiration rule value object: purchases expire Value
// Units after their anchor date. Value 0 disables expiration.
type ExpireAfter struct {
	Value int   `json:"value"`
	Units Units `json:"units"`
}

// New builds a rule from a magnitude and units, clamping the magnitude to
// [0, MaxValue] and defaulting unknown units.
func New(value int, units Units) ExpireAfter {
	if value < 0 {
		value = 0
	}
	if value > MaxValue {
		value = MaxValue
	}
	if !units.Valid() {
		units = DefaultUnits
	}
	return ExpireAfter{Value: value, Units: units}
}

// Never is the zero rule: no expiration.
func Never() ExpireAfter { return ExpireAfter{Value: DefaultValue, Units: DefaultUnits} }

// IsSet reports whether the rule actually expires anything.
func (e ExpireAfter) IsSet() bool { return e.Value > 0 }

// IsValid reports whether the rule's data is usable: non-negative value and
// a known unit. Snapshots restored from storage go through this before they
// are trusted.
func (e ExpireAfter) IsValid() bool {
	return e.Value >= 0 && e.Units.Valid()
}

// ExpiresOn returns the instant the rule expires a purchase anchored at the
// given date, in the store timezone. The second return value is false when
// the rule never expires or cannot be evaluated.
func (e ExpireAfter) ExpiresOn(clk clock.Clock, anchor time.Time) (time.Time, bool) {
	if !e.IsSet() {
		return time.Time{}, false
	}

	local := anchor.In(clk.Location())
	switch e.Units {
	case UnitsHours:
		return local.Add(time.Duration(e.Value) * time.Hour), true
	case UnitsDays:
		// Calendar days in the store timezone, so a "1 day" purchase made
		// before a DST shift still expires at the same local clock time.
		return local.AddDate(0, 0, e.Value), true
	}

	// Unknown units: fail open, not expired.
	log.Printf("expiration: unknown units %q, treating as no expiration", e.Units)
	return time.Time{}, false
}

// IsExpiredSince reports whether a purchase anchored at the given date is
// expired under this rule. Zero-value rules are never expired. Expired means
// the computed expiry instant is strictly in the past.
func (e ExpireAfter) IsExpiredSince(clk clock.Clock, anchor time.Time) bool {
	expiresOn, ok := e.ExpiresOn(clk, anchor)
	if !ok {
		return false
	}
	return expiresOn.Before(clk.Now())
}

// String formats the rule for display, e.g. "7 days" or "0 days".
func (e ExpireAfter) String() string {
	return fmt.Sprintf("%d %s", e.Value, e.Units.Name(e.Value))
}
