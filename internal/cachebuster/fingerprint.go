// Package cachebuster keeps full-page caches honest for anonymous
// visitors: it derives a short fingerprint of the visitor's cache-relevant
// state (cart plus session orders), carries it through a cookie and a URL
// parameter, and forces a redirect when a cached page's fingerprint has
// gone stale, so two visitors never see each other's pages.
package cachebuster

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Names shared between the cookie, the URL parameter and the client-side
// fallback script.
const (
	// HashName is both the query parameter and the cookie carrying the
	// fingerprint.
	HashName = "paywall_hash"

	// LoggedInCookieName tells cache layers whether the visitor is
	// authenticated ("Y"/"N").
	LoggedInCookieName = "paywall_logged_in"

	// ValueNone is the sentinel written when the visitor needs no
	// fingerprint (empty cart, no session orders). It is a distinct
	// literal, not a hash of empty input.
	ValueNone = "default"

	// hashLen truncates the hex digest; 12 chars keep URLs short and are
	// plenty against accidental collision.
	hashLen = 12
)

// Fingerprint is the visitor's cache-state digest. The zero value is the
// NONE sentinel.
type Fingerprint struct {
	value string
}

// None returns the explicit "no fingerprint needed" sentinel.
func None() Fingerprint { return Fingerprint{} }

// FromValue wraps a raw cookie/parameter value back into a Fingerprint.
func FromValue(v string) Fingerprint {
	if v == "" || v == ValueNone {
		return None()
	}
	return Fingerprint{value: v}
}

// IsSet reports whether a real fingerprint is present, as opposed to the
// NONE sentinel.
func (f Fingerprint) IsSet() bool { return f.value != "" }

// Value returns the wire form: the hash, or the sentinel literal when not
// set.
func (f Fingerprint) Value() string {
	if f.value == "" {
		return ValueNone
	}
	return f.value
}

// Equal compares two fingerprints, sentinel included.
func (f Fingerprint) Equal(other Fingerprint) bool { return f.value == other.value }

// Compute derives the fingerprint from the cart content hash and the
// session order-id list. Both empty means NONE. Identical inputs always
// yield the identical value; the order-id list is sorted first so its
// storage order cannot change the digest.
func Compute(secret, cartHash string, orderIDs []uint64) Fingerprint {
	if cartHash == "" && len(orderIDs) == 0 {
		return None()
	}

	ids := make([]uint64, len(orderIDs))
	copy(ids, orderIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(cartHash))
	mac.Write([]byte("|"))
	mac.Write([]byte(strings.Join(parts, ",")))
	digest := hex.EncodeToString(mac.Sum(nil))

	return Fingerprint{value: digest[:hashLen]}
}
