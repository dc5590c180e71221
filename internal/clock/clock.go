// Package clock abstracts "now" so expiration math can run against the
// store's configured timezone in production and against a fixed instant in
// tests.
package clock

import "time"

// Clock reports the current time and the timezone the store operates in.
// All expiration comparisons happen in that timezone because day-based
// expirations are calendar days for the store, not UTC days.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// Store is the production clock. It returns the wall time converted to the
// store timezone.
type Store struct {
	loc *time.Location
}

// NewStore builds a Store clock for the given IANA timezone name. An empty
// or unknown name falls back to UTC; the caller decides whether to log that.
func NewStore(tz string) (*Store, error) {
	if tz == "" {
		return &Store{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return &Store{loc: time.UTC}, err
	}
	return &Store{loc: loc}, nil
}

// Now returns the current time in the store timezone.
func (s *Store) Now() time.Time { return time.Now().In(s.loc) }

// Location returns the store timezone.
func (s *Store) Location() *time.Location { return s.loc }

// Fixed is a clock frozen at a single instant, for tests.
type Fixed struct {
	now time.Time
}

// NewFixed returns a clock that always reports t.
func NewFixed(t time.Time) *Fixed { return &Fixed{now: t} }

// Now returns the frozen instant.
func (f *Fixed) Now() time.Time { return f.now }

// Location returns the frozen instant's timezone.
func (f *Fixed) Location() *time.Location { return f.now.Location() }
