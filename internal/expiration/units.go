package expiration

// Units enumerates the supported expiration units. Only hours and days are
// valid; anything else is treated by the fail-open policy as "no expiration".
type Units string

const (
	// UnitsHours expires the purchase a number of hours after the anchor date.
	UnitsHours Units = "hours"
	// UnitsDays expires the purchase a number of calendar days after the
	// anchor date, counted in the store timezone.
	UnitsDays Units = "days"
)

// DefaultUnits is used when no units are configured.
const DefaultUnits = UnitsDays

// ParseUnits normalizes a raw string into Units. Unknown values return
// DefaultUnits and false so callers can decide whether to reject or default.
func ParseUnits(raw string) (Units, bool) {
	switch Units(raw) {
	case UnitsHours:
		return UnitsHours, true
	case UnitsDays:
		return UnitsDays, true
	}
	return DefaultUnits, false
}

// Valid reports whether u is one of the two supported units.
func (u Units) Valid() bool {
	return u == UnitsHours || u == UnitsDays
}

// Name returns the singular or plural unit name for display, e.g. "1 day",
// "7 days".
func (u Units) Name(count int) string {
	switch u {
	case UnitsHours:
		if count == 1 {
			return "hour"
		}
		return "hours"
	case UnitsDays:
		if count == 1 {
			return "day"
		}
		return "days"
	}
	return string(u)
}
