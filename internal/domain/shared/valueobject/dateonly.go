package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DateOnlyLayout is the canonical string form of a DateOnly
const DateOnlyLayout = "2006-01-02"

// DateOnly is a calendar date without time-of-day or time zone.
// Call dates, due dates, and scheduled event dates are calendar concepts:
// a capital call issued late in the evening in one zone and a meeting early
// the next morning in another must still compare by calendar day. All
// due-date arithmetic and calendar ordering go through this type.
type DateOnly struct {
	year  int
	month time.Month
	day   int
}

// NewDateOnly creates a DateOnly from year, month, and day.
// Out-of-range values are normalized the way time.Date normalizes them.
func NewDateOnly(year int, month time.Month, day int) DateOnly {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return DateOnly{year: t.Year(), month: t.Month(), day: t.Day()}
}

// DateOnlyOf extracts the calendar date from a time.Time in that time's
// own location, discarding clock and zone.
func DateOnlyOf(t time.Time) DateOnly {
	y, m, d := t.Date()
	return DateOnly{year: y, month: m, day: d}
}

// Today returns the current calendar date in the local time zone
func Today() DateOnly {
	return DateOnlyOf(time.Now())
}

// ParseDateOnly parses a date in "2006-01-02" form
func ParseDateOnly(s string) (DateOnly, error) {
	t, err := time.Parse(DateOnlyLayout, s)
	if err != nil {
		return DateOnly{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOnlyOf(t), nil
}

// MustParseDateOnly parses a date in "2006-01-02" form, panicking on error.
// Intended for tests and static initialization only.
func MustParseDateOnly(s string) DateOnly {
	d, err := ParseDateOnly(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Year returns the year
func (d DateOnly) Year() int { return d.year }

// Month returns the month
func (d DateOnly) Month() time.Month { return d.month }

// Day returns the day of month
func (d DateOnly) Day() int { return d.day }

// IsZero reports whether the date is the zero value
func (d DateOnly) IsZero() bool {
	return d.year == 0 && d.month == 0 && d.day == 0
}

// Time returns the date at midnight UTC
func (d DateOnly) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n days later (or earlier for negative n)
func (d DateOnly) AddDays(n int) DateOnly {
	return DateOnlyOf(d.Time().AddDate(0, 0, n))
}

// AddMonths returns the date n months later, normalized by time.AddDate
func (d DateOnly) AddMonths(n int) DateOnly {
	return DateOnlyOf(d.Time().AddDate(0, n, 0))
}

// Before reports whether d is before other
func (d DateOnly) Before(other DateOnly) bool {
	return d.Compare(other) < 0
}

// After reports whether d is after other
func (d DateOnly) After(other DateOnly) bool {
	return d.Compare(other) > 0
}

// Equal reports whether d and other are the same calendar day
func (d DateOnly) Equal(other DateOnly) bool {
	return d.Compare(other) == 0
}

// Compare returns -1, 0, or +1 depending on whether d is before, equal to,
// or after other
func (d DateOnly) Compare(other DateOnly) int {
	switch {
	case d.year != other.year:
		return cmpInt(d.year, other.year)
	case d.month != other.month:
		return cmpInt(int(d.month), int(other.month))
	default:
		return cmpInt(d.day, other.day)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// DaysUntil returns the number of calendar days from d to other
// (negative when other is earlier)
func (d DateOnly) DaysUntil(other DateOnly) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

// MonthKey returns the sortable year-month key, e.g. "2024-03"
func (d DateOnly) MonthKey() string {
	return fmt.Sprintf("%04d-%02d", d.year, int(d.month))
}

// MonthLabel returns the display label for the month, e.g. "March 2024"
func (d DateOnly) MonthLabel() string {
	return fmt.Sprintf("%s %d", d.month.String(), d.year)
}

// String returns the date in "2006-01-02" form
func (d DateOnly) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

// MarshalJSON implements json.Marshaler
func (d DateOnly) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *DateOnly) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = DateOnly{}
		return nil
	}
	parsed, err := ParseDateOnly(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer for DATE column storage
func (d DateOnly) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time(), nil
}

// Scan implements sql.Scanner for DATE column retrieval
func (d *DateOnly) Scan(value any) error {
	if value == nil {
		*d = DateOnly{}
		return nil
	}
	switch v := value.(type) {
	case time.Time:
		*d = DateOnlyOf(v)
		return nil
	case string:
		parsed, err := ParseDateOnly(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		parsed, err := ParseDateOnly(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into DateOnly", value)
	}
}
