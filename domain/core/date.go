package core

import (
	"fmt"
	"time"
)

// dateLayout is the wire and storage format for calendar days
const dateLayout = "2006-01-02"

// LocalDate represents a calendar day in the user's local timezone.
// The engine never reasons about times of day, only whole days.
type LocalDate struct {
	Year  int
	Month time.Month
	Day   int
}

// NewLocalDate creates a LocalDate from components
func NewLocalDate(year int, month time.Month, day int) LocalDate {
	return LocalDate{Year: year, Month: month, Day: day}
}

// DateOf truncates a time.Time to its calendar day
func DateOf(t time.Time) LocalDate {
	return LocalDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseLocalDate parses a YYYY-MM-DD string
func ParseLocalDate(s string) (LocalDate, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return LocalDate{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns the date at midnight UTC
func (d LocalDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String returns the YYYY-MM-DD representation
func (d LocalDate) String() string {
	return d.Time().Format(dateLayout)
}

// IsZero checks if the date is the zero value
func (d LocalDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// AddDays returns the date shifted by n calendar days (n may be negative)
func (d LocalDate) AddDays(n int) LocalDate {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Before returns true if d is earlier than other
func (d LocalDate) Before(other LocalDate) bool {
	return d.Time().Before(other.Time())
}

// After returns true if d is later than other
func (d LocalDate) After(other LocalDate) bool {
	return d.Time().After(other.Time())
}

// Equal returns true if both dates are the same calendar day
func (d LocalDate) Equal(other LocalDate) bool {
	return d == other
}

// DaysUntil returns the signed number of days from d to other
func (d LocalDate) DaysUntil(other LocalDate) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

// MarshalJSON encodes the date as a YYYY-MM-DD string
func (d LocalDate) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a YYYY-MM-DD string
func (d *LocalDate) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date JSON: %s", s)
	}
	parsed, err := ParseLocalDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive span of calendar days
type DateRange struct {
	From LocalDate
	To   LocalDate
}

// NewDateRange creates a range, validating ordering
func NewDateRange(from, to LocalDate) (DateRange, error) {
	if to.Before(from) {
		return DateRange{}, fmt.Errorf("%w: range end %s before start %s", ErrValidation, to, from)
	}
	return DateRange{From: from, To: to}, nil
}

// Contains reports whether the day falls inside the range
func (r DateRange) Contains(d LocalDate) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// Days returns the number of calendar days covered, inclusive
func (r DateRange) Days() int {
	return r.From.DaysUntil(r.To) + 1
}

// Each iterates the range in ascending order
func (r DateRange) Each(fn func(LocalDate)) {
	for d := r.From; !d.After(r.To); d = d.AddDays(1) {
		fn(d)
	}
}

// Timestamp represents a point in time with timezone awareness
type Timestamp time.Time

// NewTimestamp creates a new timestamp from time.Time
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t)
}

// Now returns the current timestamp
func Now() Timestamp {
	return Timestamp(time.Now())
}

// Time returns the underlying time.Time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// IsZero checks if the timestamp is zero
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// Before returns true if t is before u
func (t Timestamp) Before(u Timestamp) bool {
	return time.Time(t).Before(time.Time(u))
}

// After returns true if t is after u
func (t Timestamp) After(u Timestamp) bool {
	return time.Time(t).After(time.Time(u))
}

// MarshalJSON for Timestamp
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).MarshalJSON()
}

// UnmarshalJSON for Timestamp
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tm time.Time
	if err := tm.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Timestamp(tm)
	return nil
}
