package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used on the wire and in URLs.
const DateLayout = "2006-01-02"

// ErrInvalidPeriod is returned for unparsable dates or ranges ending
// before they start.
var ErrInvalidPeriod = errors.New("invalid period")

// Period is an inclusive calendar-date range. Start and End are always
// midnight UTC of their calendar day.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod truncates start and end to their calendar day. No ordering
// check is made; see Validate.
func NewPeriod(start, end time.Time) Period {
	return Period{Start: Day(start), End: Day(end)}
}

// ParsePeriod parses two YYYY-MM-DD dates.
func ParsePeriod(start, end string) (Period, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Period{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Period{}, err
	}
	return Period{Start: s, End: e}, nil
}

// CurrentMonth returns the period from the first day of now's month up to now.
func CurrentMonth(now time.Time) Period {
	y, m, _ := now.Date()
	return NewPeriod(time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), now)
}

// Day drops the time of day, keeping t's calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidPeriod, s)
	}
	return t, nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Validate reports ranges whose end precedes their start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: end %s is before start %s", ErrInvalidPeriod, FormatDate(p.End), FormatDate(p.Start))
	}
	return nil
}

// Days is the duration End-Start in whole calendar days (0 for a single day).
func (p Period) Days() int {
	return int(Day(p.End).Sub(Day(p.Start)).Hours() / 24)
}

// Previous returns the comparison period: same length, ending the day
// before p starts, i.e. [start - days - 1, start - 1].
func (p Period) Previous() Period {
	end := Day(p.Start).AddDate(0, 0, -1)
	return Period{Start: end.AddDate(0, 0, -p.Days()), End: end}
}

func (p Period) String() string {
	return FormatDate(p.Start) + ".." + FormatDate(p.End)
}

type periodJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarshalJSON renders the period as {"start":"YYYY-MM-DD","end":"YYYY-MM-DD"}.
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(periodJSON{Start: FormatDate(p.Start), End: FormatDate(p.End)})
}

// UnmarshalJSON accepts the MarshalJSON shape.
func (p *Period) UnmarshalJSON(b []byte) error {
	var raw periodJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParsePeriod(raw.Start, raw.End)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
