// Package temporal turns loose date and time tokens typed by people into
// instants in their own timezone.
//
// Recognised formats live in ordered tables (DateFormats, TimeFormats); the
// first layout that parses wins. Nothing here reads the wall clock: callers
// pass now and the location.
package temporal

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNoInput     = errors.New("temporal: no date or time given")
	ErrUnparseable = errors.New("temporal: unrecognised date/time")
)

// Format is one accepted input layout.
type Format struct {
	Name   string
	Layout string
	// Yearless layouts take the year from now.
	Yearless bool
}

// DateFormats in match order. "1/2" (month/day) is tried before "2/1" so
// "2/21" reads as February 21 and "21/2" falls through to day/month.
var DateFormats = []Format{
	{Name: "iso", Layout: "2006-01-02"},
	{Name: "ymd-dash", Layout: "2006-1-2"},
	{Name: "ymd-slash", Layout: "2006/1/2"},
	{Name: "md-dash", Layout: "1-2", Yearless: true},
	{Name: "md-slash", Layout: "1/2", Yearless: true},
	{Name: "md-dot", Layout: "1.2", Yearless: true},
	{Name: "dm-slash", Layout: "2/1", Yearless: true},
}

// TimeFormats in match order. Tokens are upper-cased before matching.
var TimeFormats = []Format{
	{Name: "h12", Layout: "3PM"},
	{Name: "h12-min", Layout: "3:04PM"},
	{Name: "h12-sec", Layout: "3:04:05PM"},
	{Name: "h12-space", Layout: "3 PM"},
	{Name: "h24", Layout: "15"},
	{Name: "h24-min", Layout: "15:04"},
	{Name: "h24-sec", Layout: "15:04:05"},
}

// Date is a calendar day without a location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (d Date) String() string { return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day) }

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// DateOf returns the calendar day of t in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// Clock is a time of day.
type Clock struct {
	Hour, Minute, Second int
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second) }

// ParseDate matches tok against DateFormats.
func ParseDate(tok string, now time.Time) (Date, bool) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return Date{}, false
	}
	for _, f := range DateFormats {
		t, err := time.Parse(f.Layout, tok)
		if err != nil {
			continue
		}
		y := t.Year()
		if f.Yearless {
			y = now.Year()
		}
		// Normalise (Feb 29 in a non-leap year becomes an error, not Mar 1).
		n := time.Date(y, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if n.Month() != t.Month() {
			continue
		}
		return Date{Year: y, Month: t.Month(), Day: t.Day()}, true
	}
	return Date{}, false
}

// ParseTime matches tok against TimeFormats.
func ParseTime(tok string) (Clock, bool) {
	tok = strings.ToUpper(strings.TrimSpace(tok))
	if tok == "" {
		return Clock{}, false
	}
	for _, f := range TimeFormats {
		t, err := time.Parse(f.Layout, tok)
		if err != nil {
			continue
		}
		return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, true
	}
	return Clock{}, false
}

// Resolve composes a date token and a time token into an instant in loc.
//
//   - both empty: ErrNoInput
//   - a date token that is not a date, with no time token, is read as a time today
//   - missing date: today in loc
//   - missing time: the top of the current hour in loc
//   - any supplied token that matches nothing: ErrUnparseable
func Resolve(dateTok, timeTok string, loc *time.Location, now time.Time) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	dateTok = strings.TrimSpace(dateTok)
	timeTok = strings.TrimSpace(timeTok)
	if dateTok == "" && timeTok == "" {
		return time.Time{}, ErrNoInput
	}
	local := now.In(loc)

	date, dateOK := ParseDate(dateTok, local)
	if dateTok != "" && !dateOK {
		if timeTok != "" {
			return time.Time{}, fmt.Errorf("%w: date %q", ErrUnparseable, dateTok)
		}
		timeTok, dateTok = dateTok, ""
	}
	if dateTok == "" {
		date = DateOf(local, loc)
	}

	clock := Clock{Hour: local.Hour()}
	if timeTok != "" {
		c, ok := ParseTime(timeTok)
		if !ok {
			return time.Time{}, fmt.Errorf("%w: time %q", ErrUnparseable, timeTok)
		}
		clock = c
	}
	return time.Date(date.Year, date.Month, date.Day, clock.Hour, clock.Minute, clock.Second, 0, loc), nil
}

// LoadLocation resolves an IANA zone name. "" means UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utc") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// MustLocation is LoadLocation falling back to UTC.
func MustLocation(name string) *time.Location {
	loc, err := LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TopOfHour truncates t to the hour in its own location.
func TopOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}
