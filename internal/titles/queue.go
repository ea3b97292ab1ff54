// Package titles runs the time-slot queues participants join to hold a
// title. Each category is an ordered list of hourly entries plus a cursor
// separating served entries from waiting ones.
package titles

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"wolfie/internal/errs"
	"wolfie/internal/temporal"
)

// Region holds one Queue per category name.
const Region = "title_queues"

// Category is a queue name and its display title.
type Category struct {
	Name  string
	Title string
}

// Categories in display order.
var Categories = []Category{
	{Name: "tribune", Title: "🏆 Tribune (Healing) 🏆"},
	{Name: "elder", Title: "🏆 Elder (Gathering) 🏆"},
	{Name: "priest", Title: "🏆 Priest (Building) 🏆"},
	{Name: "sage", Title: "🏆 Sage (Research) 🏆"},
	{Name: "master", Title: "🏆 Master (Training) 🏆"},
	{Name: "praetorian", Title: "🏆 Praetorian (PvP-Loss) 🏆"},
	{Name: "border", Title: "🏆 Border (Tribes) 🏆"},
	{Name: "cavalry", Title: "🏆 Cavalry (PvP-Atk/Def) 🏆"},
}

// LookupCategory matches name case-insensitively.
func LookupCategory(name string) (Category, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

func CategoryNames() []string {
	out := make([]string, len(Categories))
	for i, c := range Categories {
		out[i] = c.Name
	}
	return out
}

type Entry struct {
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	Time     time.Time `json:"time"`
}

type Queue struct {
	Entries []Entry `json:"entries"`
	Cursor  int     `json:"cursor"`
}

func (q *Queue) normalize() {
	if q.Entries == nil {
		q.Entries = []Entry{}
	}
	for i := range q.Entries {
		q.Entries[i].Time = q.Entries[i].Time.UTC()
	}
}

func (q *Queue) sort() {
	sort.SliceStable(q.Entries, func(i, j int) bool { return q.Entries[i].Time.Before(q.Entries[j].Time) })
}

// taken reports whether some entry starts exactly at t.
func (q Queue) taken(t time.Time) bool {
	for _, e := range q.Entries {
		if e.Time.Equal(t) {
			return true
		}
	}
	return false
}

// Current returns the entry at the cursor, if any.
func (q Queue) Current() (Entry, bool) {
	if q.Cursor >= 0 && q.Cursor < len(q.Entries) {
		return q.Entries[q.Cursor], true
	}
	return Entry{}, false
}

// Check validates queue invariants: ascending unique instants and
// 0 <= cursor <= len(entries).
func Check(q Queue) error {
	if q.Cursor < 0 || q.Cursor > len(q.Entries) {
		return fmt.Errorf("cursor %d out of range [0,%d]", q.Cursor, len(q.Entries))
	}
	for i := 1; i < len(q.Entries); i++ {
		if !q.Entries[i-1].Time.Before(q.Entries[i].Time) {
			return fmt.Errorf("entries %d and %d out of order or duplicated (%s, %s)",
				i-1, i, q.Entries[i-1].Time.Format(time.RFC3339), q.Entries[i].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// DefaultSearchSteps is how many hours NextAvailableSlot looks ahead.
const DefaultSearchSteps = 72

// NextAvailableSlot finds the first free hour after the later of the entry
// at the cursor and the baseline: now in loc at the top of the hour, pushed
// to the next hour past half past.
func NextAvailableSlot(q Queue, loc *time.Location, now time.Time) (time.Time, error) {
	return nextSlot(q, loc, now, DefaultSearchSteps)
}

func nextSlot(q Queue, loc *time.Location, now time.Time, steps int) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	if local.Minute() > 30 {
		local = local.Add(time.Hour)
	}
	baseline := temporal.TopOfHour(local)

	start := baseline
	if cur, ok := q.Current(); ok && cur.Time.After(baseline) {
		start = cur.Time.In(loc)
	}
	dt := start
	for i := 0; i < steps; i++ {
		dt = dt.Add(time.Hour)
		if !q.taken(dt) {
			return dt.UTC(), nil
		}
	}
	return time.Time{}, errs.Conflict(errs.CodeNoSlot, "no available slots in the next %d hours", steps)
}
