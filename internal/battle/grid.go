// Package battle keeps weekend battle sign-ups: a fixed grid of days (d1 is
// the upcoming Saturday, d2 the Sunday after) by time slots, each cell
// holding at most Capacity participants.
package battle

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const DefaultCapacity = 30

// Days in grid order.
var Days = []string{"d1", "d2"}

// SlotDef is a time slot and its start hour in UTC.
type SlotDef struct {
	Name string
	Hour int
}

// Slots in grid order.
var Slots = []SlotDef{
	{Name: "t1", Hour: 1},
	{Name: "t2", Hour: 11},
	{Name: "t3", Hour: 19},
}

func validDay(day string) bool {
	for _, d := range Days {
		if d == day {
			return true
		}
	}
	return false
}

func slotDef(slot string) (SlotDef, bool) {
	for _, s := range Slots {
		if s.Name == slot {
			return s, true
		}
	}
	return SlotDef{}, false
}

func normalizeCell(day, slot string) (string, string, bool) {
	day = strings.ToLower(strings.TrimSpace(day))
	slot = strings.ToLower(strings.TrimSpace(slot))
	_, okSlot := slotDef(slot)
	return day, slot, validDay(day) && okSlot
}

// Record is one participant's sign-up in a cell.
type Record struct {
	Context map[string]any `json:"context"`
}

func (r Record) Primary() bool {
	v, _ := r.Context["primary"].(bool)
	return v
}

func (r Record) Role() string {
	v, _ := r.Context["role"].(string)
	return v
}

// Cell maps participant ID to record.
type Cell map[string]Record

// Day maps slot name to cell; it is the value stored under each day key.
type Day map[string]Cell

// Grid is a decoded region: day -> slot -> participant -> record.
type Grid map[string]Day

// CellRef names one grid cell.
type CellRef struct {
	Day  string
	Slot string
}

func (c CellRef) String() string { return strings.ToUpper(c.Day) + " " + strings.ToUpper(c.Slot) }

func emptyDay() Day {
	d := Day{}
	for _, s := range Slots {
		d[s.Name] = Cell{}
	}
	return d
}

func decodeGrid(content map[string]json.RawMessage) (Grid, error) {
	g := Grid{}
	for _, day := range Days {
		d := emptyDay()
		if raw, ok := content[day]; ok {
			var stored Day
			if err := json.Unmarshal(raw, &stored); err != nil {
				return nil, fmt.Errorf("decode %s: %w", day, err)
			}
			for slot, cell := range stored {
				if cell == nil {
					cell = Cell{}
				}
				for id, rec := range cell {
					if rec.Context == nil {
						rec.Context = map[string]any{}
						cell[id] = rec
					}
				}
				d[slot] = cell
			}
		}
		g[day] = d
	}
	return g, nil
}

func encodeDays(g Grid, days ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(days))
	for _, day := range days {
		b, err := json.Marshal(g[day])
		if err != nil {
			return nil, err
		}
		out[day] = b
	}
	return out, nil
}

func sortedIDs(c Cell) []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WeekendDates returns midnight UTC of the upcoming Saturday (today when
// now is a Saturday) and the Sunday after it.
func WeekendDates(now time.Time) (saturday, sunday time.Time) {
	now = now.UTC()
	ahead := (int(time.Saturday) - int(now.Weekday()) + 7) % 7
	sat := time.Date(now.Year(), now.Month(), now.Day()+ahead, 0, 0, 0, 0, time.UTC)
	return sat, sat.AddDate(0, 0, 1)
}

// SlotTime is the UTC start of a cell for the weekend around now.
func SlotTime(day, slot string, now time.Time) (time.Time, bool) {
	day, slot, ok := normalizeCell(day, slot)
	if !ok {
		return time.Time{}, false
	}
	sat, sun := WeekendDates(now)
	base := sat
	if day == "d2" {
		base = sun
	}
	def, _ := slotDef(slot)
	return base.Add(time.Duration(def.Hour) * time.Hour), true
}
