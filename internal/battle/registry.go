package battle

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"wolfie/internal/errs"
	"wolfie/internal/eventbus"
	"wolfie/internal/prefs"
	"wolfie/internal/state"
	logx "wolfie/pkg/logx"
)

// Registry is one battle's sign-up grid stored in its own region.
type Registry struct {
	title    string
	region   string
	capacity int

	st    *state.Coordinator
	prefs prefs.Lookup
	log   logx.Logger
	now   func() time.Time
}

type Option func(*Registry)

func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a registry for title persisted in region.
func New(title, region string, st *state.Coordinator, lookup prefs.Lookup, log logx.Logger, opts ...Option) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	if lookup == nil {
		lookup = prefs.Static(nil)
	}
	r := &Registry{
		title:    title,
		region:   region,
		capacity: DefaultCapacity,
		st:       st,
		prefs:    lookup,
		log:      log.With(logx.String("comp", "battle"), logx.String("battle", region)),
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) Title() string  { return r.title }
func (r *Registry) Region() string { return r.region }
func (r *Registry) Capacity() int  { return r.capacity }

// Initialize seeds empty days.
func (r *Registry) Initialize(ctx context.Context) error {
	defaults := make(map[string]json.RawMessage, len(Days))
	for _, day := range Days {
		b, err := json.Marshal(emptyDay())
		if err != nil {
			return err
		}
		defaults[day] = b
	}
	return r.st.Initialize(ctx, r.region, defaults)
}

// Reset clears every registration.
func (r *Registry) Reset(ctx context.Context) error {
	return r.st.Reset(ctx, r.region)
}

// Registration is the result of a successful Register.
type Registration struct {
	Day            string
	Slot           string
	Updated        bool // existing record merged
	ClearedPrimary []CellRef
	At             time.Time // slot start, UTC
}

// Register signs participantID up for day/slot with fields. An existing
// record in that cell is merged field by field. fields["primary"] == true
// clears primary on the participant's other cells.
func (r *Registry) Register(ctx context.Context, participantID, day, slot string, fields map[string]any) (Registration, error) {
	day, slot, ok := normalizeCell(day, slot)
	if !ok {
		return Registration{}, errs.Validation(errs.CodeInvalidSlot, "invalid day or time slot, use d1/d2 and t1/t2/t3")
	}
	rec := Record{Context: map[string]any{}}
	for k, v := range fields {
		rec.Context[k] = v
	}

	out := Registration{Day: day, Slot: slot}
	err := r.st.MutateRegion(ctx, r.region, func(content map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		g, err := decodeGrid(content)
		if err != nil {
			return nil, err
		}

		if rec.Primary() {
			for _, d := range Days {
				for _, s := range Slots {
					if d == day && s.Name == slot {
						continue
					}
					other, ok := g[d][s.Name][participantID]
					if ok && other.Primary() {
						other.Context["primary"] = false
						out.ClearedPrimary = append(out.ClearedPrimary, CellRef{Day: d, Slot: s.Name})
					}
				}
			}
		}

		cell := g[day][slot]
		if existing, ok := cell[participantID]; ok {
			for k, v := range rec.Context {
				existing.Context[k] = v
			}
			out.Updated = true
		} else {
			if len(cell) >= r.capacity {
				return nil, errs.Conflict(errs.CodeCapacityExceeded,
					"this time slot is full (%d players max), try another slot", r.capacity)
			}
			cell[participantID] = rec
		}
		return encodeDays(g, Days...)
	})
	if err != nil && !errs.IsKind(err, errs.KindPersistence) {
		r.log.Info("registration rejected", logx.String("participant", participantID),
			logx.String("cell", day+"/"+slot), logx.String("code", errs.CodeOf(err)))
		out.ClearedPrimary = nil
		return Registration{}, err
	}
	out.At, _ = SlotTime(day, slot, r.now())
	r.log.Info("registered", logx.String("participant", participantID), logx.String("cell", day+"/"+slot),
		logx.Bool("updated", out.Updated), logx.Int("cleared_primary", len(out.ClearedPrimary)))
	r.st.Bus().Publish(eventbus.Event{Type: eventbus.BattleRegistered, Data: out})
	return out, err
}

// Unregistration reports whether a record was removed.
type Unregistration struct {
	Day     string
	Slot    string
	Removed bool
}

var errNotRegistered = errors.New("not registered")

// Unregister removes participantID from day/slot. Not being registered is
// reported through Removed, not as an error.
func (r *Registry) Unregister(ctx context.Context, participantID, day, slot string) (Unregistration, error) {
	day, slot, ok := normalizeCell(day, slot)
	if !ok {
		return Unregistration{}, errs.Validation(errs.CodeInvalidSlot, "invalid day or time slot, use d1/d2 and t1/t2/t3")
	}
	out := Unregistration{Day: day, Slot: slot}
	err := r.st.MutateRegion(ctx, r.region, func(content map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		g, err := decodeGrid(content)
		if err != nil {
			return nil, err
		}
		if _, ok := g[day][slot][participantID]; !ok {
			return nil, errNotRegistered
		}
		delete(g[day][slot], participantID)
		return encodeDays(g, day)
	})
	if errors.Is(err, errNotRegistered) {
		r.log.Debug("unregister: not registered", logx.String("participant", participantID), logx.String("cell", day+"/"+slot))
		return out, nil
	}
	if err != nil && !errs.IsKind(err, errs.KindPersistence) {
		return Unregistration{}, err
	}
	out.Removed = true
	r.log.Info("unregistered", logx.String("participant", participantID), logx.String("cell", day+"/"+slot))
	r.st.Bus().Publish(eventbus.Event{Type: eventbus.BattleUnregistered, Data: out})
	return out, err
}

// Filter selects cells for List. The zero value lists non-empty cells.
type Filter struct {
	All  bool // include empty cells
	Day  string
	Slot string
}

type MemberView struct {
	ParticipantID string
	Alias         string
	Context       map[string]any
	Primary       bool
	Role          string
	Local         time.Time
	Timezone      string
}

type CellView struct {
	Day     string
	Slot    string
	At      time.Time // UTC
	Members []MemberView
}

// List renders the grid with every member's local slot time. Pure read.
func (r *Registry) List(ctx context.Context, f Filter) ([]CellView, error) {
	if f.Day != "" {
		f.Day = strings.ToLower(strings.TrimSpace(f.Day))
		if !validDay(f.Day) {
			return nil, errs.Validation(errs.CodeInvalidSlot, "invalid day %q, use d1 or d2", f.Day)
		}
	}
	if f.Slot != "" {
		f.Slot = strings.ToLower(strings.TrimSpace(f.Slot))
		if _, ok := slotDef(f.Slot); !ok {
			return nil, errs.Validation(errs.CodeInvalidSlot, "invalid time slot %q, use t1, t2 or t3", f.Slot)
		}
	}

	var g Grid
	if err := r.st.View(ctx, r.region, func(content map[string]json.RawMessage) error {
		var err error
		g, err = decodeGrid(content)
		return err
	}); err != nil {
		return nil, err
	}

	now := r.now()
	var out []CellView
	for _, day := range Days {
		if f.Day != "" && f.Day != day {
			continue
		}
		for _, s := range Slots {
			if f.Slot != "" && f.Slot != s.Name {
				continue
			}
			cell := g[day][s.Name]
			if len(cell) == 0 && !f.All {
				continue
			}
			at, _ := SlotTime(day, s.Name, now)
			view := CellView{Day: day, Slot: s.Name, At: at, Members: make([]MemberView, 0, len(cell))}
			for _, id := range sortedIDs(cell) {
				rec := cell[id]
				pref := r.prefs.Lookup(ctx, id)
				loc := pref.Location()
				view.Members = append(view.Members, MemberView{
					ParticipantID: id,
					Alias:         pref.DisplayAlias("Unknown"),
					Context:       rec.Context,
					Primary:       rec.Primary(),
					Role:          rec.Role(),
					Local:         at.In(loc),
					Timezone:      loc.String(),
				})
			}
			out = append(out, view)
		}
	}
	return out, nil
}
