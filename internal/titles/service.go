package titles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wolfie/internal/errs"
	"wolfie/internal/eventbus"
	"wolfie/internal/prefs"
	"wolfie/internal/state"
	"wolfie/internal/temporal"
	logx "wolfie/pkg/logx"
)

const (
	DefaultHorizon  = 72 * time.Hour
	DefaultThrottle = 24 * time.Hour
	DefaultGrace    = 2 * time.Hour
)

// errUnchanged aborts a Modify without writing.
var errUnchanged = errors.New("unchanged")

// Participant identifies who is acting.
type Participant struct {
	ID    string
	Alias string
}

type Service struct {
	st    *state.Coordinator
	prefs prefs.Lookup
	log   logx.Logger
	now   func() time.Time

	horizon  time.Duration
	throttle time.Duration
	grace    time.Duration
	enabled  map[string]bool
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithHorizon(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.horizon = d
		}
	}
}

func WithThrottle(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.throttle = d
		}
	}
}

func WithGrace(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithCategories restricts the service to a subset of Categories. Unknown
// names are ignored; an empty list keeps all.
func WithCategories(names []string) Option {
	return func(s *Service) {
		if len(names) == 0 {
			return
		}
		enabled := map[string]bool{}
		for _, n := range names {
			if c, ok := LookupCategory(n); ok {
				enabled[c.Name] = true
			}
		}
		if len(enabled) > 0 {
			s.enabled = enabled
		}
	}
}

func New(st *state.Coordinator, lookup prefs.Lookup, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if lookup == nil {
		lookup = prefs.Static(nil)
	}
	s := &Service{
		st:       st,
		prefs:    lookup,
		log:      log.With(logx.String("comp", "titles")),
		now:      time.Now,
		horizon:  DefaultHorizon,
		throttle: DefaultThrottle,
		grace:    DefaultGrace,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Initialize seeds an empty queue for every category.
func (s *Service) Initialize(ctx context.Context) error {
	empty, _ := json.Marshal(Queue{Entries: []Entry{}})
	defaults := make(map[string]json.RawMessage, len(Categories))
	for _, c := range Categories {
		defaults[c.Name] = empty
	}
	return s.st.Initialize(ctx, Region, defaults)
}

// Categories returns the enabled categories in display order.
func (s *Service) Categories() []Category {
	out := make([]Category, 0, len(Categories))
	for _, c := range Categories {
		if s.enabled == nil || s.enabled[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

func (s *Service) category(name string) (Category, error) {
	c, ok := LookupCategory(name)
	if !ok || (s.enabled != nil && !s.enabled[c.Name]) {
		return Category{}, errs.Validation(errs.CodeInvalidCategory, "invalid queue %q, choose from %v", name, namesOf(s.Categories()))
	}
	return c, nil
}

func namesOf(cs []Category) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

// Queue returns a snapshot of one category.
func (s *Service) Queue(ctx context.Context, category string) (Queue, error) {
	c, err := s.category(category)
	if err != nil {
		return Queue{}, err
	}
	q, err := state.Load[Queue](ctx, s.st, Region, c.Name)
	if err != nil {
		return Queue{}, err
	}
	q.normalize()
	return q, nil
}

// Assignment is the result of a successful Add.
type Assignment struct {
	Category Category
	Time     time.Time // UTC
	Alias    string
	Position int
}

// Add books an hourly slot in category. With no date or time the next free
// slot is chosen; otherwise the tokens are resolved in the participant's
// timezone.
func (s *Service) Add(ctx context.Context, p Participant, category, dateTok, timeTok string) (Assignment, error) {
	c, err := s.category(category)
	if err != nil {
		return Assignment{}, err
	}
	pref := s.prefs.Lookup(ctx, p.ID)
	loc := pref.Location()
	alias := p.Alias
	if alias == "" {
		alias = pref.DisplayAlias(p.ID)
	}
	now := s.now()
	log := s.log.With(logx.String("participant", p.ID), logx.String("category", c.Name))

	auto := dateTok == "" && timeTok == ""
	var requested time.Time
	if !auto {
		requested, err = temporal.Resolve(dateTok, timeTok, loc, now)
		if err != nil {
			return Assignment{}, errs.Validation(errs.CodeInvalidFormat,
				"invalid start time %q %q, use 'mm-dd hh' (e.g. 2-15 3PM)", dateTok, timeTok)
		}
	}

	var out Assignment
	err = state.Modify(ctx, s.st, Region, c.Name, func(q *Queue) error {
		q.normalize()
		dt := requested
		if auto {
			next, err := NextAvailableSlot(*q, loc, now)
			if err != nil {
				return err
			}
			dt = next
		}
		if err := s.admit(*q, p.ID, dt, loc, now); err != nil {
			return err
		}
		q.Entries = append(q.Entries, Entry{UserID: p.ID, UserName: alias, Time: dt.UTC()})
		q.sort()
		out = Assignment{Category: c, Time: dt.UTC(), Alias: alias}
		for i, e := range q.Entries {
			if e.UserID == p.ID && e.Time.Equal(dt) {
				out.Position = i
			}
		}
		return nil
	})
	if err != nil && !errs.IsKind(err, errs.KindPersistence) {
		log.Info("queue add rejected", logx.String("code", errs.CodeOf(err)), logx.Err(err))
		return Assignment{}, err
	}
	log.Info("queue entry added", logx.Time("at", out.Time), logx.Bool("auto", auto))
	s.st.Bus().Publish(eventbus.Event{Type: eventbus.SlotAssigned, Data: out})
	return out, err
}

// admit applies the add rejections in order: past, throttle, horizon, taken.
func (s *Service) admit(q Queue, participantID string, dt time.Time, loc *time.Location, now time.Time) error {
	if dt.Before(temporal.TopOfHour(now.In(loc))) {
		return errs.Validation(errs.CodePastTime, "start time %s is in the past, pick an hour in the future", dt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	for _, e := range q.Entries {
		if e.UserID != participantID {
			continue
		}
		d := dt.Sub(e.Time)
		if d < 0 {
			d = -d
		}
		if d < s.throttle {
			return errs.Conflict(errs.CodeThrottled, "you can only register once per queue every %s", humanDuration(s.throttle))
		}
	}
	if dt.After(now.Add(s.horizon)) {
		return errs.Conflict(errs.CodeHorizonExceeded, "you can only register up to %s in advance", humanDuration(s.horizon))
	}
	if q.taken(dt) {
		return errs.Conflict(errs.CodeSlotTaken, "time slot %s is already taken, select another slot", dt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	return nil
}

// Removal is the result of a successful Remove.
type Removal struct {
	Category Category
	Entry    Entry
	Cursor   int
}

// Remove drops the participant's entry from category: the one on dateTok's
// calendar day (participant timezone) when given, otherwise the first.
// Removing at or before the cursor moves the cursor back by one.
func (s *Service) Remove(ctx context.Context, participantID, category, dateTok string) (Removal, error) {
	c, err := s.category(category)
	if err != nil {
		return Removal{}, err
	}
	loc := s.prefs.Lookup(ctx, participantID).Location()

	var (
		filter    temporal.Date
		hasFilter bool
	)
	if dateTok != "" {
		d, ok := temporal.ParseDate(dateTok, s.now().In(loc))
		if !ok {
			return Removal{}, errs.Validation(errs.CodeInvalidFormat, "invalid date %q, provide the date to remove as 'mm-dd'", dateTok)
		}
		filter, hasFilter = d, true
	}

	var out Removal
	err = state.Modify(ctx, s.st, Region, c.Name, func(q *Queue) error {
		q.normalize()
		idx := -1
		for i, e := range q.Entries {
			if e.UserID != participantID {
				continue
			}
			if hasFilter && temporal.DateOf(e.Time, loc) != filter {
				continue
			}
			idx = i
			break
		}
		if idx < 0 {
			return errs.NotFound(errs.CodeNotFound, "no matching entry found to remove")
		}
		removed := q.Entries[idx]
		if idx <= q.Cursor {
			q.Cursor--
		}
		if q.Cursor < 0 {
			q.Cursor = 0
		}
		q.Entries = append(q.Entries[:idx], q.Entries[idx+1:]...)
		out = Removal{Category: c, Entry: removed, Cursor: q.Cursor}
		return nil
	})
	if err != nil && !errs.IsKind(err, errs.KindPersistence) {
		return Removal{}, err
	}
	s.log.Info("queue entry removed", logx.String("participant", participantID), logx.String("category", c.Name), logx.Time("at", out.Entry.Time))
	s.st.Bus().Publish(eventbus.Event{Type: eventbus.SlotRemoved, Data: out})
	return out, err
}

// Progress is the queue position after Advance or Rollback.
type Progress struct {
	Category Category
	Cursor   int
	Length   int
	Served   []Entry // entries newly served by Advance
	Current  *Entry
}

// Advance moves the cursor forward by count (clamped to the queue length).
func (s *Service) Advance(ctx context.Context, category string, count int) (Progress, error) {
	if count < 1 {
		return Progress{}, errs.Validation(errs.CodeInvalidArgument, "count must be at least 1, got %d", count)
	}
	return s.moveCursor(ctx, category, func(q *Queue) []Entry {
		from := q.Cursor
		q.Cursor += count
		if q.Cursor > len(q.Entries) {
			q.Cursor = len(q.Entries)
		}
		return append([]Entry(nil), q.Entries[from:q.Cursor]...)
	})
}

// Rollback moves the cursor back one entry (not below zero).
func (s *Service) Rollback(ctx context.Context, category string) (Progress, error) {
	return s.moveCursor(ctx, category, func(q *Queue) []Entry {
		if q.Cursor > 0 {
			q.Cursor--
		}
		return nil
	})
}

func (s *Service) moveCursor(ctx context.Context, category string, move func(q *Queue) []Entry) (Progress, error) {
	c, err := s.category(category)
	if err != nil {
		return Progress{}, err
	}
	var out Progress
	err = state.Modify(ctx, s.st, Region, c.Name, func(q *Queue) error {
		q.normalize()
		if q.Cursor > len(q.Entries) {
			q.Cursor = len(q.Entries)
		}
		served := move(q)
		out = Progress{Category: c, Cursor: q.Cursor, Length: len(q.Entries), Served: served}
		if cur, ok := q.Current(); ok {
			out.Current = &cur
		}
		return nil
	})
	if err != nil && !errs.IsKind(err, errs.KindPersistence) {
		return Progress{}, err
	}
	s.log.Info("queue cursor moved", logx.String("category", c.Name), logx.Int("cursor", out.Cursor), logx.Int("len", out.Length))
	s.st.Bus().Publish(eventbus.Event{Type: eventbus.QueueAdvance, Data: out})
	return out, err
}

// Prune drops served entries older than now-olderThan from every category.
func (s *Service) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	total := 0
	var first error
	for _, c := range s.Categories() {
		n := 0
		err := state.Modify(ctx, s.st, Region, c.Name, func(q *Queue) error {
			q.normalize()
			kept := q.Entries[:0]
			for i, e := range q.Entries {
				if i < q.Cursor && e.Time.Before(cutoff) {
					n++
					continue
				}
				kept = append(kept, e)
			}
			if n == 0 {
				return errUnchanged
			}
			q.Entries = kept
			q.Cursor -= n
			return nil
		})
		if errors.Is(err, errUnchanged) {
			continue
		}
		if err != nil {
			if first == nil {
				first = fmt.Errorf("prune %s: %w", c.Name, err)
			}
			if !errs.IsKind(err, errs.KindPersistence) {
				continue
			}
		}
		total += n
	}
	if total > 0 {
		s.log.Info("served entries pruned", logx.Int("count", total), logx.Time("cutoff", cutoff))
	}
	return total, first
}

func humanDuration(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "24 hours"
		}
		return fmt.Sprintf("%d days", days)
	}
	return d.String()
}
