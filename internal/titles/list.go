package titles

import (
	"context"
	"time"

	"wolfie/internal/state"
)

type Status string

const (
	StatusServed  Status = "served"
	StatusCurrent Status = "current"
	StatusWaiting Status = "waiting"
)

type ListOptions struct {
	// Categories to include; empty means every enabled category.
	Categories []string
	// ActiveOnly keeps entries that already started or start within the
	// grace window. Served entries stay listed until Prune drops them.
	ActiveOnly bool
}

type EntryView struct {
	Index    int
	UserID   string
	Alias    string
	Time     time.Time // UTC
	Local    time.Time // in the participant's timezone
	Timezone string
	Status   Status
}

type QueueView struct {
	Category Category
	Cursor   int
	Entries  []EntryView
}

// List renders queues with served/current/waiting status and each
// participant's alias and local time. Pure read.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]QueueView, error) {
	cats := s.Categories()
	if len(opts.Categories) > 0 {
		cats = cats[:0:0]
		for _, name := range opts.Categories {
			c, err := s.category(name)
			if err != nil {
				return nil, err
			}
			cats = append(cats, c)
		}
	}

	queues := make(map[string]Queue, len(cats))
	for _, c := range cats {
		q, err := state.Load[Queue](ctx, s.st, Region, c.Name)
		if err != nil {
			return nil, err
		}
		q.normalize()
		queues[c.Name] = q
	}

	limit := s.now().Add(s.grace)
	out := make([]QueueView, 0, len(cats))
	for _, c := range cats {
		q := queues[c.Name]
		view := QueueView{Category: c, Cursor: q.Cursor, Entries: []EntryView{}}
		for i, e := range q.Entries {
			if opts.ActiveOnly && e.Time.After(limit) {
				continue
			}
			pref := s.prefs.Lookup(ctx, e.UserID)
			loc := pref.Location()
			alias := pref.DisplayAlias(e.UserName)
			if alias == "" {
				alias = e.UserID
			}
			view.Entries = append(view.Entries, EntryView{
				Index:    i,
				UserID:   e.UserID,
				Alias:    alias,
				Time:     e.Time.UTC(),
				Local:    e.Time.In(loc),
				Timezone: loc.String(),
				Status:   statusOf(i, q.Cursor),
			})
		}
		out = append(out, view)
	}
	return out, nil
}

func statusOf(i, cursor int) Status {
	switch {
	case i < cursor:
		return StatusServed
	case i == cursor:
		return StatusCurrent
	default:
		return StatusWaiting
	}
}
