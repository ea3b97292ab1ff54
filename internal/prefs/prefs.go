// Package prefs stores per-participant display alias and timezone.
package prefs

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"wolfie/internal/errs"
	"wolfie/internal/state"
	"wolfie/internal/temporal"
	logx "wolfie/pkg/logx"
)

// Region holds one Preferences value per participant ID.
const Region = "user_preferences"

const DefaultTimezone = "UTC"

type Preferences struct {
	Name     string `json:"name,omitempty"`
	Alias    string `json:"alias,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

func (p Preferences) IsZero() bool { return p == Preferences{} }

// DisplayAlias is alias, then name, then fallback.
func (p Preferences) DisplayAlias(fallback string) string {
	if p.Alias != "" {
		return p.Alias
	}
	if p.Name != "" {
		return p.Name
	}
	return fallback
}

// Location parses Timezone, falling back to UTC.
func (p Preferences) Location() *time.Location {
	return temporal.MustLocation(p.Timezone)
}

// Lookup resolves a participant's preferences. Unknown participants yield
// the zero value (UTC, no alias).
type Lookup interface {
	Lookup(ctx context.Context, participantID string) Preferences
}

// Entry is one row of All.
type Entry struct {
	ID string
	Preferences
}

type Service struct {
	st  *state.Coordinator
	log logx.Logger
}

func New(st *state.Coordinator, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{st: st, log: log.With(logx.String("comp", "prefs"))}
}

// Initialize registers the region; it starts with no participants.
func (s *Service) Initialize(ctx context.Context) error {
	return s.st.Initialize(ctx, Region, map[string]json.RawMessage{})
}

func (s *Service) Lookup(ctx context.Context, participantID string) Preferences {
	p, err := state.Load[Preferences](ctx, s.st, Region, participantID)
	if err != nil {
		s.log.Warn("preferences unreadable", logx.String("participant", participantID), logx.Err(err))
		return Preferences{}
	}
	return p
}

// Get returns the stored preferences and whether any exist.
func (s *Service) Get(ctx context.Context, participantID string) (Preferences, bool) {
	p := s.Lookup(ctx, participantID)
	return p, !p.IsZero()
}

// Ensure returns the participant's preferences, creating defaults from
// displayName on first use.
func (s *Service) Ensure(ctx context.Context, participantID, displayName string) (Preferences, error) {
	if p, ok := s.Get(ctx, participantID); ok {
		return p, nil
	}
	var out Preferences
	err := state.Modify(ctx, s.st, Region, participantID, func(p *Preferences) error {
		if p.IsZero() {
			*p = Preferences{Name: displayName, Alias: displayName, Timezone: DefaultTimezone}
			s.log.Info("default preferences created", logx.String("participant", participantID))
		}
		out = *p
		return nil
	})
	return out, err
}

// SetAlias records alias and, when timezone is non-empty, a validated timezone.
func (s *Service) SetAlias(ctx context.Context, participantID, displayName, alias, timezone string) (Preferences, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return Preferences{}, errs.Validation(errs.CodeInvalidArgument, "alias must not be empty")
	}
	zone := ""
	if strings.TrimSpace(timezone) != "" {
		loc, err := temporal.LoadLocation(timezone)
		if err != nil {
			return Preferences{}, errs.Validation(errs.CodeInvalidArgument, "invalid timezone %q", timezone)
		}
		zone = loc.String()
	}
	var out Preferences
	err := state.Modify(ctx, s.st, Region, participantID, func(p *Preferences) error {
		p.Name = displayName
		p.Alias = alias
		if zone != "" {
			p.Timezone = zone
		}
		if p.Timezone == "" {
			p.Timezone = DefaultTimezone
		}
		out = *p
		return nil
	})
	return out, err
}

// SetTimezone validates and stores an IANA timezone name.
func (s *Service) SetTimezone(ctx context.Context, participantID, displayName, timezone string) (Preferences, error) {
	loc, err := temporal.LoadLocation(timezone)
	if err != nil || strings.TrimSpace(timezone) == "" {
		return Preferences{}, errs.Validation(errs.CodeInvalidArgument, "invalid timezone %q", timezone)
	}
	var out Preferences
	err = state.Modify(ctx, s.st, Region, participantID, func(p *Preferences) error {
		if p.Name == "" {
			p.Name = displayName
		}
		if p.Alias == "" {
			p.Alias = displayName
		}
		p.Timezone = loc.String()
		out = *p
		return nil
	})
	return out, err
}

// All lists every known participant ordered by ID.
func (s *Service) All(ctx context.Context) []Entry {
	content := s.st.GetAll(ctx, Region)
	out := make([]Entry, 0, len(content))
	for id, raw := range content {
		var p Preferences
		if err := json.Unmarshal(raw, &p); err != nil {
			s.log.Warn("skipping unreadable preferences", logx.String("participant", id), logx.Err(err))
			continue
		}
		out = append(out, Entry{ID: id, Preferences: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Static is a fixed Lookup, handy when no store is wired.
type Static map[string]Preferences

func (m Static) Lookup(_ context.Context, participantID string) Preferences {
	return m[participantID]
}
