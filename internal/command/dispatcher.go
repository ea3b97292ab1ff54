// Package command is the entry point collaborators (a chat adapter, the
// CLI) use to run scheduling operations on behalf of a caller.
//
// Every call gets a request ID and passes the per-participant guard.
// Mutating calls also create the caller's default preferences on first use;
// listings only read them.
package command

import (
	"context"
	"strings"
	"time"

	"wolfie/internal/battle"
	"wolfie/internal/errs"
	"wolfie/internal/guard"
	"wolfie/internal/prefs"
	"wolfie/internal/state"
	"wolfie/internal/titles"
	logx "wolfie/pkg/logx"

	"github.com/google/uuid"
)

// Caller identifies who issued a command. ID must be stable across renames.
type Caller struct {
	ID          string
	DisplayName string
}

type Deps struct {
	State  *state.Coordinator
	Prefs  *prefs.Service
	Titles *titles.Service
	Dawn   *battle.Dawn
	Wonder *battle.Wonder
	Guard  *guard.Guard
	Log    logx.Logger
}

type Dispatcher struct {
	st     *state.Coordinator
	prefs  *prefs.Service
	titles *titles.Service
	dawn   *battle.Dawn
	wonder *battle.Wonder
	guard  *guard.Guard
	log    logx.Logger
}

func New(d Deps) *Dispatcher {
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	g := d.Guard
	if g == nil {
		g = guard.New(guard.Config{})
	}
	return &Dispatcher{
		st:     d.State,
		prefs:  d.Prefs,
		titles: d.Titles,
		dawn:   d.Dawn,
		wonder: d.Wonder,
		guard:  g,
		log:    log.With(logx.String("comp", "command")),
	}
}

type call struct {
	log   logx.Logger
	prefs prefs.Preferences
	start time.Time
}

func (d *Dispatcher) begin(ctx context.Context, c Caller, op string) (*call, error) {
	return d.start(ctx, c, op, true)
}

// beginRead is begin for operations that must not write any region.
func (d *Dispatcher) beginRead(ctx context.Context, c Caller, op string) (*call, error) {
	return d.start(ctx, c, op, false)
}

func (d *Dispatcher) start(ctx context.Context, c Caller, op string, ensure bool) (*call, error) {
	if strings.TrimSpace(c.ID) == "" {
		return nil, errs.Validation(errs.CodeInvalidArgument, "caller id is required")
	}
	log := d.log.With(
		logx.String("req", uuid.NewString()),
		logx.String("participant", c.ID),
		logx.String("op", op),
	)
	if err := d.guard.Allow(c.ID); err != nil {
		log.Warn("command rate limited")
		return nil, err
	}
	var p prefs.Preferences
	if ensure {
		name := c.DisplayName
		if name == "" {
			name = c.ID
		}
		var err error
		p, err = d.prefs.Ensure(ctx, c.ID, name)
		if err != nil && !errs.IsKind(err, errs.KindPersistence) {
			return nil, err
		}
	} else {
		p = d.prefs.Lookup(ctx, c.ID)
	}
	log.Debug("command start")
	return &call{log: log, prefs: p, start: time.Now()}, nil
}

func (c *call) end(err error) {
	fields := []logx.Field{logx.Duration("took", time.Since(c.start))}
	switch {
	case err == nil:
		c.log.Info("command ok", fields...)
	case errs.Recoverable(err):
		c.log.Info("command rejected", append(fields, logx.String("code", errs.CodeOf(err)), logx.Err(err))...)
	default:
		c.log.Error("command failed", append(fields, logx.Err(err))...)
	}
}

func (c *call) participant(callerID string) titles.Participant {
	return titles.Participant{ID: callerID, Alias: c.prefs.DisplayAlias(callerID)}
}

func (d *Dispatcher) QueueAdd(ctx context.Context, c Caller, category, date, tm string) (res titles.Assignment, err error) {
	cl, err := d.begin(ctx, c, "queue.add")
	if err != nil {
		return res, err
	}
	defer func() { cl.end(err) }()
	return d.titles.Add(ctx, cl.participant(c.ID), category, date, tm)
}

func (d *Dispatcher) QueueRemove(ctx context.Context, c Caller, category, date string) (res titles.Removal, err error) {
	cl, err := d.begin(ctx, c, "queue.remove")
	if err != nil {
		return res, err
	}
	defer func() { cl.end(err) }()
	return d.titles.Remove(ctx, c.ID, category, date)
}

func (d *Dispatcher) QueueAdvance(ctx context.Context, c Caller, category string, count int) (res titles.Progress, err error) {
	cl, err := d.begin(ctx, c, "queue.next")
	if err != nil {
		return res, err
	}
	defer func() { cl.end(err) }()
	return d.titles.Advance(ctx, category, count)
}

func (d *Dispatcher) QueueRollback(ctx context.Context, c Caller, category string) (res titles.Progress, err error) {
	cl, err := d.begin(ctx, c, "queue.back")
	if err != nil {
		return res, err
	}
	defer func() { cl.end(err) }()
	return d.titles.Rollback(ctx, category)
}

func (d *Dispatcher) QueueList(ctx context.Context, c Caller, opts titles.ListOptions) (res []titles.QueueView, err error) {
	cl, err := d.beginRead(ctx, c, "queue.list")
	if err != nil {
		return nil, err
	}
	defer func() { cl.end(err) }()
	return d.titles.List(ctx, opts)
}

// DawnAdd registers for the Battle of Dawn; options containing "p" mark the
// sign-up primary.
func (d *Dispatcher) DawnAdd(ctx context.Context, c Caller, day, slot, class, options string) (res battle.Registration, err error) {
	cl, err := d.begin(ctx, c, "dawn.add")
	if err != nil {
		return res, err
	}
	defer func() { cl.end(err) }()
	return d.dawn.Add(ctx, c.ID, day, slot, class, battle.DawnPrimary(options))
}

func (d *Dispatcher) DawnRemove(ctx context.Context, c Caller, day, slot string) (res battle.Unregistration, err error) {
	cl, err := d.begin(ctx, c, "dawn.remove")
	if err != nil {
		return res, err
	}
	defer func() { cl.end(err) }()
	return d.dawn.Unregister(ctx, c.ID, day, slot)
}

func (d *Dispatcher) DawnList(ctx context.Context, c Caller, f battle.Filter) (res []battle.CellView, err error) {
	cl, err := d.beginRead(ctx, c, "dawn.list")
	if err != nil {
		return nil, err
	}
	defer func() { cl.end(err) }()
	return d.dawn.List(ctx, f)
}

// WonderAdd registers for the Wonder Contest; flag is "", "-s" or "-p".
func (d *Dispatcher) WonderAdd(ctx context.Context, c Caller, day, slot, flag string) (res battle.Registration, err error) {
	cl, err := d.begin(ctx, c, "wonder.add")
	if err != nil {
		return res, err
	}
	defer func() { cl.end(err) }()
	primary, err := battle.WonderPrimary(flag)
	if err != nil {
		return res, err
	}
	return d.wonder.Add(ctx, c.ID, day, slot, primary)
}

func (d *Dispatcher) WonderRemove(ctx context.Context, c Caller, day, slot string) (res battle.Unregistration, err error) {
	cl, err := d.begin(ctx, c, "wonder.remove")
	if err != nil {
		return res, err
	}
	defer func() { cl.end(err) }()
	return d.wonder.Unregister(ctx, c.ID, day, slot)
}

func (d *Dispatcher) WonderList(ctx context.Context, c Caller, f battle.Filter) (res []battle.CellView, err error) {
	cl, err := d.beginRead(ctx, c, "wonder.list")
	if err != nil {
		return nil, err
	}
	defer func() { cl.end(err) }()
	return d.wonder.List(ctx, f)
}

func (d *Dispatcher) SetAlias(ctx context.Context, c Caller, alias, timezone string) (res prefs.Preferences, err error) {
	cl, err := d.begin(ctx, c, "prefs.alias")
	if err != nil {
		return res, err
	}
	defer func() { cl.end(err) }()
	return d.prefs.SetAlias(ctx, c.ID, c.DisplayName, alias, timezone)
}

func (d *Dispatcher) SetTimezone(ctx context.Context, c Caller, timezone string) (res prefs.Preferences, err error) {
	cl, err := d.begin(ctx, c, "prefs.timezone")
	if err != nil {
		return res, err
	}
	defer func() { cl.end(err) }()
	return d.prefs.SetTimezone(ctx, c.ID, c.DisplayName, timezone)
}

func (d *Dispatcher) Preferences(ctx context.Context, c Caller) (res []prefs.Entry, err error) {
	cl, err := d.beginRead(ctx, c, "prefs.list")
	if err != nil {
		return nil, err
	}
	defer func() { cl.end(err) }()
	return d.prefs.All(ctx), nil
}

// Regions that Forget accepts, by short name.
var forgettable = map[string]string{
	"queues":            titles.Region,
	titles.Region:       titles.Region,
	"dawn":              battle.DawnRegion,
	battle.DawnRegion:   battle.DawnRegion,
	"wonder":            battle.WonderRegion,
	battle.WonderRegion: battle.WonderRegion,
	"prefs":             prefs.Region,
	prefs.Region:        prefs.Region,
}

// ForgetTargets lists the short names Forget accepts.
func ForgetTargets() []string { return []string{"queues", "dawn", "wonder", "prefs"} }

// Forget resets a region to its defaults.
func (d *Dispatcher) Forget(ctx context.Context, c Caller, target string) (region string, err error) {
	cl, err := d.begin(ctx, c, "forget")
	if err != nil {
		return "", err
	}
	defer func() { cl.end(err) }()
	region, ok := forgettable[strings.ToLower(strings.TrimSpace(target))]
	if !ok {
		return "", errs.Validation(errs.CodeInvalidArgument, "unknown region %q, use one of %v", target, ForgetTargets())
	}
	cl.log.Warn("region forgotten", logx.String("region", region))
	return region, d.st.Reset(ctx, region)
}
