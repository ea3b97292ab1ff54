package battle

import (
	"context"
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wolfie/internal/errs"
	"wolfie/internal/prefs"
	"wolfie/internal/state"
	"wolfie/internal/storage"
	logx "wolfie/pkg/logx"
)

// Wednesday.
var testNow = time.Date(2025, time.February, 19, 12, 0, 0, 0, time.UTC)

func newCoordinator(t *testing.T) (*state.Coordinator, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	return state.New(storage.NewRegions(mem, logx.Nop())), mem
}

func newDawn(t *testing.T, lookup prefs.Lookup, opts ...Option) (*Dawn, *storage.Memory) {
	t.Helper()
	st, mem := newCoordinator(t)
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	d := NewDawn(st, lookup, logx.Nop(), opts...)
	require.NoError(t, d.Initialize(context.Background()))
	return d, mem
}

func newWonder(t *testing.T) *Wonder {
	t.Helper()
	st, _ := newCoordinator(t)
	w := NewWonder(st, nil, logx.Nop(), WithClock(func() time.Time { return testNow }))
	require.NoError(t, w.Initialize(context.Background()))
	return w
}

func members(t *testing.T, r *Registry, day, slot string) map[string]MemberView {
	t.Helper()
	cells, err := r.List(context.Background(), Filter{All: true, Day: day, Slot: slot})
	require.NoError(t, err)
	require.Len(t, cells, 1)
	out := map[string]MemberView{}
	for _, m := range cells[0].Members {
		out[m.ParticipantID] = m
	}
	return out
}

func TestRegister_CapacityRejectsWithoutMutation(t *testing.T) {
	ctx := context.Background()
	w := newWonder(t)
	for i := 0; i < DefaultCapacity; i++ {
		_, err := w.Add(ctx, fmt.Sprintf("u%02d", i), "d1", "t1", false)
		require.NoError(t, err)
	}

	_, err := w.Add(ctx, "late", "d1", "t1", false)
	require.ErrorIs(t, err, errs.ErrCapacityExceeded)
	assert.Len(t, members(t, w.Registry, "d1", "t1"), DefaultCapacity)

	// Updating an existing record in a full cell still works.
	reg, err := w.Add(ctx, "u00", "d1", "t1", true)
	require.NoError(t, err)
	assert.True(t, reg.Updated)
}

func TestRegister_CapacityRejectionKeepsOtherPrimary(t *testing.T) {
	ctx := context.Background()
	w := newWonder(t)
	w.capacity = 1

	_, err := w.Add(ctx, "me", "d1", "t1", true)
	require.NoError(t, err)
	_, err = w.Add(ctx, "other", "d2", "t2", false)
	require.NoError(t, err)

	_, err = w.Add(ctx, "me", "d2", "t2", true)
	require.ErrorIs(t, err, errs.ErrCapacityExceeded)
	assert.True(t, members(t, w.Registry, "d1", "t1")["me"].Primary)
}

func TestRegister_PrimaryIsExclusive(t *testing.T) {
	ctx := context.Background()
	d, _ := newDawn(t, nil)

	_, err := d.Add(ctx, "42", "d1", "t1", "monk", true)
	require.NoError(t, err)

	reg, err := d.Add(ctx, "42", "d2", "t2", "ranger", true)
	require.NoError(t, err)
	assert.Equal(t, []CellRef{{Day: "d1", Slot: "t1"}}, reg.ClearedPrimary)

	assert.False(t, members(t, d.Registry, "d1", "t1")["42"].Primary)
	assert.True(t, members(t, d.Registry, "d2", "t2")["42"].Primary)

	cells, err := d.List(ctx, Filter{})
	require.NoError(t, err)
	primaries := 0
	for _, c := range cells {
		for _, m := range c.Members {
			if m.ParticipantID == "42" && m.Primary {
				primaries++
			}
		}
	}
	assert.Equal(t, 1, primaries)
}

func TestRegister_MergesExistingRecord(t *testing.T) {
	ctx := context.Background()
	d, mem := newDawn(t, nil)

	_, err := d.Add(ctx, "42", "D1", "T1", "m", false)
	require.NoError(t, err)
	reg, err := d.Register(ctx, "42", "d1", "t1", map[string]any{"power": "12M"})
	require.NoError(t, err)
	assert.True(t, reg.Updated)

	m := members(t, d.Registry, "d1", "t1")["42"]
	assert.Equal(t, "Monk", m.Role)
	assert.Equal(t, "12M", m.Context["power"])

	doc, err := mem.Load(ctx, DawnRegion)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"d1": {"t1": {"42": {"context": {"role": "Monk", "primary": false, "power": "12M"}}}, "t2": {}, "t3": {}},
		"d2": {"t1": {}, "t2": {}, "t3": {}}
	}`, string(doc))
}

func TestRegister_InvalidCell(t *testing.T) {
	ctx := context.Background()
	d, _ := newDawn(t, nil)

	_, err := d.Add(ctx, "42", "d3", "t1", "monk", false)
	require.ErrorIs(t, err, errs.ErrInvalidSlot)
	_, err = d.Add(ctx, "42", "d1", "t9", "monk", false)
	require.ErrorIs(t, err, errs.ErrInvalidSlot)
	_, err = d.Add(ctx, "42", "d1", "t1", "bard", false)
	require.ErrorIs(t, err, errs.ErrInvalidClass)

	cells, err := d.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, cells)
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()
	w := newWonder(t)

	res, err := w.Unregister(ctx, "1", "d1", "t1")
	require.NoError(t, err)
	assert.False(t, res.Removed)

	_, err = w.Add(ctx, "1", "d1", "t1", false)
	require.NoError(t, err)
	res, err = w.Unregister(ctx, "1", "D1", "t1")
	require.NoError(t, err)
	assert.True(t, res.Removed)
	assert.Empty(t, members(t, w.Registry, "d1", "t1"))

	_, err = w.Unregister(ctx, "1", "x", "t1")
	require.ErrorIs(t, err, errs.ErrInvalidSlot)
}

func TestWonder_BasicFlow(t *testing.T) {
	ctx := context.Background()
	w := newWonder(t)
	for _, who := range []string{"user1", "user2"} {
		for _, day := range Days {
			for _, s := range Slots {
				_, err := w.Add(ctx, who, day, s.Name, false)
				require.NoError(t, err)
			}
		}
	}
	for _, day := range Days {
		for _, s := range Slots {
			res, err := w.Unregister(ctx, "user1", day, s.Name)
			require.NoError(t, err)
			assert.True(t, res.Removed)
		}
	}

	cells, err := w.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, cells, len(Days)*len(Slots))
	for _, c := range cells {
		require.Len(t, c.Members, 1)
		assert.Equal(t, "user2", c.Members[0].ParticipantID)
	}
}

func TestList_FiltersAndLocalTime(t *testing.T) {
	ctx := context.Background()
	lookup := prefs.Static{"jp": {Alias: "Kaz", Timezone: "Asia/Tokyo"}}
	d, _ := newDawn(t, lookup)

	_, err := d.Add(ctx, "jp", "d1", "t1", "sage", true)
	require.NoError(t, err)

	all, err := d.List(ctx, Filter{All: true})
	require.NoError(t, err)
	assert.Len(t, all, 6)

	cells, err := d.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, cells, 1)
	c := cells[0]
	assert.Equal(t, time.Date(2025, 2, 22, 1, 0, 0, 0, time.UTC), c.At)
	require.Len(t, c.Members, 1)
	m := c.Members[0]
	assert.Equal(t, "Kaz", m.Alias)
	assert.Equal(t, "Sage", m.Role)
	assert.Equal(t, 10, m.Local.Hour())
	assert.Equal(t, "Asia/Tokyo", m.Timezone)

	byDay, err := d.List(ctx, Filter{All: true, Day: "d2"})
	require.NoError(t, err)
	assert.Len(t, byDay, 3)

	_, err = d.List(ctx, Filter{Slot: "t7"})
	require.ErrorIs(t, err, errs.ErrInvalidSlot)
}

func TestResolveClass(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"cs":           "Sage",
		"CourtSage":    "Sage",
		"SW":           "ShadowWalker",
		"m":            "Monk",
		"mag":          "Magistrate",
		"cent":         "Centurion",
		"range":        "Ranger",
		"guard":        "Guardian",
		"zealot":       "Zealot",
		"shadowwalker": "ShadowWalker",
	}
	for in, want := range cases {
		got, err := ResolveClass(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ResolveClass("wizard")
	require.ErrorIs(t, err, errs.ErrInvalidClass)
}

func TestFlags(t *testing.T) {
	t.Parallel()
	assert.True(t, DawnPrimary("-p"))
	assert.True(t, DawnPrimary("p"))
	assert.False(t, DawnPrimary(""))
	assert.False(t, DawnPrimary("-s"))

	p, err := WonderPrimary("-p")
	require.NoError(t, err)
	assert.True(t, p)
	p, err = WonderPrimary("")
	require.NoError(t, err)
	assert.False(t, p)
	_, err = WonderPrimary("--primary")
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestWeekendDates(t *testing.T) {
	t.Parallel()
	cases := []struct {
		now time.Time
		sat time.Time
	}{
		{time.Date(2025, 2, 19, 12, 0, 0, 0, time.UTC), time.Date(2025, 2, 22, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 2, 22, 23, 0, 0, 0, time.UTC), time.Date(2025, 2, 22, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 2, 23, 5, 0, 0, 0, time.UTC), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		sat, sun := WeekendDates(tc.now)
		assert.Equal(t, tc.sat, sat)
		assert.Equal(t, tc.sat.AddDate(0, 0, 1), sun)
	}
}
