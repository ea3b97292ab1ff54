package prefs

import (
	"context"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wolfie/internal/errs"
	"wolfie/internal/state"
	"wolfie/internal/storage"
	logx "wolfie/pkg/logx"
)

func newService(t *testing.T) *Service {
	t.Helper()
	st := state.New(storage.NewRegions(storage.NewMemory(), logx.Nop()))
	return New(st, logx.Nop())
}

func TestEnsureCreatesDefaultsOnce(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	p, err := s.Ensure(ctx, "42", "ann")
	require.NoError(t, err)
	assert.Equal(t, Preferences{Name: "ann", Alias: "ann", Timezone: "UTC"}, p)

	_, err = s.SetAlias(ctx, "42", "ann", "Annie", "")
	require.NoError(t, err)

	p, err = s.Ensure(ctx, "42", "ann-renamed")
	require.NoError(t, err)
	assert.Equal(t, "Annie", p.Alias)
}

func TestSetAliasWithTimezone(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	p, err := s.SetAlias(ctx, "7", "bob", "Bobby", "Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, "Bobby", p.Alias)
	assert.Equal(t, "Asia/Tokyo", p.Timezone)
	assert.Equal(t, "Asia/Tokyo", s.Lookup(ctx, "7").Location().String())

	_, err = s.SetAlias(ctx, "7", "bob", "Bobby", "Nowhere/Land")
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = s.SetAlias(ctx, "7", "bob", "  ", "")
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	// Failed calls leave the stored value alone.
	assert.Equal(t, "Asia/Tokyo", s.Lookup(ctx, "7").Timezone)
}

func TestSetTimezone(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	p, err := s.SetTimezone(ctx, "9", "cat", "Europe/Berlin")
	require.NoError(t, err)
	assert.Equal(t, Preferences{Name: "cat", Alias: "cat", Timezone: "Europe/Berlin"}, p)

	_, err = s.SetTimezone(ctx, "9", "cat", "")
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = s.SetTimezone(ctx, "9", "cat", "Mars/Base")
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestLookupUnknownIsUTC(t *testing.T) {
	s := newService(t)
	p := s.Lookup(context.Background(), "nobody")
	assert.True(t, p.IsZero())
	assert.Equal(t, "UTC", p.Location().String())
	assert.Equal(t, "nobody", p.DisplayAlias("nobody"))
}

func TestAllIsSortedByID(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	for _, id := range []string{"3", "1", "2"} {
		_, err := s.Ensure(ctx, id, "user"+id)
		require.NoError(t, err)
	}
	all := s.All(ctx)
	require.Len(t, all, 3)
	assert.Equal(t, "1", all[0].ID)
	assert.Equal(t, "user3", all[2].Alias)
}
