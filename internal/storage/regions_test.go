package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wolfie/internal/errs"
	logx "wolfie/pkg/logx"
)

// flakyBackend wraps Memory and fails saves while failing is set.
type flakyBackend struct {
	*Memory
	mu      sync.Mutex
	failing bool
	saves   int
}

func (f *flakyBackend) Save(ctx context.Context, region string, doc []byte) error {
	f.mu.Lock()
	failing := f.failing
	f.saves++
	f.mu.Unlock()
	if failing {
		return errors.New("disk full")
	}
	return f.Memory.Save(ctx, region, doc)
}

func (f *flakyBackend) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestRegions_GetMissingKeyReturnsEmptyObject(t *testing.T) {
	r := NewRegions(NewMemory(), logx.Nop())
	got := r.Get(context.Background(), "title_queues", "sage")
	assert.JSONEq(t, `{}`, string(got))
}

func TestRegions_InitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	r := NewRegions(mem, logx.Nop())

	defaults := map[string]json.RawMessage{"d1": raw(`{"t1":{}}`)}
	require.NoError(t, r.Initialize(ctx, "dawn_battle", defaults))
	assert.True(t, r.Dirty("dawn_battle"))

	require.NoError(t, r.Update(ctx, "dawn_battle", "d1", raw(`{"t1":{"7":{"context":{"class":"Monk"}}}}`)))
	require.NoError(t, r.Initialize(ctx, "dawn_battle", defaults))

	got := r.Get(ctx, "dawn_battle", "d1")
	assert.JSONEq(t, `{"t1":{"7":{"context":{"class":"Monk"}}}}`, string(got))

	// Mutating the caller's defaults map must not leak into the store.
	defaults["d1"] = raw(`{"bogus":true}`)
	require.NoError(t, r.Reset(ctx, "dawn_battle"))
	assert.JSONEq(t, `{"t1":{}}`, string(r.Get(ctx, "dawn_battle", "d1")))
}

func TestRegions_UpdateWritesThrough(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	r := NewRegions(mem, logx.Nop())

	require.NoError(t, r.Update(ctx, "user_preferences", "42", raw(`{"name":"ann","alias":"ann","timezone":"UTC"}`)))
	assert.False(t, r.Dirty("user_preferences"))

	// A fresh store over the same backend sees the write.
	r2 := NewRegions(mem, logx.Nop())
	assert.JSONEq(t, `{"name":"ann","alias":"ann","timezone":"UTC"}`, string(r2.Get(ctx, "user_preferences", "42")))
}

func TestRegions_UpdateRejectsInvalidJSON(t *testing.T) {
	r := NewRegions(NewMemory(), logx.Nop())
	err := r.Update(context.Background(), "title_queues", "sage", raw(`{"entries":`))
	require.Error(t, err)
	assert.JSONEq(t, `{}`, string(r.Get(context.Background(), "title_queues", "sage")))
}

func TestRegions_PersistenceFailureKeepsMutation(t *testing.T) {
	ctx := context.Background()
	fb := &flakyBackend{Memory: NewMemory()}
	r := NewRegions(fb, logx.Nop())

	fb.setFailing(true)
	err := r.Update(ctx, "title_queues", "sage", raw(`{"entries":[],"cursor":1}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrPersistence))
	assert.Equal(t, errs.KindPersistence, errs.KindOf(err))

	assert.True(t, r.Dirty("title_queues"))
	assert.Equal(t, []string{"title_queues"}, r.DirtyNames())
	assert.JSONEq(t, `{"entries":[],"cursor":1}`, string(r.Get(ctx, "title_queues", "sage")))

	fb.setFailing(false)
	require.NoError(t, r.Save(ctx, "title_queues"))
	assert.False(t, r.Dirty("title_queues"))
	assert.Empty(t, r.DirtyNames())

	b, err := fb.Memory.Load(ctx, "title_queues")
	require.NoError(t, err)
	assert.JSONEq(t, `{"sage":{"entries":[],"cursor":1}}`, string(b))
}

func TestRegions_CorruptDocumentStartsEmpty(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.Save(ctx, "wonder_battle", []byte(`not json`)))

	r := NewRegions(mem, logx.Nop())
	assert.Empty(t, r.GetAll(ctx, "wonder_battle"))

	require.NoError(t, r.Initialize(ctx, "wonder_battle", map[string]json.RawMessage{"d1": raw(`{}`)}))
	assert.Len(t, r.GetAll(ctx, "wonder_battle"), 1)
}

func TestRegions_GetAllIsSnapshot(t *testing.T) {
	ctx := context.Background()
	r := NewRegions(NewMemory(), logx.Nop())
	require.NoError(t, r.Update(ctx, "title_queues", "sage", raw(`{"cursor":0}`)))

	snap := r.GetAll(ctx, "title_queues")
	snap["sage"][2] = 'X'
	snap["elder"] = raw(`{}`)

	assert.JSONEq(t, `{"cursor":0}`, string(r.Get(ctx, "title_queues", "sage")))
	assert.Len(t, r.GetAll(ctx, "title_queues"), 1)
}

func TestRegions_Names(t *testing.T) {
	ctx := context.Background()
	r := NewRegions(NewMemory(), logx.Nop())
	_ = r.Get(ctx, "wonder_battle", "d1")
	_ = r.Get(ctx, "dawn_battle", "d1")
	assert.Equal(t, []string{"dawn_battle", "wonder_battle"}, r.Names())
}
