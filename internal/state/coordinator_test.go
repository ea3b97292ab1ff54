package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wolfie/internal/errs"
	"wolfie/internal/eventbus"
	"wolfie/internal/storage"
	logx "wolfie/pkg/logx"
)

type counter struct {
	N int `json:"n"`
}

type failingBackend struct {
	*storage.Memory
	mu   sync.Mutex
	fail bool
}

func (f *failingBackend) Save(ctx context.Context, region string, doc []byte) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("write refused")
	}
	return f.Memory.Save(ctx, region, doc)
}

func newTestCoordinator(t *testing.T, b storage.Backend, opts ...Option) *Coordinator {
	t.Helper()
	if b == nil {
		b = storage.NewMemory()
	}
	return New(storage.NewRegions(b, logx.Nop()), opts...)
}

func TestCoordinator_MutateConcurrent(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t, nil)

	const workers, iters = 16, 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				err := Modify(ctx, c, "counters", "hits", func(v *counter) error {
					v.N++
					return nil
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got, err := Load[counter](ctx, c, "counters", "hits")
	require.NoError(t, err)
	assert.Equal(t, workers*iters, got.N)
}

func TestCoordinator_MutateRejectionWritesNothing(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	c := newTestCoordinator(t, mem)

	require.NoError(t, c.Update(ctx, "counters", "hits", json.RawMessage(`{"n":3}`)))

	rejected := errs.Conflict(errs.CodeSlotTaken, "taken")
	err := Modify(ctx, c, "counters", "hits", func(v *counter) error {
		v.N = 99
		return rejected
	})
	require.ErrorIs(t, err, errs.ErrSlotTaken)

	got, err := Load[counter](ctx, c, "counters", "hits")
	require.NoError(t, err)
	assert.Equal(t, 3, got.N)
	assert.Empty(t, c.Dirty())
}

func TestCoordinator_CommitRetriesAfterPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	fb := &failingBackend{Memory: storage.NewMemory(), fail: true}
	c := newTestCoordinator(t, fb)

	err := c.Update(ctx, "counters", "hits", json.RawMessage(`{"n":1}`))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindPersistence))
	assert.Equal(t, []string{"counters"}, c.Dirty())

	// The mutation is visible even though it is not durable yet.
	got, err := Load[counter](ctx, c, "counters", "hits")
	require.NoError(t, err)
	assert.Equal(t, 1, got.N)

	fb.mu.Lock()
	fb.fail = false
	fb.mu.Unlock()

	require.NoError(t, c.Commit(ctx))
	assert.Empty(t, c.Dirty())

	doc, err := fb.Memory.Load(ctx, "counters")
	require.NoError(t, err)
	assert.JSONEq(t, `{"hits":{"n":1}}`, string(doc))
}

func TestCoordinator_CommitNamedRegionForcesWrite(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	c := newTestCoordinator(t, mem)

	_ = c.Get(ctx, "empty_region", "x")
	require.NoError(t, c.Commit(ctx, "empty_region"))

	doc, err := mem.Load(ctx, "empty_region")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(doc))
}

func TestCoordinator_InitializeAndReset(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16, "region.")
	defer unsub()

	c := newTestCoordinator(t, nil, WithBus(bus))
	defaults := map[string]json.RawMessage{"hits": json.RawMessage(`{"n":0}`)}
	require.NoError(t, c.Initialize(ctx, "counters", defaults))
	require.NoError(t, c.Initialize(ctx, "counters", defaults))

	require.NoError(t, Modify(ctx, c, "counters", "hits", func(v *counter) error { v.N = 5; return nil }))
	require.NoError(t, c.Reset(ctx, "counters"))

	got, err := Load[counter](ctx, c, "counters", "hits")
	require.NoError(t, err)
	assert.Equal(t, 0, got.N)

	var types []string
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	assert.Equal(t, []string{eventbus.RegionUpdated, eventbus.RegionReset}, types)
}

func TestCoordinator_MutateHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newTestCoordinator(t, nil)

	called := false
	err := c.Mutate(ctx, "counters", "hits", func(cur json.RawMessage) (json.RawMessage, error) {
		called = true
		return cur, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCoordinator_ViewSeesWholeRegion(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t, nil)
	require.NoError(t, c.Update(ctx, "counters", "a", json.RawMessage(`{"n":1}`)))
	require.NoError(t, c.Update(ctx, "counters", "b", json.RawMessage(`{"n":2}`)))

	var keys int
	require.NoError(t, c.View(ctx, "counters", func(content map[string]json.RawMessage) error {
		keys = len(content)
		return nil
	}))
	assert.Equal(t, 2, keys)
}

func TestCoordinator_MutateRegionWritesOnce(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	c := newTestCoordinator(t, mem)

	err := c.MutateRegion(ctx, "grid", func(content map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		assert.Empty(t, content)
		return map[string]json.RawMessage{
			"d1": json.RawMessage(`{"t1":{}}`),
			"d2": json.RawMessage(`{"t1":{}}`),
		}, nil
	})
	require.NoError(t, err)

	doc, err := mem.Load(ctx, "grid")
	require.NoError(t, err)
	assert.JSONEq(t, `{"d1":{"t1":{}},"d2":{"t1":{}}}`, string(doc))

	err = c.MutateRegion(ctx, "grid", func(content map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		return map[string]json.RawMessage{"d1": json.RawMessage(`{`)}, nil
	})
	require.Error(t, err)
	assert.JSONEq(t, `{"t1":{}}`, string(c.Get(ctx, "grid", "d1")))
}
