// Package state serializes every read and write of shared scheduling state.
//
// A Coordinator owns a storage.Regions and a single mutex. All regions share
// the lock; the critical section covers the in-memory change and the
// synchronous backend write, so two callers can never interleave a
// read-compute-write on the same value.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"wolfie/internal/errs"
	"wolfie/internal/eventbus"
	"wolfie/internal/storage"
	logx "wolfie/pkg/logx"
)

type Coordinator struct {
	mu      sync.Mutex
	regions *storage.Regions
	bus     eventbus.Bus
	log     logx.Logger
}

type Option func(*Coordinator)

func WithBus(b eventbus.Bus) Option {
	return func(c *Coordinator) {
		if b != nil {
			c.bus = b
		}
	}
}

func WithLogger(l logx.Logger) Option {
	return func(c *Coordinator) {
		if !l.IsZero() {
			c.log = l
		}
	}
}

func New(regions *storage.Regions, opts ...Option) *Coordinator {
	c := &Coordinator{
		regions: regions,
		bus:     eventbus.Nop(),
		log:     logx.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With(logx.String("comp", "state"))
	return c
}

func (c *Coordinator) Initialize(ctx context.Context, region string, defaults map[string]json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regions.Initialize(ctx, region, defaults)
}

func (c *Coordinator) Get(ctx context.Context, region, key string) json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regions.Get(ctx, region, key)
}

func (c *Coordinator) GetAll(ctx context.Context, region string) map[string]json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regions.GetAll(ctx, region)
}

// Update replaces one key and persists the region.
func (c *Coordinator) Update(ctx context.Context, region, key string, value json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.update(ctx, region, key, value)
}

func (c *Coordinator) update(ctx context.Context, region, key string, value json.RawMessage) error {
	err := c.regions.Update(ctx, region, key, value)
	if err != nil && !errs.IsKind(err, errs.KindPersistence) {
		return err
	}
	c.bus.Publish(eventbus.Event{Type: eventbus.RegionUpdated, Data: eventbus.RegionData{Region: region, Key: key}})
	return err
}

// Mutate runs fn on the current value of region/key with the lock held and
// writes back whatever fn returns. When fn fails nothing is written.
func (c *Coordinator) Mutate(ctx context.Context, region, key string, fn func(cur json.RawMessage) (json.RawMessage, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	next, err := fn(c.regions.Get(ctx, region, key))
	if err != nil {
		return err
	}
	return c.update(ctx, region, key, next)
}

// MutateRegion is Mutate over a whole region: fn sees every key and returns
// the keys to replace. All replacements are persisted with one write.
func (c *Coordinator) MutateRegion(ctx context.Context, region string, fn func(content map[string]json.RawMessage) (map[string]json.RawMessage, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	changed, err := fn(c.regions.GetAll(ctx, region))
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		return nil
	}
	for key, value := range changed {
		if !json.Valid(value) {
			return fmt.Errorf("region %s: value for key %q is not valid JSON", region, key)
		}
	}
	for key, value := range changed {
		if err := c.regions.Put(ctx, region, key, value); err != nil {
			return err
		}
	}
	err = c.regions.Save(ctx, region)
	if err != nil && !errs.IsKind(err, errs.KindPersistence) {
		return err
	}
	c.bus.Publish(eventbus.Event{Type: eventbus.RegionUpdated, Data: eventbus.RegionData{Region: region}})
	return err
}

// View runs fn with the lock held and a snapshot of the whole region.
func (c *Coordinator) View(ctx context.Context, region string, fn func(content map[string]json.RawMessage) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.regions.GetAll(ctx, region))
}

// Commit persists regions. With no names every dirty region is flushed; named
// regions are written regardless of their dirty flag. All regions are
// attempted; the first error is returned.
func (c *Coordinator) Commit(ctx context.Context, regions ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(regions) == 0 {
		regions = c.regions.DirtyNames()
	}
	var first error
	for _, name := range regions {
		if err := c.regions.Save(ctx, name); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		c.bus.Publish(eventbus.Event{Type: eventbus.RegionCommitted, Data: eventbus.RegionData{Region: name}})
	}
	if len(regions) > 0 {
		c.log.Debug("commit", logx.Strings("regions", regions), logx.Bool("ok", first == nil))
	}
	return first
}

// Reset restores a region to its defaults and persists it.
func (c *Coordinator) Reset(ctx context.Context, region string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.regions.Reset(ctx, region)
	if err != nil && !errs.IsKind(err, errs.KindPersistence) {
		return err
	}
	c.bus.Publish(eventbus.Event{Type: eventbus.RegionReset, Data: eventbus.RegionData{Region: region}})
	return err
}

// Dirty lists regions with unsaved changes.
func (c *Coordinator) Dirty() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regions.DirtyNames()
}

func (c *Coordinator) Bus() eventbus.Bus { return c.bus }

func (c *Coordinator) Close(ctx context.Context) error {
	err := c.Commit(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if cerr := c.regions.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Load decodes region/key into T. A missing key decodes from {}.
func Load[T any](ctx context.Context, c *Coordinator, region, key string) (T, error) {
	var v T
	raw := c.Get(ctx, region, key)
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s/%s: %w", region, key, err)
	}
	return v, nil
}

// Modify is Mutate with typed decode and encode of region/key.
func Modify[T any](ctx context.Context, c *Coordinator, region, key string, fn func(v *T) error) error {
	return c.Mutate(ctx, region, key, func(cur json.RawMessage) (json.RawMessage, error) {
		var v T
		if err := json.Unmarshal(cur, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", region, key, err)
		}
		if err := fn(&v); err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
}
