package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"wolfie/internal/errs"
	logx "wolfie/pkg/logx"
)

var emptyValue = json.RawMessage(`{}`)

// Regions is the Region Store: named documents loaded lazily from a Backend,
// each a mapping of key -> JSON value.
//
// Regions is not safe for concurrent use. state.Coordinator serializes access.
type Regions struct {
	backend Backend
	log     logx.Logger

	regions map[string]*region
}

type region struct {
	content  map[string]json.RawMessage
	defaults map[string]json.RawMessage
	dirty    bool
}

func NewRegions(backend Backend, log logx.Logger) *Regions {
	if log.IsZero() {
		log = logx.Nop()
	}
	if backend == nil {
		backend = NewMemory()
	}
	return &Regions{backend: backend, log: log, regions: map[string]*region{}}
}

// Load returns a snapshot of region name, reading it from the backend on first use.
// A missing or unreadable document is treated as an empty region.
func (r *Regions) Load(ctx context.Context, name string) map[string]json.RawMessage {
	return cloneContent(r.region(ctx, name).content)
}

func (r *Regions) region(ctx context.Context, name string) *region {
	if reg, ok := r.regions[name]; ok {
		return reg
	}
	reg := &region{content: map[string]json.RawMessage{}}
	r.regions[name] = reg

	b, err := r.backend.Load(ctx, name)
	switch {
	case errors.Is(err, ErrNoDocument):
		r.log.Debug("region has no document yet", logx.String("region", name))
		return reg
	case err != nil:
		r.log.Warn("region load failed; starting empty", logx.String("region", name), logx.Err(err))
		return reg
	}

	content, err := decodeDocument(b)
	if err != nil {
		r.log.Warn("region document unreadable; starting empty", logx.String("region", name), logx.Err(err))
		return reg
	}
	reg.content = content
	r.log.Debug("region loaded", logx.String("region", name), logx.Int("keys", len(content)))
	return reg
}

// Initialize records defaults for name and applies them if the region is empty.
// It never overwrites populated content.
func (r *Regions) Initialize(ctx context.Context, name string, defaults map[string]json.RawMessage) error {
	if err := ValidRegionName(name); err != nil {
		return err
	}
	for k, v := range defaults {
		if !json.Valid(v) {
			return fmt.Errorf("region %s: default for key %q is not valid JSON", name, k)
		}
	}
	reg := r.region(ctx, name)
	reg.defaults = cloneContent(defaults)
	if len(reg.content) == 0 && len(defaults) > 0 {
		reg.content = cloneContent(defaults)
		reg.dirty = true
		r.log.Debug("region initialized with defaults", logx.String("region", name), logx.Int("keys", len(defaults)))
	}
	return nil
}

// Get returns the value stored at key, or {} when absent.
func (r *Regions) Get(ctx context.Context, name, key string) json.RawMessage {
	v, ok := r.region(ctx, name).content[key]
	if !ok {
		return cloneRaw(emptyValue)
	}
	return cloneRaw(v)
}

// GetAll returns a copy of the whole region.
func (r *Regions) GetAll(ctx context.Context, name string) map[string]json.RawMessage {
	return r.Load(ctx, name)
}

// Update replaces key, marks the region dirty and persists it (write-through).
// When the write fails the new value stays in memory and the region stays dirty.
func (r *Regions) Update(ctx context.Context, name, key string, value json.RawMessage) error {
	if err := r.Put(ctx, name, key, value); err != nil {
		return err
	}
	return r.Save(ctx, name)
}

// Put replaces key in memory and marks the region dirty without persisting.
func (r *Regions) Put(ctx context.Context, name, key string, value json.RawMessage) error {
	if err := ValidRegionName(name); err != nil {
		return err
	}
	if !json.Valid(value) {
		return fmt.Errorf("region %s: value for key %q is not valid JSON", name, key)
	}
	reg := r.region(ctx, name)
	reg.content[key] = cloneRaw(value)
	reg.dirty = true
	return nil
}

// Save writes the region document and clears its dirty flag.
func (r *Regions) Save(ctx context.Context, name string) error {
	reg := r.region(ctx, name)
	doc, err := encodeDocument(reg.content)
	if err != nil {
		return fmt.Errorf("encode region %s: %w", name, err)
	}
	if err := r.backend.Save(ctx, name, doc); err != nil {
		r.log.Error("region save failed", logx.String("region", name), logx.Err(err))
		return errs.Persistence(name, err)
	}
	reg.dirty = false
	return nil
}

// Reset restores the region to its Initialize-time defaults and persists it.
func (r *Regions) Reset(ctx context.Context, name string) error {
	reg := r.region(ctx, name)
	reg.content = cloneContent(reg.defaults)
	reg.dirty = true
	r.log.Info("region reset", logx.String("region", name))
	return r.Save(ctx, name)
}

// Dirty reports whether name has unsaved changes.
func (r *Regions) Dirty(name string) bool {
	reg, ok := r.regions[name]
	return ok && reg.dirty
}

// DirtyNames lists regions with unsaved changes, sorted.
func (r *Regions) DirtyNames() []string {
	out := make([]string, 0, len(r.regions))
	for name, reg := range r.regions {
		if reg.dirty {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Names lists every region touched in this process, sorted.
func (r *Regions) Names() []string {
	out := make([]string, 0, len(r.regions))
	for name := range r.regions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Regions) Close() error { return r.backend.Close() }

func decodeDocument(b []byte) (map[string]json.RawMessage, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return map[string]json.RawMessage{}, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]json.RawMessage{}
	}
	return m, nil
}

func encodeDocument(content map[string]json.RawMessage) ([]byte, error) {
	if content == nil {
		content = map[string]json.RawMessage{}
	}
	return json.MarshalIndent(content, "", "  ")
}

func cloneRaw(v json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), v...)
}

func cloneContent(in map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = cloneRaw(v)
	}
	return out
}
