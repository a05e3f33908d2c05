// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package addrspace

import (
	"sort"
	"sync"
	"time"

	"github.com/opcdaserver/core/internal/opcerrors"
	"github.com/opcdaserver/core/internal/quality"
	"github.com/opcdaserver/core/internal/variant"
)

// Subscriber is notified when a Tag's value is written. Group items
// implement this to set their per-subscription dirty flag, sampled by the
// owning group's update timer. A Tag keeps its subscribers in a set keyed
// by the Subscriber value itself, so implementations must be comparable
// (typically a pointer type).
type Subscriber interface {
	MarkDirty()
}

// Tag is a named leaf holding a value, quality, timestamp, and a small
// property catalogue. Tag carries its own mutex so device writers and
// synchronous client reads never need to take the address-space lock.
type Tag struct {
	mu sync.Mutex

	path         string
	serverHandle uint64

	canonicalType variant.Kind
	value         variant.Value
	quality       quality.Quality
	timestamp     time.Time
	writable      bool

	// Optional descriptive properties, set at construction or via
	// SetProperty; mandatory properties are computed on read from the
	// fields above rather than stored redundantly.
	extra map[PropertyID]variant.Value

	subscribers map[Subscriber]struct{}
}

func newTag(path string, handle uint64, canonicalType variant.Kind) *Tag {
	return &Tag{
		path:          path,
		serverHandle:  handle,
		canonicalType: canonicalType,
		value:         variant.Value{},
		quality:       quality.Bad,
		timestamp:     time.Now().UTC(),
		writable:      false,
		extra:         make(map[PropertyID]variant.Value),
		subscribers:   make(map[Subscriber]struct{}),
	}
}

// Path returns the tag's fully-qualified dotted path.
func (t *Tag) Path() string { return t.path }

// ServerHandle returns the tag's globally-unique opaque handle.
func (t *Tag) ServerHandle() uint64 { return t.serverHandle }

// Read returns the current value, quality, and timestamp.
func (t *Tag) Read() (variant.Value, quality.Quality, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.quality, t.timestamp
}

// CanonicalType returns the tag's native value type.
func (t *Tag) CanonicalType() variant.Kind {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canonicalType
}

// SetCanonicalType changes the native value type of the tag.
func (t *Tag) SetCanonicalType(k variant.Kind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.canonicalType = k
}

// Writable reports whether client writes are currently accepted.
func (t *Tag) Writable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writable
}

// SetWritable toggles whether client writes are accepted.
func (t *Tag) SetWritable(w bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writable = w
}

// Write coerces value to the tag's canonical type and, on success, updates
// value/quality/timestamp atomically and notifies subscribers. When q is
// nil, quality defaults to GOOD, matching a successful device write.
// Subscribers are notified outside the tag lock.
func (t *Tag) Write(value variant.Value, q *quality.Quality, ts time.Time) error {
	t.mu.Lock()
	coerced, err := variant.Coerce(value, t.canonicalType)
	if err != nil {
		t.mu.Unlock()
		return opcerrors.ErrBadType
	}

	t.value = coerced
	if q != nil {
		t.quality = *q
	} else {
		t.quality = quality.Good
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	t.timestamp = ts

	subs := make([]Subscriber, 0, len(t.subscribers))
	for s := range t.subscribers {
		subs = append(subs, s)
	}
	t.mu.Unlock()

	for _, s := range subs {
		s.MarkDirty()
	}
	return nil
}

// SetQuality overrides the sample quality without touching the value,
// stamping a fresh timestamp and notifying subscribers.
func (t *Tag) SetQuality(q quality.Quality) {
	t.mu.Lock()
	t.quality = q
	t.timestamp = time.Now().UTC()
	subs := make([]Subscriber, 0, len(t.subscribers))
	for s := range t.subscribers {
		subs = append(subs, s)
	}
	t.mu.Unlock()

	for _, s := range subs {
		s.MarkDirty()
	}
}

// Subscribe registers s to be notified (via MarkDirty) on every successful
// write. The returned function unsubscribes s; callers must call it exactly
// once when the subscription ends.
func (t *Tag) Subscribe(s Subscriber) (unsubscribe func()) {
	t.mu.Lock()
	t.subscribers[s] = struct{}{}
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.subscribers, s)
		t.mu.Unlock()
	}
}

// AvailableProperties returns every property id populated on this tag,
// mandatory ones first, in a stable order.
func (t *Tag) AvailableProperties() []PropertyID {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]PropertyID, 0, len(mandatoryProperties)+len(t.extra))
	ids = append(ids, mandatoryProperties[:]...)
	extras := make([]PropertyID, 0, len(t.extra))
	for id := range t.extra {
		extras = append(extras, id)
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i] < extras[j] })
	return append(ids, extras...)
}

// IsValidProperty reports whether id is available on this tag.
func (t *Tag) IsValidProperty(id PropertyID) bool {
	for _, m := range mandatoryProperties {
		if m == id {
			return true
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.extra[id]
	return ok
}

// GetProperty returns the value of property id, or ErrInvalidPID if id is
// not available on this tag.
func (t *Tag) GetProperty(id PropertyID) (variant.Value, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch id {
	case PropCanonicalType:
		return variant.Int32(int32(t.canonicalType)), nil
	case PropValue:
		return t.value, nil
	case PropQuality:
		return variant.Int32(int32(t.quality)), nil
	case PropTimestamp:
		return variant.DateTime(t.timestamp), nil
	case PropAccessRights:
		rights := int32(1) // read
		if t.writable {
			rights |= 2 // write
		}
		return variant.Int32(rights), nil
	case PropScanRate:
		if v, ok := t.extra[PropScanRate]; ok {
			return v, nil
		}
		return variant.Float32(0), nil
	}

	if v, ok := t.extra[id]; ok {
		return v, nil
	}
	return variant.Value{}, opcerrors.ErrInvalidPID
}

// SetProperty sets a descriptive (non-mandatory) property value, e.g.
// description, EU units, EU/range bounds.
func (t *Tag) SetProperty(id PropertyID, v variant.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.extra[id] = v
}

// EURange returns the configured high/low engineering-unit bounds used by
// the analog deadband test. Missing bounds read as zero, degenerating the
// deadband test to strict inequality.
func (t *Tag) EURange() (low, high float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	low = floatOf(t.extra[PropLowEU])
	high = floatOf(t.extra[PropHighEU])
	return low, high
}

func floatOf(v variant.Value) float64 {
	switch x := v.Raw.(type) {
	case float32:
		return float64(x)
	case float64:
		return x
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	default:
		return 0
	}
}

// IsAnalog reports whether the tag's canonical type is one of the numeric
// scalar kinds deadband filtering applies to.
func (t *Tag) IsAnalog() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canonicalType.IsNumeric()
}
