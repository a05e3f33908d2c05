// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package group

import (
	"reflect"
	"sync/atomic"
	"time"

	"github.com/opcdaserver/core/internal/addrspace"
	"github.com/opcdaserver/core/internal/opcerrors"
	"github.com/opcdaserver/core/internal/quality"
	"github.com/opcdaserver/core/internal/variant"
)

// GroupItem is one tag's membership in one group. It caches the sample the
// client last saw, so the update scan can apply the deadband test against
// the last notified value rather than the last written one, and tracks a
// dirty flag set by the tag's write notification.
type GroupItem struct {
	serverHandle uint64
	clientHandle atomic.Int32

	tag           *addrspace.Tag
	requestedType variant.Kind // KindInvalid: deliver the canonical type

	active atomic.Bool
	dirty  atomic.Bool

	unsubscribe func()

	cachedValue     variant.Value
	cachedQuality   quality.Quality
	cachedTimestamp time.Time
}

// MarkDirty implements addrspace.Subscriber. Called from Tag.Write and
// Tag.SetQuality outside the tag's own lock; the group lock may be held
// (sync and async client writes hold it), so this only sets an atomic.
func (gi *GroupItem) MarkDirty() {
	gi.dirty.Store(true)
}

// ServerHandle returns the item's group-scoped opaque handle.
func (gi *GroupItem) ServerHandle() uint64 { return gi.serverHandle }

// ClientHandle returns the client-chosen handle last set via
// SetClientHandles or AddItems.
func (gi *GroupItem) ClientHandle() int32 { return gi.clientHandle.Load() }

// Active reports the item's individual active flag.
func (gi *GroupItem) Active() bool { return gi.active.Load() }

// sample reads the underlying tag without touching the cache.
func (gi *GroupItem) sample() (variant.Value, quality.Quality, time.Time) {
	return gi.tag.Read()
}

// syncCache unconditionally adopts the tag's current sample as the new
// cache, e.g. after a device-sourced refresh delivered it to the client.
func (gi *GroupItem) syncCache() {
	gi.cachedValue, gi.cachedQuality, gi.cachedTimestamp = gi.tag.Read()
}

// updateCache reads the tag and adopts the sample only when it passes the
// deadband test or changes quality class; otherwise the cache keeps the
// last notified sample so small changes cannot creep past the deadband
// over several scans. Quality transitions always count as a change.
func (gi *GroupItem) updateCache(deadbandPercent float64) (changed bool) {
	v, q, ts := gi.tag.Read()

	qualityChanged := q.Class() != gi.cachedQuality.Class()
	valueChanged := isPastDeadband(gi.tag, gi.cachedValue, v, deadbandPercent)
	if !qualityChanged && !valueChanged {
		return false
	}

	gi.cachedValue = v
	gi.cachedQuality = q
	gi.cachedTimestamp = ts
	return true
}

// convert returns v converted to the item's requested type. A conversion
// the concrete value cannot survive yields v unchanged plus ErrBadType for
// the per-item error slot.
func (gi *GroupItem) convert(v variant.Value) (variant.Value, error) {
	if gi.requestedType == variant.KindInvalid || v.Empty() || gi.requestedType == v.Kind {
		return v, nil
	}
	out, err := variant.Coerce(v, gi.requestedType)
	if err != nil {
		return v, opcerrors.ErrBadType
	}
	return out, nil
}

// isPastDeadband implements the analog deadband test
// |new - old| * 100 >= deadband * (eu_high - eu_low), degenerating to
// strict inequality when the EU range is degenerate or the item is not
// analog.
func isPastDeadband(tag *addrspace.Tag, oldV, newV variant.Value, deadbandPercent float64) bool {
	if !tag.IsAnalog() || deadbandPercent <= 0 {
		return !valuesEqual(oldV, newV)
	}

	oldF, oldOK := numeric(oldV)
	newF, newOK := numeric(newV)
	if !oldOK || !newOK {
		return !valuesEqual(oldV, newV)
	}

	low, high := tag.EURange()
	span := high - low
	if span <= 0 {
		return newF != oldF
	}

	delta := newF - oldF
	if delta < 0 {
		delta = -delta
	}
	return delta*100 >= deadbandPercent*span
}

func numeric(v variant.Value) (float64, bool) {
	switch x := v.Raw.(type) {
	case int8:
		return float64(x), true
	case uint8:
		return float64(x), true
	case int16:
		return float64(x), true
	case uint16:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

func valuesEqual(a, b variant.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind.IsArray() {
		return reflect.DeepEqual(a.Raw, b.Raw)
	}
	return a.Raw == b.Raw
}
