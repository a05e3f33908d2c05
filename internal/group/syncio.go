// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package group

import (
	"time"

	"github.com/opcdaserver/core/internal/opcerrors"
	"github.com/opcdaserver/core/internal/variant"
)

// SyncRead reads each handle from the cache or device source and returns
// the per-item results alongside a master result. Values arrive converted
// to each item's requested type.
func (g *Group) SyncRead(source Source, handles []uint64) (opcerrors.Master, []ReadResult) {
	g.mu.Lock()
	defer g.mu.Unlock()

	results := make([]ReadResult, len(handles))
	errs := make([]error, len(handles))
	for i, h := range handles {
		gi, ok := g.items[h]
		if !ok || g.tagRemoved(gi) {
			errs[i] = opcerrors.ErrInvalidHandle
			results[i] = ReadResult{Handle: h, Err: errs[i]}
			continue
		}
		v, q, ts := gi.cachedValue, gi.cachedQuality, gi.cachedTimestamp
		if source == SourceDevice {
			v, q, ts = gi.sample()
		}
		cv, err := gi.convert(v)
		errs[i] = err
		results[i] = ReadResult{
			Handle:    h,
			Value:     cv,
			Quality:   q,
			Timestamp: ts,
			Err:       err,
		}
	}
	return opcerrors.MasterFor(errs), results
}

// SyncWrite writes each (handle, value) pair to its tag, rejecting writes
// to a non-writable tag (ErrBadRights) or an empty variant (ErrBadType)
// before touching the tag.
func (g *Group) SyncWrite(writes []WriteRequest) (opcerrors.Master, []error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	errs := make([]error, len(writes))
	for i, w := range writes {
		gi, ok := g.items[w.Handle]
		if !ok || g.tagRemoved(gi) {
			errs[i] = opcerrors.ErrInvalidHandle
			continue
		}
		errs[i] = writeItem(gi, w.Value)
	}
	return opcerrors.MasterFor(errs), errs
}

func writeItem(gi *GroupItem, value variant.Value) error {
	if !gi.tag.Writable() {
		return opcerrors.ErrBadRights
	}
	if value.Empty() {
		return opcerrors.ErrBadType
	}
	return gi.tag.Write(value, nil, time.Time{})
}
