// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package group

import (
	"github.com/opcdaserver/core/internal/callback"
	"github.com/opcdaserver/core/internal/opcerrors"
)

// drainReadQueue processes every queued read request in enqueue order,
// under the group lock, so completion callbacks fire in the order the
// requests were enqueued. A cancelled request yields exactly one cancel
// callback; an empty request is dropped silently.
func (g *Group) drainReadQueue() {
	g.mu.Lock()
	defer g.mu.Unlock()

	queue := g.readQueue
	g.readQueue = nil

	for _, req := range queue {
		if g.deleted.Load() {
			continue
		}
		if req.isCancelled() {
			g.deliverCancel(req)
			continue
		}
		if len(req.handles) == 0 {
			continue
		}
		g.deliverRead(req)
	}
}

func (g *Group) deliverRead(req *asyncRequest) {
	handles := make([]uint64, len(req.handles))
	values := make([]interface{}, len(req.handles))
	qualities := make([]uint16, len(req.handles))
	timestamps := make([]int64, len(req.handles))
	errs := make([]error, len(req.handles))

	for i, h := range req.handles {
		handles[i] = h
		gi, ok := g.items[h]
		if !ok || g.tagRemoved(gi) {
			errs[i] = opcerrors.ErrInvalidHandle
			continue
		}
		v, q, ts := gi.sample()
		cv, err := gi.convert(v)
		errs[i] = err
		values[i] = cv.Raw
		qualities[i] = uint16(q)
		timestamps[i] = ts.UnixNano()
	}

	master := opcerrors.MasterFor(errs)
	_ = g.callbacks.WithSink(g.capability, func(sink callback.Sink) {
		sink.OnReadComplete(req.transactionID, req.clientHandle, master, handles, values, qualities, timestamps, errs)
	})
}

// drainWriteQueue processes every queued write request in enqueue order.
func (g *Group) drainWriteQueue() {
	g.mu.Lock()
	defer g.mu.Unlock()

	queue := g.writeQueue
	g.writeQueue = nil

	for _, req := range queue {
		if g.deleted.Load() {
			continue
		}
		if req.isCancelled() {
			g.deliverCancel(req)
			continue
		}
		if len(req.writes) == 0 {
			continue
		}
		g.deliverWrite(req)
	}
}

func (g *Group) deliverWrite(req *asyncRequest) {
	handles := make([]uint64, len(req.writes))
	errs := make([]error, len(req.writes))

	for i, w := range req.writes {
		handles[i] = w.handle
		gi, ok := g.items[w.handle]
		if !ok || g.tagRemoved(gi) {
			errs[i] = opcerrors.ErrInvalidHandle
			continue
		}
		errs[i] = writeItem(gi, w.value)
	}

	master := opcerrors.MasterFor(errs)
	_ = g.callbacks.WithSink(g.capability, func(sink callback.Sink) {
		sink.OnWriteComplete(req.transactionID, req.clientHandle, master, handles, errs)
	})
}

// drainRefreshQueue processes every queued refresh request. Cancels are
// delivered even for an inactive group; data-change callbacks only fire
// while the group is active.
func (g *Group) drainRefreshQueue() {
	g.mu.Lock()
	defer g.mu.Unlock()

	queue := g.refreshQueue
	g.refreshQueue = nil

	for _, req := range queue {
		if g.deleted.Load() {
			continue
		}
		if req.isCancelled() {
			g.deliverCancel(req)
			continue
		}
		if !g.state.Active {
			continue
		}
		g.deliverRefresh(req)
	}
}

func (g *Group) deliverRefresh(req *asyncRequest) {
	items := g.orderedItemsLocked()

	var handles []uint64
	var values []interface{}
	var qualities []uint16
	var timestamps []int64
	var errs []error

	for _, gi := range items {
		if !gi.active.Load() || g.tagRemoved(gi) {
			continue
		}
		if req.source == SourceDevice {
			gi.syncCache()
		}
		v, err := gi.convert(gi.cachedValue)
		handles = append(handles, gi.serverHandle)
		values = append(values, v.Raw)
		qualities = append(qualities, uint16(gi.cachedQuality))
		timestamps = append(timestamps, gi.cachedTimestamp.UnixNano())
		errs = append(errs, err)
	}
	if len(handles) == 0 {
		return
	}

	master := opcerrors.MasterFor(errs)
	_ = g.callbacks.WithSink(g.capability, func(sink callback.Sink) {
		sink.OnDataChange(req.transactionID, req.clientHandle, master, handles, values, qualities, timestamps, errs)
	})
}

func (g *Group) deliverCancel(req *asyncRequest) {
	_ = g.callbacks.WithSink(g.capability, func(sink callback.Sink) {
		sink.OnCancelComplete(req.transactionID, req.clientHandle)
	})
}

// scanUpdate runs once per update-rate period: scan items for dirty flags
// past deadband (or a quality transition) and deliver one data-change
// callback covering every handle from this scan, in stable item-map
// order. Dirty flags are cleared only for handles whose notification
// actually fires, so with no sink registered the items stay dirty and the
// next scan after registration picks them up.
func (g *Group) scanUpdate() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.deleted.Load() || !g.state.Active {
		return
	}

	sink, err := g.callbacks.Acquire(g.capability)
	if err != nil {
		return
	}
	defer g.callbacks.Release(g.capability)

	var handles []uint64
	var values []interface{}
	var qualities []uint16
	var timestamps []int64
	var errs []error

	for _, gi := range g.orderedItemsLocked() {
		if !gi.active.Load() || !gi.dirty.Load() || g.tagRemoved(gi) {
			continue
		}
		if !gi.updateCache(g.state.DeadbandPercent) {
			continue
		}
		gi.dirty.Store(false)
		v, derr := gi.convert(gi.cachedValue)
		handles = append(handles, gi.serverHandle)
		values = append(values, v.Raw)
		qualities = append(qualities, uint16(gi.cachedQuality))
		timestamps = append(timestamps, gi.cachedTimestamp.UnixNano())
		errs = append(errs, derr)
	}

	if len(handles) == 0 {
		return
	}

	master := opcerrors.MasterFor(errs)
	sink.OnDataChange(0, g.state.ClientHandle, master, handles, values, qualities, timestamps, errs)
}
