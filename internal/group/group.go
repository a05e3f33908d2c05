// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package group implements the group engine: item subscriptions,
// deadband/change detection, cached values, and the four periodic
// callback pipelines (read, write, refresh, update).
package group

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/opcdaserver/core/internal/addrspace"
	"github.com/opcdaserver/core/internal/callback"
	"github.com/opcdaserver/core/internal/opcerrors"
	"github.com/opcdaserver/core/internal/quality"
	"github.com/opcdaserver/core/internal/variant"
)

// MinUpdateRateMs is the floor SetState enforces on the update rate.
const MinUpdateRateMs = 10

// DefaultUpdateRateMs applies when a group is created with no rate at all.
const DefaultUpdateRateMs = 500

// tickInterval is the period of the read/write/refresh drain timers, kept
// small relative to any realistic update rate.
const tickInterval = 100 * time.Millisecond

// State is the externally visible configuration of a Group.
type State struct {
	Active          bool
	Enabled         bool
	UpdateRateMs    uint32
	DeadbandPercent float64
	TimeBiasMin     int32
	LocaleID        int32
	ClientHandle    int32
	KeepAliveMs     uint32
}

// StateUpdate carries only the fields the caller wants to change;
// nil means "leave as-is".
type StateUpdate struct {
	Active          *bool
	Enabled         *bool
	UpdateRateMs    *uint32
	DeadbandPercent *float64
	TimeBiasMin     *int32
	LocaleID        *int32
	ClientHandle    *int32
	KeepAliveMs     *uint32
}

// ItemDef describes one item to add or validate.
type ItemDef struct {
	ItemID        string
	ClientHandle  int32
	Active        bool
	RequestedType variant.Kind // KindInvalid means "deliver the tag's canonical type"
}

// ItemResult is the per-item outcome of AddItems/ValidateItems.
type ItemResult struct {
	ServerHandle  uint64
	CanonicalType variant.Kind
	AccessRights  int32
	Err           error
}

// ReadResult is one entry of a SyncRead delivery.
type ReadResult struct {
	Handle    uint64
	Value     variant.Value
	Quality   quality.Quality
	Timestamp time.Time
	Err       error
}

// ClientHandlePair is one (server handle, client handle) remap entry.
type ClientHandlePair struct {
	ServerHandle uint64
	ClientHandle int32
}

// WriteRequest is one (server handle, value) entry of a sync/async write.
type WriteRequest struct {
	Handle uint64
	Value  variant.Value
}

// Group owns its items exclusively behind a single lock serializing item
// map mutation, async-queue enqueue/drain, and callback invocation, so
// callbacks are never delivered concurrently for the same group.
type Group struct {
	mu sync.Mutex

	name         string
	serverHandle uint64

	state State

	addressSpace *addrspace.AddressSpace
	callbacks    *callback.Registry
	capability   callback.CapabilityID

	items      map[uint64]*GroupItem
	itemOrder  []uint64
	nextHandle atomic.Uint64

	readQueue    []*asyncRequest
	writeQueue   []*asyncRequest
	refreshQueue []*asyncRequest
	nextCancel   atomic.Int32

	deleted atomic.Bool

	sched *scheduler
}

// sinkCapability is the single capability id a Group registers its sink
// under. Sink already bundles all four callback methods, so one slot
// serves every pipeline.
const sinkCapability = callback.CapDataCallback

// New constructs a Group with its own callback registry and its own
// (unstarted) scheduler. A zero update rate gets the default; a nonzero
// rate below the minimum is revised up to it.
func New(name string, serverHandle uint64, space *addrspace.AddressSpace, initial State) *Group {
	if initial.UpdateRateMs == 0 {
		initial.UpdateRateMs = DefaultUpdateRateMs
	} else if initial.UpdateRateMs < MinUpdateRateMs {
		initial.UpdateRateMs = MinUpdateRateMs
	}
	g := &Group{
		name:         name,
		serverHandle: serverHandle,
		state:        initial,
		addressSpace: space,
		callbacks:    callback.New(),
		capability:   sinkCapability,
		items:        make(map[uint64]*GroupItem),
	}
	g.sched = newScheduler(g)
	return g
}

// RegisterCallback installs the client's sink, replacing any previously
// registered one.
func (g *Group) RegisterCallback(sink callback.Sink) {
	g.callbacks.Register(sinkCapability, sink)
}

// UnregisterCallback removes the group's sink, if any.
func (g *Group) UnregisterCallback() {
	g.callbacks.Unregister(sinkCapability)
}

// Name returns the group's unique display name.
func (g *Group) Name() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.name
}

// ServerHandle returns the group's server-scoped opaque handle.
func (g *Group) ServerHandle() uint64 { return g.serverHandle }

// MarkDeleted flags the group as deleted so in-flight drains skip their
// deliveries.
func (g *Group) MarkDeleted() { g.deleted.Store(true) }

// Deleted reports whether the group has been marked for removal.
func (g *Group) Deleted() bool { return g.deleted.Load() }

// ItemHandles returns the server handles of every item currently in the
// group, in stable item-map order.
func (g *Group) ItemHandles() []uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]uint64(nil), g.itemOrder...)
}

// Start launches the group's four-timer scheduler.
func (g *Group) Start() error { return g.sched.start() }

// Stop shuts the scheduler down. Safe to call on an already-stopped group.
func (g *Group) Stop() error { return g.sched.stop() }

// GetState returns a snapshot of the group's configuration.
func (g *Group) GetState() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SetName renames the group. Uniqueness across the server is the caller's
// (the Server's) responsibility.
func (g *Group) SetName(newName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.name = newName
}

// SetState applies a partial update and returns the resulting state. The
// update rate is revised up to MinUpdateRateMs and the revised value
// returned; a deadband outside [0,100] fails with ErrInvalidArg; a
// deadband > 0 on a group with no analog items fails with ErrInvalidFilter.
func (g *Group) SetState(u StateUpdate) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.state
	if u.Active != nil {
		next.Active = *u.Active
	}
	if u.Enabled != nil {
		next.Enabled = *u.Enabled
	}
	if u.UpdateRateMs != nil {
		rate := *u.UpdateRateMs
		if rate < MinUpdateRateMs {
			rate = MinUpdateRateMs
		}
		next.UpdateRateMs = rate
	}
	if u.DeadbandPercent != nil {
		d := *u.DeadbandPercent
		if d < 0 || d > 100 {
			return g.state, opcerrors.ErrInvalidArg
		}
		if d > 0 && !g.hasAnalogItemLocked() {
			return g.state, opcerrors.ErrInvalidFilter
		}
		next.DeadbandPercent = d
	}
	if u.TimeBiasMin != nil {
		next.TimeBiasMin = *u.TimeBiasMin
	}
	if u.LocaleID != nil {
		next.LocaleID = *u.LocaleID
	}
	if u.ClientHandle != nil {
		next.ClientHandle = *u.ClientHandle
	}
	if u.KeepAliveMs != nil {
		next.KeepAliveMs = *u.KeepAliveMs
	}

	rateChanged := next.UpdateRateMs != g.state.UpdateRateMs
	g.state = next

	if rateChanged {
		g.sched.setUpdateRate(time.Duration(next.UpdateRateMs) * time.Millisecond)
	}
	return g.state, nil
}

// tagRemoved reports whether the item's underlying tag has been removed
// from the address space. Such items stay addressable but their I/O fails
// with ErrInvalidHandle until they are removed from the group.
func (g *Group) tagRemoved(gi *GroupItem) bool {
	_, err := g.addressSpace.GetTagByHandle(gi.tag.ServerHandle())
	return err != nil
}

func (g *Group) hasAnalogItemLocked() bool {
	for _, id := range g.itemOrder {
		if g.items[id].tag.IsAnalog() {
			return true
		}
	}
	return false
}

// orderedItemsLocked returns items in stable item-map iteration order.
func (g *Group) orderedItemsLocked() []*GroupItem {
	out := make([]*GroupItem, 0, len(g.itemOrder))
	for _, h := range g.itemOrder {
		out = append(out, g.items[h])
	}
	return out
}
