// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package group

import (
	"github.com/opcdaserver/core/internal/opcerrors"
	"github.com/opcdaserver/core/internal/variant"
)

// AddItems resolves each ItemDef against the shared address space and, on
// success, creates a GroupItem subscribed to the tag's write notifications.
func (g *Group) AddItems(defs []ItemDef) []ItemResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	results := make([]ItemResult, len(defs))
	for i, def := range defs {
		tag, err := g.addressSpace.GetTag(def.ItemID)
		if err != nil {
			results[i] = ItemResult{Err: opcerrors.ErrUnknownItemID}
			continue
		}

		canonical := tag.CanonicalType()
		if def.RequestedType != variant.KindInvalid && !variant.Convertible(canonical, def.RequestedType) {
			results[i] = ItemResult{Err: opcerrors.ErrBadType}
			continue
		}

		handle := g.nextHandle.Add(1)
		gi := &GroupItem{serverHandle: handle, tag: tag, requestedType: def.RequestedType}
		gi.clientHandle.Store(def.ClientHandle)
		gi.active.Store(def.Active)
		gi.syncCache()
		gi.unsubscribe = tag.Subscribe(gi)

		rights := int32(1)
		if tag.Writable() {
			rights |= 2
		}

		g.items[handle] = gi
		g.itemOrder = append(g.itemOrder, handle)

		results[i] = ItemResult{ServerHandle: handle, CanonicalType: canonical, AccessRights: rights}
	}
	return results
}

// ValidateItems performs the same resolution as AddItems but never mutates
// the group.
func (g *Group) ValidateItems(defs []ItemDef) []ItemResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	results := make([]ItemResult, len(defs))
	for i, def := range defs {
		tag, err := g.addressSpace.GetTag(def.ItemID)
		if err != nil {
			results[i] = ItemResult{Err: opcerrors.ErrUnknownItemID}
			continue
		}
		canonical := tag.CanonicalType()
		if def.RequestedType != variant.KindInvalid && !variant.Convertible(canonical, def.RequestedType) {
			results[i] = ItemResult{Err: opcerrors.ErrBadType}
			continue
		}
		rights := int32(1)
		if tag.Writable() {
			rights |= 2
		}
		results[i] = ItemResult{CanonicalType: canonical, AccessRights: rights}
	}
	return results
}

// RemoveItems drops items by server handle, unsubscribing each from its
// tag. A handle not present in the group yields ErrInvalidHandle for that
// entry, so removing the same handle twice reports the failure on the
// second call.
func (g *Group) RemoveItems(handles []uint64) []error {
	g.mu.Lock()
	defer g.mu.Unlock()

	errs := make([]error, len(handles))
	for i, h := range handles {
		gi, ok := g.items[h]
		if !ok {
			errs[i] = opcerrors.ErrInvalidHandle
			continue
		}
		gi.unsubscribe()
		delete(g.items, h)
		for j, oh := range g.itemOrder {
			if oh == h {
				g.itemOrder = append(g.itemOrder[:j], g.itemOrder[j+1:]...)
				break
			}
		}
	}
	return errs
}

// SetActiveState toggles each item's individual active flag.
func (g *Group) SetActiveState(handles []uint64, active bool) []error {
	g.mu.Lock()
	defer g.mu.Unlock()

	errs := make([]error, len(handles))
	for i, h := range handles {
		gi, ok := g.items[h]
		if !ok {
			errs[i] = opcerrors.ErrInvalidHandle
			continue
		}
		gi.active.Store(active)
	}
	return errs
}

// SetClientHandles remaps the client-visible handle of each item.
func (g *Group) SetClientHandles(pairs []ClientHandlePair) []error {
	g.mu.Lock()
	defer g.mu.Unlock()

	errs := make([]error, len(pairs))
	for i, p := range pairs {
		gi, ok := g.items[p.ServerHandle]
		if !ok {
			errs[i] = opcerrors.ErrInvalidHandle
			continue
		}
		gi.clientHandle.Store(p.ClientHandle)
	}
	return errs
}
