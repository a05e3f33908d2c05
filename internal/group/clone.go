// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package group

// Clone produces a new Group sharing no mutable state with the source:
// the item list is copied with fresh per-group server handles, active is
// forced false, the client handle and callback registration are not
// carried over, and the clone gets its own (unstarted) scheduler. The
// caller supplies the clone's name and server handle, which the Server is
// responsible for allocating and registering.
func (g *Group) Clone(newName string, newServerHandle uint64) *Group {
	g.mu.Lock()
	defer g.mu.Unlock()

	clonedState := g.state
	clonedState.Active = false
	clonedState.ClientHandle = 0

	clone := New(newName, newServerHandle, g.addressSpace, clonedState)

	for _, h := range g.itemOrder {
		src := g.items[h]
		handle := clone.nextHandle.Add(1)
		gi := &GroupItem{serverHandle: handle, tag: src.tag, requestedType: src.requestedType}
		gi.clientHandle.Store(src.ClientHandle())
		gi.active.Store(src.active.Load())
		gi.cachedValue = src.cachedValue
		gi.cachedQuality = src.cachedQuality
		gi.cachedTimestamp = src.cachedTimestamp
		gi.unsubscribe = src.tag.Subscribe(gi)

		clone.items[handle] = gi
		clone.itemOrder = append(clone.itemOrder, handle)
	}

	return clone
}
