// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package group

import (
	"github.com/opcdaserver/core/internal/opcerrors"
)

// AsyncRead enqueues a read request on the read queue, drained on the next
// read-timer tick. It returns a cancel id usable with Cancel, or
// ErrNoCallback when no sink is registered to deliver the result to.
func (g *Group) AsyncRead(transactionID int32, handles []uint64) (int32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.callbacks.Registered(g.capability) {
		return 0, opcerrors.ErrNoCallback
	}
	req := &asyncRequest{
		cancelID:      g.nextCancel.Add(1),
		transactionID: transactionID,
		clientHandle:  g.state.ClientHandle,
		kind:          kindRead,
		handles:       append([]uint64(nil), handles...),
	}
	g.readQueue = append(g.readQueue, req)
	return req.cancelID, nil
}

// AsyncWrite enqueues a write request on the write queue.
func (g *Group) AsyncWrite(transactionID int32, writes []WriteRequest) (int32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.callbacks.Registered(g.capability) {
		return 0, opcerrors.ErrNoCallback
	}
	pairs := make([]writePair, len(writes))
	for i, w := range writes {
		pairs[i] = writePair{handle: w.Handle, value: w.Value}
	}
	req := &asyncRequest{
		cancelID:      g.nextCancel.Add(1),
		transactionID: transactionID,
		clientHandle:  g.state.ClientHandle,
		kind:          kindWrite,
		writes:        pairs,
	}
	g.writeQueue = append(g.writeQueue, req)
	return req.cancelID, nil
}

// AsyncRefresh enqueues a refresh request: the refresh drain will scan all
// active group items rather than a caller-supplied handle set.
func (g *Group) AsyncRefresh(transactionID int32, source Source) (int32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.callbacks.Registered(g.capability) {
		return 0, opcerrors.ErrNoCallback
	}
	req := &asyncRequest{
		cancelID:      g.nextCancel.Add(1),
		transactionID: transactionID,
		clientHandle:  g.state.ClientHandle,
		kind:          kindRefresh,
		source:        source,
	}
	g.refreshQueue = append(g.refreshQueue, req)
	return req.cancelID, nil
}

// Cancel sets the cancelled bit of the request matching cancelID across
// every queue. The request is not removed eagerly; the next timer drain
// delivers exactly one cancel callback for it and drops it. Cancelling an
// already-drained request is a no-op since it no longer appears in any
// queue.
func (g *Group) Cancel(cancelID int32) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, q := range [][]*asyncRequest{g.readQueue, g.writeQueue, g.refreshQueue} {
		for _, req := range q {
			if req.cancelID == cancelID {
				req.cancel()
				return
			}
		}
	}
}
