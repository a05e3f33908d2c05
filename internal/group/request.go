// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package group

import (
	"sync/atomic"

	"github.com/opcdaserver/core/internal/variant"
)

// Source selects whether a read or refresh is satisfied from the item
// cache or forces a fresh device-backed tag read.
type Source int

const (
	SourceCache Source = iota
	SourceDevice
)

type requestKind int

const (
	kindRead requestKind = iota
	kindWrite
	kindRefresh
)

// writePair is one (handle, value) entry of an async write request.
type writePair struct {
	handle uint64
	value  variant.Value
}

// asyncRequest is one queued entry of the read/write/refresh async queues.
// Immutable after enqueue except for the cancelled bit, which Cancel sets
// and the next timer drain observes; the request is never removed eagerly.
type asyncRequest struct {
	cancelID      int32
	transactionID int32
	clientHandle  int32
	kind          requestKind
	source        Source
	handles       []uint64
	writes        []writePair
	cancelled     atomic.Bool
}

func (r *asyncRequest) cancel() {
	r.cancelled.Store(true)
}

func (r *asyncRequest) isCancelled() bool {
	return r.cancelled.Load()
}
