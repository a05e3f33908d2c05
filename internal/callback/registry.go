// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package callback implements the reference-counted capability-id → sink
// broker. Groups never hold a sink directly; they acquire it around a
// single dispatch so that an unregister racing with an in-flight drain
// cannot free a sink still in use.
package callback

import (
	"sync"

	"github.com/opcdaserver/core/internal/opcerrors"
)

// Sink is the client callback surface a group drains against. The
// transaction id, client handle, and master result are passed through
// verbatim; handles/values/qualities/timestamps/errors are parallel
// per-item slices.
type Sink interface {
	OnReadComplete(transactionID int32, clientHandle int32, master opcerrors.Master, handles []uint64, values []interface{}, qualities []uint16, timestamps []int64, errs []error)
	OnWriteComplete(transactionID int32, clientHandle int32, master opcerrors.Master, handles []uint64, errs []error)
	OnDataChange(transactionID int32, clientHandle int32, master opcerrors.Master, handles []uint64, values []interface{}, qualities []uint16, timestamps []int64, errs []error)
	OnCancelComplete(transactionID int32, clientHandle int32)
}

// CapabilityID names one of the client-facing interfaces a Registry entry
// serves. A single group typically registers one sink per id it supports.
type CapabilityID int

const (
	CapDataCallback CapabilityID = iota
	CapAsyncCallback
)

type entry struct {
	sink Sink
	refs int
}

// Registry maps capability ids to client-supplied sinks, with Acquire
// taking a reference the caller must Release exactly once.
type Registry struct {
	mu      sync.Mutex
	entries map[CapabilityID]*entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[CapabilityID]*entry)}
}

// Register installs sink under id. Registration is idempotent: a previous
// sink is replaced, and holders that already acquired it keep using it
// until they release.
func (r *Registry) Register(id CapabilityID, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = &entry{sink: sink}
}

// Unregister removes the sink registered under id, if any.
func (r *Registry) Unregister(id CapabilityID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Registered reports whether a sink is currently registered under id.
func (r *Registry) Registered(id CapabilityID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// Acquire returns the sink registered under id with a reference held, or
// ErrNoCallback if nothing is registered. Every successful Acquire must be
// paired with exactly one Release, on every exit path including error and
// cancellation.
func (r *Registry) Acquire(id CapabilityID) (Sink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, opcerrors.ErrNoCallback
	}
	e.refs++
	return e.sink, nil
}

// Release drops one reference acquired via Acquire for id.
func (r *Registry) Release(id CapabilityID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return
	}
	if e.refs > 0 {
		e.refs--
	}
}

// WithSink acquires the sink for id, invokes fn, and releases on every
// return path including a panic inside fn, so callback dispatch can never
// leak a reference.
func (r *Registry) WithSink(id CapabilityID, fn func(Sink)) error {
	sink, err := r.Acquire(id)
	if err != nil {
		return err
	}
	defer r.Release(id)
	fn(sink)
	return nil
}
