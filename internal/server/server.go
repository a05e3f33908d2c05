// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package server implements the group directory over a single shared
// address space, enforcing group-name and group-handle uniqueness and
// brokering clone/remove against live client references.
//
// A Server is explicitly constructed rather than a package-level
// singleton, so tests (and embedders) can run independent servers over
// independent address spaces.
package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/opcdaserver/core/internal/addrspace"
	"github.com/opcdaserver/core/internal/group"
	"github.com/opcdaserver/core/internal/opcerrors"
)

// Status is a snapshot of server-wide state.
type Status struct {
	GroupCount int
	TagCount   int
	StartTime  time.Time
}

// Server owns Groups exclusively and holds a shared handle to the single
// AddressSpace. Group names and server handles are unique within a Server.
type Server struct {
	mu sync.RWMutex

	space     *addrspace.AddressSpace
	startTime time.Time

	groups     map[uint64]*group.Group
	byName     map[string]uint64
	refs       map[uint64]int // outstanding client references per group handle
	nextHandle atomic.Uint64
}

// New constructs a Server over the given (already populated) AddressSpace.
// The address space outlives the Server; the caller, not the Server, owns
// its construction and teardown.
func New(space *addrspace.AddressSpace) *Server {
	return &Server{
		space:     space,
		startTime: time.Now().UTC(),
		groups:    make(map[uint64]*group.Group),
		byName:    make(map[string]uint64),
		refs:      make(map[uint64]int),
	}
}

// AddressSpace returns the server's shared AddressSpace handle, e.g. for a
// device bridge to resolve tag paths against.
func (s *Server) AddressSpace() *addrspace.AddressSpace { return s.space }

// AddGroup creates, registers, and starts a new Group. Group names must be
// unique within the server; a duplicate name fails with
// ErrGroupAlreadyExists.
func (s *Server) AddGroup(name string, initial group.State) (*group.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[name]; exists {
		return nil, opcerrors.ErrGroupAlreadyExists
	}

	handle := s.nextHandle.Add(1)
	g := group.New(name, handle, s.space, initial)
	if err := g.Start(); err != nil {
		return nil, err
	}

	s.groups[handle] = g
	s.byName[name] = handle
	s.refs[handle] = 1
	return g, nil
}

// GetGroupByName resolves a group by its unique display name.
func (s *Server) GetGroupByName(name string) (*group.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handle, ok := s.byName[name]
	if !ok {
		return nil, opcerrors.ErrInvalidHandle
	}
	return s.groups[handle], nil
}

// GetGroupByHandle resolves a group by its server-scoped opaque handle.
func (s *Server) GetGroupByHandle(handle uint64) (*group.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[handle]
	if !ok {
		return nil, opcerrors.ErrInvalidHandle
	}
	return g, nil
}

// AcquireGroup resolves a group by handle and records one additional
// client reference against it, so a concurrent RemoveGroup(force=false)
// observes it as still in use. Pairs with ReleaseGroup.
func (s *Server) AcquireGroup(handle uint64) (*group.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[handle]
	if !ok {
		return nil, opcerrors.ErrInvalidHandle
	}
	s.refs[handle]++
	return g, nil
}

// ReleaseGroup drops one client reference acquired via AcquireGroup.
func (s *Server) ReleaseGroup(handle uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs[handle] > 0 {
		s.refs[handle]--
	}
}

// RemoveGroup removes a group by handle. With force=false it fails with
// ErrStillInUse while any client reference beyond the creator's remains.
// With force=true it removes the group unconditionally; MarkDeleted makes
// in-flight callback drains skip their deliveries, and subsequent lookups
// of the freed handle return ErrInvalidHandle.
func (s *Server) RemoveGroup(handle uint64, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[handle]
	if !ok {
		return opcerrors.ErrInvalidHandle
	}

	if !force && s.refs[handle] > 1 {
		return opcerrors.ErrStillInUse
	}

	g.MarkDeleted()
	_ = g.Stop()
	delete(s.groups, handle)
	delete(s.byName, g.Name())
	delete(s.refs, handle)
	return nil
}

// CloneGroup clones an existing group under a new name. The clone gets a
// freshly allocated server handle and its own reference count, starting at
// one (its creator's).
func (s *Server) CloneGroup(sourceHandle uint64, newName string) (*group.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.groups[sourceHandle]
	if !ok {
		return nil, opcerrors.ErrInvalidHandle
	}
	if _, exists := s.byName[newName]; exists {
		return nil, opcerrors.ErrGroupAlreadyExists
	}

	handle := s.nextHandle.Add(1)
	clone := src.Clone(newName, handle)
	if err := clone.Start(); err != nil {
		return nil, err
	}

	s.groups[handle] = clone
	s.byName[newName] = handle
	s.refs[handle] = 1
	return clone, nil
}

// GetStatus returns a snapshot of server-wide state.
func (s *Server) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		GroupCount: len(s.groups),
		TagCount:   s.space.TagCount(),
		StartTime:  s.startTime,
	}
}

// CreateBrowser returns a new Crawler positioned at the address space's
// root.
func (s *Server) CreateBrowser() *addrspace.Crawler {
	return s.space.NewCrawler()
}

// Shutdown stops every group's scheduler. Safe to call once; the caller
// retains ownership of the underlying AddressSpace.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		g.MarkDeleted()
		_ = g.Stop()
	}
}
