// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package addrspace implements the hierarchical branch/leaf tag tree:
// AddressSpace owns the root Branch and a server-handle index, Tag holds
// per-leaf value/quality/timestamp/properties, and Crawler provides a
// cursor-based browse API.
//
// The whole tree is guarded by one reader/writer lock: many concurrent
// browsers and readers, at most one structural writer. Each Tag carries
// its own small mutex so device writers never contend with browsing.
package addrspace

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/opcdaserver/core/internal/opcerrors"
	"github.com/opcdaserver/core/internal/variant"
)

// AddressSpace owns the root Branch exclusively, plus an auxiliary
// server-handle index for O(1) lookup by handle.
type AddressSpace struct {
	mu sync.RWMutex

	delimiter    byte
	delimiterSet bool // true once any tag exists, locking the delimiter in

	root    *Branch
	handles map[uint64]*Tag

	nextHandle atomic.Uint64
}

// New creates an AddressSpace with the given path delimiter (default '.'
// if delimiter is the zero byte).
func New(delimiter byte) *AddressSpace {
	if delimiter == 0 {
		delimiter = '.'
	}
	return &AddressSpace{
		delimiter: delimiter,
		root:      newBranch(""),
		handles:   make(map[uint64]*Tag),
	}
}

// Delimiter returns the configured path delimiter.
func (a *AddressSpace) Delimiter() byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.delimiter
}

// SetDelimiter changes the path delimiter. It fails with ErrInvalidOperation
// once any tag has been created.
func (a *AddressSpace) SetDelimiter(d byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.delimiterSet {
		return opcerrors.ErrInvalidOperation
	}
	a.delimiter = d
	return nil
}

func (a *AddressSpace) split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, string(a.delimiter))
}

func (a *AddressSpace) join(segments []string) string {
	return strings.Join(segments, string(a.delimiter))
}

// walk resolves segments from root, returning the final branch and node
// (node is nil if the path does not exist). parent is the branch that
// would/does hold the last segment.
func (a *AddressSpace) walk(segments []string) (parent *Branch, n *node, ok bool) {
	cur := a.root
	if len(segments) == 0 {
		return nil, &node{branch: cur}, true
	}
	for i, seg := range segments {
		child, exists := cur.children[seg]
		if !exists {
			return cur, nil, false
		}
		if i == len(segments)-1 {
			return cur, child, true
		}
		if child.branch == nil {
			return cur, nil, false
		}
		cur = child.branch
	}
	return cur, nil, false
}

// AddBranch creates a branch at path. With createParents false, a missing
// intermediate branch fails with ErrParentMissing instead of being created
// implicitly.
func (a *AddressSpace) AddBranch(path string, createParents bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	segments := a.split(path)
	if len(segments) == 0 {
		return opcerrors.ErrInvalidArg
	}

	parent, err := a.resolveParent(segments[:len(segments)-1], createParents)
	if err != nil {
		return err
	}

	name := segments[len(segments)-1]
	if existing, ok := parent.children[name]; ok {
		if existing.isLeaf() {
			return opcerrors.ErrTagAlreadyExists
		}
		return opcerrors.ErrBranchAlreadyExists
	}

	parent.addChild(&node{name: name, branch: newBranch(name)})
	return nil
}

// AddLeaf creates a tag at path with the given canonical type.
func (a *AddressSpace) AddLeaf(path string, canonicalType variant.Kind, createParents bool) (*Tag, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	segments := a.split(path)
	if len(segments) == 0 {
		return nil, opcerrors.ErrInvalidArg
	}

	parent, err := a.resolveParent(segments[:len(segments)-1], createParents)
	if err != nil {
		return nil, err
	}

	name := segments[len(segments)-1]
	if existing, ok := parent.children[name]; ok {
		if existing.isLeaf() {
			return nil, opcerrors.ErrTagAlreadyExists
		}
		return nil, opcerrors.ErrBranchAlreadyExists
	}

	handle := a.nextHandle.Add(1)
	tag := newTag(a.join(segments), handle, canonicalType)
	parent.addChild(&node{name: name, tag: tag})
	a.handles[handle] = tag
	a.delimiterSet = true
	return tag, nil
}

func (a *AddressSpace) resolveParent(segments []string, createParents bool) (*Branch, error) {
	cur := a.root
	for _, seg := range segments {
		child, exists := cur.children[seg]
		if !exists {
			if !createParents {
				return nil, opcerrors.ErrParentMissing
			}
			child = &node{name: seg, branch: newBranch(seg)}
			cur.addChild(child)
		}
		if child.branch == nil {
			return nil, opcerrors.ErrParentMissing
		}
		cur = child.branch
	}
	return cur, nil
}

// Remove deletes the branch or tag at path. Removing a branch removes its
// whole subtree, and every tag handle under it is dropped from the index;
// group items still referring to those tags observe ErrInvalidHandle from
// then on.
func (a *AddressSpace) Remove(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	segments := a.split(path)
	if len(segments) == 0 {
		return opcerrors.ErrInvalidOperation
	}

	parent, n, ok := a.walk(segments)
	if !ok || parent == nil {
		return opcerrors.ErrUnknownItemID
	}

	a.forgetHandles(n)
	parent.removeChild(segments[len(segments)-1])
	return nil
}

func (a *AddressSpace) forgetHandles(n *node) {
	if n.isLeaf() {
		delete(a.handles, n.tag.serverHandle)
		return
	}
	for _, child := range n.branch.orderedChildren() {
		a.forgetHandles(child)
	}
}

// GetTag resolves path to its Tag, or ErrUnknownItemID if it does not
// exist or is a branch.
func (a *AddressSpace) GetTag(path string) (*Tag, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	segments := a.split(path)
	_, n, ok := a.walk(segments)
	if !ok || n == nil || !n.isLeaf() {
		return nil, opcerrors.ErrUnknownItemID
	}
	return n.tag, nil
}

// GetTagByHandle resolves a server handle to its Tag.
func (a *AddressSpace) GetTagByHandle(handle uint64) (*Tag, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	tag, ok := a.handles[handle]
	if !ok {
		return nil, opcerrors.ErrInvalidHandle
	}
	return tag, nil
}

// Exists reports whether path resolves to a branch or a tag.
func (a *AddressSpace) Exists(path string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	segments := a.split(path)
	if len(segments) == 0 {
		return true // root always exists
	}
	_, _, ok := a.walk(segments)
	return ok
}

// TagCount returns the number of tags currently indexed by server handle.
func (a *AddressSpace) TagCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.handles)
}

// NewCrawler returns a Crawler positioned at the address-space root.
func (a *AddressSpace) NewCrawler() *Crawler {
	return &Crawler{space: a}
}

func (a *AddressSpace) String() string {
	return fmt.Sprintf("AddressSpace(delimiter=%q, tags=%d)", a.delimiter, len(a.handles))
}
