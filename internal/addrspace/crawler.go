// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package addrspace

import (
	"github.com/opcdaserver/core/internal/opcerrors"
)

// TagInfo describes one child returned by a browse operation.
type TagInfo struct {
	ShortName string
	FullPath  string
	IsLeaf    bool
}

// BrowseFilter selects which kind of children a browse call returns.
type BrowseFilter int

const (
	BrowseAll BrowseFilter = iota
	BrowseBranchesOnly
	BrowseLeavesOnly
)

// Crawler is a cursor over the address-space tree. A Crawler holds the
// AddressSpace's read lock for the duration of each call, never across
// calls, so structural changes between browse requests are always
// reflected.
type Crawler struct {
	space    *AddressSpace
	segments []string // path from root to current position
}

// Position returns the crawler's current full path ("" at root).
func (c *Crawler) Position() string {
	return c.space.join(c.segments)
}

// GoToRoot resets the cursor to the address-space root.
func (c *Crawler) GoToRoot() {
	c.segments = nil
}

// GoTo moves the cursor to the given absolute path. It fails with
// ErrUnknownItemID if path does not resolve to a branch.
func (c *Crawler) GoTo(path string) error {
	c.space.mu.RLock()
	defer c.space.mu.RUnlock()

	segments := c.space.split(path)
	if len(segments) == 0 {
		c.segments = nil
		return nil
	}
	_, n, ok := c.space.walk(segments)
	if !ok || n == nil || n.isLeaf() {
		return opcerrors.ErrUnknownItemID
	}
	c.segments = segments
	return nil
}

// GoUp moves the cursor to its parent branch. It is a no-op at the root.
func (c *Crawler) GoUp() {
	if len(c.segments) > 0 {
		c.segments = c.segments[:len(c.segments)-1]
	}
}

// currentBranch resolves the cursor's branch under the caller's held lock.
func (c *Crawler) currentBranch() (*Branch, bool) {
	if len(c.segments) == 0 {
		return c.space.root, true
	}
	_, n, ok := c.space.walk(c.segments)
	if !ok || n == nil || n.isLeaf() {
		return nil, false
	}
	return n.branch, true
}

// Browse lists the current branch's children matching filter and the
// optional glob pattern (empty pattern matches everything), in stable
// insertion order.
func (c *Crawler) Browse(filter BrowseFilter, pattern string) ([]TagInfo, error) {
	c.space.mu.RLock()
	defer c.space.mu.RUnlock()

	branch, ok := c.currentBranch()
	if !ok {
		return nil, opcerrors.ErrUnknownItemID
	}

	var out []TagInfo
	for _, n := range branch.orderedChildren() {
		if filter == BrowseBranchesOnly && n.isLeaf() {
			continue
		}
		if filter == BrowseLeavesOnly && !n.isLeaf() {
			continue
		}
		if pattern != "" && !MatchGlob(pattern, n.name) {
			continue
		}
		full := append(append([]string{}, c.segments...), n.name)
		out = append(out, TagInfo{
			ShortName: n.name,
			FullPath:  c.space.join(full),
			IsLeaf:    n.isLeaf(),
		})
	}
	return out, nil
}
