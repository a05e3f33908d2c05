// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package browse translates an external browse or get-properties call into
// a sequence of Crawler and Tag operations, applying continuation-point
// pagination and the wildcard pattern filter in front of them.
package browse

import (
	"github.com/opcdaserver/core/internal/addrspace"
	"github.com/opcdaserver/core/internal/opcerrors"
	"github.com/opcdaserver/core/internal/variant"
)

// Element is one paginated browse result entry, optionally carrying
// properties when requested.
type Element struct {
	addrspace.TagInfo
	Properties []PropertyValue
}

// PropertyValue is one (id, value) pair returned alongside a browse
// element or a GetProperties call.
type PropertyValue struct {
	ID    addrspace.PropertyID
	Value variant.Value
	Err   error
}

// Request describes one Browse call.
type Request struct {
	ItemID            string
	Filter            addrspace.BrowseFilter
	Pattern           string
	ContinuationPoint string
	MaxElements       int
	WithProperties    bool
	PropertyIDs       []addrspace.PropertyID // nil/empty with WithProperties means "all available"
}

// Result is the outcome of one Browse call.
type Result struct {
	Elements          []Element
	ContinuationPoint string
}

// Browse executes one browse request against space:
//  1. Move the cursor to ItemID (root if empty); ErrUnknownItemID if
//     missing.
//  2. List children matching Filter.
//  3. Drop entries strictly before ContinuationPoint, if supplied;
//     ErrInvalidContinuationPoint if it does not name a listed path.
//  4. Apply the wildcard Pattern filter.
//  5. Truncate to MaxElements (if > 0), returning the full path of the
//     first truncated element as the new continuation point.
//  6. Optionally attach properties.
func Browse(space *addrspace.AddressSpace, req Request) (Result, error) {
	c := space.NewCrawler()
	if err := c.GoTo(req.ItemID); err != nil {
		return Result{}, opcerrors.ErrUnknownItemID
	}

	all, err := c.Browse(req.Filter, req.Pattern)
	if err != nil {
		return Result{}, err
	}

	if req.ContinuationPoint != "" {
		idx := -1
		for i, e := range all {
			if e.FullPath == req.ContinuationPoint {
				idx = i
				break
			}
		}
		if idx < 0 {
			return Result{}, opcerrors.ErrInvalidContinuationPoint
		}
		all = all[idx:]
	}

	var next string
	if req.MaxElements > 0 && len(all) > req.MaxElements {
		next = all[req.MaxElements].FullPath
		all = all[:req.MaxElements]
	}

	elements := make([]Element, len(all))
	for i, info := range all {
		elements[i] = Element{TagInfo: info}
		if req.WithProperties && info.IsLeaf {
			elements[i].Properties = GetProperties(space, info.FullPath, req.PropertyIDs, true)
		}
	}

	return Result{Elements: elements, ContinuationPoint: next}, nil
}

// GetProperties returns, for a single item id, every requested property id
// (or every available one, if ids is empty), with ErrInvalidPID for
// unknown ids. A missing tag yields a single PropertyValue carrying
// ErrUnknownItemID.
func GetProperties(space *addrspace.AddressSpace, itemID string, ids []addrspace.PropertyID, returnValues bool) []PropertyValue {
	tag, err := space.GetTag(itemID)
	if err != nil {
		return []PropertyValue{{Err: opcerrors.ErrUnknownItemID}}
	}

	if len(ids) == 0 {
		ids = tag.AvailableProperties()
	}

	out := make([]PropertyValue, len(ids))
	for i, id := range ids {
		if !tag.IsValidProperty(id) {
			out[i] = PropertyValue{ID: id, Err: opcerrors.ErrInvalidPID}
			continue
		}
		pv := PropertyValue{ID: id}
		if returnValues {
			v, err := tag.GetProperty(id)
			pv.Value = v
			pv.Err = err
		}
		out[i] = pv
	}
	return out
}

// LookupItemIDs resolves, for each requested property id, the item id a
// client would browse to in order to read that single property directly.
// This server has no distinct per-property sub-items, so every id maps
// back to the same itemID.
func LookupItemIDs(space *addrspace.AddressSpace, itemID string, ids []addrspace.PropertyID) ([]PropertyItemID, error) {
	tag, err := space.GetTag(itemID)
	if err != nil {
		return nil, opcerrors.ErrUnknownItemID
	}

	out := make([]PropertyItemID, len(ids))
	for i, id := range ids {
		if !tag.IsValidProperty(id) {
			out[i] = PropertyItemID{ID: id, Err: opcerrors.ErrInvalidPID}
			continue
		}
		out[i] = PropertyItemID{ID: id, ItemID: itemID}
	}
	return out, nil
}

// PropertyItemID is one entry of LookupItemIDs's result.
type PropertyItemID struct {
	ID     addrspace.PropertyID
	ItemID string
	Err    error
}
