// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package server

import (
	"github.com/opcdaserver/core/internal/addrspace"
	"github.com/opcdaserver/core/internal/browse"
)

// QueryAvailableProperties returns every property id populated on itemID.
func (s *Server) QueryAvailableProperties(itemID string) []browse.PropertyValue {
	return browse.GetProperties(s.space, itemID, nil, false)
}

// GetItemProperties returns the requested property ids (or all, if empty)
// with values populated.
func (s *Server) GetItemProperties(itemID string, ids []addrspace.PropertyID) []browse.PropertyValue {
	return browse.GetProperties(s.space, itemID, ids, true)
}

// LookupItemIDs resolves, for each property id, the item id a client would
// address to read that property directly.
func (s *Server) LookupItemIDs(itemID string, ids []addrspace.PropertyID) ([]browse.PropertyItemID, error) {
	return browse.LookupItemIDs(s.space, itemID, ids)
}
