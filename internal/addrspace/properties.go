// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package addrspace

// PropertyID identifies one of the OPC-style item properties a Tag exposes.
// The numbering follows the standard OPC DA property ids: 1-6 are the
// mandatory, always-present properties; 7 (EU type) and 100+ are the
// optional descriptive and engineering ones.
type PropertyID int

const (
	PropCanonicalType PropertyID = 1
	PropValue         PropertyID = 2
	PropQuality       PropertyID = 3
	PropTimestamp     PropertyID = 4
	PropAccessRights  PropertyID = 5
	PropScanRate      PropertyID = 6

	PropEUType      PropertyID = 7
	PropEUUnits     PropertyID = 100
	PropDescription PropertyID = 101
	PropHighEU      PropertyID = 102
	PropLowEU       PropertyID = 103
	PropHighRange   PropertyID = 104
	PropLowRange    PropertyID = 105
)

// mandatoryProperties are populated on every leaf.
var mandatoryProperties = [...]PropertyID{
	PropCanonicalType,
	PropValue,
	PropQuality,
	PropTimestamp,
	PropAccessRights,
	PropScanRate,
}

// PropertyDescription returns a short human-readable label for id, used by
// property query responses. Unknown ids return "".
func PropertyDescription(id PropertyID) string {
	switch id {
	case PropCanonicalType:
		return "Item Canonical Data Type"
	case PropValue:
		return "Item Value"
	case PropQuality:
		return "Item Quality"
	case PropTimestamp:
		return "Item Timestamp"
	case PropAccessRights:
		return "Item Access Rights"
	case PropScanRate:
		return "Server Scan Rate"
	case PropEUType:
		return "Item EU Type"
	case PropEUUnits:
		return "Item EU Units"
	case PropDescription:
		return "Item Description"
	case PropHighEU:
		return "High EU"
	case PropLowEU:
		return "Low EU"
	case PropHighRange:
		return "High Instrument Range"
	case PropLowRange:
		return "Low Instrument Range"
	default:
		return ""
	}
}
