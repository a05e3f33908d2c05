// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package opcerrors enumerates the per-item and fatal error kinds a client
// operation can surface.
package opcerrors

import "errors"

// Sentinel errors: callers compare with errors.Is, and per-item error
// slices store these values directly.
var (
	ErrInvalidArg               = errors.New("invalid argument")
	ErrInvalidHandle            = errors.New("invalid handle")
	ErrUnknownItemID            = errors.New("unknown item id")
	ErrBadRights                = errors.New("write to non-writable tag")
	ErrBadType                  = errors.New("bad or incompatible type")
	ErrInvalidFilter            = errors.New("invalid filter")
	ErrInvalidPID               = errors.New("invalid property id")
	ErrInvalidContinuationPoint = errors.New("invalid continuation point")
	ErrStillInUse               = errors.New("still in use")
	ErrNoCallback               = errors.New("no callback registered")
	ErrOutOfMemory              = errors.New("out of memory")

	ErrBranchAlreadyExists = errors.New("branch already exists")
	ErrTagAlreadyExists    = errors.New("tag already exists")
	ErrParentMissing       = errors.New("parent branch missing")
	ErrInvalidOperation    = errors.New("invalid operation")

	ErrGroupAlreadyExists = errors.New("group already exists")
)

// Master is the aggregate result of a batch operation: OK if every item
// succeeded, PartialFailure if at least one item failed, or a fatal status
// for failures that abort the whole batch.
type Master int

const (
	MasterOK Master = iota
	MasterPartialFailure
	MasterFatal
)

func (m Master) String() string {
	switch m {
	case MasterOK:
		return "OK"
	case MasterPartialFailure:
		return "PartialFailure"
	case MasterFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// MasterFor derives the aggregate Master result from a slice of per-item
// errors (nil entries mean success).
func MasterFor(perItem []error) Master {
	for _, err := range perItem {
		if err != nil {
			return MasterPartialFailure
		}
	}
	return MasterOK
}
