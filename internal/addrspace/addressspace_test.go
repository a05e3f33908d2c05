// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package addrspace

import (
	"testing"
	"time"

	"github.com/opcdaserver/core/internal/opcerrors"
	"github.com/opcdaserver/core/internal/quality"
	"github.com/opcdaserver/core/internal/variant"
	"github.com/stretchr/testify/require"
)

func TestAddLeafRequiresParent(t *testing.T) {
	a := New('.')
	_, err := a.AddLeaf("plant.line1.temp", variant.KindF32, false)
	require.ErrorIs(t, err, opcerrors.ErrParentMissing)

	require.NoError(t, a.AddBranch("plant", false))
	require.NoError(t, a.AddBranch("plant.line1", false))
	tag, err := a.AddLeaf("plant.line1.temp", variant.KindF32, false)
	require.NoError(t, err)
	require.Equal(t, "plant.line1.temp", tag.Path())
}

func TestAddLeafCreateParents(t *testing.T) {
	a := New('.')
	tag, err := a.AddLeaf("plant.line1.temp", variant.KindF32, true)
	require.NoError(t, err)
	require.True(t, a.Exists("plant"))
	require.True(t, a.Exists("plant.line1"))

	got, err := a.GetTag("plant.line1.temp")
	require.NoError(t, err)
	require.Equal(t, tag, got)
}

func TestDuplicateNames(t *testing.T) {
	a := New('.')
	_, err := a.AddLeaf("plant.temp", variant.KindF32, true)
	require.NoError(t, err)

	_, err = a.AddLeaf("plant.temp", variant.KindF32, false)
	require.ErrorIs(t, err, opcerrors.ErrTagAlreadyExists)

	err = a.AddBranch("plant.temp", false)
	require.ErrorIs(t, err, opcerrors.ErrTagAlreadyExists)

	require.NoError(t, a.AddBranch("plant.pump", false))
	err = a.AddBranch("plant.pump", false)
	require.ErrorIs(t, err, opcerrors.ErrBranchAlreadyExists)
}

func TestSetDelimiterLockedAfterFirstTag(t *testing.T) {
	a := New('.')
	require.NoError(t, a.SetDelimiter('/'))
	_, err := a.AddLeaf("plant/temp", variant.KindF32, true)
	require.NoError(t, err)
	err = a.SetDelimiter('.')
	require.ErrorIs(t, err, opcerrors.ErrInvalidOperation)
}

func TestGetTagByHandleAndRemove(t *testing.T) {
	a := New('.')
	tag, err := a.AddLeaf("plant.line1.temp", variant.KindF32, true)
	require.NoError(t, err)

	got, err := a.GetTagByHandle(tag.ServerHandle())
	require.NoError(t, err)
	require.Equal(t, tag, got)

	require.NoError(t, a.Remove("plant.line1"))
	_, err = a.GetTagByHandle(tag.ServerHandle())
	require.ErrorIs(t, err, opcerrors.ErrInvalidHandle)
	require.False(t, a.Exists("plant.line1"))
	require.True(t, a.Exists("plant"))
}

func TestTagWriteCoercesAndNotifies(t *testing.T) {
	a := New('.')
	tag, err := a.AddLeaf("plant.temp", variant.KindF32, true)
	require.NoError(t, err)
	tag.SetWritable(true)

	dirty := make(chan struct{}, 1)
	unsub := tag.Subscribe(&markDirtyFunc{f: func() { dirty <- struct{}{} }})
	defer unsub()

	require.NoError(t, tag.Write(variant.Int32(42), nil, time.Time{}))
	v, q, ts := tag.Read()
	require.Equal(t, float32(42), v.Raw)
	require.True(t, q.IsGood())
	require.False(t, ts.IsZero())

	select {
	case <-dirty:
	default:
		t.Fatal("expected subscriber notification")
	}

	err = tag.Write(variant.String("not a number"), nil, time.Time{})
	require.ErrorIs(t, err, opcerrors.ErrBadType)
}

func TestTagWriteExplicitQuality(t *testing.T) {
	a := New('.')
	tag, err := a.AddLeaf("plant.temp", variant.KindF32, true)
	require.NoError(t, err)

	bad := quality.Bad
	require.NoError(t, tag.Write(variant.Float32(1.5), &bad, time.Time{}))
	_, q, _ := tag.Read()
	require.True(t, q.IsBad())
}

func TestBrowse(t *testing.T) {
	a := New('.')
	_, err := a.AddLeaf("plant.line1.temp", variant.KindF32, true)
	require.NoError(t, err)
	_, err = a.AddLeaf("plant.line1.pressure", variant.KindF32, true)
	require.NoError(t, err)
	require.NoError(t, a.AddBranch("plant.line2", true))

	c := a.NewCrawler()
	require.NoError(t, c.GoTo("plant"))
	entries, err := c.Browse(BrowseAll, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "line1", entries[0].ShortName)
	require.False(t, entries[0].IsLeaf)
	require.Equal(t, "line2", entries[1].ShortName)

	require.NoError(t, c.GoTo("plant.line1"))
	leaves, err := c.Browse(BrowseLeavesOnly, "temp*")
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	require.Equal(t, "plant.line1.temp", leaves[0].FullPath)

	c.GoUp()
	require.Equal(t, "plant", c.Position())
	c.GoToRoot()
	require.Equal(t, "", c.Position())
}

func TestMatchGlob(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"*", "anything", true},
		{"temp?", "temp1", true},
		{"temp?", "temp12", false},
		{"TEMP*", "temperature", true},
		{"[abc]*", "apple", true},
		{"[abc]*", "zebra", false},
		{"[!abc]*", "zebra", true},
		{"[a-z]*", "Banana", true},
		{"plant.line1.*", "plant.line1.temp", true},
	}
	for _, c := range cases {
		require.Equal(t, c.want, MatchGlob(c.pattern, c.name), "pattern=%q name=%q", c.pattern, c.name)
	}
}

// markDirtyFunc adapts a func to Subscriber. It is a pointer-receiver
// struct because Tag keys its subscribers by value, which a func cannot be.
type markDirtyFunc struct{ f func() }

func (m *markDirtyFunc) MarkDirty() { m.f() }
