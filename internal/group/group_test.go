// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package group

import (
	"testing"
	"time"

	"github.com/opcdaserver/core/internal/addrspace"
	"github.com/opcdaserver/core/internal/opcerrors"
	"github.com/opcdaserver/core/internal/quality"
	"github.com/opcdaserver/core/internal/variant"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	reads       []readCall
	dataChanges []dataChangeCall
	cancels     []int32
	writes      []writeCall
}

type readCall struct {
	transactionID int32
	handles       []uint64
	values        []interface{}
}

type dataChangeCall struct {
	handles []uint64
	values  []interface{}
}

type writeCall struct {
	handles []uint64
	errs    []error
}

func (s *recordingSink) OnReadComplete(txID int32, _ int32, _ opcerrors.Master, handles []uint64, values []interface{}, _ []uint16, _ []int64, _ []error) {
	s.reads = append(s.reads, readCall{transactionID: txID, handles: handles, values: values})
}
func (s *recordingSink) OnWriteComplete(_ int32, _ int32, _ opcerrors.Master, handles []uint64, errs []error) {
	s.writes = append(s.writes, writeCall{handles: handles, errs: errs})
}
func (s *recordingSink) OnDataChange(_ int32, _ int32, _ opcerrors.Master, handles []uint64, values []interface{}, _ []uint16, _ []int64, _ []error) {
	s.dataChanges = append(s.dataChanges, dataChangeCall{handles: handles, values: values})
}
func (s *recordingSink) OnCancelComplete(_ int32, clientHandle int32) {
	s.cancels = append(s.cancels, clientHandle)
}

func newTestGroup(t *testing.T, deadband float64) (*Group, *addrspace.AddressSpace, *addrspace.Tag) {
	t.Helper()
	space := addrspace.New('.')
	tag, err := space.AddLeaf("line1.temp", variant.KindF32, true)
	require.NoError(t, err)
	tag.SetProperty(addrspace.PropLowEU, variant.Float32(0))
	tag.SetProperty(addrspace.PropHighEU, variant.Float32(100))
	tag.SetWritable(true)
	require.NoError(t, tag.Write(variant.Float32(50), nil, time.Time{}))

	g := New("g1", 1, space, State{Active: true, UpdateRateMs: MinUpdateRateMs, DeadbandPercent: deadband})
	res := g.AddItems([]ItemDef{{ItemID: "line1.temp", Active: true}})
	require.Len(t, res, 1)
	require.NoError(t, res[0].Err)
	return g, space, tag
}

func TestDeadbandHonoured(t *testing.T) {
	g, _, tag := newTestGroup(t, 10)
	sink := &recordingSink{}
	g.RegisterCallback(sink)

	require.NoError(t, tag.Write(variant.Float32(54), nil, time.Time{}))
	g.scanUpdate()
	require.NoError(t, tag.Write(variant.Float32(55), nil, time.Time{}))
	g.scanUpdate()
	require.NoError(t, tag.Write(variant.Float32(56), nil, time.Time{}))
	g.scanUpdate()
	require.Empty(t, sink.dataChanges, "small changes within deadband must not notify")

	require.NoError(t, tag.Write(variant.Float32(61), nil, time.Time{}))
	g.scanUpdate()
	require.Len(t, sink.dataChanges, 1)
	require.Equal(t, float32(61), sink.dataChanges[0].values[0])
}

func TestQualityBypassesDeadband(t *testing.T) {
	g, _, tag := newTestGroup(t, 10)
	sink := &recordingSink{}
	g.RegisterCallback(sink)

	bad := quality.Bad
	require.NoError(t, tag.Write(variant.Float32(50), &bad, time.Time{}))
	g.scanUpdate()
	require.Len(t, sink.dataChanges, 1, "a quality transition must notify despite zero value delta")
}

func TestCancelRaceYieldsExactlyOneCancelCallback(t *testing.T) {
	g, _, _ := newTestGroup(t, 0)
	sink := &recordingSink{}
	g.RegisterCallback(sink)

	handle := g.itemOrder[0]
	cancelID, err := g.AsyncRead(7, []uint64{handle})
	require.NoError(t, err)
	g.Cancel(cancelID)
	g.drainReadQueue()

	require.Len(t, sink.cancels, 1)
	require.Empty(t, sink.reads)
}

func TestAsyncCompletionsFireInEnqueueOrder(t *testing.T) {
	g, _, _ := newTestGroup(t, 0)
	sink := &recordingSink{}
	g.RegisterCallback(sink)

	handle := g.itemOrder[0]
	_, err := g.AsyncRead(1, []uint64{handle})
	require.NoError(t, err)
	_, err = g.AsyncRead(2, []uint64{handle})
	require.NoError(t, err)
	g.drainReadQueue()

	require.Len(t, sink.reads, 2)
	require.Equal(t, int32(1), sink.reads[0].transactionID)
	require.Equal(t, int32(2), sink.reads[1].transactionID)
}

func TestAsyncWriteDeliversPerItemErrors(t *testing.T) {
	g, _, tag := newTestGroup(t, 0)
	sink := &recordingSink{}
	g.RegisterCallback(sink)

	handle := g.itemOrder[0]
	_, err := g.AsyncWrite(3, []WriteRequest{
		{Handle: handle, Value: variant.Float32(42)},
		{Handle: 9999, Value: variant.Float32(1)},
	})
	require.NoError(t, err)
	g.drainWriteQueue()

	require.Len(t, sink.writes, 1)
	require.NoError(t, sink.writes[0].errs[0])
	require.ErrorIs(t, sink.writes[0].errs[1], opcerrors.ErrInvalidHandle)

	v, _, _ := tag.Read()
	require.Equal(t, float32(42), v.Raw)
}

func TestAsyncRefreshDeliversActiveItems(t *testing.T) {
	g, _, _ := newTestGroup(t, 0)
	sink := &recordingSink{}
	g.RegisterCallback(sink)

	_, err := g.AsyncRefresh(4, SourceDevice)
	require.NoError(t, err)
	g.drainRefreshQueue()

	require.Len(t, sink.dataChanges, 1)
	require.Equal(t, float32(50), sink.dataChanges[0].values[0])
}

func TestAsyncRefreshInactiveGroupDropsWithoutCallback(t *testing.T) {
	g, _, _ := newTestGroup(t, 0)
	sink := &recordingSink{}
	g.RegisterCallback(sink)

	_, err := g.SetState(StateUpdate{Active: ptrBool(false)})
	require.NoError(t, err)
	_, err = g.AsyncRefresh(5, SourceCache)
	require.NoError(t, err)
	g.drainRefreshQueue()

	require.Empty(t, sink.dataChanges)
}

func TestAsyncWithoutCallbackFails(t *testing.T) {
	g, _, _ := newTestGroup(t, 0)
	handle := g.itemOrder[0]

	_, err := g.AsyncRead(1, []uint64{handle})
	require.ErrorIs(t, err, opcerrors.ErrNoCallback)
	_, err = g.AsyncWrite(1, []WriteRequest{{Handle: handle, Value: variant.Float32(1)}})
	require.ErrorIs(t, err, opcerrors.ErrNoCallback)
	_, err = g.AsyncRefresh(1, SourceCache)
	require.ErrorIs(t, err, opcerrors.ErrNoCallback)
}

func TestDirtyItemsSurviveMissingSink(t *testing.T) {
	g, _, tag := newTestGroup(t, 0)

	require.NoError(t, tag.Write(variant.Float32(60), nil, time.Time{}))
	g.scanUpdate() // no sink registered: must not consume the change

	sink := &recordingSink{}
	g.RegisterCallback(sink)
	g.scanUpdate()
	require.Len(t, sink.dataChanges, 1)
	require.Equal(t, float32(60), sink.dataChanges[0].values[0])
}

func TestWriteRightsRejected(t *testing.T) {
	g, _, tag := newTestGroup(t, 0)
	tag.SetWritable(false)

	handle := g.itemOrder[0]
	master, errs := g.SyncWrite([]WriteRequest{{Handle: handle, Value: variant.Float32(42)}})
	require.Equal(t, opcerrors.MasterPartialFailure, master)
	require.ErrorIs(t, errs[0], opcerrors.ErrBadRights)

	v, _, _ := tag.Read()
	require.Equal(t, float32(50), v.Raw, "rejected write must not change the tag value")
}

func TestSyncReadRequestedType(t *testing.T) {
	g, _, _ := newTestGroup(t, 0)
	res := g.AddItems([]ItemDef{{ItemID: "line1.temp", Active: true, RequestedType: variant.KindF64}})
	require.NoError(t, res[0].Err)

	master, results := g.SyncRead(SourceDevice, []uint64{res[0].ServerHandle})
	require.Equal(t, opcerrors.MasterOK, master)
	require.Equal(t, variant.KindF64, results[0].Value.Kind)
	require.Equal(t, float64(50), results[0].Value.Raw)
}

func TestAddItemsIncompatibleRequestedType(t *testing.T) {
	g, _, _ := newTestGroup(t, 0)
	res := g.AddItems([]ItemDef{{ItemID: "line1.temp", RequestedType: variant.KindString}})
	require.ErrorIs(t, res[0].Err, opcerrors.ErrBadType)
}

func TestCloneIndependence(t *testing.T) {
	g1, space, _ := newTestGroup(t, 0)
	g2 := g1.Clone("g2", 2)

	require.Equal(t, g1.itemOrder, g2.itemOrder)
	require.False(t, g2.GetState().Active)

	_, err := g1.SetState(StateUpdate{UpdateRateMs: ptrU32(100)})
	require.NoError(t, err)
	require.NotEqual(t, g1.GetState().UpdateRateMs, g2.GetState().UpdateRateMs)

	_, err = space.AddLeaf("line1.pressure", variant.KindF32, true)
	require.NoError(t, err)
	res := g1.AddItems([]ItemDef{{ItemID: "line1.pressure", Active: true}})
	require.NoError(t, res[0].Err)
	require.Len(t, g1.itemOrder, 2)
	require.Len(t, g2.itemOrder, 1, "clone's item list must not see items added to the source afterwards")
}

func TestRemovedTagYieldsInvalidHandle(t *testing.T) {
	g, space, _ := newTestGroup(t, 0)
	handle := g.itemOrder[0]

	require.NoError(t, space.Remove("line1.temp"))

	master, results := g.SyncRead(SourceCache, []uint64{handle})
	require.Equal(t, opcerrors.MasterPartialFailure, master)
	require.ErrorIs(t, results[0].Err, opcerrors.ErrInvalidHandle)

	_, errs := g.SyncWrite([]WriteRequest{{Handle: handle, Value: variant.Float32(1)}})
	require.ErrorIs(t, errs[0], opcerrors.ErrInvalidHandle)

	errs = g.RemoveItems([]uint64{handle})
	require.NoError(t, errs[0], "the item itself stays addressable for removal")
}

func TestRemoveItemTwiceYieldsInvalidHandle(t *testing.T) {
	g, _, _ := newTestGroup(t, 0)
	handle := g.itemOrder[0]

	errs := g.RemoveItems([]uint64{handle})
	require.NoError(t, errs[0])

	errs = g.RemoveItems([]uint64{handle})
	require.ErrorIs(t, errs[0], opcerrors.ErrInvalidHandle)
}

func TestSetStateDeadbandOnNonAnalogGroupFails(t *testing.T) {
	space := addrspace.New('.')
	tag, err := space.AddLeaf("line1.name", variant.KindString, true)
	require.NoError(t, err)
	require.NoError(t, tag.Write(variant.String("ok"), nil, time.Time{}))

	g := New("g1", 1, space, State{UpdateRateMs: MinUpdateRateMs})
	res := g.AddItems([]ItemDef{{ItemID: "line1.name", Active: true}})
	require.NoError(t, res[0].Err)

	_, err = g.SetState(StateUpdate{DeadbandPercent: ptrF64(5)})
	require.ErrorIs(t, err, opcerrors.ErrInvalidFilter)
}

func TestSetStateRevisesUpdateRateToMinimum(t *testing.T) {
	g, _, _ := newTestGroup(t, 0)
	state, err := g.SetState(StateUpdate{UpdateRateMs: ptrU32(1)})
	require.NoError(t, err)
	require.Equal(t, uint32(MinUpdateRateMs), state.UpdateRateMs)
}

func ptrU32(v uint32) *uint32   { return &v }
func ptrF64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool      { return &v }
