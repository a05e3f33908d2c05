// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package devicebridge

import (
	"testing"
	"time"

	"github.com/influxdata/line-protocol/v2/lineprotocol"
	"github.com/stretchr/testify/require"

	"github.com/opcdaserver/core/internal/addrspace"
	"github.com/opcdaserver/core/internal/config"
	"github.com/opcdaserver/core/internal/variant"
)

func zeroConfig() config.NatsConfig { return config.NatsConfig{} }

func encodeSample(t *testing.T, measurement, path string, value float64, ts time.Time) []byte {
	t.Helper()
	var enc lineprotocol.Encoder
	enc.SetPrecision(lineprotocol.Nanosecond)
	enc.StartLine(measurement)
	enc.AddTag("path", path)
	enc.AddField("value", lineprotocol.MustNewValue(value))
	enc.EndLine(ts)
	require.NoError(t, enc.Err())
	return enc.Bytes()
}

func newSpaceWithLeaf(t *testing.T, path string) *addrspace.AddressSpace {
	t.Helper()
	space := addrspace.New('.')
	_, err := space.AddLeaf(path, variant.KindF64, true)
	require.NoError(t, err)
	return space
}

func readValue(t *testing.T, space *addrspace.AddressSpace, path string) any {
	t.Helper()
	tag, err := space.GetTag(path)
	require.NoError(t, err)
	value, _, _ := tag.Read()
	return value.Raw
}

func TestDecodeAndWriteUpdatesTag(t *testing.T) {
	space := newSpaceWithLeaf(t, "line1.temp")
	b := New(space, zeroConfig())

	data := encodeSample(t, "ignored", "line1.temp", 42.5, time.Now())
	require.NoError(t, b.decodeAndWrite("", data))
	require.Equal(t, 42.5, readValue(t, space, "line1.temp"))
}

func TestDecodeAndWriteUnknownPathSkipsWithoutError(t *testing.T) {
	space := addrspace.New('.')
	b := New(space, zeroConfig())

	data := encodeSample(t, "ignored", "no.such.tag", 1, time.Now())
	require.NoError(t, b.decodeAndWrite("", data))
}

func TestDecodeAndWritePrefixesPath(t *testing.T) {
	space := newSpaceWithLeaf(t, "device1.line1.temp")
	b := New(space, zeroConfig())

	data := encodeSample(t, "ignored", "line1.temp", 10, time.Now())
	require.NoError(t, b.decodeAndWrite("device1.", data))
	require.Equal(t, float64(10), readValue(t, space, "device1.line1.temp"))
}

func TestRateLimitDropsExcessSamples(t *testing.T) {
	space := newSpaceWithLeaf(t, "line1.temp")
	b := New(space, config.NatsConfig{MessageRateLimit: 1, MessageRateBurst: 1})

	b.handleMessage("", "test.subject", encodeSample(t, "ignored", "line1.temp", 1, time.Now()))
	require.Equal(t, float64(1), readValue(t, space, "line1.temp"))

	// the burst of one is spent, a second sample in the same instant
	// must be dropped
	b.handleMessage("", "test.subject", encodeSample(t, "ignored", "line1.temp", 2, time.Now()))
	require.Equal(t, float64(1), readValue(t, space, "line1.temp"))
}

func TestRateLimitDisabledByDefault(t *testing.T) {
	space := newSpaceWithLeaf(t, "line1.temp")
	b := New(space, zeroConfig())

	for i := 1; i <= 5; i++ {
		b.handleMessage("", "test.subject", encodeSample(t, "ignored", "line1.temp", float64(i), time.Now()))
	}
	require.Equal(t, float64(5), readValue(t, space, "line1.temp"))
}
