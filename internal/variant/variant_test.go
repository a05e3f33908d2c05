// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package variant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoerceLossless(t *testing.T) {
	cases := []struct {
		name   string
		in     Value
		target Kind
		want   any
	}{
		{"int32 to float64", Int32(42), KindF64, float64(42)},
		{"float64 whole to int16", Float64(1000), KindI16, int16(1000)},
		{"uint8 to int64", Uint8(200), KindI64, int64(200)},
		{"negative int32 to int8", Int32(-100), KindI8, int8(-100)},
		{"float32 to float64", Float32(1.5), KindF64, float64(1.5)},
		{"int32 to float32 small", Int32(1 << 20), KindF32, float32(1 << 20)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Coerce(c.in, c.target)
			require.NoError(t, err)
			require.Equal(t, c.target, got.Kind)
			require.Equal(t, c.want, got.Raw)
		})
	}
}

func TestCoerceLossyFails(t *testing.T) {
	cases := []struct {
		name   string
		in     Value
		target Kind
	}{
		{"fractional float to int", Float64(1.5), KindI32},
		{"overflow int16", Int32(70000), KindI16},
		{"negative to unsigned", Int32(-1), KindU32},
		{"large int64 to float32", Int64((1 << 53) + 1), KindF32},
		{"string to float", String("42"), KindF64},
		{"bool to int", Bool(true), KindI32},
		{"empty value", Value{}, KindF64},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Coerce(c.in, c.target)
			require.ErrorIs(t, err, ErrBadType)
		})
	}
}

func TestCoerceArray(t *testing.T) {
	in := Value{KindI32Array, []int32{1, 2, 3}}
	got, err := Coerce(in, KindF64Array)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, got.Raw)

	_, err = Coerce(Value{KindF64Array, []float64{1.5}}, KindI32Array)
	require.ErrorIs(t, err, ErrBadType)

	_, err = Coerce(in, KindF64)
	require.ErrorIs(t, err, ErrBadType, "array cannot coerce to scalar")
}

func TestCoerceArrayCopies(t *testing.T) {
	src := []int32{1, 2}
	got, err := Coerce(Value{KindI32Array, src}, KindI64Array)
	require.NoError(t, err)
	src[0] = 99
	require.Equal(t, []int64{1, 2}, got.Raw, "coerced array must not alias the source")
}

func TestConvertible(t *testing.T) {
	require.True(t, Convertible(KindI32, KindF64))
	require.True(t, Convertible(KindF64, KindI8), "numeric narrowing is kind-compatible, checked per value")
	require.True(t, Convertible(KindString, KindString))
	require.True(t, Convertible(KindI32Array, KindF64Array))
	require.False(t, Convertible(KindString, KindF64))
	require.False(t, Convertible(KindBool, KindI32))
	require.False(t, Convertible(KindI32, KindI32Array))
	require.False(t, Convertible(KindInvalid, KindF64))
}
