// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package variant implements the fixed set of canonical value types a tag
// can hold and lossless coercion between them.
package variant

import (
	"fmt"
	"math"
	"time"
)

// Kind identifies a canonical value type. The set is fixed: boolean,
// signed/unsigned integers at every width, both floating point widths,
// string, datetime, and one-dimensional arrays of each scalar.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindI8
	KindU8
	KindI16
	KindU16
	KindI32
	KindU32
	KindI64
	KindU64
	KindF32
	KindF64
	KindString
	KindDateTime

	KindBoolArray
	KindI8Array
	KindU8Array
	KindI16Array
	KindU16Array
	KindI32Array
	KindU32Array
	KindI64Array
	KindU64Array
	KindF32Array
	KindF64Array
	KindStringArray
	KindDateTimeArray
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindI8:
		return "int8"
	case KindU8:
		return "uint8"
	case KindI16:
		return "int16"
	case KindU16:
		return "uint16"
	case KindI32:
		return "int32"
	case KindU32:
		return "uint32"
	case KindI64:
		return "int64"
	case KindU64:
		return "uint64"
	case KindF32:
		return "float32"
	case KindF64:
		return "float64"
	case KindString:
		return "string"
	case KindDateTime:
		return "datetime"
	case KindBoolArray:
		return "[]bool"
	case KindI8Array:
		return "[]int8"
	case KindU8Array:
		return "[]uint8"
	case KindI16Array:
		return "[]int16"
	case KindU16Array:
		return "[]uint16"
	case KindI32Array:
		return "[]int32"
	case KindU32Array:
		return "[]uint32"
	case KindI64Array:
		return "[]int64"
	case KindU64Array:
		return "[]uint64"
	case KindF32Array:
		return "[]float32"
	case KindF64Array:
		return "[]float64"
	case KindStringArray:
		return "[]string"
	case KindDateTimeArray:
		return "[]datetime"
	default:
		return "invalid"
	}
}

// IsArray reports whether k is one of the one-dimensional array kinds.
func (k Kind) IsArray() bool {
	return k >= KindBoolArray && k <= KindDateTimeArray
}

// ElementKind returns the scalar kind backing an array kind (identity for
// scalar kinds).
func (k Kind) ElementKind() Kind {
	if !k.IsArray() {
		return k
	}
	return k - (KindBoolArray - KindBool)
}

// IsNumeric reports whether k is a numeric scalar kind.
func (k Kind) IsNumeric() bool {
	return k >= KindI8 && k <= KindF64
}

// Value is a canonical-typed value. It is empty (invalid) when Kind is
// KindInvalid; writing an empty value to a tag is rejected as a bad type.
type Value struct {
	Kind Kind
	Raw  any
}

// Empty reports whether v carries no value at all.
func (v Value) Empty() bool { return v.Kind == KindInvalid }

func Bool(b bool) Value          { return Value{KindBool, b} }
func Int8(v int8) Value          { return Value{KindI8, v} }
func Uint8(v uint8) Value        { return Value{KindU8, v} }
func Int16(v int16) Value        { return Value{KindI16, v} }
func Uint16(v uint16) Value      { return Value{KindU16, v} }
func Int32(v int32) Value        { return Value{KindI32, v} }
func Uint32(v uint32) Value      { return Value{KindU32, v} }
func Int64(v int64) Value        { return Value{KindI64, v} }
func Uint64(v uint64) Value      { return Value{KindU64, v} }
func Float32(v float32) Value    { return Value{KindF32, v} }
func Float64(v float64) Value    { return Value{KindF64, v} }
func String(v string) Value      { return Value{KindString, v} }
func DateTime(v time.Time) Value { return Value{KindDateTime, v} }

// ErrBadType is returned by Coerce when the conversion is either lossy or
// not representable in the target kind.
var ErrBadType = fmt.Errorf("variant: lossy or incompatible conversion")

// Convertible reports whether values of kind from can ever coerce to kind
// to. Numeric kinds are mutually convertible (whether a concrete value
// survives is checked per value by Coerce); bool, string, and datetime only
// convert to themselves. Used to validate a requested delivery type before
// any value exists to coerce.
func Convertible(from, to Kind) bool {
	if from == KindInvalid || to == KindInvalid {
		return false
	}
	if from == to {
		return true
	}
	if from.IsArray() != to.IsArray() {
		return false
	}
	fe, te := from.ElementKind(), to.ElementKind()
	if fe == te {
		return true
	}
	return fe.IsNumeric() && te.IsNumeric()
}

// Coerce converts v to the target canonical kind, succeeding only if the
// conversion is lossless (round-trips exactly back to the original value).
func Coerce(v Value, target Kind) (Value, error) {
	if v.Empty() {
		return Value{}, ErrBadType
	}
	if v.Kind == target {
		return v, nil
	}
	if v.Kind.IsArray() != target.IsArray() {
		return Value{}, ErrBadType
	}
	if v.Kind.IsArray() {
		return coerceArray(v, target)
	}
	return coerceScalar(v, target)
}

func coerceScalar(v Value, target Kind) (Value, error) {
	// bool/string/datetime only coerce to themselves (handled above);
	// everything else is numeric widening/narrowing validated by a round
	// trip through float64/int64/uint64.
	switch v.Kind {
	case KindBool, KindString, KindDateTime:
		return Value{}, ErrBadType
	}
	switch target {
	case KindBool, KindString, KindDateTime:
		return Value{}, ErrBadType
	}

	f, isFloat, neg, u, i, ok := decompose(v.Raw)
	if !ok {
		return Value{}, ErrBadType
	}

	switch target {
	case KindI8:
		return roundTripInt[int8](i, u, neg, isFloat, f)
	case KindU8:
		return roundTripUint[uint8](i, u, neg, isFloat, f)
	case KindI16:
		return roundTripInt[int16](i, u, neg, isFloat, f)
	case KindU16:
		return roundTripUint[uint16](i, u, neg, isFloat, f)
	case KindI32:
		return roundTripInt[int32](i, u, neg, isFloat, f)
	case KindU32:
		return roundTripUint[uint32](i, u, neg, isFloat, f)
	case KindI64:
		return roundTripInt[int64](i, u, neg, isFloat, f)
	case KindU64:
		return roundTripUint[uint64](i, u, neg, isFloat, f)
	case KindF32:
		return roundTripFloat32(i, u, neg, isFloat, f)
	case KindF64:
		return roundTripFloat64(i, u, neg, isFloat, f)
	}
	return Value{}, ErrBadType
}

// decompose pulls a scalar numeric Raw apart into a float64 view (f,
// isFloat) or an integer view (i for signed magnitude, u for unsigned
// magnitude, neg for sign).
func decompose(raw any) (f float64, isFloat bool, neg bool, u uint64, i int64, ok bool) {
	switch x := raw.(type) {
	case int8:
		return 0, false, x < 0, uint64(abs64(int64(x))), int64(x), true
	case int16:
		return 0, false, x < 0, uint64(abs64(int64(x))), int64(x), true
	case int32:
		return 0, false, x < 0, uint64(abs64(int64(x))), int64(x), true
	case int64:
		return 0, false, x < 0, uint64(abs64(x)), x, true
	case uint8:
		return 0, false, false, uint64(x), int64(x), true
	case uint16:
		return 0, false, false, uint64(x), int64(x), true
	case uint32:
		return 0, false, false, uint64(x), int64(x), true
	case uint64:
		return 0, false, false, x, 0, true
	case float32:
		return float64(x), true, false, 0, 0, true
	case float64:
		return x, true, false, 0, 0, true
	default:
		return 0, false, false, 0, 0, false
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func roundTripInt[T ~int8 | ~int16 | ~int32 | ~int64](i int64, u uint64, neg, isFloat bool, f float64) (Value, error) {
	if isFloat {
		if f != math.Trunc(f) {
			return Value{}, ErrBadType
		}
		i = int64(f)
		if float64(i) != f {
			return Value{}, ErrBadType
		}
	} else if neg {
		i = -int64(u)
	} else {
		if u > math.MaxInt64 {
			return Value{}, ErrBadType
		}
		i = int64(u)
	}
	t := T(i)
	if int64(t) != i {
		return Value{}, ErrBadType
	}
	return valueOf(t), nil
}

func roundTripUint[T ~uint8 | ~uint16 | ~uint32 | ~uint64](i int64, u uint64, neg, isFloat bool, f float64) (Value, error) {
	if isFloat {
		if f != math.Trunc(f) || f < 0 {
			return Value{}, ErrBadType
		}
		u = uint64(f)
		if float64(u) != f {
			return Value{}, ErrBadType
		}
	} else if neg {
		return Value{}, ErrBadType
	}
	t := T(u)
	if uint64(t) != u {
		return Value{}, ErrBadType
	}
	return valueOf(t), nil
}

// intToFloat converts an integer magnitude to float64, failing when the
// mantissa cannot hold the value exactly.
func intToFloat(neg bool, u uint64) (float64, error) {
	if neg {
		i := -int64(u)
		f := float64(i)
		if int64(f) != i {
			return 0, ErrBadType
		}
		return f, nil
	}
	f := float64(u)
	if f >= twoPow64 || uint64(f) != u {
		return 0, ErrBadType
	}
	return f, nil
}

const twoPow64 = float64(1<<63) * 2

func roundTripFloat32(i int64, u uint64, neg, isFloat bool, f float64) (Value, error) {
	if !isFloat {
		var err error
		if f, err = intToFloat(neg, u); err != nil {
			return Value{}, err
		}
	}
	v := float32(f)
	if float64(v) != f {
		return Value{}, ErrBadType
	}
	return Float32(v), nil
}

func roundTripFloat64(i int64, u uint64, neg, isFloat bool, f float64) (Value, error) {
	if !isFloat {
		var err error
		if f, err = intToFloat(neg, u); err != nil {
			return Value{}, err
		}
	}
	return Float64(f), nil
}

func valueOf(t any) Value {
	switch x := t.(type) {
	case int8:
		return Int8(x)
	case uint8:
		return Uint8(x)
	case int16:
		return Int16(x)
	case uint16:
		return Uint16(x)
	case int32:
		return Int32(x)
	case uint32:
		return Uint32(x)
	case int64:
		return Int64(x)
	case uint64:
		return Uint64(x)
	default:
		return Value{}
	}
}

func coerceArray(v Value, target Kind) (Value, error) {
	srcElem := v.Kind.ElementKind()
	dstElem := target.ElementKind()
	switch raw := v.Raw.(type) {
	case []bool:
		if dstElem != KindBool {
			return Value{}, ErrBadType
		}
		return Value{target, append([]bool(nil), raw...)}, nil
	case []string:
		if dstElem != KindString {
			return Value{}, ErrBadType
		}
		return Value{target, append([]string(nil), raw...)}, nil
	case []time.Time:
		if dstElem != KindDateTime {
			return Value{}, ErrBadType
		}
		return Value{target, append([]time.Time(nil), raw...)}, nil
	}
	if srcElem == KindBool || srcElem == KindString || srcElem == KindDateTime {
		return Value{}, ErrBadType
	}
	if dstElem == KindBool || dstElem == KindString || dstElem == KindDateTime {
		return Value{}, ErrBadType
	}
	n := arrayLen(v.Raw)
	out, err := newNumericArray(dstElem, n)
	if err != nil {
		return Value{}, err
	}
	for idx := 0; idx < n; idx++ {
		elem, err := coerceScalar(elemAt(v.Raw, idx), dstElem)
		if err != nil {
			return Value{}, err
		}
		setElemAt(out, idx, elem.Raw)
	}
	return Value{target, out}, nil
}

func arrayLen(raw any) int {
	switch x := raw.(type) {
	case []int8:
		return len(x)
	case []uint8:
		return len(x)
	case []int16:
		return len(x)
	case []uint16:
		return len(x)
	case []int32:
		return len(x)
	case []uint32:
		return len(x)
	case []int64:
		return len(x)
	case []uint64:
		return len(x)
	case []float32:
		return len(x)
	case []float64:
		return len(x)
	}
	return 0
}

func elemAt(raw any, idx int) Value {
	switch x := raw.(type) {
	case []int8:
		return Int8(x[idx])
	case []uint8:
		return Uint8(x[idx])
	case []int16:
		return Int16(x[idx])
	case []uint16:
		return Uint16(x[idx])
	case []int32:
		return Int32(x[idx])
	case []uint32:
		return Uint32(x[idx])
	case []int64:
		return Int64(x[idx])
	case []uint64:
		return Uint64(x[idx])
	case []float32:
		return Float32(x[idx])
	case []float64:
		return Float64(x[idx])
	}
	return Value{}
}

func newNumericArray(k Kind, n int) (any, error) {
	switch k {
	case KindI8:
		return make([]int8, n), nil
	case KindU8:
		return make([]uint8, n), nil
	case KindI16:
		return make([]int16, n), nil
	case KindU16:
		return make([]uint16, n), nil
	case KindI32:
		return make([]int32, n), nil
	case KindU32:
		return make([]uint32, n), nil
	case KindI64:
		return make([]int64, n), nil
	case KindU64:
		return make([]uint64, n), nil
	case KindF32:
		return make([]float32, n), nil
	case KindF64:
		return make([]float64, n), nil
	default:
		return nil, ErrBadType
	}
}

func setElemAt(arr any, idx int, v any) {
	switch a := arr.(type) {
	case []int8:
		a[idx] = v.(int8)
	case []uint8:
		a[idx] = v.(uint8)
	case []int16:
		a[idx] = v.(int16)
	case []uint16:
		a[idx] = v.(uint16)
	case []int32:
		a[idx] = v.(int32)
	case []uint32:
		a[idx] = v.(uint32)
	case []int64:
		a[idx] = v.(int64)
	case []uint64:
		a[idx] = v.(uint64)
	case []float32:
		a[idx] = v.(float32)
	case []float64:
		a[idx] = v.(float64)
	}
}
