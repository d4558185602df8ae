// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package canonical implements the deterministic JSON encoding that every
// signed request is computed over.
//
// Values are built from a closed set of kinds (null, bool, number, string,
// array, object). Objects are emitted with their keys sorted byte-wise at
// every depth and no insignificant whitespace, so two encoders on different
// platforms produce identical bytes for the same logical payload. Number and
// string formatting follow ECMAScript JSON.stringify, which is what the
// browser clients and the ledger service emit.
package canonical

import (
	"fmt"
	"math"
	"sort"
)

// Kind identifies which member of the closed value union a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MaxSafeInteger is the largest integer every JSON runtime represents exactly.
const MaxSafeInteger = 1<<53 - 1

// Value is an immutable JSON value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

// Null returns the JSON null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a JSON boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Str returns a JSON string.
func Str(s string) Value { return Value{kind: KindString, s: s} }

// Float returns a JSON number. NaN and infinities have no JSON
// representation; passing one is a programming error and panics.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		panic(fmt.Sprintf("canonical: %v is not representable in JSON", f))
	}
	if f == 0 {
		f = 0 // fold negative zero
	}
	return Value{kind: KindNumber, n: f}
}

// Int returns a JSON number for an integer. Integers outside
// ±MaxSafeInteger would be rounded by the counterpart runtime and panic here;
// encode such quantities as strings.
func Int(i int64) Value {
	if i > MaxSafeInteger || i < -MaxSafeInteger {
		panic(fmt.Sprintf("canonical: integer %d exceeds the safe JSON range", i))
	}
	return Value{kind: KindNumber, n: float64(i)}
}

// Arr returns a JSON array holding the given elements in order.
func Arr(elems ...Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindArray, arr: cp}
}

// Obj returns a JSON object. The map is copied.
func Obj(members map[string]Value) Value {
	cp := make(map[string]Value, len(members))
	for k, v := range members {
		cp[k] = v
	}
	return Value{kind: KindObject, obj: cp}
}

// Kind reports which kind of value v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the number held by v.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Len returns the number of elements of an array or members of an object.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	default:
		return 0
	}
}

// Index returns the i-th element of an array.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Value{}, false
	}
	return v.arr[i], true
}

// Get returns the member of an object stored under key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	m, ok := v.obj[key]
	return m, ok
}

// Keys returns the object's keys in canonical (byte-wise) order.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// With returns a copy of the object v with key set to val.
// Calling With on a non-object panics.
func (v Value) With(key string, val Value) Value {
	if v.kind != KindObject {
		panic("canonical: With called on " + v.kind.String())
	}
	out := Obj(v.obj)
	out.obj[key] = val
	return out
}

// String returns the canonical encoding of v.
func (v Value) String() string { return Canonicalize(v) }

// MarshalJSON emits the canonical encoding, so a Value embedded in a larger
// structure keeps its byte-exact form.
func (v Value) MarshalJSON() ([]byte, error) { return Bytes(v), nil }

// UnmarshalJSON parses JSON text into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
