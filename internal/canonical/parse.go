// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package canonical

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

var (
	// ErrDuplicateKey indicates an object in the input repeats a key.
	ErrDuplicateKey = errors.New("duplicate object key")

	// ErrTrailingData indicates extra content after the top-level value.
	ErrTrailingData = errors.New("trailing data after JSON value")

	// ErrNumberRange indicates a number that cannot be held as a finite float64.
	ErrNumberRange = errors.New("number out of range")

	// ErrUnsupportedType indicates a Go value with no JSON representation.
	ErrUnsupportedType = errors.New("unsupported type")
)

// Parse decodes JSON text into a Value. Duplicate object keys are rejected
// because different runtimes resolve them differently.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, ErrTrailingData
	}
	return v, nil
}

// ParseString is Parse for string input.
func ParseString(s string) (Value, error) {
	return Parse([]byte(s))
}

// IsCanonical reports whether data is already in canonical form.
func IsCanonical(data []byte) bool {
	v, err := Parse(data)
	if err != nil {
		return false
	}
	return bytes.Equal(Bytes(v), data)
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			members := make(map[string]Value)
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key is %T, not string", keyTok)
				}
				if _, dup := members[key]; dup {
					return Value{}, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
				}
				member, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				members[key] = member
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindObject, obj: members}, nil
		case '[':
			elems := []Value{}
			for dec.More() {
				elem, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				elems = append(elems, elem)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindArray, arr: elems}, nil
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %q", rune(t))
		}
	case json.Number:
		return numberValue(string(t))
	case string:
		return Str(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedType, tok)
	}
}

func numberValue(lit string) (Value, error) {
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: %s", ErrNumberRange, lit)
	}
	return Float(f), nil
}

// FromGo converts a decoded Go value (as produced by encoding/json into an
// interface{}) into a Value.
func FromGo(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return Str(t), nil
	case json.Number:
		return numberValue(t.String())
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return Value{}, fmt.Errorf("%w: %v", ErrNumberRange, t)
		}
		return Float(t), nil
	case float32:
		return FromGo(float64(t))
	case int:
		return safeInt(int64(t))
	case int32:
		return safeInt(int64(t))
	case int64:
		return safeInt(t)
	case uint32:
		return safeInt(int64(t))
	case uint64:
		if t > MaxSafeInteger {
			return Value{}, fmt.Errorf("%w: %d", ErrNumberRange, t)
		}
		return safeInt(int64(t))
	case []any:
		elems := make([]Value, len(t))
		for i, e := range t {
			v, err := FromGo(e)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			elems[i] = v
		}
		return Value{kind: KindArray, arr: elems}, nil
	case []string:
		elems := make([]Value, len(t))
		for i, e := range t {
			elems[i] = Str(e)
		}
		return Value{kind: KindArray, arr: elems}, nil
	case map[string]any:
		members := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := FromGo(e)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			members[k] = v
		}
		return Value{kind: KindObject, obj: members}, nil
	case map[string]string:
		members := make(map[string]Value, len(t))
		for k, e := range t {
			members[k] = Str(e)
		}
		return Value{kind: KindObject, obj: members}, nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedType, x)
	}
}

func safeInt(i int64) (Value, error) {
	if i > MaxSafeInteger || i < -MaxSafeInteger {
		return Value{}, fmt.Errorf("%w: %d", ErrNumberRange, i)
	}
	return Int(i), nil
}
