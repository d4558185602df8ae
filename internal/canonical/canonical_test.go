// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package canonical

import (
	"errors"
	"math"
	"testing"
)

func TestCanonicalizeSortsKeys(t *testing.T) {
	v := Obj(map[string]Value{
		"option":    Str("yes"),
		"market_id": Str("btc-100k"),
		"amount":    Int(100),
	})
	want := `{"amount":100,"market_id":"btc-100k","option":"yes"}`
	if got := Canonicalize(v); got != want {
		t.Errorf("Canonicalize = %s, want %s", got, want)
	}
}

func TestCanonicalizeNested(t *testing.T) {
	v := Obj(map[string]Value{
		"b": Obj(map[string]Value{
			"d": Int(1),
			"c": Arr(Int(3), Obj(map[string]Value{"z": Bool(true), "a": Null()})),
		}),
		"a": Str("x"),
	})
	want := `{"a":"x","b":{"c":[3,{"a":null,"z":true}],"d":1}}`
	if got := Canonicalize(v); got != want {
		t.Errorf("Canonicalize = %s, want %s", got, want)
	}
}

func TestCanonicalizeKeyPermutations(t *testing.T) {
	inputs := []string{
		`{"a":1,"b":2,"c":3}`,
		`{"c":3,"b":2,"a":1}`,
		`{"b":2,"a":1,"c":3}`,
		`{ "c" : 3 , "a" : 1 , "b" : 2 }`,
	}
	want := `{"a":1,"b":2,"c":3}`
	for _, in := range inputs {
		v, err := ParseString(in)
		if err != nil {
			t.Fatalf("ParseString(%s): %v", in, err)
		}
		if got := Canonicalize(v); got != want {
			t.Errorf("Canonicalize(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestCanonicalizeByteOrder(t *testing.T) {
	// Uppercase sorts before underscore, which sorts before lowercase.
	v := Obj(map[string]Value{"b": Int(1), "B": Int(2), "a": Int(3), "A": Int(4), "_": Int(5)})
	want := `{"A":4,"B":2,"_":5,"a":3,"b":1}`
	if got := Canonicalize(v); got != want {
		t.Errorf("Canonicalize = %s, want %s", got, want)
	}
}

func TestCanonicalizeArrayOrderPreserved(t *testing.T) {
	v := Arr(Int(3), Int(1), Int(2))
	if got := Canonicalize(v); got != "[3,1,2]" {
		t.Errorf("Canonicalize = %s, want [3,1,2]", got)
	}
}

func TestCanonicalizeNumbers(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{100, "100"},
		{-42, "-42"},
		{1.5, "1.5"},
		{0.1, "0.1"},
		{250.75, "250.75"},
		{2.5e3, "2500"},
		{0.000001, "0.000001"},
		{1e-7, "1e-7"},
		{1.5e-7, "1.5e-7"},
		{1e20, "100000000000000000000"},
		{1e21, "1e+21"},
		{1.25e100, "1.25e+100"},
		{-3e-10, "-3e-10"},
		{9007199254740991, "9007199254740991"},
	}
	for _, tc := range tests {
		if got := Canonicalize(Float(tc.in)); got != tc.want {
			t.Errorf("Float(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalizeStrings(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", `""`},
		{"plain", `"plain"`},
		{`quote"back\slash`, `"quote\"back\\slash"`},
		{"tab\tnl\ncr\r", `"tab\tnl\ncr\r"`},
		{"\b\f", `"\b\f"`},
		{"\x00\x1f", `"\u0000\u001f"`},
		{"\x7f", "\"\x7f\""},
		{"<a&b>", `"<a&b>"`},
		{"日本", `"日本"`},
		{" ", "\" \""},
		{"bad\xffutf8", "\"bad�utf8\""},
	}
	for _, tc := range tests {
		if got := Canonicalize(Str(tc.in)); got != tc.want {
			t.Errorf("Str(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalizeDeterministic(t *testing.T) {
	members := make(map[string]Value)
	for _, k := range []string{"z", "y", "x", "w", "v", "u", "t", "s", "r", "q"} {
		members[k] = Str(k)
	}
	v := Obj(members)
	first := Canonicalize(v)
	for i := 0; i < 50; i++ {
		if got := Canonicalize(v); got != first {
			t.Fatalf("iteration %d: %s != %s", i, got, first)
		}
	}
}

func TestFloatPanicsOnNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Float(%v) did not panic", f)
				}
			}()
			Float(f)
		}()
	}
}

func TestIntPanicsOutsideSafeRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Int(2^53) did not panic")
		}
	}()
	Int(1 << 53)
}

func TestParseRejectsDuplicateKeys(t *testing.T) {
	_, err := ParseString(`{"a":1,"a":2}`)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	_, err := ParseString(`{"a":1} {"b":2}`)
	if !errors.Is(err, ErrTrailingData) {
		t.Errorf("err = %v, want ErrTrailingData", err)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{``, `{`, `{"a":}`, `[1,]`, `nul`} {
		if _, err := ParseString(in); err == nil {
			t.Errorf("ParseString(%q) succeeded", in)
		}
	}
}

func TestParseOutOfRangeNumber(t *testing.T) {
	_, err := ParseString(`1e999`)
	if !errors.Is(err, ErrNumberRange) {
		t.Errorf("err = %v, want ErrNumberRange", err)
	}
}

func TestIsCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{`{"a":1,"b":2}`, true},
		{`{"b":2,"a":1}`, false},
		{`{"a": 1}`, false},
		{`{"a":1.0}`, false},
		{`{"a":"\u0041"}`, false},
		{`[]`, true},
		{`not json`, false},
	}
	for _, tc := range tests {
		if got := IsCanonical([]byte(tc.in)); got != tc.want {
			t.Errorf("IsCanonical(%s) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"amount": 100,
		"tags":   []any{"a", true, nil},
		"rate":   0.25,
	})
	if err != nil {
		t.Fatalf("FromGo: %v", err)
	}
	want := `{"amount":100,"rate":0.25,"tags":["a",true,null]}`
	if got := Canonicalize(v); got != want {
		t.Errorf("Canonicalize = %s, want %s", got, want)
	}

	if _, err := FromGo(struct{}{}); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("FromGo(struct) err = %v, want ErrUnsupportedType", err)
	}
	if _, err := FromGo(math.NaN()); !errors.Is(err, ErrNumberRange) {
		t.Errorf("FromGo(NaN) err = %v, want ErrNumberRange", err)
	}
	if _, err := FromGo(int64(1 << 60)); !errors.Is(err, ErrNumberRange) {
		t.Errorf("FromGo(2^60) err = %v, want ErrNumberRange", err)
	}
}

func TestValueAccessors(t *testing.T) {
	v := Obj(map[string]Value{"n": Int(7), "s": Str("x"), "l": Arr(Null())})
	if n, ok := mustGet(t, v, "n").AsNumber(); !ok || n != 7 {
		t.Errorf("n = %v, %v", n, ok)
	}
	if s, ok := mustGet(t, v, "s").AsString(); !ok || s != "x" {
		t.Errorf("s = %q, %v", s, ok)
	}
	if l := mustGet(t, v, "l"); l.Len() != 1 {
		t.Errorf("len(l) = %d", l.Len())
	}
	if got := v.Keys(); len(got) != 3 || got[0] != "l" || got[2] != "s" {
		t.Errorf("Keys = %v", got)
	}

	w := v.With("n", Int(8))
	if n, _ := mustGet(t, v, "n").AsNumber(); n != 7 {
		t.Error("With mutated the receiver")
	}
	if n, _ := mustGet(t, w, "n").AsNumber(); n != 8 {
		t.Error("With did not set the member")
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	var v Value
	if err := v.UnmarshalJSON([]byte(`{"b":[1,2],"a":"x"}`)); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	out, _ := v.MarshalJSON()
	if string(out) != `{"a":"x","b":[1,2]}` {
		t.Errorf("MarshalJSON = %s", out)
	}
}

func mustGet(t *testing.T, v Value, key string) Value {
	t.Helper()
	m, ok := v.Get(key)
	if !ok {
		t.Fatalf("missing key %q", key)
	}
	return m
}
