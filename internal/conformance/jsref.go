// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package conformance

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

//go:embed canonicalize.js
var canonicalizeJS string

// JSReference runs the JavaScript canonical encoder in an embedded runtime,
// standing in for a browser or Node client.
type JSReference struct {
	mu       sync.Mutex
	vm       *goja.Runtime
	json     goja.Callable
	signable goja.Callable
}

// NewJSReference compiles the reference script.
func NewJSReference() (*JSReference, error) {
	vm := goja.New()
	if _, err := vm.RunString(canonicalizeJS); err != nil {
		return nil, fmt.Errorf("load reference script: %w", err)
	}

	canon, ok := goja.AssertFunction(vm.Get("canonicalizeJSON"))
	if !ok {
		return nil, fmt.Errorf("reference script does not define canonicalizeJSON")
	}
	signable, ok := goja.AssertFunction(vm.Get("signableObject"))
	if !ok {
		return nil, fmt.Errorf("reference script does not define signableObject")
	}
	return &JSReference{vm: vm, json: canon, signable: signable}, nil
}

// Canonicalize parses text with JSON.parse and returns its canonical form.
func (r *JSReference) Canonicalize(text string) (string, error) {
	return r.call(r.json, text)
}

// Signable returns the canonical signed object for the given fields.
func (r *JSReference) Signable(action, nonce, payload string, timestamp int64) (string, error) {
	return r.call(r.signable, action, nonce, payload, timestamp)
}

func (r *JSReference) call(fn goja.Callable, args ...any) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	vals := make([]goja.Value, len(args))
	for i, a := range args {
		vals[i] = r.vm.ToValue(a)
	}
	res, err := fn(goja.Undefined(), vals...)
	if err != nil {
		if jsErr, ok := err.(*goja.Exception); ok {
			return "", fmt.Errorf("javascript: %s", jsErr.Value().String())
		}
		return "", err
	}
	return res.String(), nil
}

// CheckJS runs the canonical and signable vectors through the JavaScript
// reference. Invalid vectors are skipped since JSON.parse accepts duplicate
// keys.
func CheckJS(v *Vectors) ([]Failure, error) {
	ref, err := NewJSReference()
	if err != nil {
		return nil, err
	}

	var out []Failure
	for _, tc := range v.Canonical {
		got, err := ref.Canonicalize(tc.Input)
		if err != nil {
			out = append(out, Failure{Group: "js/canonical", Name: tc.Name, Err: err})
			continue
		}
		if got != tc.Canonical {
			out = append(out, Failure{Group: "js/canonical", Name: tc.Name, Got: got, Want: tc.Canonical})
		}
	}
	for _, tc := range v.Signatures {
		got, err := ref.Signable(tc.Action, tc.Nonce, tc.Payload, tc.Timestamp)
		if err != nil {
			out = append(out, Failure{Group: "js/signable", Name: tc.Name, Err: err})
			continue
		}
		if got != tc.Signable {
			out = append(out, Failure{Group: "js/signable", Name: tc.Name, Got: got, Want: tc.Signable})
		}
	}
	return out, nil
}
