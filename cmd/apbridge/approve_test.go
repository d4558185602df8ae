// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/aplane-algo/apbridge/internal/canonical"
	"github.com/aplane-algo/apbridge/internal/request"
	"github.com/aplane-algo/apbridge/internal/signing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
)

func testSummary(amount int64) signSummary {
	payload, _ := canonical.ParseString(`{"amount":"` + decimal.NewFromInt(amount).String() + `","to":"LDG_00"}`)
	return signSummary{
		Action:    request.ActionWithdraw,
		Chain:     signing.ChainLedger,
		Amount:    decimal.NewFromInt(amount),
		Threshold: decimal.NewFromInt(1000),
		Payload:   payload,
	}
}

func press(m tea.Model, keys ...string) approveModel {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m, _ = m.Update(msg)
	}
	return m.(approveModel)
}

func TestApproveModel(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		keys   []string
		want   bool
	}{
		{"enter approves small", 10, []string{"enter"}, true},
		{"enter rejects large", 5000, []string{"enter"}, false},
		{"left then enter approves large", 5000, []string{"left", "enter"}, true},
		{"tab toggles", 10, []string{"tab", "enter"}, false},
		{"y approves", 5000, []string{"y"}, true},
		{"n rejects", 10, []string{"n"}, false},
		{"esc rejects", 10, []string{"esc"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := press(newApproveModel(testSummary(tt.amount)), tt.keys...)
			if !m.done {
				t.Fatal("model did not finish")
			}
			if m.ok != tt.want {
				t.Errorf("approved = %v, want %v", m.ok, tt.want)
			}
		})
	}
}

func TestApproveModelIgnoresOtherKeys(t *testing.T) {
	m := press(newApproveModel(testSummary(10)), "x", "z")
	if m.done {
		t.Error("unbound keys should not finish the view")
	}
}

func TestApproveView(t *testing.T) {
	view := newApproveModel(testSummary(5000)).View()
	for _, want := range []string{"Signing Request", "withdraw", "5000", "threshold", `"to": "LDG_00"`, "APPROVE", "> REJECT"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if small := newApproveModel(testSummary(10)).View(); strings.Contains(small, "threshold") {
		t.Errorf("small amount should not warn:\n%s", small)
	}
}

func TestSignConfirm(t *testing.T) {
	a := testApp(t, rfcSeedHex, testPassword, testPassword, testPassword)
	createVault(t, a)

	var seen signSummary
	a.confirm = func(s signSummary) (bool, error) {
		seen = s
		return false, nil
	}
	_, err := run(t, a, "sign", "withdraw", `{"amount":"25","to":"LDG_00"}`, "--confirm")
	if !errors.Is(err, errRejected) {
		t.Fatalf("err = %v, want rejection", err)
	}
	if seen.Action != request.ActionWithdraw || !seen.Amount.Equal(decimal.NewFromInt(25)) {
		t.Errorf("summary = %+v", seen)
	}

	// Rejection happens before the password prompt, so the queued answer is still there
	a.confirm = func(signSummary) (bool, error) { return true, nil }
	out, err := run(t, a, "sign", "withdraw", `{"amount":"25","to":"LDG_00"}`, "--confirm")
	if err != nil {
		t.Fatalf("sign: %v\n%s", err, out)
	}
	if !strings.Contains(out, rfcAddress) {
		t.Errorf("envelope missing address:\n%s", out)
	}
}
