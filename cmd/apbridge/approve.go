// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

// Approval view shown by sign --confirm before the vault is opened.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aplane-algo/apbridge/internal/canonical"
	"github.com/aplane-algo/apbridge/internal/request"
	"github.com/aplane-algo/apbridge/internal/signing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

var (
	buttonActiveStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("42")).
				Padding(0, 1)

	buttonInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250")).
				Padding(0, 1)

	popupStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)
)

// signSummary is what the user approves.
type signSummary struct {
	Action    request.Action
	Chain     signing.ChainID
	Amount    decimal.Decimal
	Threshold decimal.Decimal
	Payload   canonical.Value
}

type approveModel struct {
	summary signSummary
	focus   int // 0 approve, 1 reject
	done    bool
	ok      bool
}

func newApproveModel(s signSummary) approveModel {
	// Large transactions start on Reject
	focus := 0
	if s.Amount.GreaterThanOrEqual(s.Threshold) {
		focus = 1
	}
	return approveModel{summary: s, focus: focus}
}

func (m approveModel) Init() tea.Cmd { return nil }

func (m approveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "left":
		m.focus = 0
	case "right":
		m.focus = 1
	case "tab":
		m.focus = (m.focus + 1) % 2
	case "enter", " ":
		return m.finish(m.focus == 0)
	case "y", "a":
		return m.finish(true)
	case "n", "r", "esc", "q", "ctrl+c":
		return m.finish(false)
	}
	return m, nil
}

func (m approveModel) finish(approved bool) (tea.Model, tea.Cmd) {
	m.done = true
	m.ok = approved
	return m, tea.Quit
}

func (m approveModel) View() string {
	if m.done {
		return ""
	}
	s := m.summary
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Signing Request"))
	sb.WriteString("\n\n")
	sb.WriteString(field("Action", string(s.Action)) + "\n")
	sb.WriteString(field("Chain", s.Chain.String()) + "\n")
	sb.WriteString(field("Amount", s.Amount.String()) + "\n\n")

	if s.Amount.GreaterThanOrEqual(s.Threshold) {
		sb.WriteString(warnStyle.Render(fmt.Sprintf("⚠ At or above the %s threshold: the vault password is always required", s.Threshold)))
		sb.WriteString("\n\n")
	}

	sb.WriteString(dimStyle.Render("Payload") + "\n")
	sb.WriteString(prettyPayload(s.Payload))
	sb.WriteString("\n\n")

	approve, reject := buttonInactiveStyle.Render("  APPROVE"), buttonInactiveStyle.Render("  REJECT")
	if m.focus == 0 {
		approve = buttonActiveStyle.Render("> APPROVE")
	} else {
		reject = buttonActiveStyle.Render("> REJECT")
	}
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, approve, "  ", reject))
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("y/a: Approve | n/r/esc: Reject | Tab/←→: Switch | Enter: Confirm"))

	return popupStyle.Render(sb.String()) + "\n"
}

func prettyPayload(v canonical.Value) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, canonical.Bytes(v), "", "  "); err != nil {
		return canonical.Canonicalize(v)
	}
	return buf.String()
}

// confirmTUI runs the approval view on the terminal.
func (a *app) confirmTUI(s signSummary) (bool, error) {
	p := tea.NewProgram(newApproveModel(s), tea.WithInput(a.stdin), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("approval view failed: %w", err)
	}
	m := final.(approveModel)
	return m.done && m.ok, nil
}
