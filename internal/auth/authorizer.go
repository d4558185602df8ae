// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/aplane-algo/apbridge/internal/request"
	"github.com/aplane-algo/apbridge/internal/signing"
)

var (
	// ErrUnauthorized is returned when there is no identity to authorize.
	ErrUnauthorized = errors.New("not authorized")

	// ErrForbidden is returned when the identity may not perform the action.
	ErrForbidden = errors.New("forbidden")
)

// Action names an operation being authorized. Wallet requests use their
// request.Action; the operator API uses ActionAdmin.
type Action string

// ActionAdmin covers every operator endpoint.
const ActionAdmin Action = "admin"

// Resource types.
const (
	ResourceChain  = "chain"
	ResourceLedger = "ledger"
)

// Resource identifies what an action targets.
type Resource struct {
	// Type is ResourceChain or ResourceLedger.
	Type string

	// ID is the chain name for ResourceChain.
	ID string
}

// ChainResource returns the Resource for chain.
func ChainResource(chain signing.ChainID) Resource {
	return Resource{Type: ResourceChain, ID: chain.String()}
}

// Authorizer decides whether identity may perform action on resource.
type Authorizer interface {
	Authorize(ctx context.Context, identity *Identity, action Action, resource Resource) error
}

// AllowAllAuthorizer permits everything.
type AllowAllAuthorizer struct{}

// NewAllowAllAuthorizer returns an AllowAllAuthorizer.
func NewAllowAllAuthorizer() *AllowAllAuthorizer {
	return &AllowAllAuthorizer{}
}

func (a *AllowAllAuthorizer) Authorize(ctx context.Context, identity *Identity, action Action, resource Resource) error {
	return nil
}

// ChainAuthorizer restricts wallet actions per chain and reserves
// ActionAdmin for service identities.
type ChainAuthorizer struct {
	allowed map[string]map[Action]bool
}

// DefaultChainPolicy permits transfers and withdrawals on both chains and
// keeps betting and market resolution on the market layer.
func DefaultChainPolicy() map[signing.ChainID][]request.Action {
	return map[signing.ChainID][]request.Action{
		signing.ChainLedger: {request.ActionBridgeTransfer, request.ActionWithdraw},
		signing.ChainMarket: {request.ActionBridgeTransfer, request.ActionWithdraw, request.ActionBet, request.ActionResolve},
	}
}

// NewChainAuthorizer returns an authorizer for policy.
func NewChainAuthorizer(policy map[signing.ChainID][]request.Action) *ChainAuthorizer {
	a := &ChainAuthorizer{allowed: make(map[string]map[Action]bool, len(policy))}
	for chain, actions := range policy {
		set := make(map[Action]bool, len(actions))
		for _, act := range actions {
			set[Action(act)] = true
		}
		a.allowed[chain.String()] = set
	}
	return a
}

// ParseChainPolicy converts the config form (chain name -> action names).
// An empty map yields DefaultChainPolicy.
func ParseChainPolicy(raw map[string][]string) (map[signing.ChainID][]request.Action, error) {
	if len(raw) == 0 {
		return DefaultChainPolicy(), nil
	}
	policy := make(map[signing.ChainID][]request.Action, len(raw))
	for name, actions := range raw {
		chain, err := signing.ParseChainID(name)
		if err != nil {
			return nil, err
		}
		for _, s := range actions {
			act, err := request.ParseAction(s)
			if err != nil {
				return nil, fmt.Errorf("chain %s: %w", name, err)
			}
			policy[chain] = append(policy[chain], act)
		}
	}
	return policy, nil
}

func (a *ChainAuthorizer) Authorize(_ context.Context, identity *Identity, action Action, resource Resource) error {
	if identity == nil {
		return ErrUnauthorized
	}
	if action == ActionAdmin {
		if identity.Type != IdentityService {
			return fmt.Errorf("%w: admin requires operator token", ErrForbidden)
		}
		return nil
	}
	if resource.Type != ResourceChain {
		return fmt.Errorf("%w: %s on %s", ErrForbidden, action, resource.Type)
	}
	if !a.allowed[resource.ID][action] {
		return fmt.Errorf("%w: %s not permitted on %s", ErrForbidden, action, resource.ID)
	}
	return nil
}

var (
	_ Authorizer = (*AllowAllAuthorizer)(nil)
	_ Authorizer = (*ChainAuthorizer)(nil)
)
