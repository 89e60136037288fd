// Package audit implements the audit orchestrator (C7) and the result and
// error model (C8): running the quick, comprehensive, and manual
// reconciliation modes over one or more chain pairs and reporting a
// balanced/discrepancy/incomplete/errored verdict per token.
package audit

import (
	"errors"
	"fmt"

	"github.com/ibc-tools/escrow-auditor/internal/chainreg"
	"github.com/ibc-tools/escrow-auditor/internal/denom"
	"github.com/ibc-tools/escrow-auditor/internal/topology"
	"github.com/ibc-tools/escrow-auditor/internal/transport"
)

// ErrNoNativeToken is returned when a chain has neither a staking token
// nor a fee token configured, so quick mode has nothing to reconcile.
type ErrNoNativeToken struct {
	ChainID string
}

func (e *ErrNoNativeToken) Error() string {
	return fmt.Sprintf("chain %s has no staking or fee token configured", e.ChainID)
}

// ErrCancelled is returned when the orchestrator's context was cancelled
// before a token's reconciliation completed.
type ErrCancelled struct {
	Token string
}

func (e *ErrCancelled) Error() string {
	return fmt.Sprintf("audit of %s cancelled", e.Token)
}

// errorKind classifies an error for the AuditResult.Status computation in
// result.go, without needing to know the orchestrator's concrete error
// types — every package in this repo's error chain (chainreg, transport,
// topology, denom) is consulted via errors.As.
func errorKind(err error) string {
	if err == nil {
		return ""
	}

	var chainUnknown *chainreg.ErrChainUnknown
	var exhausted *transport.EndpointsExhausted
	var clientErr *transport.ClientError
	var rateLimited *transport.RateLimited
	var decodeErr *transport.DecodeError
	var noNative *ErrNoNativeToken
	var topoErr *topology.ErrTopologyResolutionFailed
	var cycleErr *denom.ErrCycle
	var hopErr *denom.ErrHopLimit
	var cancelled *ErrCancelled

	switch {
	case errors.As(err, &chainUnknown):
		return "ChainUnknown"
	case errors.As(err, &exhausted):
		return "EndpointsExhausted"
	case errors.As(err, &clientErr):
		return "ClientError"
	case errors.As(err, &rateLimited):
		return "RateLimited"
	case errors.As(err, &decodeErr):
		return "DecodeError"
	case errors.As(err, &noNative):
		return "NoNativeToken"
	case errors.As(err, &topoErr):
		return "TopologyResolutionFailed"
	case errors.As(err, &cycleErr):
		return "Cycle"
	case errors.As(err, &hopErr):
		return "HopLimit"
	case errors.As(err, &cancelled):
		return "Cancelled"
	default:
		return "Unknown"
	}
}
