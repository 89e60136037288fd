package denom

import (
	"context"
	"fmt"
	"strings"

	"github.com/ibc-tools/escrow-auditor/internal/chainreg"
	"github.com/ibc-tools/escrow-auditor/internal/topology"
	"github.com/ibc-tools/escrow-auditor/internal/transport"
)

// DefaultMaxHops bounds how many recursion steps the resolver will take
// before giving up on a trace, per the specification's resource budget.
const DefaultMaxHops = 32

// ErrCycle is returned when a trace revisits a chain already seen earlier
// in the same walk.
type ErrCycle struct {
	ChainID string
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("denom trace revisits chain %s: cycle detected", e.ChainID)
}

// ErrHopLimit is returned when a trace exceeds the configured hop budget.
type ErrHopLimit struct {
	MaxHops int
}

func (e *ErrHopLimit) Error() string {
	return fmt.Sprintf("denom trace exceeded the %d-hop limit", e.MaxHops)
}

// TraceHop records one chain a trace passed through on its way to the
// base denom's origin.
type TraceHop struct {
	ChainID string
	Port    string
	Channel string
}

// UnwrapResult is the outcome of resolving a (possibly wrapped) denom back
// to its base denom and origin chain.
type UnwrapResult struct {
	BaseDenom   string
	OriginChain string
	Hops        []TraceHop
	Complete    bool
	Err         error
}

// Resolver implements the seven-step recursive denom trace walk (C5): peel
// one port/channel pair per recursion, rehash the stripped remaining path
// with base_denom to get the next chain's denom, and resolve the
// counterparty chain live via C4 rather than by parsing a chain name out of
// the trace (no such name fragment exists in the ICS-20 path format).
type Resolver struct {
	client   *transport.Client
	registry *chainreg.Registry
	topo     *topology.Resolver
	maxHops  int
}

// NewResolver builds a Resolver. maxHops<=0 uses DefaultMaxHops.
func NewResolver(client *transport.Client, registry *chainreg.Registry, topo *topology.Resolver, maxHops int) *Resolver {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	return &Resolver{client: client, registry: registry, topo: topo, maxHops: maxHops}
}

// Unwrap resolves denom as seen on chain back to its base denom and origin
// chain, following ICS-20 denom traces across chains as needed.
func (r *Resolver) Unwrap(ctx context.Context, chain *chainreg.ChainInfo, denomStr string) UnwrapResult {
	return r.unwrap(ctx, chain, denomStr, map[string]bool{}, nil)
}

func (r *Resolver) unwrap(ctx context.Context, chain *chainreg.ChainInfo, denomStr string, visited map[string]bool, hops []TraceHop) UnwrapResult {
	// Step 1: a non-ibc/ denom is already the base denom; this chain is
	// its origin.
	if !strings.HasPrefix(denomStr, "ibc/") {
		return UnwrapResult{BaseDenom: denomStr, OriginChain: chain.ChainID, Hops: hops, Complete: true}
	}

	// Step 2: cycle detection.
	if visited[chain.ChainID] {
		return UnwrapResult{BaseDenom: denomStr, OriginChain: chain.ChainID, Hops: hops, Complete: false, Err: &ErrCycle{ChainID: chain.ChainID}}
	}
	if len(hops) >= r.maxHops {
		return UnwrapResult{BaseDenom: denomStr, OriginChain: chain.ChainID, Hops: hops, Complete: false, Err: &ErrHopLimit{MaxHops: r.maxHops}}
	}

	// Step 3: look up the trace on this chain.
	hash := strings.TrimPrefix(denomStr, "ibc/")
	raw, err := r.client.Query(ctx, chain, transport.OpIbcDenomTrace, transport.Params{"hash": hash})
	if err != nil {
		return UnwrapResult{BaseDenom: denomStr, OriginChain: chain.ChainID, Hops: hops, Complete: false, Err: err}
	}
	trace, err := transport.DecodeDenomTrace(raw)
	if err != nil {
		return UnwrapResult{BaseDenom: denomStr, OriginChain: chain.ChainID, Hops: hops, Complete: false, Err: err}
	}

	// Step 4: split the path into port/channel pairs. An odd segment count
	// or an empty path is a malformed trace; reject it rather than peel a
	// bogus trailing hop.
	pathHops, ok := SplitPath(trace.Path)
	if !ok || len(pathHops) == 0 {
		return UnwrapResult{BaseDenom: denomStr, OriginChain: chain.ChainID, Hops: hops, Complete: false, Err: fmt.Errorf("denom trace for %s has an invalid or empty path %q", denomStr, trace.Path)}
	}

	// Step 5: take the outermost hop and resolve its counterparty chain.
	outer := pathHops[0]
	nextHops := append(append([]TraceHop{}, hops...), TraceHop{ChainID: chain.ChainID, Port: outer.Port, Channel: outer.Channel})

	counterparty, err := r.topo.ResolveCounterparty(ctx, chain, outer.Port, outer.Channel)
	if err != nil {
		return UnwrapResult{BaseDenom: denomStr, OriginChain: chain.ChainID, Hops: nextHops, Complete: false, Err: err}
	}

	nextChain, err := r.registry.ByID(counterparty.ChainID)
	if err != nil {
		return UnwrapResult{BaseDenom: denomStr, OriginChain: chain.ChainID, Hops: nextHops, Complete: false, Err: err}
	}

	// Step 6: compute the denom as seen on the counterparty chain by
	// rehashing the stripped remaining path with the base denom.
	remaining := pathHops[1:]
	var nextDenom string
	if len(remaining) == 0 {
		nextDenom = trace.BaseDenom
	} else {
		remainingPath := JoinPath(remaining)
		sum := sha256Hex(remainingPath + "/" + trace.BaseDenom)
		nextDenom = "ibc/" + sum
	}

	// Step 7: recurse on the counterparty chain.
	nextVisited := map[string]bool{}
	for k := range visited {
		nextVisited[k] = true
	}
	nextVisited[chain.ChainID] = true

	return r.unwrap(ctx, nextChain, nextDenom, nextVisited, nextHops)
}
