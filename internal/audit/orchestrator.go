package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ibc-tools/escrow-auditor/internal/chainreg"
	"github.com/ibc-tools/escrow-auditor/internal/denom"
	"github.com/ibc-tools/escrow-auditor/internal/ibcdata"
	"github.com/ibc-tools/escrow-auditor/internal/logging"
	"github.com/ibc-tools/escrow-auditor/internal/topology"
	"github.com/ibc-tools/escrow-auditor/internal/transport"
)

// Mode selects which of the three audit algorithms in spec.md §4.7 runs.
type Mode string

const (
	ModeQuick         Mode = "quick"
	ModeComprehensive Mode = "comprehensive"
	ModeManual        Mode = "manual"
)

// defaultEscrowPort is used when a Request leaves EscrowPort empty.
const defaultEscrowPort = "transfer"

// Request is one call into the orchestrator: audit primaryChain against
// secondaryChain, optionally reversed, in the given mode.
type Request struct {
	PrimaryChain   string
	SecondaryChain string
	Mode           Mode
	// ChannelID is the primary chain's channel id. In every mode, a missing
	// value falls back to the cached ibcdata.Bundle hint for this chain
	// pair, and Run fails when no such hint exists.
	ChannelID  string
	Reverse    bool
	EscrowPort string
}

// Report is the ordered collection of AuditResults for one Run: primary
// direction first, reverse direction second when requested, regardless of
// which finishes its own work first.
type Report struct {
	Results []AuditResult
	State   State
}

// Orchestrator drives the audit orchestrator (C7): chain resolution, escrow
// enumeration, per-token tracing and comparison, report assembly.
type Orchestrator struct {
	client   *transport.Client
	registry *chainreg.Registry
	topo     *topology.Resolver
	denoms   *denom.Resolver
	ibc      *ibcdata.Store
	log      zerolog.Logger
}

// NewOrchestrator wires an Orchestrator from its already-constructed
// collaborators; nothing here reaches for a package-level global except the
// default logger fallback, per the explicit-handle-injection design note.
func NewOrchestrator(client *transport.Client, registry *chainreg.Registry, topo *topology.Resolver, denoms *denom.Resolver, ibc *ibcdata.Store) *Orchestrator {
	return &Orchestrator{
		client:   client,
		registry: registry,
		topo:     topo,
		denoms:   denoms,
		ibc:      ibc,
		log:      logging.New("audit"),
	}
}

// Run executes req's mode against its chain pair, returning the assembled
// report or a whole-audit error (ChainUnknown, NoNativeToken, a channel that
// cannot be resolved at all) per spec.md §7's propagation split.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Report, error) {
	tracker := NewTracker()
	port := req.EscrowPort
	if port == "" {
		port = defaultEscrowPort
	}

	if err := tracker.Advance(StateResolvingChains); err != nil {
		return Report{}, err
	}

	primary, err := o.registry.ByName(req.PrimaryChain)
	if err != nil {
		tracker.Advance(StateFailed)
		return Report{}, err
	}
	secondary, err := o.registry.ByName(req.SecondaryChain)
	if err != nil {
		tracker.Advance(StateFailed)
		return Report{}, err
	}

	primaryChannel, err := o.resolveLocalChannel(req.ChannelID, primary.ChainName, secondary.ChainName)
	if err != nil {
		tracker.Advance(StateFailed)
		return Report{}, err
	}

	select {
	case <-ctx.Done():
		tracker.Advance(StateFailed)
		return Report{}, ctx.Err()
	default:
	}

	forwardCounterparty, err := o.topo.ResolveCounterparty(ctx, primary, port, primaryChannel)
	if err != nil {
		tracker.Advance(StateFailed)
		return Report{}, err
	}
	o.crossCheckChannelHint(primary.ChainName, secondary.ChainName, forwardCounterparty.ChannelID)

	results, err := o.reconcileDirection(ctx, tracker, req.Mode, primary, secondary, port, primaryChannel, forwardCounterparty.ChannelID)
	if err != nil {
		tracker.Advance(StateFailed)
		return Report{}, err
	}

	if req.Reverse {
		// Open-question decision: reverse-pass channel derivation is
		// always re-resolved live via C4, never trusted from the
		// forward pass's own result or the cached ibcdata bundle.
		reverseCounterparty, err := o.topo.ResolveCounterparty(ctx, secondary, port, forwardCounterparty.ChannelID)
		if err != nil {
			tracker.Advance(StateFailed)
			return Report{}, err
		}
		reverseResults, err := o.reconcileDirection(ctx, tracker, req.Mode, secondary, primary, port, forwardCounterparty.ChannelID, reverseCounterparty.ChannelID)
		if err != nil {
			tracker.Advance(StateFailed)
			return Report{}, err
		}
		results = append(results, reverseResults...)
	}

	if err := tracker.Advance(StateReporting); err != nil {
		return Report{}, err
	}
	if err := tracker.Advance(StateDone); err != nil {
		return Report{}, err
	}

	return Report{Results: results, State: tracker.Current()}, nil
}

// resolveLocalChannel returns the explicit channel id when given (Manual
// mode, or an explicitly-pinned Quick/Comprehensive run), otherwise falls
// back to the cached ibcdata.Bundle hint for this chain pair.
func (o *Orchestrator) resolveLocalChannel(explicit, chainA, chainB string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	bundle, ok, err := o.ibc.Load(chainA, chainB)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no channel id given and no cached channel pair found for %s/%s", chainA, chainB)
	}
	pair, ok := bundle.Lookup(chainA, chainB)
	if !ok {
		return "", fmt.Errorf("no channel pair between %s and %s in cached bundle", chainA, chainB)
	}
	return pair.ChainA.ChannelID, nil
}

// crossCheckChannelHint logs a debug-level diagnostic when the cached
// ibcdata bundle disagrees with the channel C4 just resolved live, per the
// open-question decision to trust the live resolution but still surface the
// disagreement for operators maintaining the cache file.
func (o *Orchestrator) crossCheckChannelHint(chainA, chainB, liveCounterpartyChannel string) {
	bundle, ok, err := o.ibc.Load(chainA, chainB)
	if err != nil || !ok {
		return
	}
	pair, ok := bundle.Lookup(chainA, chainB)
	if !ok {
		return
	}
	if pair.ChainB.ChannelID != "" && pair.ChainB.ChannelID != liveCounterpartyChannel {
		o.log.Debug().
			Str("chain_a", chainA).Str("chain_b", chainB).
			Str("cached_channel_b", pair.ChainB.ChannelID).
			Str("live_channel_b", liveCounterpartyChannel).
			Msg("cached channel pair disagrees with live topology resolution; trusting the live value")
	}
}

// reconcileDirection runs one direction (local -> counterpart) of the
// requested mode and returns its per-token AuditResults.
func (o *Orchestrator) reconcileDirection(ctx context.Context, tracker *Tracker, mode Mode, local, counterpart *chainreg.ChainInfo, port, localChannel, counterpartChannel string) ([]AuditResult, error) {
	if err := tracker.Advance(StateEnumeratingBalances); err != nil {
		return nil, err
	}

	escrowAddr, err := denom.EscrowAddress(ctx, o.client, local, port, localChannel)
	if err != nil {
		return nil, fmt.Errorf("deriving escrow address for %s channel %s: %w", local.ChainID, localChannel, err)
	}

	if err := tracker.Advance(StateTracing); err != nil {
		return nil, err
	}

	var jobs []tokenJob
	var labels []string

	switch mode {
	case ModeQuick, ModeManual:
		nativeDenom, ok := local.NativeStakingDenom()
		if !ok {
			return nil, &ErrNoNativeToken{ChainID: local.ChainID}
		}
		labels = append(labels, nativeDenom)
		jobs = append(jobs, func(ctx context.Context) AuditResult {
			return o.reconcileNativeToken(ctx, local, counterpart, escrowAddr, port, counterpartChannel, nativeDenom)
		})

	case ModeComprehensive:
		allBalRaw, err := o.client.Query(ctx, local, transport.OpBankAllBalances, transport.Params{"address": escrowAddr})
		if err != nil {
			return nil, fmt.Errorf("enumerating escrow balances on %s: %w", local.ChainID, err)
		}
		allBal, err := transport.DecodeAllBalances(allBalRaw)
		if err != nil {
			return nil, fmt.Errorf("decoding escrow balances on %s: %w", local.ChainID, err)
		}

		for _, coin := range allBal.Balances {
			coin := coin
			labels = append(labels, coin.Denom)
			if strings.HasPrefix(coin.Denom, "ibc/") {
				jobs = append(jobs, func(ctx context.Context) AuditResult {
					return o.reconcileWrappedToken(ctx, local, coin)
				})
			} else {
				jobs = append(jobs, func(ctx context.Context) AuditResult {
					return o.reconcileNativeToken(ctx, local, counterpart, escrowAddr, port, counterpartChannel, coin.Denom)
				})
			}
		}

	default:
		return nil, fmt.Errorf("unknown audit mode %q", mode)
	}

	results := runPool(ctx, labels, jobs)

	if err := tracker.Advance(StateComparing); err != nil {
		return nil, err
	}

	return results, nil
}

// reconcileNativeToken handles both Quick mode's single native token and
// Comprehensive mode's per-native-denom entries: balance on the local
// escrow account compared against the counterparty's supply of the
// forward-hashed wrapped denom.
func (o *Orchestrator) reconcileNativeToken(ctx context.Context, local, counterpart *chainreg.ChainInfo, escrowAddr, port, counterpartChannel, tokenDenom string) AuditResult {
	var errs []error

	escrowAmount := decimal.Zero
	balRaw, err := o.client.Query(ctx, local, transport.OpBankBalance, transport.Params{"address": escrowAddr, "denom": tokenDenom})
	if err != nil {
		errs = append(errs, err)
	} else {
		bal, derr := transport.DecodeBalance(balRaw)
		if derr != nil {
			errs = append(errs, derr)
		} else if bal.Balance.Amount != "" {
			amount, perr := decimal.NewFromString(bal.Balance.Amount)
			if perr != nil {
				errs = append(errs, &transport.DecodeError{Endpoint: local.ChainID, Err: perr})
			} else {
				escrowAmount = amount
			}
		}
	}

	wrappedDenom := denom.IBCDenom(port, counterpartChannel, tokenDenom)

	// Open-question decision: an unavailable counterparty supply surfaces
	// as Errored with the raw escrow balance retained, rather than
	// fabricating a zero discrepancy.
	supplyAmount := decimal.Zero
	supplyRaw, err := o.client.Query(ctx, counterpart, transport.OpBankSupplyByDenom, transport.Params{"denom": wrappedDenom})
	if err != nil {
		errs = append(errs, err)
	} else {
		supply, derr := transport.DecodeSupply(supplyRaw)
		if derr != nil {
			errs = append(errs, derr)
		} else if supply.Amount.Amount != "" {
			amount, perr := decimal.NewFromString(supply.Amount.Amount)
			if perr != nil {
				errs = append(errs, &transport.DecodeError{Endpoint: counterpart.ChainID, Err: perr})
			} else {
				supplyAmount = amount
			}
		}
	}

	return NewAuditResult(local.ChainID, counterpart.ChainID, tokenDenom, tokenDenom, escrowAmount, supplyAmount, true, nil, errs)
}

// reconcileWrappedToken handles Comprehensive mode's ibc/-prefixed escrow
// entries: full C5 unwrap, then a supply query at the resolved origin chain
// for the recovered base denom. Multi-hop tokens (more than one hop peeled)
// are reconciled against the fully-resolved origin rather than an
// independently reconstructed intermediate-hop representation — spec.md §9
// itself calls this component's exact reference behavior an open question;
// this repo's resolution is recorded in DESIGN.md.
func (o *Orchestrator) reconcileWrappedToken(ctx context.Context, local *chainreg.ChainInfo, coin transport.Coin) AuditResult {
	var errs []error

	escrowAmount, err := decimal.NewFromString(coin.Amount)
	if err != nil {
		errs = append(errs, &transport.DecodeError{Endpoint: local.ChainID, Err: err})
	}

	unwrap := o.denoms.Unwrap(ctx, local, coin.Denom)
	if unwrap.Err != nil {
		errs = append(errs, unwrap.Err)
	}

	hops := make([]TraceHopSummary, 0, len(unwrap.Hops))
	for _, h := range unwrap.Hops {
		hops = append(hops, TraceHopSummary{ChainID: h.ChainID, Port: h.Port, Channel: h.Channel})
	}

	supplyAmount := decimal.Zero
	if unwrap.Complete {
		if len(unwrap.Hops) > 1 {
			o.log.Debug().Str("denom", coin.Denom).Int("hops", len(unwrap.Hops)).
				Msg("multi-hop wrapped token reconciled against the fully-resolved origin supply")
		}
		originChain, err := o.registry.ByID(unwrap.OriginChain)
		if err != nil {
			errs = append(errs, err)
		} else {
			supplyRaw, err := o.client.Query(ctx, originChain, transport.OpBankSupplyByDenom, transport.Params{"denom": unwrap.BaseDenom})
			if err != nil {
				errs = append(errs, err)
			} else {
				supply, derr := transport.DecodeSupply(supplyRaw)
				if derr != nil {
					errs = append(errs, derr)
				} else if supply.Amount.Amount != "" {
					amount, perr := decimal.NewFromString(supply.Amount.Amount)
					if perr != nil {
						errs = append(errs, &transport.DecodeError{Endpoint: originChain.ChainID, Err: perr})
					} else {
						supplyAmount = amount
					}
				}
			}
		}
	}

	return NewAuditResult(local.ChainID, unwrap.OriginChain, coin.Denom, unwrap.BaseDenom, escrowAmount, supplyAmount, unwrap.Complete, hops, errs)
}
