// Package topology resolves the chain on the far end of an IBC channel by
// walking channel -> connection -> client_state, each step a live query
// against the local chain (C4).
package topology

import (
	"context"
	"fmt"

	"github.com/ibc-tools/escrow-auditor/internal/chainreg"
	"github.com/ibc-tools/escrow-auditor/internal/transport"
)

// ErrTopologyResolutionFailed wraps whichever of the three steps failed,
// naming the chain, channel, and step so callers can log a precise cause.
type ErrTopologyResolutionFailed struct {
	ChainID   string
	ChannelID string
	Step      string
	Err       error
}

func (e *ErrTopologyResolutionFailed) Error() string {
	return fmt.Sprintf("topology resolution failed for channel %s on %s at step %s: %v",
		e.ChannelID, e.ChainID, e.Step, e.Err)
}

func (e *ErrTopologyResolutionFailed) Unwrap() error { return e.Err }

// Counterparty is the resolved identity of the chain on the far end of a
// local channel. ClientID and ConnectionID are the local chain's own client
// and connection ids for that channel, not the far end's.
type Counterparty struct {
	ChainID      string
	ChainName    string
	ChannelID    string
	PortID       string
	ClientID     string
	ConnectionID string
}

// Resolver walks the three-step topology chain using a transport.Client
// against the local chain, and maps the resulting chain_id back to a
// human chain name using the registry loaded by C1.
type Resolver struct {
	client   *transport.Client
	registry *chainreg.Registry
}

// NewResolver builds a Resolver over the given query client and chain
// registry.
func NewResolver(client *transport.Client, registry *chainreg.Registry) *Resolver {
	return &Resolver{client: client, registry: registry}
}

// ResolveCounterparty performs the three-step walk: Channel (for the
// counterparty port/channel and the connection hop), Connection (for the
// client ID), and ClientState (for the counterparty chain ID). The chain ID
// is then mapped back to a chain name via the registry's ByID index; a
// chain ID the registry does not hold leaves ChainName empty.
func (r *Resolver) ResolveCounterparty(ctx context.Context, local *chainreg.ChainInfo, port, channel string) (Counterparty, error) {
	channelRaw, err := r.client.Query(ctx, local, transport.OpIbcChannel, transport.Params{
		"port": port, "channel": channel,
	})
	if err != nil {
		return Counterparty{}, &ErrTopologyResolutionFailed{ChainID: local.ChainID, ChannelID: channel, Step: "channel", Err: err}
	}
	channelResult, err := transport.DecodeChannel(channelRaw)
	if err != nil {
		return Counterparty{}, &ErrTopologyResolutionFailed{ChainID: local.ChainID, ChannelID: channel, Step: "channel", Err: err}
	}
	if len(channelResult.ConnectionHops) == 0 {
		return Counterparty{}, &ErrTopologyResolutionFailed{ChainID: local.ChainID, ChannelID: channel, Step: "channel", Err: fmt.Errorf("channel has no connection hops")}
	}

	connectionID := channelResult.ConnectionHops[0]
	connectionRaw, err := r.client.Query(ctx, local, transport.OpIbcConnection, transport.Params{
		"connection_id": connectionID,
	})
	if err != nil {
		return Counterparty{}, &ErrTopologyResolutionFailed{ChainID: local.ChainID, ChannelID: channel, Step: "connection", Err: err}
	}
	connectionResult, err := transport.DecodeConnection(connectionRaw)
	if err != nil {
		return Counterparty{}, &ErrTopologyResolutionFailed{ChainID: local.ChainID, ChannelID: channel, Step: "connection", Err: err}
	}

	clientStateRaw, err := r.client.Query(ctx, local, transport.OpIbcClientState, transport.Params{
		"client_id": connectionResult.ClientID,
	})
	if err != nil {
		return Counterparty{}, &ErrTopologyResolutionFailed{ChainID: local.ChainID, ChannelID: channel, Step: "client_state", Err: err}
	}
	clientStateResult, err := transport.DecodeClientState(clientStateRaw)
	if err != nil {
		return Counterparty{}, &ErrTopologyResolutionFailed{ChainID: local.ChainID, ChannelID: channel, Step: "client_state", Err: err}
	}
	if clientStateResult.ChainID == "" {
		return Counterparty{}, &ErrTopologyResolutionFailed{ChainID: local.ChainID, ChannelID: channel, Step: "client_state", Err: fmt.Errorf("client state did not report a chain_id")}
	}

	chainName := r.chainNameFor(clientStateResult.ChainID)

	return Counterparty{
		ChainID:      clientStateResult.ChainID,
		ChainName:    chainName,
		ChannelID:    channelResult.Counterparty.ChannelID,
		PortID:       channelResult.Counterparty.PortID,
		ClientID:     connectionResult.ClientID,
		ConnectionID: connectionID,
	}, nil
}

// chainNameFor maps a chain_id to the registry's ChainName, via the
// registry's indexed ByID lookup, falling back to "" (leaving the raw
// chain_id as the only identifier) when the chain is not registered
// locally — this is expected for chains outside this audit's scope.
func (r *Resolver) chainNameFor(chainID string) string {
	info, err := r.registry.ByID(chainID)
	if err != nil {
		return ""
	}
	return info.ChainName
}
