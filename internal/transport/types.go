// Package transport implements the multi-endpoint query client (C2): a
// uniform request interface over an ordered endpoint list with retry,
// backoff, and transport fallback between a binary gRPC transport and a
// JSON-over-HTTP (REST) transport.
package transport

import (
	"fmt"
)

// Operation identifies a query by its logical name, drawn from the closed
// set the specification names. Operations are never freeform strings at
// call sites — only the typed constants below are valid.
type Operation string

const (
	OpBankBalance        Operation = "BankBalance"
	OpBankAllBalances    Operation = "BankAllBalances"
	OpBankSupplyByDenom  Operation = "BankSupplyByDenom"
	OpIbcChannel         Operation = "IbcChannel"
	OpIbcConnection      Operation = "IbcConnection"
	OpIbcClientState     Operation = "IbcClientState"
	OpIbcDenomTrace      Operation = "IbcDenomTrace"
	OpTendermintNodeInfo Operation = "TendermintNodeInfo"
	OpIbcEscrowAddress   Operation = "IbcEscrowAddress"
	OpAbciInfo           Operation = "AbciInfo"
)

// Params carries the named parameters a given Operation needs. Which keys
// are read depends on the operation; see restPath in text.go for the
// authoritative mapping.
type Params map[string]string

// Coin is a single denom/amount pair as the Cosmos SDK bank module reports
// it. Amount is left as a string here (as the wire format sends it); callers
// convert to decimal.Decimal where arithmetic is needed.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// BalanceResult is the normalized response of BankBalance.
type BalanceResult struct {
	Balance Coin `json:"balance"`
}

// AllBalancesResult is the normalized response of BankAllBalances.
type AllBalancesResult struct {
	Balances []Coin `json:"balances"`
}

// SupplyResult is the normalized response of BankSupplyByDenom.
type SupplyResult struct {
	Amount Coin `json:"amount"`
}

// DenomTraceResult is the normalized response of IbcDenomTrace.
type DenomTraceResult struct {
	Path      string `json:"path"`
	BaseDenom string `json:"base_denom"`
}

// ChannelCounterparty identifies the far end of a channel.
type ChannelCounterparty struct {
	PortID    string `json:"port_id"`
	ChannelID string `json:"channel_id"`
}

// ChannelResult is the normalized response of IbcChannel.
type ChannelResult struct {
	State          string              `json:"state"`
	Ordering       string              `json:"ordering"`
	Counterparty   ChannelCounterparty `json:"counterparty"`
	ConnectionHops []string            `json:"connection_hops"`
	Version        string              `json:"version"`
}

// ConnectionCounterparty identifies the far end of a connection.
type ConnectionCounterparty struct {
	ClientID     string `json:"client_id"`
	ConnectionID string `json:"connection_id"`
}

// ConnectionResult is the normalized response of IbcConnection.
type ConnectionResult struct {
	ClientID     string                 `json:"client_id"`
	Counterparty ConnectionCounterparty `json:"counterparty"`
}

// ClientStateResult is the normalized response of IbcClientState.
type ClientStateResult struct {
	ChainID string `json:"chain_id"`
}

// NodeInfoResult is the normalized response of TendermintNodeInfo.
type NodeInfoResult struct {
	Network    string `json:"network"`
	AppVersion string `json:"app_version"`
}

// EscrowAddressResult is the normalized response of IbcEscrowAddress.
type EscrowAddressResult struct {
	EscrowAddress string `json:"escrow_address"`
}

// AbciInfoResult is the normalized response of AbciInfo, used by the
// descriptor/version cache to probe a chain's running app_version.
type AbciInfoResult struct {
	AppVersion string `json:"version"`
	AppName    string `json:"data"`
}

func (o Operation) String() string { return string(o) }

func missingParam(op Operation, key string) error {
	return fmt.Errorf("operation %s: missing required parameter %q", op, key)
}
