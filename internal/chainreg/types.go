// Package chainreg loads and validates per-chain metadata: endpoints,
// bech32 prefix, and native denom. Records are read from a pre-populated
// local store; fetching fresh registry data is the job of the out-of-scope
// registrysync collaborator.
package chainreg

import "fmt"

// Endpoint is a single transport endpoint with an optional provider label.
type Endpoint struct {
	URL      string `toml:"url"`
	Provider string `toml:"provider,omitempty"`
}

// StakingToken describes one of a chain's staking-eligible denoms.
type StakingToken struct {
	Denom string `toml:"denom"`
}

// FeeToken describes one of a chain's fee-eligible denoms.
type FeeToken struct {
	Denom string `toml:"denom"`
}

// ChainInfo is the immutable, validated record for one chain, loaded once
// per audit and never mutated afterward.
type ChainInfo struct {
	ChainName    string `toml:"chain_name"`
	ChainID      string `toml:"chain_id"`
	Bech32Prefix string `toml:"bech32_prefix"`

	RPC  []Endpoint `toml:"rpc"`
	REST []Endpoint `toml:"rest"`
	GRPC []Endpoint `toml:"grpc"`

	Staking struct {
		StakingTokens []StakingToken `toml:"staking_tokens"`
	} `toml:"staking"`
	Fees struct {
		FeeTokens []FeeToken `toml:"fee_tokens"`
	} `toml:"fees"`
}

// ErrChainUnknown is returned when a registry lookup finds no matching
// chain, or when a loaded record fails required-field validation.
type ErrChainUnknown struct {
	ChainID string
	Reason  string
}

func (e *ErrChainUnknown) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("chain unknown: %s (%s)", e.ChainID, e.Reason)
	}
	return fmt.Sprintf("chain unknown: %s", e.ChainID)
}

// NativeStakingDenom returns chain.staking.staking_tokens[0], falling back
// to chain.fees.fee_tokens[0], per the quick-mode native-token resolution
// rule. ok is false when neither list has an entry.
func (c *ChainInfo) NativeStakingDenom() (denom string, ok bool) {
	if len(c.Staking.StakingTokens) > 0 {
		return c.Staking.StakingTokens[0].Denom, true
	}
	if len(c.Fees.FeeTokens) > 0 {
		return c.Fees.FeeTokens[0].Denom, true
	}
	return "", false
}

// validate enforces the required-field rule from the specification: a
// record lacking chain_name, bech32_prefix, or at least one endpoint
// (REST or binary-RPC) is rejected.
func (c *ChainInfo) validate() error {
	if c.ChainName == "" {
		return &ErrChainUnknown{ChainID: c.ChainID, Reason: "missing chain_name"}
	}
	if c.Bech32Prefix == "" {
		return &ErrChainUnknown{ChainID: c.ChainID, Reason: "missing bech32_prefix"}
	}
	if len(c.REST) == 0 && len(c.GRPC) == 0 {
		return &ErrChainUnknown{ChainID: c.ChainID, Reason: "no rest or grpc endpoints configured"}
	}
	return nil
}
