// Package ibcdata loads and persists ChannelPair bundles: the cached,
// human-inspectable record of which channel on chain A corresponds to
// which channel on chain B. These files supply the local channel id when an
// audit request names none, in any mode, and serve as a diagnostic
// cross-check against the live topology resolver (C4); they are
// never trusted as the sole source of truth for an audit, per the
// specification's open-question resolution (see DESIGN.md).
package ibcdata

import "sort"

// ChannelEndpoint is one side of a ChannelPair.
type ChannelEndpoint struct {
	ChainName string `json:"chain_name"`
	ChannelID string `json:"channel_id"`
}

// ChannelPair is the (chainA, chainB) channel correspondence record.
type ChannelPair struct {
	ChainA   ChannelEndpoint `json:"chain_a"`
	ChainB   ChannelEndpoint `json:"chain_b"`
	Ordering string          `json:"ordering"`
	Version  string          `json:"version"`
	Tags     map[string]any  `json:"tags,omitempty"`
}

// Bundle is the on-disk shape of <data>/ibc/<a>-<b>.json: every known
// channel pair between two chains.
type Bundle struct {
	Channels []ChannelPair `json:"channels"`
}

// BundleFileName returns the alphabetically-sorted, hyphen-joined file name
// for a chain pair, e.g. BundleFileName("osmosis", "cosmoshub") ==
// "cosmoshub-osmosis.json".
func BundleFileName(chainA, chainB string) string {
	names := []string{chainA, chainB}
	sort.Strings(names)
	return names[0] + "-" + names[1] + ".json"
}

// Lookup finds the pair whose two endpoints match (chainA, chainB) in
// either order, returning the endpoints oriented so .ChainA is chainA.
func (b *Bundle) Lookup(chainA, chainB string) (ChannelPair, bool) {
	for _, pair := range b.Channels {
		switch {
		case pair.ChainA.ChainName == chainA && pair.ChainB.ChainName == chainB:
			return pair, true
		case pair.ChainA.ChainName == chainB && pair.ChainB.ChainName == chainA:
			return ChannelPair{
				ChainA:   pair.ChainB,
				ChainB:   pair.ChainA,
				Ordering: pair.Ordering,
				Version:  pair.Version,
				Tags:     pair.Tags,
			}, true
		}
	}
	return ChannelPair{}, false
}
