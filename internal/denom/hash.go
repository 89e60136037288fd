// Package denom implements IBC denom hashing, escrow address derivation,
// and the recursive multi-hop denom trace resolver (C5/C6).
package denom

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// IBCDenom computes the ibc/<HASH> denom for a single port/channel hop over
// a base denom, matching query.ComputeDenomHash's sha256-then-uppercase-hex
// formula but taking the three parts the specification names instead of a
// single pre-joined trace string.
func IBCDenom(port, channel, base string) string {
	trace := fmt.Sprintf("%s/%s/%s", port, channel, base)
	return "ibc/" + sha256Hex(trace)
}

// sha256Hex is the shared hash-then-uppercase-hex primitive behind both
// IBCDenom and the resolver's intermediate-hop rehashing.
func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// SplitPath splits a denom trace's path into its port/channel hop pairs, in
// the order a sender would have to unwind them (first hop first). A path
// that does not split evenly into port/channel pairs is malformed; ok is
// false in that case and hops is nil.
func SplitPath(path string) (hops []Hop, ok bool) {
	if path == "" {
		return nil, false
	}
	segments := strings.Split(path, "/")
	if len(segments)%2 != 0 {
		return nil, false
	}
	hops = make([]Hop, 0, len(segments)/2)
	for i := 0; i+1 < len(segments); i += 2 {
		hops = append(hops, Hop{Port: segments[i], Channel: segments[i+1]})
	}
	return hops, true
}

// Hop is one port/channel pair in a denom trace's path.
type Hop struct {
	Port    string
	Channel string
}

// JoinPath reassembles a sequence of hops back into a trace path string.
func JoinPath(hops []Hop) string {
	parts := make([]string, 0, len(hops)*2)
	for _, h := range hops {
		parts = append(parts, h.Port, h.Channel)
	}
	return strings.Join(parts, "/")
}
