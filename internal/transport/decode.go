package transport

import "encoding/json"

// decodeInto re-marshals a generic map (as returned by Client.Query) into
// one of the typed Result structs. Both transports normalize their output
// to the same field names before this point, so a single round trip through
// encoding/json is enough regardless of which transport answered.
func decodeInto(raw map[string]any, out any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// DecodeBalance converts a BankBalance response.
func DecodeBalance(raw map[string]any) (BalanceResult, error) {
	var out BalanceResult
	err := decodeInto(raw, &out)
	return out, err
}

// DecodeAllBalances converts a BankAllBalances response.
func DecodeAllBalances(raw map[string]any) (AllBalancesResult, error) {
	var out AllBalancesResult
	err := decodeInto(raw, &out)
	return out, err
}

// DecodeSupply converts a BankSupplyByDenom response.
func DecodeSupply(raw map[string]any) (SupplyResult, error) {
	var out SupplyResult
	err := decodeInto(raw, &out)
	return out, err
}

// DecodeDenomTrace converts an IbcDenomTrace response. The wire format
// nests path/base_denom under "denom_trace"; a response without that
// envelope is decoded from the top level.
func DecodeDenomTrace(raw map[string]any) (DenomTraceResult, error) {
	var out DenomTraceResult
	if nested, ok := raw["denom_trace"].(map[string]any); ok {
		return out, decodeInto(nested, &out)
	}
	return out, decodeInto(raw, &out)
}

// DecodeChannel converts an IbcChannel response. The REST wire format nests
// the fields this package cares about under "channel".
func DecodeChannel(raw map[string]any) (ChannelResult, error) {
	var out ChannelResult
	if nested, ok := raw["channel"].(map[string]any); ok {
		return out, decodeInto(nested, &out)
	}
	return out, decodeInto(raw, &out)
}

// DecodeConnection converts an IbcConnection response, unwrapping the
// REST "connection" envelope when present.
func DecodeConnection(raw map[string]any) (ConnectionResult, error) {
	var out ConnectionResult
	if nested, ok := raw["connection"].(map[string]any); ok {
		return out, decodeInto(nested, &out)
	}
	return out, decodeInto(raw, &out)
}

// DecodeClientState converts an IbcClientState response. The chain_id lives
// inside client_state, which arrives either under identified_client_state
// or at the top level; this decoder unwraps whichever envelope is present.
func DecodeClientState(raw map[string]any) (ClientStateResult, error) {
	var out ClientStateResult
	if state, ok := raw["identified_client_state"].(map[string]any); ok {
		if cs, ok := state["client_state"].(map[string]any); ok {
			return out, decodeInto(cs, &out)
		}
	}
	if cs, ok := raw["client_state"].(map[string]any); ok {
		return out, decodeInto(cs, &out)
	}
	return out, decodeInto(raw, &out)
}

// DecodeNodeInfo converts a TendermintNodeInfo response, pulling network
// and app_version out of the nested default_node_info/application_version
// envelopes the REST API uses.
func DecodeNodeInfo(raw map[string]any) (NodeInfoResult, error) {
	var out NodeInfoResult
	if info, ok := raw["default_node_info"].(map[string]any); ok {
		if network, ok := info["network"].(string); ok {
			out.Network = network
		}
	}
	if appVersion, ok := raw["application_version"].(map[string]any); ok {
		if version, ok := appVersion["version"].(string); ok {
			out.AppVersion = version
		}
	}
	if out.Network == "" {
		_ = decodeInto(raw, &out)
	}
	return out, nil
}

// DecodeEscrowAddress converts an IbcEscrowAddress response.
func DecodeEscrowAddress(raw map[string]any) (EscrowAddressResult, error) {
	var out EscrowAddressResult
	err := decodeInto(raw, &out)
	return out, err
}

// DecodeAbciInfo converts an AbciInfo response, which nests its payload
// under "response" per Tendermint's RPC envelope.
func DecodeAbciInfo(raw map[string]any) (AbciInfoResult, error) {
	var out AbciInfoResult
	if nested, ok := raw["response"].(map[string]any); ok {
		return out, decodeInto(nested, &out)
	}
	return out, decodeInto(raw, &out)
}
