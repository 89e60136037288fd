package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// TextTransport is the JSON-over-HTTP fallback: a GET against the standard
// Cosmos SDK / IBC REST paths named in spec.md §6, decoded as JSON. Some
// deployments (the Sei family) wrap every response in a legacy {"result":
// ...} envelope; SeiFamilyHosts lists host substrings that should be passed
// through verbatim instead.
type TextTransport struct {
	HTTPClient     *http.Client
	SeiFamilyHosts []string
}

// NewTextTransport creates a TextTransport using the given HTTP client.
func NewTextTransport(client *http.Client, seiFamilyHosts []string) *TextTransport {
	return &TextTransport{HTTPClient: client, SeiFamilyHosts: seiFamilyHosts}
}

// restPath maps an Operation and its parameters onto one of the REST paths
// enumerated in spec.md §6.
func restPath(op Operation, p Params) (string, error) {
	switch op {
	case OpBankBalance:
		addr, denom := p["address"], p["denom"]
		if addr == "" {
			return "", missingParam(op, "address")
		}
		if denom == "" {
			return "", missingParam(op, "denom")
		}
		return fmt.Sprintf("/cosmos/bank/v1beta1/balances/%s/by_denom?denom=%s",
			url.PathEscape(addr), url.QueryEscape(denom)), nil
	case OpBankAllBalances:
		addr := p["address"]
		if addr == "" {
			return "", missingParam(op, "address")
		}
		path := fmt.Sprintf("/cosmos/bank/v1beta1/balances/%s", url.PathEscape(addr))
		if key := p["pagination_key"]; key != "" {
			path += "?pagination.key=" + url.QueryEscape(key)
		}
		return path, nil
	case OpBankSupplyByDenom:
		denom := p["denom"]
		if denom == "" {
			return "", missingParam(op, "denom")
		}
		return "/cosmos/bank/v1beta1/supply/by_denom?denom=" + url.QueryEscape(denom), nil
	case OpIbcDenomTrace:
		hash := p["hash"]
		if hash == "" {
			return "", missingParam(op, "hash")
		}
		return "/ibc/apps/transfer/v1/denom_traces/" + url.PathEscape(hash), nil
	case OpIbcChannel:
		channel, port := p["channel"], p["port"]
		if channel == "" {
			return "", missingParam(op, "channel")
		}
		if port == "" {
			port = "transfer"
		}
		return fmt.Sprintf("/ibc/core/channel/v1/channels/%s/ports/%s",
			url.PathEscape(channel), url.PathEscape(port)), nil
	case OpIbcConnection:
		id := p["connection_id"]
		if id == "" {
			return "", missingParam(op, "connection_id")
		}
		return "/ibc/core/connection/v1/connections/" + url.PathEscape(id), nil
	case OpIbcClientState:
		id := p["client_id"]
		if id == "" {
			return "", missingParam(op, "client_id")
		}
		return "/ibc/core/client/v1/client_states/" + url.PathEscape(id), nil
	case OpIbcEscrowAddress:
		channel, port := p["channel"], p["port"]
		if channel == "" {
			return "", missingParam(op, "channel")
		}
		if port == "" {
			port = "transfer"
		}
		return fmt.Sprintf("/ibc/apps/transfer/v1/channels/%s/ports/%s/escrow_address",
			url.PathEscape(channel), url.PathEscape(port)), nil
	case OpTendermintNodeInfo:
		return "/cosmos/base/tendermint/v1beta1/node_info", nil
	case OpAbciInfo:
		return "/abci_info", nil
	default:
		return "", fmt.Errorf("unsupported operation for text transport: %s", op)
	}
}

// Fetch issues one GET against endpoint for op and returns the decoded JSON
// body as a generic map. It does not retry or rotate endpoints; that is the
// Client's job (see client.go).
func (t *TextTransport) Fetch(ctx context.Context, endpointURL string, op Operation, params Params) (map[string]any, error) {
	path, err := restPath(op, params)
	if err != nil {
		return nil, err
	}

	fullURL := strings.TrimSuffix(endpointURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", fullURL, err)
	}

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DecodeError{Endpoint: endpointURL, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		switch {
		case noRetryStatus(resp.StatusCode):
			return nil, &ClientError{Endpoint: endpointURL, StatusCode: resp.StatusCode}
		case retryableStatus(resp.StatusCode):
			return nil, &RateLimited{Endpoint: endpointURL, StatusCode: resp.StatusCode}
		case clientErrorStatus(resp.StatusCode):
			return nil, &ClientError{Endpoint: endpointURL, StatusCode: resp.StatusCode}
		default:
			return nil, &RateLimited{Endpoint: endpointURL, StatusCode: resp.StatusCode}
		}
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &DecodeError{Endpoint: endpointURL, Err: err}
	}

	return t.unwrapEnvelope(endpointURL, decoded), nil
}

// unwrapEnvelope strips the legacy top-level "result" envelope some
// deployments still use, unless the endpoint belongs to the Sei family,
// whose responses are passed through verbatim (spec.md §4.2).
func (t *TextTransport) unwrapEnvelope(endpointURL string, decoded map[string]any) map[string]any {
	for _, host := range t.SeiFamilyHosts {
		if host != "" && strings.Contains(endpointURL, host) {
			return decoded
		}
	}
	if inner, ok := decoded["result"].(map[string]any); ok {
		return inner
	}
	return decoded
}
