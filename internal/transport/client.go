package transport

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ibc-tools/escrow-auditor/internal/chainreg"
	"github.com/ibc-tools/escrow-auditor/internal/descriptorcache"
	"github.com/ibc-tools/escrow-auditor/internal/logging"
)

// Client is the multi-endpoint query client (C2): given a chain's
// registered RPC/REST/gRPC endpoints, it issues one logical Operation,
// preferring the binary (gRPC) transport and falling back to text (REST),
// retrying with backoff on transient failures and rotating endpoints on
// hard failures, until either an answer comes back or every endpoint is
// exhausted.
type Client struct {
	Text   *TextTransport
	Binary *BinaryTransport

	Retries      int
	BaseDelay    time.Duration
	AttemptDelay time.Duration
	PreferBinary bool
	log          zerolog.Logger

	// Cache and VersionCheckInterval wire in C3's version-check gate
	// (spec.md §4.3, P10): when set, Query probes a chain's live
	// app_version over REST before trying a binary candidate, and tells
	// the binary transport to bypass its cached schema whenever that probe
	// says the version has moved. Nil Cache disables the gate entirely;
	// BinaryTransport then always trusts whatever schema it already has.
	Cache                *descriptorcache.Cache
	VersionCheckInterval time.Duration
}

// NewClient builds a Client from the given transports and retry policy.
// retries is the total number of attempts made against a single endpoint
// before rotating to the next one (so retries=3 means 3 tries, not 4; values
// below 1 still make one try), and baseDelay is the backoff unit: attempt N waits baseDelay * 2^(N-1).
func NewClient(text *TextTransport, binary *BinaryTransport, retries int, baseDelay, attemptTimeout time.Duration, preferBinary bool) *Client {
	return &Client{
		Text:         text,
		Binary:       binary,
		Retries:      retries,
		BaseDelay:    baseDelay,
		AttemptDelay: attemptTimeout,
		PreferBinary: preferBinary,
		log:          logging.New("transport"),
	}
}

// WithDescriptorCache enables the version-check gate (C3) described on the
// Cache field.
func (c *Client) WithDescriptorCache(cache *descriptorcache.Cache, versionCheckInterval time.Duration) *Client {
	c.Cache = cache
	c.VersionCheckInterval = versionCheckInterval
	return c
}

// endpointCandidate is one (transport kind, address) pair to try, in the
// order the Client should attempt them.
type endpointCandidate struct {
	binary bool
	addr   string
}

func (c *Client) candidates(chain *chainreg.ChainInfo) []endpointCandidate {
	var out []endpointCandidate
	if c.PreferBinary {
		for _, ep := range chain.GRPC {
			out = append(out, endpointCandidate{binary: true, addr: ep.URL})
		}
	}
	for _, ep := range chain.REST {
		out = append(out, endpointCandidate{binary: false, addr: ep.URL})
	}
	if !c.PreferBinary {
		for _, ep := range chain.GRPC {
			out = append(out, endpointCandidate{binary: true, addr: ep.URL})
		}
	}
	return out
}

// Query runs op against chain's configured endpoints and returns the
// decoded response as a generic map. Use the Decode* helpers in decode.go
// to turn the result into one of the typed Result structs.
func (c *Client) Query(ctx context.Context, chain *chainreg.ChainInfo, op Operation, params Params) (map[string]any, error) {
	candidates := c.candidates(chain)
	if len(candidates) == 0 {
		return nil, &EndpointsExhausted{Operation: op, Attempts: 0, LastErr: fmt.Errorf("chain %s has no usable endpoints", chain.ChainID)}
	}

	attempts := 0
	var lastErr error
	forceSchemaRefresh := c.checkSchemaRefresh(ctx, chain)

	for _, cand := range candidates {
		result, err := c.queryOneEndpoint(ctx, cand, op, params, &attempts, forceSchemaRefresh)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var clientErr *ClientError
		if asClientError(err, &clientErr) && clientErrorStatus(clientErr.StatusCode) {
			c.log.Warn().Str("endpoint", cand.addr).Int("status", clientErr.StatusCode).Msg("endpoint returned a non-retryable client error, failing query")
			return nil, err
		}

		c.log.Debug().Str("endpoint", cand.addr).Err(err).Msg("endpoint failed, rotating")
	}

	return nil, &EndpointsExhausted{Operation: op, Attempts: attempts, LastErr: lastErr}
}

// checkSchemaRefresh asks C3 whether chain's live app_version has moved
// since the binary transport's cached schema was last reflected. It probes
// over REST (abci_info) rather than gRPC so the answer never depends on the
// very schema cache it is deciding whether to trust. A nil Cache, a chain
// with no REST endpoints, a failed probe, or a verdict replayed from the
// cache within VersionCheckInterval (no probe made) all report false: no
// forced refresh, since the gate is an optimization, not a correctness requirement
// (a stale cached schema whose message shapes changed would fail decoding
// and surface as a normal query error instead).
func (c *Client) checkSchemaRefresh(ctx context.Context, chain *chainreg.ChainInfo) bool {
	if c.Cache == nil || len(chain.REST) == 0 {
		return false
	}

	needsUpdate, current, _, err := c.Cache.CheckNeedsUpdate(ctx, chain.ChainID, c.VersionCheckInterval, func(probeCtx context.Context) (descriptorcache.VersionProbe, error) {
		raw, err := c.Text.Fetch(probeCtx, chain.REST[0].URL, OpAbciInfo, nil)
		if err != nil {
			return descriptorcache.VersionProbe{}, err
		}
		info, err := DecodeAbciInfo(raw)
		if err != nil {
			return descriptorcache.VersionProbe{}, err
		}
		return descriptorcache.VersionProbe{AppVersion: info.AppVersion, AppName: info.AppName}, nil
	})
	if err != nil {
		c.log.Debug().Str("chain", chain.ChainID).Err(err).Msg("version probe failed, reusing whatever schema is already cached")
		return false
	}
	return needsUpdate && current != ""
}

// queryOneEndpoint runs the retry/backoff loop against a single endpoint
// candidate, returning as soon as the call succeeds, a no-retry status is
// hit, or the retry budget is spent.
func (c *Client) queryOneEndpoint(ctx context.Context, cand endpointCandidate, op Operation, params Params, attempts *int, forceSchemaRefresh bool) (map[string]any, error) {
	var lastErr error

	maxAttempts := c.Retries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(c.BaseDelay) * math.Pow(2, float64(attempt-1)))
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		*attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, c.AttemptDelay)
		var result map[string]any
		var err error
		if cand.binary {
			result, err = c.Binary.Fetch(attemptCtx, cand.addr, op, params, forceSchemaRefresh)
		} else {
			result, err = c.Text.Fetch(attemptCtx, cand.addr, op, params)
		}
		cancel()

		if err == nil {
			return result, nil
		}
		lastErr = err

		var clientErr *ClientError
		if asClientError(err, &clientErr) && noRetryStatus(clientErr.StatusCode) {
			return nil, err
		}
		if asClientError(err, &clientErr) && clientErrorStatus(clientErr.StatusCode) {
			return nil, err
		}
		// RateLimited and network/decode errors fall through and retry.
	}

	return nil, lastErr
}

func asClientError(err error, target **ClientError) bool {
	ce, ok := err.(*ClientError)
	if !ok {
		return false
	}
	*target = ce
	return true
}

// DefaultHTTPClient builds the *http.Client the text transport uses, with a
// bounded timeout so a hung endpoint cannot stall the whole audit.
func DefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
