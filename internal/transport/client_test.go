package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ibc-tools/escrow-auditor/internal/chainreg"
	"github.com/ibc-tools/escrow-auditor/internal/descriptorcache"
)

func testChain(restURLs ...string) *chainreg.ChainInfo {
	chain := &chainreg.ChainInfo{ChainID: "test-1", ChainName: "test"}
	for _, u := range restURLs {
		chain.REST = append(chain.REST, chainreg.Endpoint{URL: u})
	}
	return chain
}

func newTestClient(retries int) *Client {
	return NewClient(
		NewTextTransport(DefaultHTTPClient(2*time.Second), nil),
		NewBinaryTransport(),
		retries,
		time.Millisecond,
		2*time.Second,
		false,
	)
}

// TestEndpointsExhausted_CountsEveryAttempt (P7): when every endpoint fails,
// the client exhausts its full retry budget on each before rotating, making
// exactly retries attempts per endpoint, and reports the total attempts made.
func TestEndpointsExhausted_CountsEveryAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(3) // exactly 3 attempts per endpoint
	chain := testChain(srv.URL)

	_, err := client.Query(context.Background(), chain, OpBankSupplyByDenom, Params{"denom": "uatom"})
	if err == nil {
		t.Fatal("expected an error, got nil")
	}

	var exhausted *EndpointsExhausted
	if !asEndpointsExhausted(err, &exhausted) {
		t.Fatalf("expected *EndpointsExhausted, got %T: %v", err, err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}
	if calls != 3 {
		t.Errorf("server received %d calls, want 3", calls)
	}
}

// TestNoRetryOnClientError (P8): a non-retryable 4xx (other than 429) from
// the only endpoint must fail immediately, without consuming its retry
// budget.
func TestNoRetryOnClientError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(5)
	chain := testChain(srv.URL)

	_, err := client.Query(context.Background(), chain, OpBankSupplyByDenom, Params{"denom": "uatom"})
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if calls != 1 {
		t.Errorf("server received %d calls, want exactly 1 (no retry on 404)", calls)
	}
}

// TestRotatesOnNoRetryStatus verifies that a 502 from the first endpoint
// causes immediate rotation to the second endpoint rather than retrying
// the first.
func TestRotatesOnNoRetryStatus(t *testing.T) {
	firstCalls := 0
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		firstCalls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer first.Close()

	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"amount":{"denom":"uatom","amount":"42"}}`))
	}))
	defer second.Close()

	client := newTestClient(3)
	chain := testChain(first.URL, second.URL)

	raw, err := client.Query(context.Background(), chain, OpBankSupplyByDenom, Params{"denom": "uatom"})
	if err != nil {
		t.Fatalf("expected success from second endpoint, got %v", err)
	}
	if firstCalls != 1 {
		t.Errorf("first endpoint received %d calls, want 1 (no retry on 502)", firstCalls)
	}

	supply, err := DecodeSupply(raw)
	if err != nil {
		t.Fatalf("DecodeSupply failed: %v", err)
	}
	if supply.Amount.Amount != "42" {
		t.Errorf("Amount = %q, want 42", supply.Amount.Amount)
	}
}

func abciInfoServer(version string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":{"version":"` + version + `","data":"testapp"}}`))
	}))
}

// TestCheckSchemaRefresh_NoCacheForcesRefresh (P10): with no prior version
// baseline, the gate must report true (the pessimistic default C3 uses
// everywhere else), so a binary transport with no cached schema yet re-reflects.
func TestCheckSchemaRefresh_NoCacheForcesRefresh(t *testing.T) {
	srv := abciInfoServer("v1.0.0")
	defer srv.Close()

	client := newTestClient(1)
	client.Cache = descriptorcache.NewCache(t.TempDir(), time.Hour)
	client.VersionCheckInterval = time.Hour
	chain := testChain(srv.URL)

	if !client.checkSchemaRefresh(context.Background(), chain) {
		t.Error("expected forced refresh on the first-ever version probe")
	}
}

// TestCheckSchemaRefresh_MatchingVersionSkipsRefresh (P10): once a baseline
// is recorded, an unchanged live app_version must not force a refresh.
func TestCheckSchemaRefresh_MatchingVersionSkipsRefresh(t *testing.T) {
	srv := abciInfoServer("v1.0.0")
	defer srv.Close()

	client := newTestClient(1)
	client.Cache = descriptorcache.NewCache(t.TempDir(), time.Hour)
	client.VersionCheckInterval = time.Hour
	chain := testChain(srv.URL)

	client.checkSchemaRefresh(context.Background(), chain)
	if client.checkSchemaRefresh(context.Background(), chain) {
		t.Error("expected no forced refresh once the cached and live versions match")
	}
}

// TestCheckSchemaRefresh_VersionChangeForcesRefresh (P10, spec.md §8
// scenario 6): a live app_version that differs from the cached baseline
// must force a refresh.
func TestCheckSchemaRefresh_VersionChangeForcesRefresh(t *testing.T) {
	srv := abciInfoServer("v1.0.0")
	client := newTestClient(1)
	client.Cache = descriptorcache.NewCache(t.TempDir(), time.Hour)
	client.VersionCheckInterval = 0
	chain := testChain(srv.URL)

	client.checkSchemaRefresh(context.Background(), chain)
	srv.Close()

	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":{"version":"v1.0.1","data":"testapp"}}`))
	}))
	defer srv2.Close()
	chain.REST[0].URL = srv2.URL

	if !client.checkSchemaRefresh(context.Background(), chain) {
		t.Error("expected forced refresh after the live app_version changed")
	}
}

// TestCheckSchemaRefresh_NilCacheNeverForces verifies that a Client with no
// descriptor cache attached disables the gate entirely, rather than
// panicking on a nil Cache.
func TestCheckSchemaRefresh_NilCacheNeverForces(t *testing.T) {
	client := newTestClient(1)
	chain := testChain("http://unused.invalid")

	if client.checkSchemaRefresh(context.Background(), chain) {
		t.Error("expected no forced refresh with no descriptor cache attached")
	}
}

func asEndpointsExhausted(err error, target **EndpointsExhausted) bool {
	ee, ok := err.(*EndpointsExhausted)
	if !ok {
		return false
	}
	*target = ee
	return true
}
