package audit

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ibc-tools/escrow-auditor/internal/denom"
	"github.com/ibc-tools/escrow-auditor/internal/topology"
	"github.com/ibc-tools/escrow-auditor/internal/transport"
)

// TestNewAuditResult_BalancedImpliesZeroDiscrepancy (P9): any AuditResult
// with status=Balanced has discrepancy==0.
func TestNewAuditResult_BalancedImpliesZeroDiscrepancy(t *testing.T) {
	same := decimal.NewFromInt(1_000_000)
	result := NewAuditResult("chain-a", "chain-b", "uatom", "uatom", same, same, true, nil, nil)
	if result.Status != StatusBalanced {
		t.Fatalf("Status = %q, want Balanced", result.Status)
	}
	if !result.Discrepancy.IsZero() {
		t.Errorf("Discrepancy = %s, want zero", result.Discrepancy)
	}
}

func TestNewAuditResult_DiscrepancyWhenAmountsDiffer(t *testing.T) {
	bal := decimal.NewFromInt(1_000_000)
	supply := decimal.NewFromInt(900_000)
	result := NewAuditResult("chain-a", "chain-b", "uatom", "uatom", bal, supply, true, nil, nil)
	if result.Status != StatusDiscrepancy {
		t.Fatalf("Status = %q, want Discrepancy", result.Status)
	}
	want := decimal.NewFromInt(100_000)
	if !result.Discrepancy.Equal(want) {
		t.Errorf("Discrepancy = %s, want %s", result.Discrepancy, want)
	}
}

func TestNewAuditResult_IncompleteOnCycleError(t *testing.T) {
	errs := []error{&denom.ErrCycle{ChainID: "chain-b"}}
	result := NewAuditResult("chain-a", "chain-b", "ibc/ABC", "ibc/ABC", decimal.Zero, decimal.Zero, false, nil, errs)
	if result.Status != StatusIncomplete {
		t.Fatalf("Status = %q, want Incomplete", result.Status)
	}
}

func TestNewAuditResult_IncompleteOnHopLimitError(t *testing.T) {
	errs := []error{&denom.ErrHopLimit{MaxHops: 32}}
	result := NewAuditResult("chain-a", "chain-b", "ibc/ABC", "ibc/ABC", decimal.Zero, decimal.Zero, false, nil, errs)
	if result.Status != StatusIncomplete {
		t.Fatalf("Status = %q, want Incomplete", result.Status)
	}
}

func TestNewAuditResult_IncompleteOnTopologyFailure(t *testing.T) {
	errs := []error{&topology.ErrTopologyResolutionFailed{ChainID: "chain-a", ChannelID: "channel-0", Step: "channel", Err: errors.New("boom")}}
	result := NewAuditResult("chain-a", "chain-b", "ibc/ABC", "ibc/ABC", decimal.Zero, decimal.Zero, false, nil, errs)
	if result.Status != StatusIncomplete {
		t.Fatalf("Status = %q, want Incomplete", result.Status)
	}
}

func TestNewAuditResult_ErroredOnEndpointsExhausted(t *testing.T) {
	bal := decimal.NewFromInt(1_000_000)
	errs := []error{&transport.EndpointsExhausted{Operation: transport.OpBankSupplyByDenom, Attempts: 6, LastErr: errors.New("boom")}}
	result := NewAuditResult("chain-a", "chain-b", "uatom", "uatom", bal, decimal.Zero, true, nil, errs)
	if result.Status != StatusErrored {
		t.Fatalf("Status = %q, want Errored", result.Status)
	}
	if !result.EscrowBalance.Equal(bal) {
		t.Errorf("EscrowBalance = %s, want raw escrow balance %s retained", result.EscrowBalance, bal)
	}
}

func TestWorstStatus(t *testing.T) {
	bal := decimal.NewFromInt(1)
	results := []AuditResult{
		NewAuditResult("a", "b", "x", "x", bal, bal, true, nil, nil),                    // Balanced -> 0
		NewAuditResult("a", "b", "y", "y", bal, decimal.Zero, true, nil, nil),           // Discrepancy -> 1
		NewAuditResult("a", "b", "z", "z", decimal.Zero, decimal.Zero, false, nil, nil), // Incomplete -> 2
	}
	if got := WorstStatus(results); got != 2 {
		t.Errorf("WorstStatus() = %d, want 2", got)
	}
}
