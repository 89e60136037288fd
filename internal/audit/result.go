package audit

import "github.com/shopspring/decimal"

// Status is the four-way verdict for one AuditResult, per the
// specification's C8 rule.
type Status string

const (
	StatusBalanced    Status = "Balanced"
	StatusDiscrepancy Status = "Discrepancy"
	StatusIncomplete  Status = "Incomplete"
	StatusErrored     Status = "Errored"
)

// TraceHopSummary is the serializable form of a denom trace hop, for
// inclusion in a comprehensive-mode AuditResult.
type TraceHopSummary struct {
	ChainID string `json:"chain_id"`
	Port    string `json:"port"`
	Channel string `json:"channel"`
}

// AuditResult is the outcome of reconciling one token's escrow balance
// against its counterparty supply.
type AuditResult struct {
	ChainA    string          `json:"chain_a"`
	ChainB    string          `json:"chain_b"`
	Denom     string          `json:"denom"`
	BaseDenom string          `json:"base_denom"`

	EscrowBalance      decimal.Decimal `json:"escrow_balance"`
	CounterpartySupply decimal.Decimal `json:"counterparty_supply"`
	Discrepancy        decimal.Decimal `json:"discrepancy"`

	Complete bool              `json:"complete"`
	Hops     []TraceHopSummary `json:"hops,omitempty"`
	Errors   []string          `json:"errors,omitempty"`

	Status Status `json:"status"`
}

// NewAuditResult computes Discrepancy and Status from the supplied balance,
// supply, completeness, and error list, per the specification's four-way
// rule: Balanced iff discrepancy==0 and complete and no errors; Discrepancy
// iff complete and discrepancy!=0; Incomplete iff complete==false with no
// hard error; Errored iff any hard error occurred.
func NewAuditResult(chainA, chainB, tokenDenom, baseDenom string, balance, supply decimal.Decimal, complete bool, hops []TraceHopSummary, errs []error) AuditResult {
	result := AuditResult{
		ChainA:             chainA,
		ChainB:             chainB,
		Denom:              tokenDenom,
		BaseDenom:          baseDenom,
		EscrowBalance:      balance,
		CounterpartySupply: supply,
		Discrepancy:        balance.Sub(supply),
		Complete:           complete,
		Hops:               hops,
	}
	for _, err := range errs {
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}
	result.Status = computeStatus(complete, result.Discrepancy, errs)
	return result
}

// incompleteKinds are the errorKind labels the error taxonomy in spec.md §7
// marks "Token Incomplete" rather than "Token Errored" — a trace that broke
// partway through (cycle, hop limit, topology resolution) is a different
// outcome from a hard transport failure on the reconciliation query itself.
var incompleteKinds = map[string]bool{
	"Cycle":                    true,
	"HopLimit":                 true,
	"TopologyResolutionFailed": true,
}

// computeStatus implements the four-way rule from spec.md §4.8, using
// errorKind (errors.go) to tell a trace-incompleteness error apart from a
// hard transport/query failure: any non-incompleteness error forces
// Errored; otherwise a false complete flag or an incompleteness-only error
// forces Incomplete; otherwise the discrepancy decides Balanced vs.
// Discrepancy.
func computeStatus(complete bool, discrepancy decimal.Decimal, errs []error) Status {
	for _, err := range errs {
		if err != nil && !incompleteKinds[errorKind(err)] {
			return StatusErrored
		}
	}
	if !complete || len(errs) > 0 {
		return StatusIncomplete
	}
	if !discrepancy.IsZero() {
		return StatusDiscrepancy
	}
	return StatusBalanced
}

// exitCodeFor maps a single Status to the CLI exit code the specification
// assigns it (0 balanced, 1 discrepancy, 2 incomplete, 3 hard error).
func exitCodeFor(s Status) int {
	switch s {
	case StatusBalanced:
		return 0
	case StatusDiscrepancy:
		return 1
	case StatusIncomplete:
		return 2
	default:
		return 3
	}
}

// WorstStatus reduces a report's results to the single exit code the CLI
// should return: the highest-severity outcome among all tokens audited.
func WorstStatus(results []AuditResult) int {
	worst := 0
	for _, r := range results {
		if code := exitCodeFor(r.Status); code > worst {
			worst = code
		}
	}
	return worst
}
