package audit

import (
	"context"
	"sync"
)

// maxWorkers bounds worker-pool width, per the specification's
// min(8, #tokens) default.
const maxWorkers = 8

// tokenJob is one token's reconciliation pipeline: derive/trace/compare,
// sequential within itself (each step depends on the last), safe to run
// concurrently with any other tokenJob.
type tokenJob func(ctx context.Context) AuditResult

// runPool fans jobs out across min(maxWorkers, len(jobs)) goroutines and
// collects their results at the same index as the job that produced them,
// so the caller's escrow-enumeration order survives regardless of which
// job actually finishes first — mirroring the teacher's own
// sync.WaitGroup-plus-channel goroutine management idiom (e.g.
// blockberries-blockberry/node/node.go's wg sync.WaitGroup shutdown
// pattern), adapted here to per-audit context cancellation instead of
// process lifetime.
func runPool(ctx context.Context, labels []string, jobs []tokenJob) []AuditResult {
	results := make([]AuditResult, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	workers := maxWorkers
	if len(jobs) < workers {
		workers = len(jobs)
	}

	indices := make(chan int, len(jobs))
	for i := range jobs {
		indices <- i
	}
	close(indices)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indices {
				select {
				case <-ctx.Done():
					results[i] = cancelledResult(labels[i])
				default:
					results[i] = jobs[i](ctx)
				}
			}
		}()
	}
	wg.Wait()

	return results
}

// cancelledResult is substituted for a token whose job never ran because
// the audit's context was already cancelled when its turn came up.
func cancelledResult(token string) AuditResult {
	return AuditResult{
		Denom:  token,
		Status: StatusErrored,
		Errors: []string{(&ErrCancelled{Token: token}).Error()},
	}
}
