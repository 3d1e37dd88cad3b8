package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"carwatch/internal/model"
)

const (
	maxParallelFetches = 4
	backoffCap         = 30 * time.Second
)

// Orchestrator drives one fetch pass across all configured adapters.
// Adapters run in parallel (bounded), each with its own retry/backoff
// budget; one slow or broken source never blocks the others, and a pass
// with zero successful adapters simply yields zero listings.
type Orchestrator struct {
	sources []Source
	log     *slog.Logger

	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

// NewOrchestrator creates an Orchestrator over the given adapters.
func NewOrchestrator(sources []Source, timeout time.Duration, maxRetries int, backoff time.Duration, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		sources:    sources,
		log:        log,
		timeout:    timeout,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// FetchAll queries every adapter and returns the aggregate listing set,
// grouped in adapter order. Adapter failures are logged and skipped.
func (o *Orchestrator) FetchAll(ctx context.Context) []model.Listing {
	results := make([][]model.Listing, len(o.sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)

	for i, src := range o.sources {
		g.Go(func() error {
			listings, err := o.fetchWithRetry(gctx, src)
			if err != nil {
				o.log.Error("source failed for this cycle", "source", src.Name(), "error", err)
				return nil // isolated: never aborts the pass
			}
			o.log.Debug("source fetched", "source", src.Name(), "listings", len(listings))
			results[i] = listings
			return nil
		})
	}
	_ = g.Wait()

	var all []model.Listing
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}

// fetchWithRetry runs one adapter with a per-attempt timeout and
// exponential backoff on transient failures.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, src Source) ([]model.Listing, error) {
	b := retry.WithCappedDuration(backoffCap, retry.NewExponential(o.backoff))
	b = retry.WithMaxRetries(uint64(o.maxRetries), b)

	var listings []model.Listing
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()

		var err error
		listings, err = src.Fetch(attemptCtx)
		if err != nil && IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return listings, nil
}
