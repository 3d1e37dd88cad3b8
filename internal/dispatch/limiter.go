// Package dispatch enforces the rolling-window notification cap and
// forwards admitted listings to the notification transport.
package dispatch

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"carwatch/internal/matcher"
	"carwatch/internal/model"
	"carwatch/internal/storage"
)

const windowSpan = time.Hour

// Notifier is the outbound transport the limiter forwards admitted
// listings to.
type Notifier interface {
	SendListing(l model.Listing, res model.MatchResult) error
}

// Limiter admits deduplicated, accepted listings under the per-hour cap.
// The sliding window lives in memory only; a restart starts it empty,
// which can briefly under-count the true dispatch rate.
type Limiter struct {
	store    storage.Storage
	notifier Notifier
	log      *slog.Logger
	cap      int

	window []time.Time
	now    func() time.Time
}

// New creates a Limiter with the given hourly cap.
func New(store storage.Storage, notifier Notifier, cap int, log *slog.Logger) *Limiter {
	return &Limiter{
		store:    store,
		notifier: notifier,
		log:      log,
		cap:      cap,
		now:      time.Now,
	}
}

// SetClock overrides the limiter's clock (useful for testing).
func (d *Limiter) SetClock(now func() time.Time) {
	d.now = now
}

// Dispatch sends as many candidates as the window allows, highest score
// first (ties keep cycle order). Admitted listings consume quota even if
// the transport rejects them; only successfully sent listings are marked
// seen, so everything else stays eligible for a later cycle.
func (d *Limiter) Dispatch(ctx context.Context, candidates []matcher.Scored) int {
	sorted := make([]matcher.Scored, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Result.Score > sorted[j].Result.Score
	})

	sent := 0
	for _, c := range sorted {
		if ctx.Err() != nil {
			return sent
		}

		now := d.now()
		d.evict(now)
		if len(d.window) >= d.cap {
			d.log.Warn("notification cap reached, dropping remaining candidates",
				"cap", d.cap, "remaining", len(sorted)-sent)
			break
		}
		d.window = append(d.window, now)

		key := c.Listing.Key()
		if err := d.notifier.SendListing(c.Listing, c.Result); err != nil {
			d.log.Error("send notification", "key", key, "error", err)
			if err := d.store.LogNotification(ctx, key, false); err != nil {
				d.log.Error("log notification", "key", key, "error", err)
			}
			continue
		}
		sent++

		rec := model.SeenRecord{
			Key:          key,
			Source:       c.Listing.Source,
			URL:          c.Listing.URL,
			Title:        c.Listing.Title,
			Price:        c.Listing.Price,
			FirstSeen:    now,
			LastNotified: &now,
		}
		if err := d.store.MarkSeen(ctx, rec); err != nil {
			d.log.Error("mark seen", "key", key, "error", err)
		}
		if err := d.store.LogNotification(ctx, key, true); err != nil {
			d.log.Error("log notification", "key", key, "error", err)
		}
	}
	return sent
}

// evict drops window entries older than one hour.
func (d *Limiter) evict(now time.Time) {
	cutoff := now.Add(-windowSpan)
	i := 0
	for i < len(d.window) && !d.window[i].After(cutoff) {
		i++
	}
	d.window = d.window[i:]
}
