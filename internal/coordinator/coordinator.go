// Package coordinator owns the poll→match→dedup→dispatch→sleep cycle.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"carwatch/internal/matcher"
	"carwatch/internal/model"
	"carwatch/internal/notify"
	"carwatch/internal/storage"
)

// State names the coordinator's position in the cycle state machine.
type State string

// Cycle states.
const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateMatching    State = "matching"
	StateDispatching State = "dispatching"
	StateSleeping    State = "sleeping"
)

const statsEvery = 10

// Fetcher produces the aggregate listing set for one cycle.
type Fetcher interface {
	FetchAll(ctx context.Context) []model.Listing
}

// Dispatcher sends admitted candidates and returns how many went out.
type Dispatcher interface {
	Dispatch(ctx context.Context, candidates []matcher.Scored) int
}

// TextSender sends operator-facing text messages.
type TextSender interface {
	SendText(text string) error
}

// Coordinator runs the infinite monitoring loop. A failure in any stage is
// contained to that cycle; the loop always reaches Sleeping and goes on.
type Coordinator struct {
	fetcher    Fetcher
	matcher    *matcher.Matcher
	store      storage.Storage
	dispatcher Dispatcher
	sender     TextSender
	log        *slog.Logger
	interval   time.Duration

	mu    sync.Mutex
	state State

	cycleCount int
	totalSent  int
}

// New creates a Coordinator.
func New(fetcher Fetcher, m *matcher.Matcher, store storage.Storage, dispatcher Dispatcher, sender TextSender, interval time.Duration, log *slog.Logger) *Coordinator {
	return &Coordinator{
		fetcher:    fetcher,
		matcher:    m,
		store:      store,
		dispatcher: dispatcher,
		sender:     sender,
		log:        log,
		interval:   interval,
		state:      StateIdle,
	}
}

// State returns the coordinator's current cycle state. Safe to call from
// any goroutine while Run is live.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run starts the monitoring loop, blocking until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		c.RunCycle(ctx)

		if c.cycleCount%statsEvery == 0 {
			c.logStats(ctx)
		}

		c.setState(StateSleeping)
		timer.Reset(c.interval)
		select {
		case <-ctx.Done():
			c.setState(StateIdle)
			return
		case <-timer.C:
		}
	}
}

// RunCycle executes one full poll→match→dedup→dispatch pass. A panic in
// any stage is recovered and the cycle is treated as empty.
func (c *Coordinator) RunCycle(ctx context.Context) {
	c.cycleCount++
	c.log.Info("cycle start", "cycle", c.cycleCount)

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("cycle panicked", "cycle", c.cycleCount, "panic", r)
			c.notifyError(ctx, "cycle_panic", fmt.Sprint(r))
		}
	}()

	c.setState(StateFetching)
	listings := c.fetcher.FetchAll(ctx)
	if ctx.Err() != nil {
		return
	}

	c.setState(StateMatching)
	accepted := c.matcher.FilterAll(listings)

	candidates := c.dedup(ctx, accepted)
	c.log.Info("cycle matched", "fetched", len(listings), "accepted", len(accepted), "new", len(candidates))

	c.setState(StateDispatching)
	sent := c.dispatcher.Dispatch(ctx, candidates)
	c.totalSent += sent
	if sent > 0 {
		c.log.Info("cycle dispatched", "cycle", c.cycleCount, "sent", sent)
	}
}

// dedup strips candidates already recorded in the seen store. The pass is
// sequential in listing order, so two listings with the same key cannot
// both survive it. A storage failure skips that one listing only.
func (c *Coordinator) dedup(ctx context.Context, accepted []matcher.Scored) []matcher.Scored {
	var fresh []matcher.Scored
	inCycle := make(map[string]bool, len(accepted))
	for _, cand := range accepted {
		key := cand.Listing.Key()
		if inCycle[key] {
			continue
		}
		seen, err := c.store.IsSeen(ctx, key)
		if err != nil {
			c.log.Error("check seen", "key", key, "error", err)
			continue
		}
		if seen {
			c.log.Debug("skip already-seen listing", "key", key)
			continue
		}
		inCycle[key] = true
		fresh = append(fresh, cand)
	}
	return fresh
}

func (c *Coordinator) logStats(ctx context.Context) {
	st, err := c.store.Stats(ctx)
	if err != nil {
		c.log.Error("load stats", "error", err)
		return
	}
	c.log.Info("stats",
		"total_seen", st.TotalSeen,
		"notifications_today", st.NotificationsToday,
		"notifications_last_hour", st.NotificationsLastHour,
		"total_sent_this_run", c.totalSent,
	)
	if err := c.sender.SendText(notify.FormatStats(st)); err != nil {
		c.log.Warn("send stats notification", "error", err)
	}
}

// notifyError sends an operator error notification, at most once per hour
// per kind.
func (c *Coordinator) notifyError(ctx context.Context, kind, message string) {
	ok, err := c.store.CanNotifyError(ctx, kind)
	if err != nil {
		c.log.Error("check error notification gate", "kind", kind, "error", err)
		return
	}
	if !ok {
		return
	}
	if err := c.sender.SendText(notify.FormatError(kind, message)); err != nil {
		c.log.Error("send error notification", "kind", kind, "error", err)
		return
	}
	if err := c.store.LogErrorNotification(ctx, kind, message); err != nil {
		c.log.Error("log error notification", "kind", kind, "error", err)
	}
}
