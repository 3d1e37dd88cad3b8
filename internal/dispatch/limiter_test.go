package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"carwatch/internal/matcher"
	"carwatch/internal/model"
	"carwatch/internal/storage"
)

type fakeNotifier struct {
	sent    []string
	failFor map[string]error
}

func (f *fakeNotifier) SendListing(l model.Listing, _ model.MatchResult) error {
	if err, ok := f.failFor[l.NativeID]; ok {
		return err
	}
	f.sent = append(f.sent, l.NativeID)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func candidate(id string, score int) matcher.Scored {
	return matcher.Scored{
		Listing: model.Listing{
			Source:   "olx",
			NativeID: id,
			Title:    "Toyota Avanza " + id,
			Price:    150_000_000,
			URL:      "https://www.olx.co.id/item/" + id,
		},
		Result: model.MatchResult{Accepted: true, Score: score},
	}
}

func TestDispatchAdmitsTopScoredUnderCap(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	notifier := &fakeNotifier{}

	d := New(store, notifier, 3, testLogger())

	// Five qualifying candidates, distinct scores, cycle order not by score.
	candidates := []matcher.Scored{
		candidate("a", 10),
		candidate("b", 40),
		candidate("c", 20),
		candidate("d", 50),
		candidate("e", 30),
	}

	sent := d.Dispatch(ctx, candidates)
	if sent != 3 {
		t.Fatalf("sent = %d, want 3", sent)
	}
	if diff := cmp.Diff([]string{"d", "b", "e"}, notifier.sent); diff != "" {
		t.Errorf("dispatch order mismatch (-want +got):\n%s", diff)
	}

	// The admitted three are marked seen, the dropped two stay eligible.
	for id, wantSeen := range map[string]bool{"d": true, "b": true, "e": true, "c": false, "a": false} {
		seen, err := store.IsSeen(ctx, "olx:"+id)
		if err != nil {
			t.Fatalf("is seen %s: %v", id, err)
		}
		if seen != wantSeen {
			t.Errorf("IsSeen(%s) = %v, want %v", id, seen, wantSeen)
		}
	}
}

func TestDispatchStableTieBreakByCycleOrder(t *testing.T) {
	store := newTestStore(t)
	notifier := &fakeNotifier{}
	d := New(store, notifier, 10, testLogger())

	sent := d.Dispatch(context.Background(), []matcher.Scored{
		candidate("first", 20),
		candidate("second", 20),
		candidate("third", 20),
	})
	if sent != 3 {
		t.Fatalf("sent = %d, want 3", sent)
	}
	if diff := cmp.Diff([]string{"first", "second", "third"}, notifier.sent); diff != "" {
		t.Errorf("tie order mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchWindowSlides(t *testing.T) {
	store := newTestStore(t)
	notifier := &fakeNotifier{}
	d := New(store, notifier, 2, testLogger())

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	d.SetClock(func() time.Time { return now })

	if sent := d.Dispatch(context.Background(), []matcher.Scored{
		candidate("a1", 1), candidate("a2", 1), candidate("a3", 1),
	}); sent != 2 {
		t.Fatalf("first cycle sent = %d, want 2", sent)
	}

	// Ten minutes on, window still full.
	now = now.Add(10 * time.Minute)
	if sent := d.Dispatch(context.Background(), []matcher.Scored{candidate("b1", 1)}); sent != 0 {
		t.Fatalf("second cycle sent = %d, want 0", sent)
	}

	// Past the hour the old entries evict and quota frees up.
	now = now.Add(time.Hour)
	if sent := d.Dispatch(context.Background(), []matcher.Scored{candidate("c1", 1)}); sent != 1 {
		t.Fatalf("third cycle sent = %d, want 1", sent)
	}
}

func TestDispatchTransportFailureLeavesUnseen(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	notifier := &fakeNotifier{failFor: map[string]error{"bad": errors.New("telegram 502")}}
	d := New(store, notifier, 10, testLogger())

	sent := d.Dispatch(ctx, []matcher.Scored{
		candidate("bad", 50),
		candidate("good", 10),
	})
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}

	seen, err := store.IsSeen(ctx, "olx:bad")
	if err != nil {
		t.Fatalf("is seen: %v", err)
	}
	if seen {
		t.Error("failed send must not mark the listing seen")
	}

	seen, err = store.IsSeen(ctx, "olx:good")
	if err != nil {
		t.Fatalf("is seen: %v", err)
	}
	if !seen {
		t.Error("successful send must mark the listing seen")
	}
}

func TestDispatchDoesNotMutateInput(t *testing.T) {
	store := newTestStore(t)
	notifier := &fakeNotifier{}
	d := New(store, notifier, 10, testLogger())

	candidates := []matcher.Scored{candidate("low", 1), candidate("high", 9)}
	d.Dispatch(context.Background(), candidates)

	var ids []string
	for _, c := range candidates {
		ids = append(ids, c.Listing.NativeID)
	}
	if diff := cmp.Diff([]string{"low", "high"}, ids); diff != "" {
		t.Errorf("input slice mutated (-want +got):\n%s", diff)
	}
}

func TestDispatchRespectsContext(t *testing.T) {
	store := newTestStore(t)
	notifier := &fakeNotifier{}
	d := New(store, notifier, 10, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var candidates []matcher.Scored
	for i := 0; i < 5; i++ {
		candidates = append(candidates, candidate(fmt.Sprintf("x%d", i), i))
	}
	if sent := d.Dispatch(ctx, candidates); sent != 0 {
		t.Errorf("sent = %d on cancelled context, want 0", sent)
	}
}
