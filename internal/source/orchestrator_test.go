package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"carwatch/internal/model"
)

type fakeSource struct {
	name     string
	listings []model.Listing
	err      error
	failFor  int // fail this many calls before succeeding; <0 fails forever
	calls    int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(_ context.Context) ([]model.Listing, error) {
	f.calls++
	if f.failFor < 0 || f.calls <= f.failFor {
		return nil, f.err
	}
	return f.listings, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchAllFailover(t *testing.T) {
	broken := &fakeSource{
		name:    "broken",
		err:     Transient("broken", errors.New("connection reset")),
		failFor: -1,
	}
	healthy := &fakeSource{
		name:     "healthy",
		listings: []model.Listing{{Source: "healthy", NativeID: "1", Title: "Avanza 2020"}},
	}

	o := NewOrchestrator([]Source{broken, healthy}, time.Second, 2, time.Millisecond, testLogger())
	got := o.FetchAll(context.Background())

	want := []model.Listing{{Source: "healthy", NativeID: "1", Title: "Avanza 2020"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("listings mismatch (-want +got):\n%s", diff)
	}
	if broken.calls != 3 { // initial attempt + 2 retries
		t.Errorf("broken source called %d times, want 3", broken.calls)
	}
}

func TestFetchAllTransientRecovers(t *testing.T) {
	flaky := &fakeSource{
		name:     "flaky",
		err:      Transient("flaky", errors.New("timeout")),
		failFor:  1,
		listings: []model.Listing{{Source: "flaky", NativeID: "7"}},
	}

	o := NewOrchestrator([]Source{flaky}, time.Second, 3, time.Millisecond, testLogger())
	got := o.FetchAll(context.Background())

	if len(got) != 1 {
		t.Fatalf("expected 1 listing after retry, got %d", len(got))
	}
	if flaky.calls != 2 {
		t.Errorf("flaky source called %d times, want 2", flaky.calls)
	}
}

func TestFetchAllPermanentNotRetried(t *testing.T) {
	dead := &fakeSource{
		name:    "dead",
		err:     Permanent("dead", errors.New("selector layout changed")),
		failFor: -1,
	}

	o := NewOrchestrator([]Source{dead}, time.Second, 5, time.Millisecond, testLogger())
	got := o.FetchAll(context.Background())

	if len(got) != 0 {
		t.Fatalf("expected no listings, got %d", len(got))
	}
	if dead.calls != 1 {
		t.Errorf("dead source called %d times, want 1", dead.calls)
	}
}

func TestFetchAllAllSourcesFailing(t *testing.T) {
	a := &fakeSource{name: "a", err: Transient("a", errors.New("x")), failFor: -1}
	b := &fakeSource{name: "b", err: Permanent("b", errors.New("y")), failFor: -1}

	o := NewOrchestrator([]Source{a, b}, time.Second, 1, time.Millisecond, testLogger())
	got := o.FetchAll(context.Background())
	if got != nil {
		t.Errorf("expected nil listing set, got %v", got)
	}
}

func TestFetchAllPreservesSourceOrder(t *testing.T) {
	first := &fakeSource{name: "first", listings: []model.Listing{{Source: "first", NativeID: "1"}}}
	second := &fakeSource{name: "second", listings: []model.Listing{{Source: "second", NativeID: "2"}}}

	o := NewOrchestrator([]Source{first, second}, time.Second, 0, time.Millisecond, testLogger())
	got := o.FetchAll(context.Background())

	var sources []string
	for _, l := range got {
		sources = append(sources, l.Source)
	}
	if diff := cmp.Diff([]string{"first", "second"}, sources); diff != "" {
		t.Errorf("source order mismatch (-want +got):\n%s", diff)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "transient fetch error", err: Transient("x", errors.New("boom")), want: true},
		{name: "permanent fetch error", err: Permanent("x", errors.New("boom")), want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
