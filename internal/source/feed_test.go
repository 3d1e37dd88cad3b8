package source

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"carwatch/internal/model"
)

func TestFeedFetch(t *testing.T) {
	body := loadFixture(t, "../../testdata/feed_search.xml")

	f := NewFeed(&mockTransport{body: body, statusCode: 200},
		"https://www.jualo.com/mobil-bekas/toyota+avanza.rss")

	if got, want := f.Name(), "feed:www.jualo.com"; got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}

	got, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []model.Listing{
		{
			Source:       "feed:www.jualo.com",
			NativeID:     "jl-555",
			Title:        "Toyota Avanza Veloz 2020 Manual",
			Description:  "Plat F, 30.000 km, harga Rp 150.000.000 nego tipis",
			Price:        150_000_000,
			Year:         2020,
			MileageKM:    30_000,
			Transmission: model.TransmissionManual,
			URL:          "https://www.jualo.com/iklan/jl-555",
		},
		{
			Source:       "feed:www.jualo.com",
			NativeID:     "jl-556",
			Title:        "Toyota Avanza 2018 Matic",
			Description:  "45.000 km, Rp 125.000.000",
			Price:        125_000_000,
			Year:         2018,
			MileageKM:    45_000,
			Transmission: model.TransmissionAutomatic,
			URL:          "https://www.jualo.com/iklan/jl-556",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("listings mismatch (-want +got):\n%s", diff)
	}
}

func TestFeedFetchInvalidBody(t *testing.T) {
	f := NewFeed(&mockTransport{body: "not a feed", statusCode: 200}, "https://example.com/search.rss")
	_, err := f.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if IsTransient(err) {
		t.Errorf("malformed feed should be permanent, got transient: %v", err)
	}
}
