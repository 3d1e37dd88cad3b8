package source

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/mmcdole/gofeed"

	"carwatch/internal/model"
)

// Feed adapts a marketplace saved-search RSS/Atom feed into Listings.
// Several of the smaller classifieds sites expose search results as a feed,
// which is the most stable surface they have; price, year, mileage and
// transmission are recovered from the item title and description text.
type Feed struct {
	client  Doer
	name    string
	feedURL string
}

// NewFeed creates a feed adapter. The source name is derived from the feed
// URL's host.
func NewFeed(client Doer, feedURL string) *Feed {
	name := "feed"
	if u, err := url.Parse(feedURL); err == nil && u.Host != "" {
		name = "feed:" + u.Host
	}
	return &Feed{client: client, name: name, feedURL: feedURL}
}

// Name implements Source.
func (f *Feed) Name() string { return f.name }

// Fetch implements Source.
func (f *Feed) Fetch(ctx context.Context) ([]model.Listing, error) {
	req, err := newRequest(ctx, f.feedURL)
	if err != nil {
		return nil, Permanent(f.name, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, Transient(f.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != 200 {
		return nil, classifyStatus(f.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, Transient(f.name, err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, Permanent(f.name, fmt.Errorf("parse feed: %w", err))
	}

	listings := make([]model.Listing, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Title == "" {
			continue
		}
		listings = append(listings, f.toListing(item))
	}
	return listings, nil
}

func (f *Feed) toListing(item *gofeed.Item) model.Listing {
	text := item.Title + " " + item.Description

	l := model.Listing{
		Source:       f.name,
		NativeID:     item.GUID,
		Title:        item.Title,
		Description:  item.Description,
		URL:          item.Link,
		Price:        priceFromText(text),
		Year:         parseYear(text),
		MileageKM:    parseMileage(text),
		Transmission: parseTransmission(text),
	}
	if item.Image != nil {
		l.ImageURL = item.Image.URL
	}
	return l
}
