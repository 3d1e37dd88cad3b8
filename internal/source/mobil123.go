package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"carwatch/internal/model"
)

const (
	mobil123Name    = "mobil123"
	mobil123BaseURL = "https://www.mobil123.com"
)

// Mobil123 scrapes the Mobil123 search results page.
type Mobil123 struct {
	client    Doer
	searchURL string
}

// NewMobil123 creates a Mobil123 adapter for the given search URL.
func NewMobil123(client Doer, searchURL string) *Mobil123 {
	return &Mobil123{client: client, searchURL: searchURL}
}

// Name implements Source.
func (m *Mobil123) Name() string { return mobil123Name }

// Fetch implements Source.
func (m *Mobil123) Fetch(ctx context.Context) ([]model.Listing, error) {
	doc, err := fetchDocument(ctx, m.client, mobil123Name, m.searchURL)
	if err != nil {
		return nil, err
	}

	cards := selectFirst(doc, "article.listing-item", "article.listing", ".listing-item")
	if cards == nil {
		return nil, Permanent(mobil123Name, fmt.Errorf("no listing cards in page"))
	}

	var listings []model.Listing
	cards.Each(func(_ int, card *goquery.Selection) {
		if l, ok := m.parseCard(card); ok {
			listings = append(listings, l)
		}
	})
	return listings, nil
}

func (m *Mobil123) parseCard(card *goquery.Selection) (model.Listing, bool) {
	link := selectOneOf(card, ".listing-item-title a", ".listing__title a", "h2 a")
	if link == nil {
		return model.Listing{}, false
	}

	title := strings.TrimSpace(link.Text())
	href, _ := link.Attr("href")
	if title == "" || href == "" {
		return model.Listing{}, false
	}

	url := absoluteURL(mobil123BaseURL, href)
	l := model.Listing{
		Source: mobil123Name,
		Title:  title,
		URL:    url,
	}

	// Mobil123 listing URLs end in a stable ad slug.
	if idx := strings.LastIndex(strings.TrimRight(url, "/"), "/"); idx >= 0 {
		l.NativeID = strings.TrimRight(url, "/")[idx+1:]
	}

	if price := selectOneOf(card, ".price", ".listing-item-price"); price != nil {
		l.Price = parsePrice(price.Text())
	}
	if loc := selectOneOf(card, ".listing-item-location", ".listing__location"); loc != nil {
		l.Location = strings.TrimSpace(loc.Text())
	}
	if img := selectOneOf(card, "img.listing-item-img", "img"); img != nil {
		l.ImageURL, _ = img.Attr("src")
		if l.ImageURL == "" {
			l.ImageURL, _ = img.Attr("data-src")
		}
	}

	details := title
	if d := selectOneOf(card, ".listing-item-info", ".listing__spec"); d != nil {
		details += " " + strings.TrimSpace(d.Text())
	}
	l.Year = parseYear(details)
	l.MileageKM = parseMileage(details)
	l.Transmission = parseTransmission(details)

	return l, true
}
