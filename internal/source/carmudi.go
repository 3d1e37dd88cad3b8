package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"carwatch/internal/model"
)

const (
	carmudiName    = "carmudi"
	carmudiBaseURL = "https://www.carmudi.co.id"
)

// Carmudi scrapes the Carmudi search results page. The site reshuffles its
// markup now and then, so every selector has a fallback chain.
type Carmudi struct {
	client    Doer
	searchURL string
}

// NewCarmudi creates a Carmudi adapter for the given search URL.
func NewCarmudi(client Doer, searchURL string) *Carmudi {
	return &Carmudi{client: client, searchURL: searchURL}
}

// Name implements Source.
func (c *Carmudi) Name() string { return carmudiName }

// Fetch implements Source.
func (c *Carmudi) Fetch(ctx context.Context) ([]model.Listing, error) {
	doc, err := fetchDocument(ctx, c.client, carmudiName, c.searchURL)
	if err != nil {
		return nil, err
	}

	cards := selectFirst(doc, "article[data-id]", ".listing-item", ".listing-card", "a[href*='/dijual/']")
	if cards == nil {
		return nil, Permanent(carmudiName, fmt.Errorf("no listing cards in page"))
	}

	var listings []model.Listing
	cards.Each(func(_ int, card *goquery.Selection) {
		if l, ok := c.parseCard(card); ok {
			listings = append(listings, l)
		}
	})
	return listings, nil
}

func (c *Carmudi) parseCard(card *goquery.Selection) (model.Listing, bool) {
	link := selectOneOf(card, "h2.title a", ".card-title a", ".listing-title a", "h3 a", "a[title]", "a")
	if link == nil {
		return model.Listing{}, false
	}

	href, _ := link.Attr("href")
	title := strings.TrimSpace(link.Text())
	if title == "" {
		title, _ = link.Attr("title")
	}
	if title == "" || href == "" {
		return model.Listing{}, false
	}

	l := model.Listing{
		Source: carmudiName,
		Title:  title,
		URL:    absoluteURL(carmudiBaseURL, href),
	}
	l.NativeID, _ = card.Attr("data-id")

	if price := selectOneOf(card, ".price", ".listing-price", "[class*='Price']"); price != nil {
		l.Price = parsePrice(price.Text())
	}
	if loc := selectOneOf(card, ".location", ".listing-location"); loc != nil {
		l.Location = strings.TrimSpace(loc.Text())
	}
	if img := selectOneOf(card, "img"); img != nil {
		l.ImageURL, _ = img.Attr("src")
		if l.ImageURL == "" {
			l.ImageURL, _ = img.Attr("data-src")
		}
	}

	details := title
	if d := selectOneOf(card, ".listing-specs", ".details", ".listing-info"); d != nil {
		details += " " + strings.TrimSpace(d.Text())
	}
	l.Year = parseYear(details)
	l.MileageKM = parseMileage(details)
	l.Transmission = parseTransmission(details)

	return l, true
}

// fetchDocument GETs url and parses the body as HTML.
func fetchDocument(ctx context.Context, client Doer, source, url string) (*goquery.Document, error) {
	req, err := newRequest(ctx, url)
	if err != nil {
		return nil, Permanent(source, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, Transient(source, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != 200 {
		return nil, classifyStatus(source, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, Permanent(source, fmt.Errorf("parse html: %w", err))
	}
	return doc, nil
}

// selectFirst returns the matches of the first selector that hits anything.
func selectFirst(doc *goquery.Document, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		if s := doc.Find(sel); s.Length() > 0 {
			return s
		}
	}
	return nil
}

// selectOneOf returns the first element matched by any of the selectors,
// tried in order.
func selectOneOf(root *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		if s := root.Find(sel); s.Length() > 0 {
			return s.First()
		}
	}
	return nil
}
