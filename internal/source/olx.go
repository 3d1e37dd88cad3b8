package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"carwatch/internal/model"
)

const (
	olxName    = "olx"
	olxBaseURL = "https://www.olx.co.id"
	olxAPIURL  = "https://www.olx.co.id/api/relevance/v4/search"

	maxBodyBytes = 5 * 1024 * 1024
)

var olxQueryPathRe = regexp.MustCompile(`/q-([^/?]+)`)

// OLX fetches listings through the OLX relevance-search JSON API, which is
// far more stable than the site's HTML.
type OLX struct {
	client    Doer
	searchURL string
}

// NewOLX creates an OLX adapter for the given search URL. The free-text
// query and filter parameters are lifted from the URL and replayed against
// the JSON API.
func NewOLX(client Doer, searchURL string) *OLX {
	return &OLX{client: client, searchURL: searchURL}
}

// Name implements Source.
func (o *OLX) Name() string { return olxName }

// Fetch implements Source.
func (o *OLX) Fetch(ctx context.Context) ([]model.Listing, error) {
	apiURL, err := o.buildAPIURL()
	if err != nil {
		return nil, Permanent(olxName, err)
	}

	req, err := newRequest(ctx, apiURL)
	if err != nil {
		return nil, Permanent(olxName, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, Transient(olxName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != 200 {
		return nil, classifyStatus(olxName, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, Transient(olxName, err)
	}

	var payload olxResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, Permanent(olxName, fmt.Errorf("decode response: %w", err))
	}

	listings := make([]model.Listing, 0, len(payload.Data))
	for _, item := range payload.Data {
		if l, ok := item.toListing(); ok {
			listings = append(listings, l)
		}
	}
	return listings, nil
}

func (o *OLX) buildAPIURL() (string, error) {
	parsed, err := url.Parse(o.searchURL)
	if err != nil {
		return "", fmt.Errorf("parse search url: %w", err)
	}

	q := url.Values{}
	q.Set("category", "198") // mobil-bekas
	q.Set("location", "1000001")
	q.Set("page", "0")
	q.Set("platform", "web-mobile")
	q.Set("size", "40")

	if m := olxQueryPathRe.FindStringSubmatch(parsed.Path); m != nil {
		q.Set("query", m[1])
	}
	if f := parsed.Query().Get("filter"); f != "" {
		q.Set("filter", f)
	}

	return olxAPIURL + "?" + q.Encode(), nil
}

type olxResponse struct {
	Data []olxItem `json:"data"`
}

type olxItem struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Price       struct {
		Value struct {
			Raw int64 `json:"raw"`
		} `json:"value"`
	} `json:"price"`
	Locations map[string]string `json:"locations_resolved"`
	Images    []struct {
		URL string `json:"url"`
	} `json:"images"`
	MainInfo struct {
		URL string `json:"url"`
	} `json:"mainInfo"`
	Parameters []struct {
		Key       string `json:"key"`
		Value     string `json:"value"`
		ValueName string `json:"value_name"`
	} `json:"parameters"`
}

func (it olxItem) toListing() (model.Listing, bool) {
	id := it.ID.String()
	if id == "" {
		return model.Listing{}, false
	}

	l := model.Listing{
		Source:       olxName,
		NativeID:     id,
		Title:        it.Title,
		Description:  it.Description,
		Price:        it.Price.Value.Raw,
		Transmission: model.TransmissionUnknown,
	}

	l.Location = it.Locations["ADMIN_LEVEL_3_name"]
	if l.Location == "" {
		l.Location = it.Locations["ADMIN_LEVEL_1_name"]
	}

	l.URL = absoluteURL(olxBaseURL, it.MainInfo.URL)
	if it.MainInfo.URL == "" {
		l.URL = fmt.Sprintf("%s/item/%s", olxBaseURL, id)
	}

	if len(it.Images) > 0 {
		l.ImageURL = it.Images[0].URL
	}

	for _, p := range it.Parameters {
		key := strings.ToLower(p.Key)
		val := p.ValueName
		if val == "" {
			val = p.Value
		}
		switch {
		case strings.Contains(key, "year") || strings.Contains(key, "tahun"):
			l.Year = parseYear(p.Value)
		case strings.Contains(key, "mileage") || strings.Contains(key, "kilometer"):
			if km := int(digitsOnly(p.Value)); km > 0 {
				l.MileageKM = km
			}
		case strings.Contains(key, "transmi"):
			l.Transmission = parseTransmission(val)
		}
	}

	return l, true
}
