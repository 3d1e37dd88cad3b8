// Package matcher implements the listing filter and priority scoring engine.
package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"carwatch/internal/model"
)

// Scoring constants. The plate bonus dominates so a desirable registration
// region always outranks a low odometer.
const (
	plateBonus      = 30
	mileageBonusMax = 25
)

// Matcher evaluates listings against a fixed set of buyer criteria.
// Evaluate is a pure function over the listing; the constructor only
// precompiles the plate patterns.
type Matcher struct {
	criteria model.FilterCriteria
	plateRes []*regexp.Regexp
}

// New creates a Matcher for the given criteria.
func New(criteria model.FilterCriteria) *Matcher {
	m := &Matcher{criteria: criteria}
	if p := criteria.PriorityPlate; p != "" {
		// The ways sellers write a registration prefix: "plat F",
		// "nopol F", "F 1234 AB", "F-1234".
		for _, pat := range []string{
			`(?i)\bplat\s+%s\b`,
			`(?i)\bnopol\s+%s\b`,
			`(?i)\b%s\s+\d{1,4}\s*[A-Za-z]{0,3}\b`,
			`(?i)\b%s-\d{1,4}\b`,
		} {
			m.plateRes = append(m.plateRes, regexp.MustCompile(fmt.Sprintf(pat, regexp.QuoteMeta(p))))
		}
	}
	return m
}

// Evaluate applies the filter rules in fixed order and, on acceptance,
// computes the priority score. The first failing rule determines the
// rejection reason. Absent year, mileage or transmission never disqualify
// a listing; absent fields are unknown, not wrong.
func (m *Matcher) Evaluate(l model.Listing) model.MatchResult {
	text := strings.ToLower(l.Title + " " + l.Description)
	c := m.criteria

	if !containsAny(text, c.ModelKeywords) || containsAny(text, c.ForbiddenKeywords) {
		return model.MatchResult{Reason: model.RejectModelMismatch}
	}
	if l.Year != 0 && (l.Year < c.MinYear || l.Year > c.MaxYear) {
		return model.MatchResult{Reason: model.RejectYearOutOfRange}
	}
	if l.Price < c.MinPrice || l.Price > c.MaxPrice {
		return model.MatchResult{Reason: model.RejectPriceOutOfRange}
	}
	if l.MileageKM != 0 && l.MileageKM > c.MaxMileageKM {
		return model.MatchResult{Reason: model.RejectMileageTooHigh}
	}
	if c.Transmission != model.TransmissionUnknown &&
		l.Transmission != model.TransmissionUnknown &&
		l.Transmission != c.Transmission {
		return model.MatchResult{Reason: model.RejectTransmissionMismatch}
	}

	res := model.MatchResult{Accepted: true}
	if m.hasPriorityPlate(l.Title + " " + l.Description) {
		res.Score += plateBonus
		res.Breakdown = append(res.Breakdown, model.ScorePart{Factor: "priority-plate", Delta: plateBonus})
	}
	if bonus := mileageBonus(l.MileageKM, c.MaxMileageKM); bonus > 0 {
		res.Score += bonus
		res.Breakdown = append(res.Breakdown, model.ScorePart{Factor: "low-mileage", Delta: bonus})
	}
	return res
}

// FilterAll evaluates every listing and returns the accepted ones paired
// with their results, preserving input order.
func (m *Matcher) FilterAll(listings []model.Listing) []Scored {
	var out []Scored
	for _, l := range listings {
		if res := m.Evaluate(l); res.Accepted {
			out = append(out, Scored{Listing: l, Result: res})
		}
	}
	return out
}

// Scored is an accepted listing together with its match result.
type Scored struct {
	Listing model.Listing
	Result  model.MatchResult
}

func (m *Matcher) hasPriorityPlate(text string) bool {
	for _, re := range m.plateRes {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// mileageBonus scales linearly from mileageBonusMax at 0 km down to 0 at
// maxKM. Unknown mileage earns nothing.
func mileageBonus(km, maxKM int) int {
	if km <= 0 || maxKM <= 0 || km > maxKM {
		return 0
	}
	return (maxKM - km) * mileageBonusMax / maxKM
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
