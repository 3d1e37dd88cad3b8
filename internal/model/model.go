// Package model defines the domain types used across the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Transmission is the gearbox type of a listed car.
type Transmission string

// Supported transmission values.
const (
	TransmissionManual    Transmission = "manual"
	TransmissionAutomatic Transmission = "automatic"
	TransmissionUnknown   Transmission = "unknown"
)

// Listing is one scraped car advertisement, normalized from a marketplace.
// Year and MileageKM use 0 to mean "not stated in the ad".
type Listing struct {
	Source       string
	NativeID     string
	Title        string
	Price        int64
	Year         int
	MileageKM    int
	Transmission Transmission
	Location     string
	ImageURL     string
	URL          string
	Description  string
}

// Key returns the stable dedup identifier for the listing.
// If the marketplace exposed a native ID, the key is source:nativeID.
// Otherwise a SHA-256 hash of normalized title+price+URL is used so
// refetching the same ad yields the same key.
func (l Listing) Key() string {
	if l.NativeID != "" {
		return l.Source + ":" + l.NativeID
	}
	norm := strings.ToLower(strings.Join(strings.Fields(l.Title), " "))
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", norm, l.Price, l.URL)))
	return fmt.Sprintf("%s:sha256:%x", l.Source, h[:16])
}

// RejectReason identifies the first filter rule a listing failed.
type RejectReason string

// Rejection reasons, in rule evaluation order.
const (
	RejectModelMismatch        RejectReason = "model-mismatch"
	RejectYearOutOfRange       RejectReason = "year-out-of-range"
	RejectPriceOutOfRange      RejectReason = "price-out-of-range"
	RejectMileageTooHigh       RejectReason = "mileage-too-high"
	RejectTransmissionMismatch RejectReason = "transmission-mismatch"
)

// ScorePart is one (factor, delta) contribution to a listing's score.
type ScorePart struct {
	Factor string
	Delta  int
}

// MatchResult is the outcome of evaluating one listing against the criteria.
// Reason is set iff the listing was rejected; Score and Breakdown are set
// iff it was accepted.
type MatchResult struct {
	Accepted  bool
	Reason    RejectReason
	Score     int
	Breakdown []ScorePart
}

// SeenRecord is the persisted dedup entry for a notified listing.
type SeenRecord struct {
	Key          string
	Source       string
	URL          string
	Title        string
	Price        int64
	FirstSeen    time.Time
	LastNotified *time.Time
	NotifyCount  int
}

// FilterCriteria is the fixed set of buyer criteria a listing is matched
// against. Keyword matching is case-insensitive substring matching over
// title+description.
type FilterCriteria struct {
	ModelKeywords     []string
	ForbiddenKeywords []string
	MinYear           int
	MaxYear           int
	MinPrice          int64
	MaxPrice          int64
	MaxMileageKM      int
	Transmission      Transmission
	PriorityPlate     string
}
