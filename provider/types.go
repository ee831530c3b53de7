// Package provider defines the SuggestionProvider contract every node in
// the composition tree implements, along with the request/response data
// model and the stable cache-key derivation shared by every provider.
package provider

import (
	"fmt"
	"time"
)

// DeviceInfo describes the client's user agent, as much as the core cares
// about: OS family, device form factor, and Firefox major version.
type DeviceInfo struct {
	OSFamily    string
	FormFactor  string
	Browser     string
}

// String renders DeviceInfo the way the default CacheInputs implementation
// folds it into a cache key.
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s/%s/%s", d.OSFamily, d.FormFactor, d.Browser)
}

// SuggestionRequest is a single autocomplete request. Everything here is
// the raw material cache-key derivation draws from; providers narrow which
// fields they actually consume via CacheInputs.
type SuggestionRequest struct {
	Query          string
	AcceptsEnglish bool
	Country        *string
	Region         *string
	City           *string
	DMA            *uint16
	DeviceInfo     DeviceInfo
	ClientVariants []string
}

// CacheStatus describes the relationship between a response and whatever
// cache layer (if any) produced it.
type CacheStatus uint8

const (
	CacheStatusHit CacheStatus = iota
	CacheStatusMiss
	CacheStatusNoCache
	CacheStatusMixed
	CacheStatusError
)

func (s CacheStatus) String() string {
	switch s {
	case CacheStatusHit:
		return "hit"
	case CacheStatusMiss:
		return "miss"
	case CacheStatusNoCache:
		return "no-cache"
	case CacheStatusMixed:
		return "mixed"
	case CacheStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// proportionScale is the fixed-point denominator Proportion values are
// stored against, chosen so the full uint32 range maps onto [0, 1].
const proportionScale = float64(^uint32(0))

// Proportion is a value in [0, 1], stored as a fixed-point uint32 so it is
// comparable and usable as a map/hash key component, unlike a bare float32.
type Proportion uint32

// NewProportion clamps f into [0, 1] and converts it to the fixed-point
// representation.
func NewProportion(f float32) Proportion {
	clamped := float64(f)

	switch {
	case clamped < 0:
		clamped = 0
	case clamped > 1:
		clamped = 1
	}

	return Proportion(clamped * proportionScale)
}

// Float32 converts back to the [0, 1] floating point representation.
func (p Proportion) Float32() float32 {
	return float32(float64(p) / proportionScale)
}

// Suggestion is a single result to offer the user.
type Suggestion struct {
	ID            uint32
	FullKeyword   string
	Title         string
	URL           string
	ImpressionURL *string
	ClickURL      *string
	Provider      string
	Advertiser    string
	IsSponsored   bool
	Icon          string
	Score         Proportion
}

// SuggestionResponse is what a provider's Suggest returns: the results
// along with the caching metadata a wrapping cache layer needs.
type SuggestionResponse struct {
	Suggestions []Suggestion
	CacheStatus CacheStatus
	CacheTTL    *time.Duration
}

// NewSuggestionResponse builds a response with CacheStatusNoCache and no
// TTL commitment, the same defaults the original implementation starts
// every response from.
func NewSuggestionResponse(suggestions []Suggestion) SuggestionResponse {
	if suggestions == nil {
		suggestions = []Suggestion{}
	}

	return SuggestionResponse{
		Suggestions: suggestions,
		CacheStatus: CacheStatusNoCache,
	}
}

// WithCacheStatus returns a copy of r with CacheStatus replaced.
func (r SuggestionResponse) WithCacheStatus(status CacheStatus) SuggestionResponse {
	r.CacheStatus = status

	return r
}

// WithCacheTTL returns a copy of r with CacheTTL set to ttl.
func (r SuggestionResponse) WithCacheTTL(ttl time.Duration) SuggestionResponse {
	r.CacheTTL = &ttl

	return r
}
