package provider

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"

	"github.com/mozilla-services/merino/yaerrors"
)

// CacheInputSink accumulates the bytes a provider's CacheInputs considers
// relevant to its cache key. A hashing implementation backs it in
// practice, but providers only ever see the sink interface.
type CacheInputSink interface {
	Add(data []byte)
}

// sinkState is the CacheInputSink implementation CacheKey feeds into a
// provider's CacheInputs, separating each field with a NUL byte so
// "ab"+"c" cannot collide with "a"+"bc".
type sinkState struct {
	hash hash.Hash
}

func newHashSink() *sinkState {
	return &sinkState{hash: sha256.New()}
}

func (s *sinkState) Add(data []byte) {
	s.hash.Write(data)
	s.hash.Write([]byte{0})
}

func (s *sinkState) AddString(str string) {
	s.Add([]byte(str))
}

func (s *sinkState) AddBool(b bool) {
	if b {
		s.Add([]byte{1})
	} else {
		s.Add([]byte{0})
	}
}

func (s *sinkState) AddUint16(v uint16) {
	var buf [2]byte

	binary.BigEndian.PutUint16(buf[:], v)
	s.Add(buf[:])
}

func (s *sinkState) Sum() []byte {
	return s.hash.Sum(nil)
}

// SuggestionProvider is the single interface every node in the composition
// tree implements, leaves and combinators alike.
type SuggestionProvider interface {
	// Name identifies the provider instance within an IdMulti registry and
	// in logs and metrics tags.
	Name() string

	// IsNull reports whether this provider never produces suggestions, so
	// callers can skip wiring a cache layer in front of it.
	IsNull() bool

	// CacheInputs feeds the subset of req this provider's output depends
	// on into sink. The default DefaultCacheInputs covers the common case.
	CacheInputs(req *SuggestionRequest, sink CacheInputSink)

	// CacheKey derives a stable cache key for req, combining Name with
	// whatever CacheInputs wrote.
	CacheKey(req *SuggestionRequest) string

	// Suggest produces a response for req.
	Suggest(ctx context.Context, req *SuggestionRequest) (SuggestionResponse, yaerrors.Error)

	// Reconfigure applies newConfig in place where possible. When the
	// provider cannot apply the change without being rebuilt, it calls
	// makeFresh and returns whatever that returns.
	Reconfigure(
		ctx context.Context,
		newConfig json.RawMessage,
		makeFresh MakeFreshFunc,
	) (SuggestionProvider, yaerrors.Error)
}

// dmaNoneSentinel is written into the cache key in place of a DMA value
// when the request carries none, so a request with DMA unset never
// collides with one that happens to report the real value 0.
const dmaNoneSentinel uint16 = 0xFFFF

// DefaultCacheInputs folds the fields every provider's output typically
// depends on: query, language acceptance, and geolocation. Providers with
// narrower or wider dependence write their own CacheInputs instead of
// calling this.
func DefaultCacheInputs(req *SuggestionRequest, sink CacheInputSink) {
	s, ok := sink.(*sinkState)
	if !ok {
		sink.Add([]byte(req.Query))

		return
	}

	s.AddString(req.Query)
	s.AddBool(req.AcceptsEnglish)

	if req.Country != nil {
		s.AddString(*req.Country)
	}

	if req.Region != nil {
		s.AddString(*req.Region)
	}

	if req.City != nil {
		s.AddString(*req.City)
	}

	if req.DMA != nil {
		s.AddUint16(*req.DMA)
	} else {
		s.AddUint16(dmaNoneSentinel)
	}

	s.AddString(req.DeviceInfo.String())
}

// CacheKey derives "provider:v1:<hex digest>" from name, req, and whatever
// cacheInputs writes into the sink, matching the original implementation's
// key format.
func CacheKey(
	name string,
	req *SuggestionRequest,
	cacheInputs func(req *SuggestionRequest, sink CacheInputSink),
) string {
	sink := newHashSink()

	sink.AddString(name)
	cacheInputs(req, sink)

	return fmt.Sprintf("provider:v1:%s", hex.EncodeToString(sink.Sum()))
}

// MakeFreshFunc builds a brand new provider from scratch, used when a
// provider's Reconfigure cannot apply a change in place.
type MakeFreshFunc func(ctx context.Context, config json.RawMessage) (SuggestionProvider, yaerrors.Error)

// ReconfigureOrRemake is the shared helper providers call from Reconfigure:
// try to apply newConfig to self in place via apply, falling back to
// makeFresh when apply reports it cannot.
func ReconfigureOrRemake(
	ctx context.Context,
	self SuggestionProvider,
	newConfig json.RawMessage,
	makeFresh MakeFreshFunc,
	apply func(ctx context.Context, newConfig json.RawMessage) (bool, yaerrors.Error),
) (SuggestionProvider, yaerrors.Error) {
	applied, err := apply(ctx, newConfig)
	if err != nil {
		return nil, err
	}

	if applied {
		return self, nil
	}

	return makeFresh(ctx, newConfig)
}
