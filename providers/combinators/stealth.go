package combinators

import (
	"context"
	"encoding/json"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/errs"
	"github.com/mozilla-services/merino/provider"
)

// Stealth runs inner for its side effects (cache warming, metrics) but
// always reports an empty result to the caller.
type Stealth struct {
	inner provider.SuggestionProvider
}

// NewStealth wraps inner so its output never reaches the caller.
func NewStealth(inner provider.SuggestionProvider) *Stealth {
	return &Stealth{inner: inner}
}

func (s *Stealth) Name() string {
	return "stealth(" + s.inner.Name() + ")"
}

func (s *Stealth) IsNull() bool { return s.inner.IsNull() }

func (s *Stealth) CacheInputs(req *provider.SuggestionRequest, sink provider.CacheInputSink) {
	s.inner.CacheInputs(req, sink)
}

func (s *Stealth) CacheKey(req *provider.SuggestionRequest) string {
	return s.inner.CacheKey(req)
}

func (s *Stealth) Suggest(
	ctx context.Context,
	req *provider.SuggestionRequest,
) (provider.SuggestionResponse, yaerrors.Error) {
	if _, err := s.inner.Suggest(ctx, req); err != nil {
		return provider.SuggestionResponse{}, err
	}

	return provider.NewSuggestionResponse(nil), nil
}

type stealthConfig struct {
	Inner json.RawMessage `json:"inner"`
}

func (s *Stealth) Reconfigure(
	ctx context.Context,
	newConfig json.RawMessage,
	makeFresh provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	var cfg stealthConfig

	if err := json.Unmarshal(newConfig, &cfg); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "loading stealth provider config")
	}

	reconfigured, err := s.inner.Reconfigure(ctx, cfg.Inner, makeFresh)
	if err != nil {
		return nil, err
	}

	s.inner = reconfigured

	return s, nil
}
