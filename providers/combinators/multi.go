package combinators

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/errs"
	"github.com/mozilla-services/merino/provider"
)

// Multi aggregates suggestions from an ordered list of sub-providers. Unlike
// IdMulti, position carries the identity: reconfigure zips new configs
// against the existing providers by index when the counts match, and only
// rebuilds everything from scratch when they don't.
type Multi struct {
	providers []provider.SuggestionProvider
}

// NewMulti builds a Multi drawing suggestions from providers, in order.
func NewMulti(providers []provider.SuggestionProvider) *Multi {
	return &Multi{providers: providers}
}

func (m *Multi) Name() string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name()
	}

	return "Multi(" + strings.Join(names, ", ") + ")"
}

func (m *Multi) IsNull() bool {
	for _, p := range m.providers {
		if !p.IsNull() {
			return false
		}
	}

	return true
}

func (m *Multi) CacheInputs(req *provider.SuggestionRequest, sink provider.CacheInputSink) {
	for _, p := range m.providers {
		p.CacheInputs(req, sink)
	}
}

func (m *Multi) CacheKey(req *provider.SuggestionRequest) string {
	return provider.CacheKey(m.Name(), req, m.CacheInputs)
}

func (m *Multi) Suggest(
	ctx context.Context,
	req *provider.SuggestionRequest,
) (provider.SuggestionResponse, yaerrors.Error) {
	responses := make([]provider.SuggestionResponse, len(m.providers))

	group, groupCtx := errgroup.WithContext(ctx)

	for i, p := range m.providers {
		i, p := i, p

		group.Go(func() error {
			resp, err := p.Suggest(groupCtx, req)
			if err != nil {
				return err
			}

			responses[i] = resp

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		suggestErr, ok := err.(yaerrors.Error)
		if !ok {
			return provider.SuggestionResponse{}, errs.NewSuggestError(
				errs.SuggestInternal,
				err,
				"aggregating multi provider suggestions",
			)
		}

		return provider.SuggestionResponse{}, suggestErr
	}

	return mergeMultiResponses(responses), nil
}

func mergeMultiResponses(responses []provider.SuggestionResponse) provider.SuggestionResponse {
	if len(responses) == 0 {
		return provider.NewSuggestionResponse(nil)
	}

	result := responses[len(responses)-1]

	for i := 0; i < len(responses)-1; i++ {
		result.Suggestions = append(result.Suggestions, responses[i].Suggestions...)
		result.CacheStatus = mergeMultiCacheStatus(result.CacheStatus, responses[i].CacheStatus)

		if responses[i].CacheTTL != nil && (result.CacheTTL == nil || *responses[i].CacheTTL < *result.CacheTTL) {
			result.CacheTTL = responses[i].CacheTTL
		}
	}

	return result
}

func mergeMultiCacheStatus(a, b provider.CacheStatus) provider.CacheStatus {
	if a == b {
		return a
	}

	if b == provider.CacheStatusNoCache {
		return a
	}

	if a == provider.CacheStatusNoCache {
		return b
	}

	return provider.CacheStatusMixed
}

type multiConfig struct {
	Providers []json.RawMessage `json:"providers"`
}

// Reconfigure zips new configs against existing providers by position when
// the count matches (optimistic path); otherwise it discards every provider
// and rebuilds the list from scratch via makeFresh (pessimistic path).
func (m *Multi) Reconfigure(
	ctx context.Context,
	newConfig json.RawMessage,
	makeFresh provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	var cfg multiConfig

	if err := json.Unmarshal(newConfig, &cfg); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "loading multi provider config")
	}

	if len(cfg.Providers) == len(m.providers) {
		for i, raw := range cfg.Providers {
			reconfigured, err := m.providers[i].Reconfigure(ctx, raw, makeFresh)
			if err != nil {
				return nil, err
			}

			m.providers[i] = reconfigured
		}

		return m, nil
	}

	fresh := make([]provider.SuggestionProvider, 0, len(cfg.Providers))

	for _, raw := range cfg.Providers {
		built, err := makeFresh(ctx, raw)
		if err != nil {
			return nil, err
		}

		fresh = append(fresh, built)
	}

	m.providers = fresh

	return m, nil
}
