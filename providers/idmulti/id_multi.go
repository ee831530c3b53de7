// Package idmulti implements IdMulti, the top-level registry that fans a
// request out to a named set of provider trees and merges their results.
//
// Grounded on
// original_source/merino-suggest-providers/src/providers/id_multi.rs.
package idmulti

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/errs"
	"github.com/mozilla-services/merino/provider"
	"golang.org/x/sync/errgroup"
)

// ProviderAvailability describes how a registered provider participates in
// default request handling.
type ProviderAvailability string

// EnabledByDefault is the only availability this registry currently
// assigns; every provider it holds is used unless a request narrows the
// id set explicitly.
const EnabledByDefault ProviderAvailability = "enabled_by_default"

// ProviderDetails describes one registered provider, as surfaced to
// clients that want to list what is available.
type ProviderDetails struct {
	ID           string
	Availability ProviderAvailability
}

// IdMulti aggregates suggestions from a named set of provider trees,
// merging their responses and tagging each suggestion with the name of
// the tree that produced it.
type IdMulti struct {
	mu        sync.RWMutex
	providers map[string]provider.SuggestionProvider
}

// New builds an IdMulti over providers. A nil map is treated as empty.
func New(providers map[string]provider.SuggestionProvider) *IdMulti {
	if providers == nil {
		providers = make(map[string]provider.SuggestionProvider)
	}

	return &IdMulti{providers: providers}
}

// AddProvider registers p under name, unless p.IsNull() reports it would
// never contribute a suggestion.
func (m *IdMulti) AddProvider(name string, p provider.SuggestionProvider) {
	if p.IsNull() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.providers[name] = p
}

// ListProviders returns metadata about every registered provider, sorted
// by id for a stable listing.
func (m *IdMulti) ListProviders() []ProviderDetails {
	m.mu.RLock()
	defer m.mu.RUnlock()

	details := make([]ProviderDetails, 0, len(m.providers))
	for id := range m.providers {
		details = append(details, ProviderDetails{ID: id, Availability: EnabledByDefault})
	}

	sort.Slice(details, func(i, j int) bool { return details[i].ID < details[j].ID })

	return details
}

// sortedIDs returns the registry's current keys in sorted order. m.mu must
// already be held by the caller.
func (m *IdMulti) sortedIDs() []string {
	ids := make([]string, 0, len(m.providers))
	for id := range m.providers {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// SuggestFromIDs runs req through only the providers named in ids,
// concurrently. The merged suggestions start with the last selected id's
// (in sorted id order), followed by the others in sorted id order, so the
// result does not depend on completion order.
func (m *IdMulti) SuggestFromIDs(
	ctx context.Context,
	req *provider.SuggestionRequest,
	ids map[string]struct{},
) (provider.SuggestionResponse, yaerrors.Error) {
	m.mu.RLock()

	type named struct {
		name string
		prov provider.SuggestionProvider
	}

	var selected []named

	for _, id := range m.sortedIDs() {
		if _, ok := ids[id]; !ok {
			continue
		}

		selected = append(selected, named{name: id, prov: m.providers[id]})
	}

	m.mu.RUnlock()

	if len(selected) == 0 {
		return provider.NewSuggestionResponse(nil), nil
	}

	responses := make([]provider.SuggestionResponse, len(selected))

	group, groupCtx := errgroup.WithContext(ctx)

	for i, sel := range selected {
		i, sel := i, sel

		group.Go(func() error {
			resp, err := sel.prov.Suggest(groupCtx, req)
			if err != nil {
				return err
			}

			for idx := range resp.Suggestions {
				resp.Suggestions[idx].Provider = sel.name
			}

			responses[i] = resp

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		if wrapped, ok := err.(yaerrors.Error); ok {
			return provider.SuggestionResponse{}, wrapped
		}

		return provider.SuggestionResponse{}, errs.NewSuggestError(errs.SuggestInternal, err, "fanning out to providers")
	}

	return mergeResponses(responses), nil
}

// mergeResponses folds responses together the way the original does:
// starting from the last response and absorbing the rest, combining
// cache status pairwise along the way and keeping the smallest CacheTTL
// that any response sets.
func mergeResponses(responses []provider.SuggestionResponse) provider.SuggestionResponse {
	if len(responses) == 0 {
		return provider.NewSuggestionResponse(nil)
	}

	rv := responses[len(responses)-1]

	for i := 0; i < len(responses)-1; i++ {
		rv.Suggestions = append(rv.Suggestions, responses[i].Suggestions...)
		rv.CacheStatus = mergeCacheStatus(rv.CacheStatus, responses[i].CacheStatus)

		if responses[i].CacheTTL != nil && (rv.CacheTTL == nil || *responses[i].CacheTTL < *rv.CacheTTL) {
			rv.CacheTTL = responses[i].CacheTTL
		}
	}

	return rv
}

// mergeCacheStatus combines two cache statuses the way the original match
// does: equal statuses stay as-is, a NoCache on either side is absorbed
// by the other status, and anything else collapses to Mixed.
func mergeCacheStatus(a, b provider.CacheStatus) provider.CacheStatus {
	switch {
	case a == b:
		return a
	case b == provider.CacheStatusNoCache:
		return a
	case a == provider.CacheStatusNoCache:
		return b
	default:
		return provider.CacheStatusMixed
	}
}

// Name lists every registered provider's name, in id order.
func (m *IdMulti) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for _, id := range m.sortedIDs() {
		names = append(names, m.providers[id].Name())
	}

	return "NamedMulti(" + strings.Join(names, ", ") + ")"
}

// IsNull is false whenever at least one provider is registered.
func (m *IdMulti) IsNull() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.providers) == 0
}

// CacheInputs folds every registered provider's CacheInputs into sink.
func (m *IdMulti) CacheInputs(req *provider.SuggestionRequest, sink provider.CacheInputSink) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range m.sortedIDs() {
		m.providers[id].CacheInputs(req, sink)
	}
}

// CacheKey derives this registry's own cache key from its folded inputs.
func (m *IdMulti) CacheKey(req *provider.SuggestionRequest) string {
	return provider.CacheKey(m.Name(), req, m.CacheInputs)
}

// Suggest runs req through every registered provider.
func (m *IdMulti) Suggest(
	ctx context.Context,
	req *provider.SuggestionRequest,
) (provider.SuggestionResponse, yaerrors.Error) {
	m.mu.RLock()
	ids := make(map[string]struct{}, len(m.providers))

	for id := range m.providers {
		ids[id] = struct{}{}
	}
	m.mu.RUnlock()

	return m.SuggestFromIDs(ctx, req, ids)
}

// Reconfigure diffs newConfig's provider names against the current
// registry: removed names are dropped, common names are passed to their
// own Reconfigure, and new names are built fresh via makeFresh.
func (m *IdMulti) Reconfigure(
	ctx context.Context,
	newConfig json.RawMessage,
	makeFresh provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	var newConfigs map[string]json.RawMessage

	if err := json.Unmarshal(newConfig, &newConfigs); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "decoding provider tree config")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for name := range m.providers {
		if _, stillPresent := newConfigs[name]; !stillPresent {
			delete(m.providers, name)
		}
	}

	for name, rawConfig := range newConfigs {
		existing, present := m.providers[name]
		if !present {
			continue
		}

		reconfigured, err := existing.Reconfigure(ctx, rawConfig, makeFresh)
		if err != nil {
			return nil, err
		}

		m.providers[name] = reconfigured
	}

	for name, rawConfig := range newConfigs {
		if _, present := m.providers[name]; present {
			continue
		}

		fresh, err := makeFresh(ctx, rawConfig)
		if err != nil {
			return nil, err
		}

		m.providers[name] = fresh
	}

	return m, nil
}
