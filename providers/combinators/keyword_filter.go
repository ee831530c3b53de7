package combinators

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"maps"
	"regexp"
	"slices"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/errs"
	"github.com/mozilla-services/merino/metrics"
	"github.com/mozilla-services/merino/provider"
)

// blocklistRule pairs a compiled, case-insensitive pattern with the id it
// was registered under, so a match can be attributed back to its rule.
type blocklistRule struct {
	id      string
	pattern *regexp.Regexp
}

// KeywordFilter drops any suggestion from inner whose title matches a
// blocklist regex, and counts matches per rule id through metricsSink.
type KeywordFilter struct {
	rules       []blocklistRule
	hash        string
	inner       provider.SuggestionProvider
	metricsSink metrics.Sink
}

// NewKeywordFilter compiles blocklist (rule id -> regex pattern) and wraps
// inner with it.
func NewKeywordFilter(
	blocklist map[string]string,
	inner provider.SuggestionProvider,
	metricsSink metrics.Sink,
) (*KeywordFilter, yaerrors.Error) {
	rules, hash, err := compileBlocklist(blocklist)
	if err != nil {
		return nil, err
	}

	if metricsSink == nil {
		metricsSink = metrics.NewNop()
	}

	return &KeywordFilter{rules: rules, hash: hash, inner: inner, metricsSink: metricsSink}, nil
}

func compileBlocklist(blocklist map[string]string) ([]blocklistRule, string, yaerrors.Error) {
	rules := make([]blocklistRule, 0, len(blocklist))
	hasher := sha256.New()

	for _, id := range slices.Sorted(maps.Keys(blocklist)) {
		pattern := blocklist[id]

		compiled, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, "", errs.NewSetupError(errs.SetupInvalidConfiguration, err, "compiling keyword filter blocklist")
		}

		rules = append(rules, blocklistRule{id: id, pattern: compiled})
		hasher.Write([]byte(pattern))
		hasher.Write([]byte{0})
	}

	return rules, hex.EncodeToString(hasher.Sum(nil)), nil
}

func (k *KeywordFilter) Name() string {
	return "KeywordFilterProvider(" + k.inner.Name() + ")"
}

func (k *KeywordFilter) IsNull() bool { return k.inner.IsNull() }

func (k *KeywordFilter) CacheInputs(req *provider.SuggestionRequest, sink provider.CacheInputSink) {
	sink.Add([]byte(k.hash))
	k.inner.CacheInputs(req, sink)
}

func (k *KeywordFilter) CacheKey(req *provider.SuggestionRequest) string {
	return provider.CacheKey(k.Name(), req, k.CacheInputs)
}

func (k *KeywordFilter) Suggest(
	ctx context.Context,
	req *provider.SuggestionRequest,
) (provider.SuggestionResponse, yaerrors.Error) {
	results, err := k.inner.Suggest(ctx, req)
	if err != nil {
		return provider.SuggestionResponse{}, err
	}

	reportedHits := make(map[string]int64)

	kept := results.Suggestions[:0]

	for _, suggestion := range results.Suggestions {
		matched := false

		for _, rule := range k.rules {
			if rule.pattern.MatchString(suggestion.Title) {
				matched = true
				reportedHits[rule.id]++
			}
		}

		if !matched {
			kept = append(kept, suggestion)
		}
	}

	results.Suggestions = kept

	for id, count := range reportedHits {
		k.metricsSink.Count("keywordfilter.match", count, map[string]string{"id": id})
	}

	return results, nil
}

type keywordFilterConfig struct {
	SuggestionBlocklist map[string]string `json:"suggestion_blocklist"`
	Inner               json.RawMessage   `json:"inner"`
}

func (k *KeywordFilter) Reconfigure(
	ctx context.Context,
	newConfig json.RawMessage,
	makeFresh provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	var cfg keywordFilterConfig

	if err := json.Unmarshal(newConfig, &cfg); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "loading keyword filter config")
	}

	rules, hash, err := compileBlocklist(cfg.SuggestionBlocklist)
	if err != nil {
		return nil, err
	}

	reconfigured, err := k.inner.Reconfigure(ctx, cfg.Inner, makeFresh)
	if err != nil {
		return nil, err
	}

	k.rules = rules
	k.hash = hash
	k.inner = reconfigured

	return k, nil
}
