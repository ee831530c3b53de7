// Package combinators implements the provider-tree combinators that wrap
// a single inner SuggestionProvider (or two, for the client-variant
// switch) to adjust its behavior: timing it out, filtering its output,
// silencing it, or branching between two trees.
//
// Grounded on
// original_source/merino-suggest-providers/src/providers/{timeout,
// keyword_filter,stealth,client_variant_filter,fixed,debug}.rs and
// merino-suggest-traits/src/lib.rs's NullProvider.
package combinators

import (
	"context"
	"encoding/json"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/provider"
)

// Null never produces a suggestion. IsNull reports true so an IdMulti
// registry skips wiring cache layers in front of it entirely.
type Null struct{}

func (Null) Name() string { return "NullProvider" }
func (Null) IsNull() bool { return true }

func (Null) CacheInputs(*provider.SuggestionRequest, provider.CacheInputSink) {}

func (Null) CacheKey(req *provider.SuggestionRequest) string {
	return provider.CacheKey("NullProvider", req, Null{}.CacheInputs)
}

func (Null) Suggest(context.Context, *provider.SuggestionRequest) (provider.SuggestionResponse, yaerrors.Error) {
	return provider.NewSuggestionResponse(nil), nil
}

// Reconfigure ignores newConfig: a Null provider has no state to update and
// is never itself rebuilt from scratch.
func (n Null) Reconfigure(
	_ context.Context,
	_ json.RawMessage,
	_ provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	return n, nil
}
