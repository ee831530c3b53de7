package combinators

import (
	"context"
	"encoding/json"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/errs"
	"github.com/mozilla-services/merino/provider"
)

// Fixed always returns the same single suggestion, with a configurable
// title. Development and testing only; NewFixed refuses to build one outside
// debug mode.
type Fixed struct {
	Value string
}

// NewFixed builds a Fixed provider, refusing to do so unless debug is true.
func NewFixed(debug bool, value string) (*Fixed, yaerrors.Error) {
	if !debug {
		return nil, errs.NewSetupError(
			errs.SetupInvalidConfiguration,
			errDebugOnly,
			"constructing Fixed provider",
		)
	}

	return &Fixed{Value: value}, nil
}

func (f *Fixed) Name() string {
	return "FixedProvider(" + f.Value + ")"
}

func (f *Fixed) IsNull() bool { return false }

// CacheInputs is empty: no property of the request changes the response.
func (f *Fixed) CacheInputs(*provider.SuggestionRequest, provider.CacheInputSink) {}

func (f *Fixed) CacheKey(req *provider.SuggestionRequest) string {
	return provider.CacheKey(f.Name(), req, f.CacheInputs)
}

func (f *Fixed) Suggest(
	context.Context,
	*provider.SuggestionRequest,
) (provider.SuggestionResponse, yaerrors.Error) {
	impressionURL := "https://merino.services.mozilla.com/test/impression"
	clickURL := "https://merino.services.mozilla.com/test/click"

	return provider.NewSuggestionResponse([]provider.Suggestion{{
		Provider:      f.Name(),
		Advertiser:    "test_advertiser",
		Score:         provider.NewProportion(0),
		Title:         f.Value,
		URL:           "https://merino.services.mozilla.com/test/suggestion",
		ImpressionURL: &impressionURL,
		ClickURL:      &clickURL,
		IsSponsored:   false,
		Icon:          "https://mozilla.com/favicon.png",
	}}), nil
}

type fixedConfig struct {
	Value string `json:"value"`
}

func (f *Fixed) Reconfigure(
	_ context.Context,
	newConfig json.RawMessage,
	_ provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	var cfg fixedConfig

	if err := json.Unmarshal(newConfig, &cfg); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "loading fixed provider config")
	}

	f.Value = cfg.Value

	return f, nil
}
