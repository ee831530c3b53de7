package combinators

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/errs"
	"github.com/mozilla-services/merino/provider"
)

// errDebugOnly is returned by constructors gated on debug mode.
var errDebugOnly = errors.New("provider can only be used in debug mode")

// Debug echoes the incoming request back as the suggestion's title, for
// probing what the service received. Development and testing only.
type Debug struct{}

// NewDebug builds a Debug provider, refusing to do so unless debug is true.
func NewDebug(debug bool) (*Debug, yaerrors.Error) {
	if !debug {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, errDebugOnly, "constructing Debug provider")
	}

	return &Debug{}, nil
}

func (d *Debug) Name() string { return "DebugProvider" }
func (d *Debug) IsNull() bool { return false }

func (d *Debug) CacheInputs(*provider.SuggestionRequest, provider.CacheInputSink) {}

func (d *Debug) CacheKey(req *provider.SuggestionRequest) string {
	return provider.CacheKey(d.Name(), req, d.CacheInputs)
}

func (d *Debug) Suggest(
	_ context.Context,
	req *provider.SuggestionRequest,
) (provider.SuggestionResponse, yaerrors.Error) {
	body, err := json.Marshal(req)
	if err != nil {
		return provider.SuggestionResponse{}, errs.NewSuggestError(errs.SuggestSerialization, err, "serializing request")
	}

	return provider.NewSuggestionResponse([]provider.Suggestion{{
		Title:    string(body),
		Provider: "Merino::Debug",
		Score:    provider.NewProportion(0),
	}}), nil
}

func (d *Debug) Reconfigure(
	ctx context.Context,
	newConfig json.RawMessage,
	makeFresh provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	return makeFresh(ctx, newConfig)
}
