package combinators

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/errs"
	"github.com/mozilla-services/merino/provider"
)

// ClientVariantSwitch routes a request to matching when the request's
// client variants include clientVariant, and to defaultProvider otherwise.
type ClientVariantSwitch struct {
	clientVariant   string
	matching        provider.SuggestionProvider
	defaultProvider provider.SuggestionProvider
}

// NewClientVariantSwitch builds a switch routing on clientVariant.
func NewClientVariantSwitch(
	clientVariant string,
	matching provider.SuggestionProvider,
	defaultProvider provider.SuggestionProvider,
) *ClientVariantSwitch {
	return &ClientVariantSwitch{
		clientVariant:   clientVariant,
		matching:        matching,
		defaultProvider: defaultProvider,
	}
}

func (c *ClientVariantSwitch) Name() string {
	return "ClientVariantSwitch(matching: " + c.matching.Name() +
		", default: " + c.defaultProvider.Name() +
		", client_variant: " + c.clientVariant + ")"
}

func (c *ClientVariantSwitch) IsNull() bool {
	return c.matching.IsNull() && c.defaultProvider.IsNull()
}

func (c *ClientVariantSwitch) CacheInputs(req *provider.SuggestionRequest, sink provider.CacheInputSink) {
	matches := slices.Contains(req.ClientVariants, c.clientVariant)

	sink.Add([]byte("client_variant_match:" + c.clientVariant + "=" + strconv.FormatBool(matches)))
	c.matching.CacheInputs(req, sink)
	c.defaultProvider.CacheInputs(req, sink)
}

func (c *ClientVariantSwitch) CacheKey(req *provider.SuggestionRequest) string {
	return provider.CacheKey(c.Name(), req, c.CacheInputs)
}

func (c *ClientVariantSwitch) Suggest(
	ctx context.Context,
	req *provider.SuggestionRequest,
) (provider.SuggestionResponse, yaerrors.Error) {
	if slices.Contains(req.ClientVariants, c.clientVariant) {
		return c.matching.Suggest(ctx, req)
	}

	return c.defaultProvider.Suggest(ctx, req)
}

type clientVariantSwitchConfig struct {
	ClientVariant string          `json:"client_variant"`
	Matching      json.RawMessage `json:"matching_provider"`
	Default       json.RawMessage `json:"default_provider"`
}

func (c *ClientVariantSwitch) Reconfigure(
	ctx context.Context,
	newConfig json.RawMessage,
	makeFresh provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	var cfg clientVariantSwitchConfig

	if err := json.Unmarshal(newConfig, &cfg); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "loading client variant switch config")
	}

	matching, err := c.matching.Reconfigure(ctx, cfg.Matching, makeFresh)
	if err != nil {
		return nil, err
	}

	defaultProvider, err := c.defaultProvider.Reconfigure(ctx, cfg.Default, makeFresh)
	if err != nil {
		return nil, err
	}

	c.clientVariant = cfg.ClientVariant
	c.matching = matching
	c.defaultProvider = defaultProvider

	return c, nil
}
