package combinators

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/errs"
	"github.com/mozilla-services/merino/provider"
)

// Timeout returns an empty, error-flagged result if the wrapped provider
// takes longer than MaxTime to respond. The inner call runs under a child
// context that is canceled when Suggest returns, so an abandoned call is
// told to stop and its result is discarded.
type Timeout struct {
	maxTime time.Duration
	inner   provider.SuggestionProvider
}

// NewTimeout wraps inner with a response deadline.
func NewTimeout(maxTime time.Duration, inner provider.SuggestionProvider) *Timeout {
	return &Timeout{maxTime: maxTime, inner: inner}
}

func (t *Timeout) Name() string {
	return "timeout(" + t.inner.Name() + ")"
}

func (t *Timeout) IsNull() bool { return t.inner.IsNull() }

func (t *Timeout) CacheInputs(req *provider.SuggestionRequest, sink provider.CacheInputSink) {
	t.inner.CacheInputs(req, sink)
}

func (t *Timeout) CacheKey(req *provider.SuggestionRequest) string {
	return t.inner.CacheKey(req)
}

func (t *Timeout) Suggest(
	ctx context.Context,
	req *provider.SuggestionRequest,
) (provider.SuggestionResponse, yaerrors.Error) {
	type result struct {
		resp provider.SuggestionResponse
		err  yaerrors.Error
	}

	done := make(chan result, 1)

	innerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		resp, err := t.inner.Suggest(innerCtx, req)
		done <- result{resp: resp, err: err}
	}()

	timer := time.NewTimer(t.maxTime)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-timer.C:
		return provider.NewSuggestionResponse(nil).WithCacheStatus(provider.CacheStatusError), nil
	}
}

type timeoutConfig struct {
	MaxTimeSec int64           `json:"max_time_sec"`
	Inner      json.RawMessage `json:"inner"`
}

// Reconfigure applies newConfig's max_time in place and recurses into the
// inner provider's own Reconfigure, which decides for itself whether it
// can apply its share of the config in place or needs to be remade.
func (t *Timeout) Reconfigure(
	ctx context.Context,
	newConfig json.RawMessage,
	makeFresh provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	var cfg timeoutConfig

	if err := json.Unmarshal(newConfig, &cfg); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "loading timeout provider config")
	}

	reconfigured, err := t.inner.Reconfigure(ctx, cfg.Inner, makeFresh)
	if err != nil {
		return nil, err
	}

	t.inner = reconfigured
	t.maxTime = time.Duration(cfg.MaxTimeSec) * time.Second

	return t, nil
}
