package idmulti_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/provider"
	"github.com/mozilla-services/merino/providers/idmulti"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// channelProvider blocks in Suggest until release is signaled, after
// announcing it has started via started.
type channelProvider struct {
	name    string
	started chan struct{}
	release chan struct{}
}

func (c *channelProvider) Name() string { return c.name }
func (c *channelProvider) IsNull() bool { return false }

func (c *channelProvider) CacheInputs(*provider.SuggestionRequest, provider.CacheInputSink) {}

func (c *channelProvider) CacheKey(req *provider.SuggestionRequest) string {
	return provider.CacheKey(c.name, req, c.CacheInputs)
}

func (c *channelProvider) Suggest(
	ctx context.Context,
	_ *provider.SuggestionRequest,
) (provider.SuggestionResponse, yaerrors.Error) {
	c.started <- struct{}{}
	<-c.release

	return provider.NewSuggestionResponse(nil), nil
}

func (c *channelProvider) Reconfigure(
	ctx context.Context,
	newConfig json.RawMessage,
	makeFresh provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	return makeFresh(ctx, newConfig)
}

func TestIdMultiSuggestIsConcurrent(t *testing.T) {
	t.Parallel()

	prov1 := &channelProvider{name: "1", started: make(chan struct{}, 1), release: make(chan struct{})}
	prov2 := &channelProvider{name: "2", started: make(chan struct{}, 1), release: make(chan struct{})}

	multi := idmulti.New(map[string]provider.SuggestionProvider{"1": prov1, "2": prov2})

	done := make(chan struct{})

	go func() {
		_, err := multi.Suggest(context.Background(), &provider.SuggestionRequest{Query: "x"})
		assert.NoError(t, err)
		close(done)
	}()

	// Both providers must have started before either is allowed to finish,
	// proving the fan-out ran concurrently rather than sequentially.
	select {
	case <-prov1.started:
	case <-time.After(time.Second):
		t.Fatal("provider 1 never started")
	}

	select {
	case <-prov2.started:
	case <-time.After(time.Second):
		t.Fatal("provider 2 never started")
	}

	select {
	case <-done:
		t.Fatal("suggest finished before either provider was released")
	default:
	}

	prov1.release <- struct{}{}

	select {
	case <-done:
		t.Fatal("suggest finished before the second provider was released")
	case <-time.After(20 * time.Millisecond):
	}

	prov2.release <- struct{}{}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("suggest never finished")
	}
}

type fixedProvider struct {
	value string
}

func (f *fixedProvider) Name() string { return "fixed" }
func (f *fixedProvider) IsNull() bool { return false }

func (f *fixedProvider) CacheInputs(*provider.SuggestionRequest, provider.CacheInputSink) {}

func (f *fixedProvider) CacheKey(req *provider.SuggestionRequest) string {
	return provider.CacheKey(f.Name(), req, f.CacheInputs)
}

func (f *fixedProvider) Suggest(
	context.Context,
	*provider.SuggestionRequest,
) (provider.SuggestionResponse, yaerrors.Error) {
	return provider.NewSuggestionResponse([]provider.Suggestion{{Title: f.value}}), nil
}

func (f *fixedProvider) Reconfigure(
	_ context.Context,
	newConfig json.RawMessage,
	_ provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	var cfg struct {
		Value string `json:"value"`
	}

	_ = json.Unmarshal(newConfig, &cfg)

	f.value = cfg.Value

	return f, nil
}

type nullProvider struct{}

func (nullProvider) Name() string { return "null" }
func (nullProvider) IsNull() bool { return true }

func (nullProvider) CacheInputs(*provider.SuggestionRequest, provider.CacheInputSink) {}

func (nullProvider) CacheKey(req *provider.SuggestionRequest) string {
	return provider.CacheKey("null", req, nullProvider{}.CacheInputs)
}

func (nullProvider) Suggest(
	context.Context,
	*provider.SuggestionRequest,
) (provider.SuggestionResponse, yaerrors.Error) {
	return provider.NewSuggestionResponse(nil), nil
}

func (n nullProvider) Reconfigure(
	ctx context.Context,
	newConfig json.RawMessage,
	makeFresh provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	return makeFresh(ctx, newConfig)
}

func TestIdMultiReconfigureAddsRemovesAndUpdates(t *testing.T) {
	t.Parallel()

	providers := map[string]provider.SuggestionProvider{
		"fixed": &fixedProvider{value: "foo"},
		"null":  nullProvider{},
	}

	multi := idmulti.New(providers)

	makeFresh := func(_ context.Context, raw json.RawMessage) (provider.SuggestionProvider, yaerrors.Error) {
		var cfg struct {
			Value string `json:"value"`
		}

		_ = json.Unmarshal(raw, &cfg)

		return &fixedProvider{value: cfg.Value}, nil
	}

	newConfig, err := json.Marshal(map[string]any{
		"fixed":         map[string]string{"value": "bar"},
		"another_fixed": map[string]string{"value": "baz"},
	})
	require.NoError(t, err)

	_, reconfigErr := multi.Reconfigure(context.Background(), newConfig, makeFresh)
	require.NoError(t, reconfigErr)

	assert.Len(t, multi.ListProviders(), 2)

	resp, suggestErr := multi.Suggest(context.Background(), &provider.SuggestionRequest{Query: "x"})
	require.NoError(t, suggestErr)
	require.Len(t, resp.Suggestions, 2)

	assert.Equal(t, "bar", resp.Suggestions[0].Title)
	assert.Equal(t, "baz", resp.Suggestions[1].Title)
}
