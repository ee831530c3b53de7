package combinators_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/provider"
	"github.com/mozilla-services/merino/providers/combinators"
)

// counterProvider counts how many times it was called, returning the
// running count as the suggestion title.
type counterProvider struct {
	counter atomic.Int32
}

func (c *counterProvider) Name() string { return "CounterProvider" }
func (c *counterProvider) IsNull() bool { return false }

func (c *counterProvider) CacheInputs(*provider.SuggestionRequest, provider.CacheInputSink) {}

func (c *counterProvider) CacheKey(req *provider.SuggestionRequest) string {
	return provider.CacheKey(c.Name(), req, c.CacheInputs)
}

func (c *counterProvider) Suggest(
	context.Context,
	*provider.SuggestionRequest,
) (provider.SuggestionResponse, yaerrors.Error) {
	n := c.counter.Add(1)

	return provider.NewSuggestionResponse([]provider.Suggestion{{Title: string(rune('0' + n))}}), nil
}

func (c *counterProvider) Reconfigure(
	context.Context,
	json.RawMessage,
	provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	panic("not implemented")
}

func TestStealthSuggestHidesInnerSuggestionsButStillRunsInner(t *testing.T) {
	counter := &counterProvider{}
	stealth := combinators.NewStealth(counter)

	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			resp, err := stealth.Suggest(context.Background(), &provider.SuggestionRequest{})
			require.Nil(t, err)
			assert.Empty(t, resp.Suggestions)
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(100), counter.counter.Load())
}

func TestStealthReconfigureAppliesToInner(t *testing.T) {
	fixed, ferr := combinators.NewFixed(true, "foo")
	require.Nil(t, ferr)

	stealth := combinators.NewStealth(fixed)

	makeFresh := func(context.Context, json.RawMessage) (provider.SuggestionProvider, yaerrors.Error) {
		t.Fatal("make fresh should not be called as the inner fixed provider always reconfigures in place")

		return nil, nil
	}

	reconfigured, err := stealth.Reconfigure(
		context.Background(),
		json.RawMessage(`{"inner":{"value":"bar"}}`),
		makeFresh,
	)
	require.Nil(t, err)

	resp, err := reconfigured.Suggest(context.Background(), &provider.SuggestionRequest{})
	require.Nil(t, err)
	assert.Empty(t, resp.Suggestions)

	innerResp, err := fixed.Suggest(context.Background(), &provider.SuggestionRequest{})
	require.Nil(t, err)
	require.Len(t, innerResp.Suggestions, 1)
	assert.Equal(t, "bar", innerResp.Suggestions[0].Title)
}
