package combinators_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/provider"
	"github.com/mozilla-services/merino/providers/combinators"
)

func TestNullIsAlwaysNull(t *testing.T) {
	assert.True(t, combinators.Null{}.IsNull())
}

func TestNullSuggestReturnsNoSuggestions(t *testing.T) {
	resp, err := combinators.Null{}.Suggest(context.Background(), &provider.SuggestionRequest{})
	require.Nil(t, err)
	assert.Empty(t, resp.Suggestions)
}

func TestNullReconfigureIsANoOpAndNeverRebuilds(t *testing.T) {
	n := combinators.Null{}

	makeFresh := func(context.Context, json.RawMessage) (provider.SuggestionProvider, yaerrors.Error) {
		t.Fatal("make fresh should never be called for a null provider")

		return nil, nil
	}

	reconfigured, err := n.Reconfigure(context.Background(), json.RawMessage(`{"type":"fixed","value":"bar"}`), makeFresh)
	require.Nil(t, err)
	assert.Equal(t, n, reconfigured)
}
