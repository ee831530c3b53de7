package combinators_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-services/merino/provider"
	"github.com/mozilla-services/merino/providers/combinators"
)

func TestNewDebugRefusesOutsideDebugMode(t *testing.T) {
	_, err := combinators.NewDebug(false)
	require.NotNil(t, err)
}

func TestDebugSuggestEchoesRequest(t *testing.T) {
	debug, err := combinators.NewDebug(true)
	require.Nil(t, err)

	req := &provider.SuggestionRequest{Query: "flowers"}

	resp, serr := debug.Suggest(context.Background(), req)
	require.Nil(t, serr)
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, "Merino::Debug", resp.Suggestions[0].Provider)

	var echoed provider.SuggestionRequest

	require.NoError(t, json.Unmarshal([]byte(resp.Suggestions[0].Title), &echoed))
	assert.Equal(t, "flowers", echoed.Query)
}
