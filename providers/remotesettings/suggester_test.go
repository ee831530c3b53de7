package remotesettings_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mozilla-services/merino/provider"
	"github.com/mozilla-services/merino/providers/remotesettings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	attachBase := new(string)

	mux.HandleFunc("/v1/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/" {
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"capabilities":{"attachments":{"base_url":"` + *attachBase + `/attachments/"}}}`))
	})

	mux.HandleFunc("/v1/buckets/main/collections/quicksuggest/changeset", func(w http.ResponseWriter, r *http.Request) {
		changes := []map[string]any{
			{
				"id":            "icon-24",
				"last_modified": 1,
				"type":          "icon",
				"location":      "icons/24.png",
			},
			{
				"id":            "data-1",
				"last_modified": 2,
				"type":          "data",
				"attachment": map[string]any{
					"location": "data/1.json",
					"hash":     "abc123",
				},
			},
		}

		body, err := json.Marshal(map[string]any{"changes": changes})
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})

	mux.HandleFunc("/attachments/data/1.json", func(w http.ResponseWriter, r *http.Request) {
		suggestions := []remotesettings.AdmSuggestion{
			{
				ID:          1,
				URL:         "https://example.com/sheep",
				ClickURL:    "https://example.com/click",
				IABCategory: "22 - Shopping",
				Icon:        24,
				Advertiser:  "Example Co",
				Title:       "Sheep",
				Keywords:    []string{"sheep", "sheep farm"},
			},
		}

		body, err := json.Marshal(suggestions)
		require.NoError(t, err)

		_, _ = w.Write(body)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	*attachBase = srv.URL

	return srv
}

func newTestSuggester(t *testing.T) (*remotesettings.Suggester, *httptest.Server) {
	t.Helper()

	srv := newFixtureServer(t)

	suggester, err := remotesettings.New(
		context.Background(),
		remotesettings.Config{
			ServerURL:      srv.URL,
			BucketID:       "main",
			CollectionID:   "quicksuggest",
			ResyncInterval: time.Hour,
		},
		nil,
		nil,
	)
	require.NoError(t, err)

	t.Cleanup(suggester.Close)

	return suggester, srv
}

func TestSuggesterEnglishIsSupportedExample(t *testing.T) {
	t.Parallel()

	suggester, _ := newTestSuggester(t)

	resp, err := suggester.Suggest(context.Background(), &provider.SuggestionRequest{
		Query:          "sheep",
		AcceptsEnglish: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, "Sheep", resp.Suggestions[0].Title)
	assert.Equal(t, "https://example.com/sheep", resp.Suggestions[0].URL)
	assert.True(t, resp.Suggestions[0].IsSponsored)
}

func TestSuggesterEnglishIsUnsupportedExample(t *testing.T) {
	t.Parallel()

	suggester, _ := newTestSuggester(t)

	resp, err := suggester.Suggest(context.Background(), &provider.SuggestionRequest{
		Query:          "sheep",
		AcceptsEnglish: false,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Suggestions)
}

func TestSuggesterFullKeywordIsResolvedFromAllKeywords(t *testing.T) {
	t.Parallel()

	suggester, _ := newTestSuggester(t)

	resp, err := suggester.Suggest(context.Background(), &provider.SuggestionRequest{
		Query:          "sheep farm",
		AcceptsEnglish: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, "sheep farm", resp.Suggestions[0].FullKeyword)
}

func TestSuggesterCacheInputsIgnoresGeolocation(t *testing.T) {
	t.Parallel()

	suggester, _ := newTestSuggester(t)

	country := "US"

	withCountry := suggester.CacheKey(&provider.SuggestionRequest{
		Query: "sheep", AcceptsEnglish: true, Country: &country,
	})
	withoutCountry := suggester.CacheKey(&provider.SuggestionRequest{
		Query: "sheep", AcceptsEnglish: true,
	})

	assert.Equal(t, withCountry, withoutCountry)
}
