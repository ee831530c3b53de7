package remotesettings_test

import (
	"testing"

	"github.com/mozilla-services/merino/providers/remotesettings"
	"github.com/stretchr/testify/assert"
)

func TestFullKeywordHeuristicOneMoreWords(t *testing.T) {
	t.Parallel()

	keywords := []string{"moz", "mozi", "mozil", "mozill", "mozilla", "mozilla firefox"}
	assert.Equal(t, "mozilla", remotesettings.FullKeyword("moz", keywords))

	keywords2 := []string{
		"one", "one t", "one tw", "one two", "one two t",
		"one two th", "one two thr", "one two thre", "one two three",
	}
	assert.Equal(t, "one two", remotesettings.FullKeyword("one t", keywords2))
}

func TestFullKeywordHeuristicTwoLongestPrefix(t *testing.T) {
	t.Parallel()

	keywords := []string{"moz", "mozi", "mozil", "mozill", "mozilla"}
	assert.Equal(t, "mozilla", remotesettings.FullKeyword("moz", keywords))

	keywords2 := []string{
		"one", "one t", "one tw", "one two", "one two t",
		"one two th", "one two thr", "one two thre", "one two three",
	}
	assert.Equal(t, "one two three", remotesettings.FullKeyword("one two t", keywords2))
}

func TestFullKeywordFallsBackToQuery(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "xyz", remotesettings.FullKeyword("xyz", []string{"abc", "def"}))
}

func TestFullKeywordTieBreakPrefersLast(t *testing.T) {
	t.Parallel()

	// Two keywords of equal length both prefixed by the query: the last one
	// encountered wins, matching Rust's max_by_key tie-break.
	keywords := []string{"firefox", "firedog"}
	assert.Equal(t, "firedog", remotesettings.FullKeyword("fire", keywords))
}
