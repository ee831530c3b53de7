package rediscache

import (
	"encoding/json"
	"fmt"

	"github.com/mozilla-services/merino/provider"
)

// serializationVersion is prepended to every cache payload so that a
// format change never gets misread as valid data; a mismatch is treated
// as a type error and the entry is deleted.
const serializationVersion = "v0"

// encodeSuggestions serializes suggestions as "v0" followed by their JSON
// encoding, the wire format every cache entry uses.
func encodeSuggestions(suggestions []provider.Suggestion) (string, error) {
	body, err := json.Marshal(suggestions)
	if err != nil {
		return "", fmt.Errorf("marshaling suggestions for cache storage: %w", err)
	}

	return serializationVersion + string(body), nil
}

// decodeSuggestions reverses encodeSuggestions, validating the version tag.
func decodeSuggestions(raw string) ([]provider.Suggestion, error) {
	if len(raw) < len(serializationVersion) || raw[:len(serializationVersion)] != serializationVersion {
		prefix := raw
		if len(prefix) > len(serializationVersion) {
			prefix = prefix[:len(serializationVersion)]
		}

		return nil, fmt.Errorf("unexpected cache serialization version %q", prefix)
	}

	var suggestions []provider.Suggestion

	if err := json.Unmarshal([]byte(raw[len(serializationVersion):]), &suggestions); err != nil {
		return nil, fmt.Errorf("deserializing suggestions from cache: %w", err)
	}

	return suggestions, nil
}

// ttlResult is the parsed result of a Redis TTL command, collapsing the
// two sentinel values into named cases the way the original RedisTtl enum
// does.
type ttlResult struct {
	keyDoesNotExist bool
	keyHasNoTTL     bool
	seconds         int64
}

func parseTTL(seconds int64) ttlResult {
	switch {
	case seconds == -2:
		return ttlResult{keyDoesNotExist: true}
	case seconds == -1:
		return ttlResult{keyHasNoTTL: true}
	default:
		return ttlResult{seconds: seconds}
	}
}
