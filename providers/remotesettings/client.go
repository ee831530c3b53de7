// Package remotesettings ports the ADM Remote Settings suggester: a client
// that syncs a Kinto changeset collection and a SuggestionProvider that
// serves exact-keyword lookups out of the synced data.
//
// Grounded on original_source/merino-adm/src/remote_settings/client.rs for
// the pagination and attachment layer, and .../remote_settings/mod.rs for
// the sync algorithm and the SuggestionProvider wiring.
package remotesettings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/errs"
)

// Record is a single entry in a Remote Settings collection's changeset.
// Extra carries every field the collection's schema defines beyond the
// common ones, keyed by field name, mirroring the original's serde(flatten).
type Record struct {
	ID           string
	LastModified uint64
	Deleted      bool
	Attachment   *attachmentMeta
	Type         string
	Extra        map[string]json.RawMessage
}

type attachmentMeta struct {
	Location string `json:"location"`
	Hash     string `json:"hash"`
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &r.ID); err != nil {
			return fmt.Errorf("record id: %w", err)
		}

		delete(raw, "id")
	}

	if v, ok := raw["last_modified"]; ok {
		if err := json.Unmarshal(v, &r.LastModified); err != nil {
			return fmt.Errorf("record last_modified: %w", err)
		}

		delete(raw, "last_modified")
	}

	if v, ok := raw["deleted"]; ok {
		var deleted bool
		if err := json.Unmarshal(v, &deleted); err != nil {
			return fmt.Errorf("record deleted: %w", err)
		}

		r.Deleted = deleted
		delete(raw, "deleted")
	}

	if v, ok := raw["type"]; ok {
		_ = json.Unmarshal(v, &r.Type)
	}

	if v, ok := raw["attachment"]; ok {
		var meta attachmentMeta
		if err := json.Unmarshal(v, &meta); err == nil {
			r.Attachment = &meta
		}

		delete(raw, "attachment")
	}

	r.Extra = raw

	return nil
}

// LazyAttachment is a downloadable attachment whose bytes are fetched on
// first use and memoized, mirroring the original's RwLock<Option<Vec<u8>>>.
type LazyAttachment struct {
	Location string
	Hash     string

	httpClient *http.Client

	mu         sync.RWMutex
	downloaded []byte
}

// Fetch returns the attachment's raw bytes, downloading them on first call
// and serving the cached copy on every call after that.
func (a *LazyAttachment) Fetch(ctx context.Context) ([]byte, yaerrors.Error) {
	a.mu.RLock()
	if a.downloaded != nil {
		cached := a.downloaded
		a.mu.RUnlock()

		return cached, nil
	}
	a.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.Location, nil)
	if err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "building attachment request")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, errs.NewSetupError(errs.SetupNetwork, err, "downloading attachment")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errs.NewSetupError(
			errs.SetupNetwork,
			fmt.Errorf("unexpected status %d", resp.StatusCode),
			"downloading attachment: "+a.Location,
		)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.NewSetupError(errs.SetupNetwork, err, "reading attachment body")
	}

	a.mu.Lock()
	a.downloaded = body
	a.mu.Unlock()

	return body, nil
}

// Client talks to a Remote Settings server's changeset endpoint for one
// bucket/collection pair, tracking the records and attachments it has
// already seen across syncs.
type Client struct {
	serverURL    *url.URL
	bucketID     string
	collectionID string

	httpClient *http.Client

	mu                sync.RWMutex
	records           map[string]Record
	attachments       map[string]*LazyAttachment
	attachmentBaseURL *url.URL

	lastModified uint64
}

// NewClient builds a client targeting the given server and collection.
func NewClient(serverURL, bucketID, collectionID string) (*Client, yaerrors.Error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "parsing remote settings server url")
	}

	return &Client{
		serverURL:    parsed,
		bucketID:     bucketID,
		collectionID: collectionID,
		httpClient:   http.DefaultClient,
		records:      make(map[string]Record),
		attachments:  make(map[string]*LazyAttachment),
	}, nil
}

type changesetResponse struct {
	Changes []Record `json:"changes"`
}

// Sync fetches every change since the last sync, paginating through
// Next-Page links, and applies tombstones and upserts to the local record
// set.
func (c *Client) Sync(ctx context.Context) yaerrors.Error {
	c.mu.RLock()
	since := c.lastModified
	c.mu.RUnlock()

	changesURL := c.serverURL.JoinPath(
		"v1", "buckets", c.bucketID, "collections", c.collectionID, "changeset",
	)

	q := changesURL.Query()
	q.Set("_expected", "0")
	q.Set("_since", fmt.Sprintf("%q", fmt.Sprintf("%d", since)))
	q.Set("sort", "-last_modified")
	changesURL.RawQuery = q.Encode()

	var allChanges []Record

	next := changesURL

	for next != nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, next.String(), nil)
		if err != nil {
			return errs.NewSetupError(errs.SetupInvalidConfiguration, err, "building changeset request")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return errs.NewSetupError(errs.SetupNetwork, err, "fetching remote settings changeset")
		}

		if resp.StatusCode >= http.StatusBadRequest {
			resp.Body.Close()

			return errs.NewSetupError(
				errs.SetupNetwork,
				fmt.Errorf("unexpected status %d", resp.StatusCode),
				"fetching remote settings changeset",
			)
		}

		var page changesetResponse

		decodeErr := json.NewDecoder(resp.Body).Decode(&page)

		nextPage := resp.Header.Get("Next-Page")

		resp.Body.Close()

		if decodeErr != nil {
			return errs.NewSetupError(errs.SetupFormat, decodeErr, "parsing remote settings changeset")
		}

		allChanges = append(allChanges, page.Changes...)

		next = nil

		if nextPage != "" {
			parsedNext, parseErr := url.Parse(nextPage)
			if parseErr != nil {
				continue
			}

			next = parsedNext
		}
	}

	for _, record := range allChanges {
		if record.Deleted {
			c.removeRecord(record)

			continue
		}

		if err := c.addRecord(ctx, record); err != nil {
			return err
		}

		if record.LastModified > since {
			since = record.LastModified
		}
	}

	c.mu.Lock()
	if since > c.lastModified {
		c.lastModified = since
	}
	c.mu.Unlock()

	return nil
}

func (c *Client) removeRecord(record Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if record.Attachment != nil {
		delete(c.attachments, record.Attachment.Hash)
	}

	delete(c.records, record.ID)
}

func (c *Client) addRecord(ctx context.Context, record Record) yaerrors.Error {
	if record.Attachment != nil {
		base, err := c.attachmentBase(ctx)
		if err != nil {
			return err
		}

		location := base.JoinPath(record.Attachment.Location).String()

		attachment := &LazyAttachment{
			Location:   location,
			Hash:       record.Attachment.Hash,
			httpClient: c.httpClient,
		}

		c.mu.Lock()
		c.attachments[record.Attachment.Hash] = attachment
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.records[record.ID] = record
	c.mu.Unlock()

	return nil
}

func (c *Client) attachmentBase(ctx context.Context) (*url.URL, yaerrors.Error) {
	c.mu.RLock()
	if c.attachmentBaseURL != nil {
		base := c.attachmentBaseURL
		c.mu.RUnlock()

		return base, nil
	}
	c.mu.RUnlock()

	info, err := c.fetchServerInfo(ctx)
	if err != nil {
		return nil, err
	}

	if info.Capabilities.Attachments == nil {
		return nil, errs.NewSetupError(
			errs.SetupInvalidConfiguration,
			fmt.Errorf("server does not support the attachments capability"),
			"resolving attachment base url",
		)
	}

	parsed, parseErr := url.Parse(info.Capabilities.Attachments.BaseURL)
	if parseErr != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, parseErr, "parsing attachment base url")
	}

	c.mu.Lock()
	c.attachmentBaseURL = parsed
	c.mu.Unlock()

	return parsed, nil
}

type serverInfo struct {
	Capabilities struct {
		Attachments *struct {
			BaseURL string `json:"base_url"`
		} `json:"attachments"`
	} `json:"capabilities"`
}

func (c *Client) fetchServerInfo(ctx context.Context) (*serverInfo, yaerrors.Error) {
	infoURL := c.serverURL.JoinPath("v1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL.String(), nil)
	if err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "building server info request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.NewSetupError(errs.SetupNetwork, err, "fetching remote settings server info")
	}
	defer resp.Body.Close()

	var info serverInfo

	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errs.NewSetupError(errs.SetupFormat, err, "parsing remote settings server info")
	}

	return &info, nil
}

// RecordsOfType returns every currently known record whose "type" field
// equals t.
func (c *Client) RecordsOfType(t string) []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Record

	for _, r := range c.records {
		if r.Type == t {
			out = append(out, r)
		}
	}

	return out
}

// Attachment returns the lazy attachment registered under hash, if any.
func (c *Client) Attachment(hash string) (*LazyAttachment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a, ok := c.attachments[hash]

	return a, ok
}
