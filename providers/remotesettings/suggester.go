package remotesettings

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/yalogger"
	"github.com/mozilla-services/merino/dedupedmap"
	"github.com/mozilla-services/merino/errs"
	"github.com/mozilla-services/merino/metrics"
	"github.com/mozilla-services/merino/provider"
	"github.com/mozilla-services/merino/yabackoff"
	"golang.org/x/sync/errgroup"
)

// nonSponsoredIABCategories lists the IAB categories ADM tags as
// non-commercial content; every other category is treated as sponsored.
var nonSponsoredIABCategories = map[string]bool{
	"5 - Education": true,
}

// adSuggestionScore is the fixed relevance score every ADM suggestion
// carries, matching the original's Proportion::from(0.2).
const adSuggestionScore = 0.2

// AdmSuggestion is the wire shape of one entry inside a data attachment.
type AdmSuggestion struct {
	ID            uint32   `json:"id"`
	URL           string   `json:"url"`
	ClickURL      string   `json:"click_url"`
	ImpressionURL string   `json:"impression_url"`
	IABCategory   string   `json:"iab_category"`
	Icon          uint64   `json:"icon"`
	Advertiser    string   `json:"advertiser"`
	Title         string   `json:"title"`
	Keywords      []string `json:"keywords"`
}

// Suggester is the AdmRemoteSettings SuggestionProvider: an exact-keyword
// lookup served out of data synced from a Remote Settings collection.
type Suggester struct {
	client      *Client
	suggestions *dedupedmap.DedupedMap[string, struct{}, uint64, provider.Suggestion]
	metricsSink metrics.Sink
	log         yalogger.Logger

	resyncInterval  time.Duration
	suggestionScore float64
	done            chan struct{}
}

// Config controls how a Suggester's Remote Settings client is built and
// how often it resyncs.
type Config struct {
	ServerURL       string
	BucketID        string
	CollectionID    string
	ResyncInterval  time.Duration
	SuggestionScore float64
}

// New builds a Suggester, performing one synchronous sync before returning
// so the first request this process serves already has data, then spawns a
// background goroutine that resyncs on cfg.ResyncInterval.
func New(
	ctx context.Context,
	cfg Config,
	metricsSink metrics.Sink,
	log yalogger.Logger,
) (*Suggester, yaerrors.Error) {
	if cfg.ResyncInterval <= 0 {
		cfg.ResyncInterval = 10 * time.Minute
	}

	if cfg.SuggestionScore == 0 {
		cfg.SuggestionScore = adSuggestionScore
	}

	if metricsSink == nil {
		metricsSink = metrics.NewNop()
	}

	client, err := NewClient(cfg.ServerURL, cfg.BucketID, cfg.CollectionID)
	if err != nil {
		return nil, err
	}

	s := &Suggester{
		client:          client,
		suggestions:     dedupedmap.New[string, struct{}, uint64, provider.Suggestion](),
		metricsSink:     metricsSink,
		log:             log,
		resyncInterval:  cfg.ResyncInterval,
		suggestionScore: cfg.SuggestionScore,
		done:            make(chan struct{}),
	}

	if err := s.sync(ctx); err != nil {
		return nil, err
	}

	go s.resyncLoop()

	return s, nil
}

// Close stops the background resync goroutine.
func (s *Suggester) Close() {
	close(s.done)
}

// resyncLoop re-syncs on every tick of resyncInterval, retrying with
// backoff when a sync attempt fails, until Close is called. The first tick
// is consumed without syncing, mirroring the original's
// `interval.tick().await` throwaway before the loop body runs.
func (s *Suggester) resyncLoop() {
	ticker := time.NewTicker(s.resyncInterval)
	defer ticker.Stop()

	select {
	case <-ticker.C:
	case <-s.done:
		return
	}

	backoff := yabackoff.NewExponential(time.Second, 2, time.Minute, 0)

	for {
		select {
		case <-ticker.C:
			if err := s.sync(context.Background()); err != nil {
				s.logWarn("remote settings resync failed, backing off: %v", err)
				backoff.Wait()

				continue
			}

			backoff.Reset()
		case <-s.done:
			return
		}
	}
}

// sync fetches the latest changeset, rebuilds every suggestion from the
// "data" attachments it finds, and replaces the keyword index with the new
// set by dropping every entry and then inserting the fresh ones; a lookup
// made between the two steps finds nothing.
func (s *Suggester) sync(ctx context.Context) yaerrors.Error {
	if err := s.client.Sync(ctx); err != nil {
		return err
	}

	iconURLs := make(map[string]string)

	for _, record := range s.client.RecordsOfType("icon") {
		locationValue, ok := record.Extra["location"]
		if !ok {
			continue
		}

		var location string
		if err := json.Unmarshal(locationValue, &location); err != nil {
			continue
		}

		// icon records' own id is already of the form "icon-<n>", matching
		// what an adm suggestion's icon field resolves to below.
		iconURLs[record.ID] = location
	}

	type pending struct {
		key   string
		value provider.Suggestion
	}

	dataRecords := s.client.RecordsOfType("data")
	perRecord := make([][]AdmSuggestion, len(dataRecords))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(5)

	for i, record := range dataRecords {
		if record.Attachment == nil {
			continue
		}

		attachment, ok := s.client.Attachment(record.Attachment.Hash)
		if !ok {
			continue
		}

		i, attachment := i, attachment

		group.Go(func() error {
			body, err := attachment.Fetch(groupCtx)
			if err != nil {
				return err
			}

			var admSuggestions []AdmSuggestion

			if jsonErr := json.Unmarshal(body, &admSuggestions); jsonErr != nil {
				return jsonErr
			}

			perRecord[i] = admSuggestions

			return nil
		})
	}

	if groupErr := group.Wait(); groupErr != nil {
		if wrapped, ok := groupErr.(yaerrors.Error); ok {
			return wrapped
		}

		return errs.NewSetupError(errs.SetupFormat, groupErr, "fetching adm suggestions attachments")
	}

	var fresh []pending

	for _, admSuggestions := range perRecord {
		for _, adm := range admSuggestions {
			if len(adm.Keywords) == 0 {
				s.logWarn("skipping adm suggestion %d with no keywords", adm.ID)

				continue
			}

			iconURL, ok := iconURLs["icon-"+strconv.FormatUint(adm.Icon, 10)]
			if !ok {
				s.logWarn("skipping adm suggestion %d with unresolved icon %d", adm.ID, adm.Icon)

				continue
			}

			isSponsored := !nonSponsoredIABCategories[adm.IABCategory]

			for _, keyword := range adm.Keywords {
				suggestion := provider.Suggestion{
					ID:          adm.ID,
					FullKeyword: FullKeyword(keyword, adm.Keywords),
					Title:       adm.Title,
					URL:         adm.URL,
					Provider:    "AdmRemoteSettings",
					Advertiser:  adm.Advertiser,
					IsSponsored: isSponsored,
					Icon:        iconURL,
					Score:       provider.NewProportion(s.suggestionScore),
				}

				if adm.ClickURL != "" {
					clickURL := adm.ClickURL
					suggestion.ClickURL = &clickURL
				}

				if adm.ImpressionURL != "" {
					impressionURL := adm.ImpressionURL
					suggestion.ImpressionURL = &impressionURL
				}

				fresh = append(fresh, pending{key: keyword, value: suggestion})
			}
		}
	}

	if len(fresh) == 0 {
		s.logWarn("remote settings sync produced no suggestions")
	}

	s.suggestions.Retain(func(string, struct{}) dedupedmap.RetainDecision {
		return dedupedmap.RetainDrop
	})

	for _, p := range fresh {
		hash, hashErr := suggestionHash(p.value)
		if hashErr != nil {
			s.logWarn("failed to hash suggestion for %q: %v", p.key, hashErr)

			continue
		}

		s.suggestions.Insert(p.key, struct{}{}, hash, p.value)
	}

	return nil
}

func suggestionHash(s provider.Suggestion) (uint64, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return 0, err
	}

	h := fnv.New64a()
	h.Write(data)

	return h.Sum64(), nil
}

func (s *Suggester) logWarn(format string, args ...any) {
	if s.log == nil {
		return
	}

	s.log.WithField("provider", "AdmRemoteSettings").Warnf(format, args...)
}

// Name identifies this provider within an IdMulti registry.
func (s *Suggester) Name() string {
	return "AdmRemoteSettings"
}

// IsNull is always false: a synced Suggester can always produce results.
func (s *Suggester) IsNull() bool {
	return false
}

// CacheInputs only folds accepts_english and the raw query, narrower than
// DefaultCacheInputs, matching the original's override: geolocation and
// device info never affect an exact keyword lookup.
func (s *Suggester) CacheInputs(req *provider.SuggestionRequest, sink provider.CacheInputSink) {
	sink.Add([]byte{boolByte(req.AcceptsEnglish)})
	sink.Add([]byte(req.Query))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}

	return 0
}

// CacheKey derives this provider's cache key from its narrowed CacheInputs.
func (s *Suggester) CacheKey(req *provider.SuggestionRequest) string {
	return provider.CacheKey(s.Name(), req, s.CacheInputs)
}

// Suggest looks up req.Query verbatim; ADM suggestions are only offered to
// clients that accept English results.
func (s *Suggester) Suggest(
	ctx context.Context,
	req *provider.SuggestionRequest,
) (provider.SuggestionResponse, yaerrors.Error) {
	start := time.Now()

	var suggestions []provider.Suggestion

	if req.AcceptsEnglish {
		if suggestion, _, ok := s.suggestions.Get(req.Query); ok {
			suggestions = []provider.Suggestion{suggestion}
		}
	}

	s.metricsSink.Histogram(
		"adm.rs.provider.duration-us",
		float64(time.Since(start).Microseconds()),
		map[string]string{"accepts-english": strconv.FormatBool(req.AcceptsEnglish)},
	)

	return provider.NewSuggestionResponse(suggestions), nil
}

// Reconfigure rebuilds the suggester via makeFresh: a running sync loop and
// an open http client are not worth preserving across a config change.
func (s *Suggester) Reconfigure(
	ctx context.Context,
	newConfig json.RawMessage,
	makeFresh provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	s.Close()

	return makeFresh(ctx, newConfig)
}
