// Package reconfigure builds and rebuilds the provider tree from JSON
// configuration, the Go counterpart of maker.rs's make_provider_tree and
// reconfigure.rs's reconfigure_provider_tree: a single recursive factory
// keyed by a "type" discriminator, reused both for the initial build and
// as the MakeFreshFunc every provider's own Reconfigure falls back to.
package reconfigure

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/yalogger"
	"github.com/redis/go-redis/v9"

	"github.com/mozilla-services/merino/errs"
	"github.com/mozilla-services/merino/metrics"
	"github.com/mozilla-services/merino/provider"
	"github.com/mozilla-services/merino/providers/combinators"
	"github.com/mozilla-services/merino/providers/idmulti"
	"github.com/mozilla-services/merino/providers/memorycache"
	"github.com/mozilla-services/merino/providers/rediscache"
	"github.com/mozilla-services/merino/providers/remotesettings"
)

var errUnknownProviderType = errors.New("unknown provider type")

// Registry holds the dependencies every leaf provider needs to construct
// itself, so Build's recursive calls never need more than a config blob.
// RemoteSettingsServerURL is ambient rather than part of a remote_settings
// node's own JSON, since every such node in a deployment talks to the same
// server; only its bucket, collection and resync interval vary per node.
type Registry struct {
	RedisClient             *redis.Client
	MetricsSink             metrics.Sink
	Log                     yalogger.Logger
	Debug                   bool
	RemoteSettingsServerURL string
}

// nodeConfig is the shape every provider config shares: a "type"
// discriminator plus whatever fields that type needs, decoded lazily by
// Build's switch.
type nodeConfig struct {
	Type string `json:"type"`
}

// Build recursively constructs a provider tree from config, dispatching on
// its "type" field. It is also handed to providers as their MakeFreshFunc,
// so a provider that cannot apply a reconfigure in place can rebuild
// itself (or its children) through the same path used at startup.
func (r *Registry) Build(ctx context.Context, config json.RawMessage) (provider.SuggestionProvider, yaerrors.Error) {
	var node nodeConfig

	if err := json.Unmarshal(config, &node); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "decoding provider config")
	}

	switch node.Type {
	case "remote_settings":
		return r.buildRemoteSettings(ctx, config)
	case "memory_cache":
		return r.buildMemoryCache(ctx, config)
	case "redis_cache":
		return r.buildRedisCache(ctx, config)
	case "multiplexer":
		return r.buildMultiplexer(ctx, config)
	case "timeout":
		return r.buildTimeout(ctx, config)
	case "fixed":
		return r.buildFixed(config)
	case "keyword_filter":
		return r.buildKeywordFilter(ctx, config)
	case "stealth":
		return r.buildStealth(ctx, config)
	case "client_variant_switch":
		return r.buildClientVariantSwitch(ctx, config)
	case "debug":
		return r.buildDebug()
	case "null":
		return combinators.Null{}, nil
	default:
		return nil, errs.NewSetupError(
			errs.SetupInvalidConfiguration,
			errUnknownProviderType,
			"unknown provider type "+node.Type,
		)
	}
}

// BuildNamed constructs the top-level IdMulti registry from a name ->
// config map, the shape settings.Settings.Providers loads from JSON.
func (r *Registry) BuildNamed(
	ctx context.Context,
	configs map[string]json.RawMessage,
) (*idmulti.IdMulti, yaerrors.Error) {
	registry := idmulti.New(nil)

	for name, config := range configs {
		built, err := r.Build(ctx, config)
		if err != nil {
			return nil, err
		}

		registry.AddProvider(name, built)
	}

	return registry, nil
}

// ReconfigureTree applies newConfigs (a name -> config map, matching
// BuildNamed's input shape) to root in place, falling back to Build for
// any provider that cannot apply its share of the change without being
// rebuilt.
func ReconfigureTree(
	ctx context.Context,
	root *idmulti.IdMulti,
	newConfigs map[string]json.RawMessage,
	registry *Registry,
) (provider.SuggestionProvider, yaerrors.Error) {
	raw, err := json.Marshal(newConfigs)
	if err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "serializing provider tree config")
	}

	return root.Reconfigure(ctx, raw, registry.Build)
}

type remoteSettingsConfig struct {
	Collection      string  `json:"collection"`
	Bucket          string  `json:"bucket"`
	ResyncInterval  int64   `json:"resync_interval_sec"`
	SuggestionScore float64 `json:"suggestion_score"`
}

func (r *Registry) buildRemoteSettings(
	ctx context.Context,
	config json.RawMessage,
) (provider.SuggestionProvider, yaerrors.Error) {
	var cfg remoteSettingsConfig

	if err := json.Unmarshal(config, &cfg); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "loading remote settings provider config")
	}

	if cfg.Bucket == "" {
		cfg.Bucket = "main"
	}

	if cfg.Collection == "" {
		cfg.Collection = "quicksuggest"
	}

	return remotesettings.New(ctx, remotesettings.Config{
		ServerURL:       r.RemoteSettingsServerURL,
		BucketID:        cfg.Bucket,
		CollectionID:    cfg.Collection,
		ResyncInterval:  time.Duration(cfg.ResyncInterval) * time.Second,
		SuggestionScore: cfg.SuggestionScore,
	}, r.MetricsSink, r.Log)
}

// memoryCacheConfig's MaxRemovedEntries is accepted for wire-format
// parity with the config union but not separately enforced; see
// DESIGN.md's note on providers/memorycache.
type memoryCacheConfig struct {
	DefaultTTLSec      int64           `json:"default_ttl_sec"`
	CleanupIntervalSec int64           `json:"cleanup_interval_sec"`
	MaxRemovedEntries  int64           `json:"max_removed_entries"`
	Inner              json.RawMessage `json:"inner"`
}

func (r *Registry) buildMemoryCache(
	ctx context.Context,
	config json.RawMessage,
) (provider.SuggestionProvider, yaerrors.Error) {
	var cfg memoryCacheConfig

	if err := json.Unmarshal(config, &cfg); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "loading memory cache provider config")
	}

	inner, err := r.Build(ctx, cfg.Inner)
	if err != nil {
		return nil, err
	}

	sweepInterval := time.Duration(cfg.CleanupIntervalSec) * time.Second
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}

	return memorycache.New(
		inner,
		sweepInterval,
		time.Duration(cfg.DefaultTTLSec)*time.Second,
		r.Log,
	), nil
}

type redisCacheConfig struct {
	DefaultTTLSec      int64           `json:"default_ttl_sec"`
	DefaultLockWaitSec int64           `json:"default_lock_timeout_sec"`
	Inner              json.RawMessage `json:"inner"`
}

func (r *Registry) buildRedisCache(
	ctx context.Context,
	config json.RawMessage,
) (provider.SuggestionProvider, yaerrors.Error) {
	var cfg redisCacheConfig

	if err := json.Unmarshal(config, &cfg); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "loading redis cache provider config")
	}

	inner, err := r.Build(ctx, cfg.Inner)
	if err != nil {
		return nil, err
	}

	return rediscache.New(inner, r.RedisClient, rediscache.Config{
		DefaultTTL:      time.Duration(cfg.DefaultTTLSec) * time.Second,
		DefaultLockWait: time.Duration(cfg.DefaultLockWaitSec) * time.Second,
	}, r.Log), nil
}

type multiplexerConfig struct {
	Providers []json.RawMessage `json:"providers"`
}

func (r *Registry) buildMultiplexer(
	ctx context.Context,
	config json.RawMessage,
) (provider.SuggestionProvider, yaerrors.Error) {
	var cfg multiplexerConfig

	if err := json.Unmarshal(config, &cfg); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "loading multiplexer provider config")
	}

	built := make([]provider.SuggestionProvider, 0, len(cfg.Providers))

	for _, raw := range cfg.Providers {
		p, err := r.Build(ctx, raw)
		if err != nil {
			return nil, err
		}

		built = append(built, p)
	}

	return combinators.NewMulti(built), nil
}

type timeoutConfig struct {
	MaxTimeSec int64           `json:"max_time_sec"`
	Inner      json.RawMessage `json:"inner"`
}

func (r *Registry) buildTimeout(
	ctx context.Context,
	config json.RawMessage,
) (provider.SuggestionProvider, yaerrors.Error) {
	var cfg timeoutConfig

	if err := json.Unmarshal(config, &cfg); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "loading timeout provider config")
	}

	inner, err := r.Build(ctx, cfg.Inner)
	if err != nil {
		return nil, err
	}

	return combinators.NewTimeout(time.Duration(cfg.MaxTimeSec)*time.Second, inner), nil
}

type fixedConfig struct {
	Value string `json:"value"`
}

func (r *Registry) buildFixed(config json.RawMessage) (provider.SuggestionProvider, yaerrors.Error) {
	var cfg fixedConfig

	if err := json.Unmarshal(config, &cfg); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "loading fixed provider config")
	}

	return combinators.NewFixed(r.Debug, cfg.Value)
}

type keywordFilterConfig struct {
	SuggestionBlocklist map[string]string `json:"suggestion_blocklist"`
	Inner               json.RawMessage   `json:"inner"`
}

func (r *Registry) buildKeywordFilter(
	ctx context.Context,
	config json.RawMessage,
) (provider.SuggestionProvider, yaerrors.Error) {
	var cfg keywordFilterConfig

	if err := json.Unmarshal(config, &cfg); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "loading keyword filter provider config")
	}

	inner, err := r.Build(ctx, cfg.Inner)
	if err != nil {
		return nil, err
	}

	return combinators.NewKeywordFilter(cfg.SuggestionBlocklist, inner, r.MetricsSink)
}

type stealthConfig struct {
	Inner json.RawMessage `json:"inner"`
}

func (r *Registry) buildStealth(
	ctx context.Context,
	config json.RawMessage,
) (provider.SuggestionProvider, yaerrors.Error) {
	var cfg stealthConfig

	if err := json.Unmarshal(config, &cfg); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "loading stealth provider config")
	}

	inner, err := r.Build(ctx, cfg.Inner)
	if err != nil {
		return nil, err
	}

	return combinators.NewStealth(inner), nil
}

type clientVariantSwitchConfig struct {
	ClientVariant  string          `json:"client_variant"`
	MatchingConfig json.RawMessage `json:"matching_provider"`
	DefaultConfig  json.RawMessage `json:"default_provider"`
}

func (r *Registry) buildClientVariantSwitch(
	ctx context.Context,
	config json.RawMessage,
) (provider.SuggestionProvider, yaerrors.Error) {
	var cfg clientVariantSwitchConfig

	if err := json.Unmarshal(config, &cfg); err != nil {
		return nil, errs.NewSetupError(errs.SetupInvalidConfiguration, err, "loading client variant switch config")
	}

	matching, err := r.Build(ctx, cfg.MatchingConfig)
	if err != nil {
		return nil, err
	}

	defaultProvider, err := r.Build(ctx, cfg.DefaultConfig)
	if err != nil {
		return nil, err
	}

	return combinators.NewClientVariantSwitch(cfg.ClientVariant, matching, defaultProvider), nil
}

func (r *Registry) buildDebug() (provider.SuggestionProvider, yaerrors.Error) {
	return combinators.NewDebug(r.Debug)
}
