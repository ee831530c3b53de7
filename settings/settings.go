// Package settings holds the ambient configuration every Merino process
// needs to wire up its provider tree: where the Remote Settings server and
// Redis instance live, whether debug-only providers may be built, and
// where the provider config document itself is found on disk.
//
// Grounded on config.LoadConfigStructFromEnv's reflection-driven env
// loader (config/config_loader.go): fields are bound from
// SCREAMING_SNAKE_CASE environment variables, falling back to their
// `default` struct tag.
package settings

import (
	"encoding/json"
	"os"

	"github.com/mozilla-services/merino/config"
	"github.com/mozilla-services/merino/errs"
	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/yalogger"
)

// Settings is the top-level configuration document for a Merino process.
// The recursive provider tree document (§6's tagged union) is deliberately
// not a field here: it is loaded separately from ProvidersConfigPath, since
// its shape is too irregular for the reflection-driven loader below.
type Settings struct {
	Debug bool `default:"false"`

	RemoteSettingsServerURL string `default:"https://firefox.settings.services.mozilla.com"`

	RedisHost     string `default:"localhost"`
	RedisPort     uint16 `default:"6379"`
	RedisPassword string `default:""`
	RedisDB       int    `default:"0"`

	ProvidersConfigPath string `default:"./providers.json"`

	LogLevel yalogger.Level `default:"info"`
}

// Load reads Settings from the environment (and an optional .env file),
// applying each field's `default` tag when unset.
func Load(log yalogger.Logger) *Settings {
	var s Settings

	config.LoadConfigStructFromEnv(&s, log)

	return &s
}

// LoadProvidersConfig reads the provider config tree from
// s.ProvidersConfigPath: a name -> SuggestionProviderConfig JSON map, fed
// straight into reconfigure.Registry.BuildNamed.
func (s *Settings) LoadProvidersConfig() (map[string]json.RawMessage, yaerrors.Error) {
	body, err := os.ReadFile(s.ProvidersConfigPath)
	if err != nil {
		return nil, errs.NewSetupError(errs.SetupIo, err, "reading providers config file")
	}

	var providers map[string]json.RawMessage

	if err := json.Unmarshal(body, &providers); err != nil {
		return nil, errs.NewSetupError(errs.SetupFormat, err, "decoding providers config file")
	}

	return providers, nil
}
