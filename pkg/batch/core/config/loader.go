package config

import (
	"os"
	"reflect"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

const moduleName = "config"

// EnvPrefix prefixes every environment override, e.g. ECOROUTE_BATCH_CHUNK_SIZE.
const EnvPrefix = "ECOROUTE_"

// LoadConfig loads configuration from the embedded YAML, a .env file and environment variables.
// This function is expected to be called only once during application startup.
//
// Order of precedence, lowest first: NewConfig defaults, embedded YAML (after ${VAR}
// expansion), ECOROUTE_* environment variables.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Debugf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	}

	expanded, err := NewOsEnvironmentExpander().Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment variables in config", err, false, false)
	}

	cfg := NewConfig()
	// yaml.v3 leaves fields that are absent from the document untouched, so defaults survive.
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}

	if err := ApplyEnv(cfg, ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	return cfg, nil
}

// DecodeSection decodes the named application section into target and applies
// ECOROUTE_<NAME>_* environment overrides. A missing section leaves target unchanged.
func DecodeSection(cfg *Config, name string, target interface{}) error {
	if raw, ok := cfg.Ecoroute.Sections[name]; ok && raw != nil {
		if err := decode(raw, target); err != nil {
			return exception.NewBatchError(moduleName, "failed to decode section '"+name+"'", err, false, false)
		}
	}
	if err := ApplyEnv(target, EnvPrefix+envName(name)+"_"); err != nil {
		return exception.NewBatchError(moduleName, "failed to apply environment overrides to section '"+name+"'", err, false, false)
	}
	return nil
}

// DecodeNamed decodes one entry of a named connection map (database or storage) into target
// and applies ECOROUTE_<KIND>_<NAME>_* environment overrides.
func DecodeNamed(entries map[string]interface{}, kind, name string, target interface{}) error {
	raw, ok := entries[name]
	if !ok {
		return exception.NewBatchErrorf(moduleName, "%s configuration '%s' not found", kind, name)
	}
	if err := decode(raw, target); err != nil {
		return exception.NewBatchError(moduleName, "failed to decode "+kind+" config '"+name+"'", err, false, false)
	}
	return ApplyEnv(target, EnvPrefix+envName(kind)+"_"+envName(name)+"_")
}

func decode(raw interface{}, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// ApplyEnv overrides the fields of target, a pointer to a struct, from environment variables
// named after the upper-cased yaml path. An empty prefix means target is the root Config.
func ApplyEnv(target interface{}, prefix string) error {
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return nil
	}
	return loadStructFromEnv(val.Elem(), prefix, os.LookupEnv)
}
