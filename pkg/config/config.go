package config

import (
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"

	"github.com/walteh/unoclass/pkg/oracle"
)

const EnvPrefix = "UNOCLASS"

const (
	KeyAutocompleteClassFunctions = "autocompleteClassFunctions"
	KeyAutocompleteStrict         = "autocompleteStrict"
	KeyAutocompleteMatchType      = "autocompleteMatchType"
	KeyAutocompleteMaxItems       = "autocompleteMaxItems"
	KeyStrictAnnotationMatch      = "strictAnnotationMatch"
	KeyInclude                    = "include"
	KeyExclude                    = "exclude"
	KeyRules                      = "rules"
)

// Settings is the read-only view of the user configuration.
type Settings struct {
	AutocompleteClassFunctions []string         `mapstructure:"autocompleteClassFunctions" json:"autocompleteClassFunctions"`
	AutocompleteStrict         bool             `mapstructure:"autocompleteStrict" json:"autocompleteStrict"`
	AutocompleteMatchType      oracle.MatchType `mapstructure:"autocompleteMatchType" json:"autocompleteMatchType"`
	AutocompleteMaxItems       int              `mapstructure:"autocompleteMaxItems" json:"autocompleteMaxItems"`
	StrictAnnotationMatch      bool             `mapstructure:"strictAnnotationMatch" json:"strictAnnotationMatch"`
	Include                    []string         `mapstructure:"include" json:"include"`
	Exclude                    []string         `mapstructure:"exclude" json:"exclude"`
	Rules                      string           `mapstructure:"rules" json:"rules"`
}

func Defaults() Settings {
	return Settings{
		AutocompleteClassFunctions: []string{"clsx", "classnames", "cn", "cva", "twMerge"},
		AutocompleteStrict:         false,
		AutocompleteMatchType:      oracle.MatchPrefix,
		AutocompleteMaxItems:       1000,
		StrictAnnotationMatch:      false,
		Include:                    []string{"**/*.{js,jsx,ts,tsx,vue,svelte,astro,html,md,mdx}"},
		Exclude:                    []string{"**/node_modules/**", "**/dist/**", "**/.git/**"},
		Rules:                      "uno.rules.yaml",
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("autocompleteClassFunctions", d.AutocompleteClassFunctions)
	v.SetDefault("autocompleteStrict", d.AutocompleteStrict)
	v.SetDefault("autocompleteMatchType", string(d.AutocompleteMatchType))
	v.SetDefault("autocompleteMaxItems", d.AutocompleteMaxItems)
	v.SetDefault("strictAnnotationMatch", d.StrictAnnotationMatch)
	v.SetDefault("include", d.Include)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("rules", d.Rules)
}

// NewViper returns a viper instance with defaults and UNOCLASS_ environment
// overrides. When path is non-empty it is read from fs as the config file.
func NewViper(fs afero.Fs, path string) (*viper.Viper, error) {
	v := viper.New()
	if fs != nil {
		v.SetFs(fs)
	}
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		return v, nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Errorf("reading config %s: %w", path, err)
	}
	return v, nil
}

func Decode(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, errors.Errorf("decoding settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func Load(fs afero.Fs, path string) (Settings, error) {
	v, err := NewViper(fs, path)
	if err != nil {
		return Settings{}, err
	}
	return Decode(v)
}

// Validate reports settings that cannot work. Function names that are not
// identifiers are not an error here; the resolver skips them.
func (s Settings) Validate() error {
	var err error
	switch s.AutocompleteMatchType {
	case "", oracle.MatchPrefix, oracle.MatchFuzzy:
	default:
		err = multierr.Append(err, errors.Errorf("autocompleteMatchType must be %q or %q, got %q", oracle.MatchPrefix, oracle.MatchFuzzy, s.AutocompleteMatchType))
	}
	if s.AutocompleteMaxItems < 0 {
		err = multierr.Append(err, errors.Errorf("autocompleteMaxItems must not be negative, got %d", s.AutocompleteMaxItems))
	}
	return err
}
