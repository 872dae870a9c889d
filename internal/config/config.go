// Package config loads service configuration from environment variables
// and an optional config file.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything tunable at deploy time.
type Config struct {
	Port            string        `mapstructure:"port"`
	DomainsURL      string        `mapstructure:"domains_url"`
	FallbackDomain  string        `mapstructure:"fallback_domain"`
	Provider        string        `mapstructure:"provider"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	MaxBranches     int           `mapstructure:"max_branches"`
	Debug           bool          `mapstructure:"debug"`
}

// Load reads configuration with sane defaults. A missing config file is
// not an error; environment variables (MODSTREAM_*) override file values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "3000")
	v.SetDefault("domains_url", "https://raw.githubusercontent.com/phisher98/TVVVV/main/domains.json")
	v.SetDefault("fallback_domain", "https://moviesmod.day")
	v.SetDefault("provider", "MoviesMod")
	v.SetDefault("probe_timeout", 10*time.Second)
	v.SetDefault("max_branches", 8)
	v.SetDefault("debug", false)

	v.SetConfigName("modstream")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/modstream")

	v.SetEnvPrefix("modstream")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
