package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/homegrid/battsitter/infra/metrics"
	"github.com/homegrid/battsitter/infra/mqtt"
)

// Config is the full service configuration. Credentials are validated at
// load time: a service that cannot reach either cloud must fail before the
// first poll rather than loop on errors.
type Config struct {
	Zappi     ZappiConfig     `json:"zappi"`
	Sigenergy SigenergyConfig `json:"sigenergy"`
	Polling   PollingConfig   `json:"polling"`
	Metrics   metrics.Config  `json:"metrics"`
	MQTT      mqtt.Config     `json:"mqtt"`
}

// Load reads the configuration file (yaml or json, by extension) and applies
// environment overrides with the BS_ prefix, e.g. BS_SIGENERGY__PASSWORD.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("BS_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "bs_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Zappi.SetDefaults()
	cfg.Sigenergy.SetDefaults()
	cfg.Polling.SetDefaults()
	if err := cfg.Zappi.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Sigenergy.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Polling.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
