package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClientConfig is the body of the internal-client pipeline conf file
// named by internal_client_conf_path: when the path is omitted the
// daemon uses an embedded proxy-pipeline configuration with
// account_autocreate = true, since the daemon must be able to create a
// shard's account on first use without a human provisioning it first.
type ClientConfig struct {
	AccountAutocreate bool   `yaml:"account_autocreate"`
	ProxyURL          string `yaml:"proxy_url"`
}

// DefaultClientConfig is the embedded configuration used when no
// internal-client conf path is given.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		AccountAutocreate: true,
		ProxyURL:          "http://127.0.0.1:8080",
	}
}

// LoadClientConfig reads path as YAML over DefaultClientConfig, so a
// conf file only needs to override the fields it cares about. An empty
// path returns the embedded default untouched.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config: read internal-client conf %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("config: parse internal-client conf %s: %w", path, err)
	}
	if !cfg.AccountAutocreate {
		return ClientConfig{}, fmt.Errorf("config: internal-client conf %s must set account_autocreate = true", path)
	}
	return cfg, nil
}
