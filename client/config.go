package client

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional client configuration file: custom OpenAI-compatible
// endpoints plus routing rules.
//
//	endpoints:
//	  - name: my-gateway
//	    base_url: "http://192.168.1.100:8000/v1"
//	    auth_header: Authorization
//	    auth_prefix: "Bearer "
//	rules:
//	  - when: 'Model startsWith "claude"'
//	    provider: anthropic
type Config struct {
	Endpoints []CustomEndpoint `yaml:"endpoints"`
	Rules     []Rule           `yaml:"rules"`
}

// LoadConfig reads and parses a configuration file. Environment variable
// references in base URLs (${GATEWAY_HOST} style) are expanded.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	for i := range cfg.Endpoints {
		cfg.Endpoints[i].BaseURL = os.ExpandEnv(cfg.Endpoints[i].BaseURL)
	}

	return &cfg, nil
}
