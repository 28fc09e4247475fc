package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy holds billing rules that product may switch without a release.
type Policy struct {
	// TwoPartTariffBacklog keeps the user-selected year for two-part tariff
	// annual runs. Turn off once the historic backlog has been billed.
	TwoPartTariffBacklog bool `yaml:"twoPartTariffBacklog"`
	// LegacyEnabled allows requests to the old (PRESROC) billing engine.
	LegacyEnabled bool `yaml:"legacyEnabled"`
}

// DefaultPolicy returns the policy used when no file is configured.
func DefaultPolicy() Policy {
	return Policy{
		TwoPartTariffBacklog: true,
		LegacyEnabled:        true,
	}
}

// LoadPolicy reads a YAML policy file. An empty path yields the defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if strings.TrimSpace(path) == "" {
		return policy, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("read policy: %w", err)
	}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return DefaultPolicy(), fmt.Errorf("parse policy: %w", err)
	}
	return policy, nil
}
