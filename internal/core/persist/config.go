package persist

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config controls serialization behavior.
type Config struct {
	// UsePrototypes switches default-value elision to compare against
	// registered prototype instances instead of zero-argument defaults.
	UsePrototypes bool `yaml:"use_prototypes"`

	// VerifyChecksum validates the trailing stream checksum on load.
	VerifyChecksum bool `yaml:"verify_checksum"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		UsePrototypes:  false,
		VerifyChecksum: true,
	}
}

// LoadConfig reads a Config from a YAML file, applying defaults for absent
// keys.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
