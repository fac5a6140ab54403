package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// LoadYAMLConfig load config from filename in YAML format
func LoadYAMLConfig(filename string, cfg interface{}) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("ReadFile: %v", err)
	}
	return yaml.Unmarshal(data, cfg)
}

// InitConfig loads configPath over the defaults. A missing file is not an
// error when allowMissing is set.
func InitConfig(configPath string, allowMissing bool) (*Config, error) {
	conf := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil || !allowMissing {
		if err := LoadYAMLConfig(configPath, conf); err != nil {
			return nil, err
		}
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
