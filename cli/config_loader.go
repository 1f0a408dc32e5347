package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gentoo/sandbox/config"
)

func loadConfigFile(configPath string) (config.FileConfig, string, error) {
	var cfg config.FileConfig
	path := resolveConfigPath(configPath)
	if path == "" {
		return cfg, "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, "", fmt.Errorf("failed to read config file %s: %v", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, "", fmt.Errorf("failed to parse YAML in %s: %v", path, err)
	}
	return cfg, path, nil
}

func resolveConfigPath(configPath string) string {
	if configPath != "" {
		return configPath
	}
	// XDG default: $XDG_CONFIG_HOME/sandbox/config.yaml or ~/.config/sandbox/config.yaml
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(h, ".config")
	}
	path := filepath.Join(base, "sandbox", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}
