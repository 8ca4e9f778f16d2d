// Package config loads the YAML defaults consulted by the Manager and
// Worker CLIs before flags are applied. CLI flags always win; the file
// only supplies fallbacks.
package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Defaults holds the subset of Manager/Worker configuration that may
// be supplied via a YAML file instead of flags.
type Defaults struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	ManagerHost string `yaml:"manager_host"`
	ManagerPort int    `yaml:"manager_port"`
	SharedDir   string `yaml:"shared_dir"`
	LogLevel    string `yaml:"loglevel"`
}

// Load reads path and overlays it onto built-in defaults. A missing
// file is not an error — the built-in defaults are returned as-is, so
// the CLI works standalone without a config file.
func Load(path string) (Defaults, error) {
	d := Defaults{
		Host:        "localhost",
		Port:        6000,
		ManagerHost: "localhost",
		ManagerPort: 6000,
		SharedDir:   os.TempDir(),
		LogLevel:    "info",
	}
	if path == "" {
		return d, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return d, err
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return d, err
	}
	return d, nil
}
