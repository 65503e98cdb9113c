// Package config stores CLI profiles in ~/.shisei/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const DefaultServerURL = "http://localhost:3000"

type Config struct {
	CurrentProfile string              `yaml:"current_profile"`
	Profiles       map[string]*Profile `yaml:"profiles"`
	path           string
}

// Profile points the CLI at one guard deployment.
type Profile struct {
	ServerURL string `yaml:"server_url"`
	APIKey    string `yaml:"api_key,omitempty"`
}

func Default() *Config {
	return &Config{
		CurrentProfile: "default",
		Profiles:       make(map[string]*Profile),
	}
}

func defaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".shisei", "config.yaml"), nil
}

// Load reads cfgFile, or the default path when empty. A missing file yields
// the default config.
func Load(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		p, err := defaultPath()
		if err != nil {
			return nil, err
		}
		cfgFile = p
	}

	cfg := Default()
	cfg.path = cfgFile

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", cfgFile, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*Profile)
	}
	return cfg, nil
}

func (c *Config) Save() error {
	if c.path == "" {
		p, err := defaultPath()
		if err != nil {
			return err
		}
		c.path = p
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0600)
}

func (c *Config) SaveProfile(name, serverURL, apiKey string) error {
	if c.Profiles == nil {
		c.Profiles = make(map[string]*Profile)
	}
	c.Profiles[name] = &Profile{ServerURL: serverURL, APIKey: apiKey}
	c.CurrentProfile = name
	return c.Save()
}

func (c *Config) RemoveProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("profile '%s' not found", name)
	}
	delete(c.Profiles, name)
	if c.CurrentProfile == name {
		c.CurrentProfile = ""
	}
	return c.Save()
}

// Resolve returns the named profile, or the current one when name is empty.
// SHISEI_SERVER_URL and SHISEI_API_KEY override the stored values, and
// a missing profile resolves to the local default server.
func (c *Config) Resolve(name string) Profile {
	if name == "" {
		name = c.CurrentProfile
	}

	p := Profile{ServerURL: DefaultServerURL}
	if stored, ok := c.Profiles[name]; ok && stored != nil {
		p = *stored
	}
	if v := os.Getenv("SHISEI_SERVER_URL"); v != "" {
		p.ServerURL = v
	}
	if v := os.Getenv("SHISEI_API_KEY"); v != "" {
		p.APIKey = v
	}
	if p.ServerURL == "" {
		p.ServerURL = DefaultServerURL
	}
	return p
}
