package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is where the scraper addon listens when co-hosted.
const DefaultBaseURL = "http://localhost:3000"

// DefaultTriggerTime is the daily fetch time; mid-afternoon because the
// scraper source publishes the previous day's readings around noon.
const DefaultTriggerTime = "14:00:00"

// Config holds the application configuration
type Config struct {
	Accounts []Account  `yaml:"accounts"`
	MQTT     MQTTConfig `yaml:"mqtt,omitempty"`
}

// Account holds the credentials and settings for one utility account
type Account struct {
	Name           string `yaml:"name"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	CustomerNumber string `yaml:"customer_number"`
	BaseURL        string `yaml:"base_url,omitempty"`     // scraper addon endpoint
	TriggerTime    string `yaml:"trigger_time,omitempty"` // daily fetch time, HH:MM:SS local
	DisplayName    string `yaml:"display_name,omitempty"`
}

// MQTTConfig holds the Home Assistant MQTT broker settings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// Account returns the account with the given name, or an error if no
// such account is configured.
func (c *Config) Account(name string) (Account, error) {
	for _, a := range c.Accounts {
		if a.Name == name {
			return a, nil
		}
	}
	return Account{}, fmt.Errorf("no account named %q in config (available: %d accounts)", name, len(c.Accounts))
}

// Validate checks that the required account fields are present
func (a Account) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("account name is required")
	}
	if a.Username == "" {
		return fmt.Errorf("account %q: username is required", a.Name)
	}
	if a.Password == "" {
		return fmt.Errorf("account %q: password is required", a.Name)
	}
	if a.CustomerNumber == "" {
		return fmt.Errorf("account %q: customer_number is required", a.Name)
	}
	return nil
}

// GetBaseURL returns the scraper addon endpoint, with a default
func (a Account) GetBaseURL() string {
	if a.BaseURL != "" {
		return a.BaseURL
	}
	return DefaultBaseURL
}

// GetTriggerTime returns the daily fetch time, with a default
func (a Account) GetTriggerTime() string {
	if a.TriggerTime != "" {
		return a.TriggerTime
	}
	return DefaultTriggerTime
}

// GetDisplayName returns the series display name, with a default
func (a Account) GetDisplayName() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return fmt.Sprintf("Electricity Usage (%s)", a.Username)
}

// GetTopicPrefix returns the MQTT topic prefix, with a default
func (m MQTTConfig) GetTopicPrefix() string {
	if m.TopicPrefix != "" {
		return m.TopicPrefix
	}
	return "wattsync"
}
