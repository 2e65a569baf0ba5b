package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port               int    `env:"PORT" envDefault:"8420"`
	HomeserverURL      string `env:"HOMESERVER_URL,required"`
	UserID             string `env:"BOT_USER_ID,required"`
	AccessToken        string `env:"ACCESS_TOKEN,required"`
	DisplayName        string `env:"BOT_DISPLAY_NAME"`
	DataDir            string `env:"DATA_DIR" envDefault:"./data"`
	TriggerPattern     string `env:"TRIGGER_PATTERN"`
	RequireMention     *bool  `env:"REQUIRE_MENTION"`
	SyncTimeoutSeconds int    `env:"SYNC_TIMEOUT_SECONDS" envDefault:"30"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if !strings.HasPrefix(c.HomeserverURL, "http://") && !strings.HasPrefix(c.HomeserverURL, "https://") {
		return fmt.Errorf("HOMESERVER_URL must start with http:// or https://")
	}
	if !strings.HasPrefix(c.UserID, "@") || !strings.Contains(c.UserID, ":") {
		return fmt.Errorf("BOT_USER_ID must be a full user id (e.g. @bot:example.org)")
	}
	if c.TriggerPattern != "" {
		if _, err := regexp.Compile("(?i)" + c.TriggerPattern); err != nil {
			return fmt.Errorf("TRIGGER_PATTERN is not a valid regex: %w", err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
