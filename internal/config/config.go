package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
	"weeklydigest/internal/schedule"

	"gopkg.in/yaml.v3"
)

// Config holds everything needed for one digest run.
// Values from the optional YAML file are overridden by environment variables.
type Config struct {
	Google   GoogleConfig     `yaml:"google"`
	Slack    SlackConfig      `yaml:"slack"`
	CalDAV   CalDAVConfig     `yaml:"caldav"`
	Columns  schedule.Columns `yaml:"columns"`
	Timezone string           `yaml:"timezone"`
	LogLevel string           `yaml:"log_level"`
	Cron     string           `yaml:"cron"`
}

// GoogleConfig selects the spreadsheet and how to authenticate against it.
type GoogleConfig struct {
	APIKey       string `yaml:"api_key"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Account      string `yaml:"account"`
	SheetID      string `yaml:"sheet_id"`
	SheetName    string `yaml:"sheet_name"`
	SheetIndex   *int   `yaml:"sheet_index"`
}

type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
	APIURL  string `yaml:"api_url"`
}

// CalDAVConfig enables the calendar mirror when URL is set.
type CalDAVConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Calendar string `yaml:"calendar"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Timezone: "Asia/Tokyo",
		LogLevel: "info",
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist), applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("unable to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("unable to parse config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Google.APIKey = getenvDefault("GOOGLE_API_KEY", c.Google.APIKey)
	c.Google.ClientID = getenvDefault("GOOGLE_CLIENT_ID", c.Google.ClientID)
	c.Google.ClientSecret = getenvDefault("GOOGLE_CLIENT_SECRET", c.Google.ClientSecret)
	c.Google.Account = getenvDefault("GOOGLE_ACCOUNT", c.Google.Account)
	c.Google.SheetID = getenvDefault("SHEET_ID", c.Google.SheetID)
	c.Google.SheetName = getenvDefault("SHEET_NAME", c.Google.SheetName)
	if idx, ok := getenvInt("SHEET_INDEX"); ok {
		c.Google.SheetIndex = &idx
	}

	c.Slack.Token = getenvDefault("SLACK_BOT_TOKEN", c.Slack.Token)
	c.Slack.Channel = getenvDefault("SLACK_CHANNEL", c.Slack.Channel)
	c.Slack.APIURL = getenvDefault("SLACK_API_URL", c.Slack.APIURL)

	c.CalDAV.URL = getenvDefault("CALDAV_URL", c.CalDAV.URL)
	c.CalDAV.Username = getenvDefault("CALDAV_USERNAME", c.CalDAV.Username)
	c.CalDAV.Password = getenvDefault("CALDAV_PASSWORD", c.CalDAV.Password)
	c.CalDAV.Calendar = getenvDefault("CALDAV_CALENDAR", c.CalDAV.Calendar)

	c.Timezone = getenvDefault("TIMEZONE", c.Timezone)
	c.LogLevel = getenvDefault("LOG_LEVEL", c.LogLevel)
	c.Cron = getenvDefault("POST_CRON", c.Cron)
}

func (c Config) Validate() error {
	if c.Google.SheetID == "" {
		return errors.New("SHEET_ID is required")
	}
	if c.Google.SheetIndex != nil && *c.Google.SheetIndex < 0 {
		return fmt.Errorf("sheet index must be >= 0, got %d", *c.Google.SheetIndex)
	}
	if c.CalDAV.URL != "" && c.CalDAV.Calendar == "" {
		return errors.New("CALDAV_CALENDAR is required when CALDAV_URL is set")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return nil
}

// Location loads the configured timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	return loc, nil
}

// SlackEnabled reports whether both a token and a channel are configured.
func (c Config) SlackEnabled() bool {
	return c.Slack.Token != "" && c.Slack.Channel != ""
}

func getenvDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getenvInt(key string) (int, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}
	return n, true
}
