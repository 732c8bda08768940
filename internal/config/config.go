package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nholik/case-sentinel/internal/source"
)

const (
	envMinnesotaURL      = "CS_MN_URL"
	envFederalURL        = "CS_FED_URL"
	envNewYorkURL        = "CS_NY_URL"
	envRhodeIslandURL    = "CS_RI_URL"
	envOregonURL         = "CS_OR_URL"
	envPollInterval      = "CS_POLL_INTERVAL"
	envFetchTimeout      = "CS_FETCH_TIMEOUT"
	envStatePath         = "CS_STATE_PATH"
	envHTTPAddr          = "CS_HTTP_ADDR"
	envDiscordPost       = "CS_DISCORD_POST"
	envDiscordWebhookURL = "CS_DISCORD_WEBHOOK_URL"
	envDiscordToken      = "CS_DISCORD_TOKEN"
	envSlackWebhookURL   = "CS_SLACK_WEBHOOK_URL"
	envWebhookURL        = "CS_WEBHOOK_URL"
	envWebhookTemplate   = "CS_WEBHOOK_TEMPLATE"
	envDryRun            = "CS_DRY_RUN"
	envLogLevel          = "CS_LOG_LEVEL"
	envSourcesFile       = "CS_SOURCES_FILE"
)

const (
	defaultPollInterval = 60 * time.Second
	defaultFetchTimeout = 15 * time.Second
	defaultStatePath    = "state.json"
	defaultHTTPAddr     = ":3000"
	defaultLogLevel     = "info"
)

var sourceURLEnv = []struct {
	id  source.ID
	key string
}{
	{source.Minnesota, envMinnesotaURL},
	{source.Federal, envFederalURL},
	{source.NewYork, envNewYorkURL},
	{source.RhodeIsland, envRhodeIslandURL},
	{source.Oregon, envOregonURL},
}

// Config describes runtime configuration loaded from the environment.
type Config struct {
	PollInterval      time.Duration
	FetchTimeout      time.Duration
	StatePath         string
	HTTPAddr          string
	SourceURLs        map[source.ID]string
	SourcesFile       string
	DiscordPost       bool
	DiscordWebhookURL string
	DiscordToken      string
	SlackWebhookURL   string
	WebhookURL        string
	WebhookTemplate   string
	DryRun            bool
	LogLevel          string
}

// Load reads configuration from environment variables and a local .env file if present.
// Existing environment variables take precedence over values in .env.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		PollInterval: defaultPollInterval,
		FetchTimeout: defaultFetchTimeout,
		StatePath:    defaultStatePath,
		HTTPAddr:     defaultHTTPAddr,
		LogLevel:     defaultLogLevel,
		SourceURLs:   make(map[source.ID]string),
	}

	var err error
	if cfg.PollInterval, err = positiveDuration(envPollInterval, cfg.PollInterval); err != nil {
		return Config{}, err
	}
	if cfg.FetchTimeout, err = positiveDuration(envFetchTimeout, cfg.FetchTimeout); err != nil {
		return Config{}, err
	}
	if cfg.DiscordPost, err = boolValue(envDiscordPost); err != nil {
		return Config{}, err
	}
	if cfg.DryRun, err = boolValue(envDryRun); err != nil {
		return Config{}, err
	}

	for _, entry := range sourceURLEnv {
		value, ok := lookupTrimmed(entry.key)
		if !ok || value == "" {
			continue
		}
		if err := validateURL(value, entry.key); err != nil {
			return Config{}, err
		}
		cfg.SourceURLs[entry.id] = value
	}

	if value, ok := lookupTrimmed(envStatePath); ok && value != "" {
		cfg.StatePath = value
	}
	if value, ok := lookupTrimmed(envHTTPAddr); ok && value != "" {
		cfg.HTTPAddr = value
	}
	if value, ok := lookupTrimmed(envLogLevel); ok && value != "" {
		cfg.LogLevel = value
	}
	if value, ok := lookupTrimmed(envSourcesFile); ok {
		cfg.SourcesFile = value
	}
	if value, ok := lookupTrimmed(envDiscordToken); ok {
		cfg.DiscordToken = value
	}
	if value, ok := lookupTrimmed(envWebhookTemplate); ok {
		cfg.WebhookTemplate = value
	}

	for key, target := range map[string]*string{
		envDiscordWebhookURL: &cfg.DiscordWebhookURL,
		envSlackWebhookURL:   &cfg.SlackWebhookURL,
		envWebhookURL:        &cfg.WebhookURL,
	} {
		value, ok := lookupTrimmed(key)
		if !ok || value == "" {
			continue
		}
		if err := validateURL(value, key); err != nil {
			return Config{}, err
		}
		*target = value
	}

	if cfg.SourceURLs[source.Minnesota] == "" && cfg.SourcesFile == "" {
		return Config{}, fmt.Errorf("%s is required", envMinnesotaURL)
	}

	if cfg.DiscordPost && cfg.DiscordToken == "" {
		return Config{}, fmt.Errorf("%s is required when %s is enabled", envDiscordToken, envDiscordPost)
	}

	return cfg, nil
}

// SourceOverrides merges the sources file with the per-source URL variables.
// Environment URLs win over file entries.
func (c Config) SourceOverrides() (map[source.ID]source.Override, error) {
	overrides, err := LoadSourcesFile(c.SourcesFile)
	if err != nil {
		return nil, err
	}
	if overrides == nil {
		overrides = make(map[source.ID]source.Override)
	}
	for id, u := range c.SourceURLs {
		override := overrides[id]
		override.URL = u
		overrides[id] = override
	}
	return overrides, nil
}

// CheckTemplates refuses to run against unedited template files: a .env in
// dir that is identical to .env.example, or a missing state snapshot while
// example.state.json sits next to where it should be.
func CheckTemplates(dir, statePath string) error {
	envFile, envErr := os.ReadFile(filepath.Join(dir, ".env"))
	example, exampleErr := os.ReadFile(filepath.Join(dir, ".env.example"))
	if envErr == nil && exampleErr == nil && bytes.Equal(envFile, example) {
		return errors.New("please copy .env.example to .env and fill in your values")
	}

	if _, err := os.Stat(statePath); !errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(statePath), "example.state.json")); err == nil {
		return fmt.Errorf("please copy example.state.json to %s", statePath)
	}
	return nil
}

func positiveDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero", key)
	}
	return d, nil
}

func boolValue(key string) (bool, error) {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include scheme and host", name)
	}
	return nil
}

func validateHTTPURL(value, name string) error {
	if err := validateURL(value, name); err != nil {
		return err
	}
	parsed, _ := url.Parse(value)
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https", name)
	}
	return nil
}
