package progression

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
	"github.com/disgoorg/progression-bot/progression/database"
)

const (
	EnvBotToken      = "TOB_BOT_TOKEN"
	EnvDBPassword    = "TOB_DB_PASSWORD"
	EnvArchiveSecret = "TOB_ARCHIVE_SECRET"
)

var secretsDir = "/run/secrets/"

func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	cfg := DefaultConfig()
	if err = toml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyOverrides()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the values used for keys missing from config.toml.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: slog.LevelInfo, Format: "text"},
		DB: database.DBConfig{
			Host:     "localhost",
			Port:     5432,
			SSLMode:  "disable",
			PoolSize: 10,
		},
		Economy: EconomyConfig{
			Timezone:         "UTC",
			DoubleThreshold:  4845,
			DrawCost:         10,
			MonthlyDrawLimit: 10,
			VoiceExpPerTick:  10,
			VoiceInterval:    "5m",
			ResetAt:          "23:55",
			ConfigCacheTTL:   "20s",
			LeaderboardTTL:   "5m",
			JobConcurrency:   8,
		},
		Metrics: MetricsConfig{Addr: ":9090"},
		Archive: ArchiveConfig{Region: "us-east-1", Prefix: "ledger"},
	}
}

type Config struct {
	Log     LogConfig         `toml:"log"`
	Bot     BotConfig         `toml:"bot"`
	DB      database.DBConfig `toml:"db"`
	Economy EconomyConfig     `toml:"economy"`
	Metrics MetricsConfig     `toml:"metrics"`
	Archive ArchiveConfig     `toml:"archive"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type EconomyConfig struct {
	Timezone         string `toml:"timezone"`
	DoubleThreshold  int64  `toml:"double_threshold"`
	DrawCost         int64  `toml:"draw_cost"`
	MonthlyDrawLimit int    `toml:"monthly_draw_limit"`
	VoiceExpPerTick  int64  `toml:"voice_exp_per_tick"`
	VoiceInterval    string `toml:"voice_interval"`
	ResetAt          string `toml:"reset_at"`
	ConfigCacheTTL   string `toml:"config_cache_ttl"`
	LeaderboardTTL   string `toml:"leaderboard_ttl"`
	JobConcurrency   int64  `toml:"job_concurrency"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// ArchiveConfig points at an S3 compatible bucket for monthly ledger exports.
type ArchiveConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
	Region   string `toml:"region"`
	Bucket   string `toml:"bucket"`
	Key      string `toml:"key"`
	Secret   string `toml:"secret"`
	Prefix   string `toml:"prefix"`
}

func (c *Config) applyOverrides() {
	if v := lookup("bot_token", EnvBotToken); v != "" {
		c.Bot.Token = v
	}
	if v := lookup("db_password", EnvDBPassword); v != "" {
		c.DB.Password = v
	}
	if v := lookup("archive_secret", EnvArchiveSecret); v != "" {
		c.Archive.Secret = v
	}
}

// lookup prefers a docker secret over the environment.
func lookup(secret, env string) string {
	if v := readSecret(secret); v != "" {
		return v
	}
	return os.Getenv(env)
}

func readSecret(name string) string {
	data, err := os.ReadFile(secretsDir + name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Bot.Token == "" {
		errs = append(errs, fmt.Errorf("bot token is required (token in [bot] or %s)", EnvBotToken))
	}
	if c.DB.Database == "" {
		errs = append(errs, errors.New("db.database is required"))
	}
	if c.DB.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("db.pool_size must be at least 1, got %d", c.DB.PoolSize))
	}
	if _, err := time.LoadLocation(c.Economy.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("economy.timezone: %w", err))
	}
	if c.Economy.DoubleThreshold < 1 {
		errs = append(errs, fmt.Errorf("economy.double_threshold must be positive, got %d", c.Economy.DoubleThreshold))
	}
	if c.Economy.DrawCost < 0 {
		errs = append(errs, fmt.Errorf("economy.draw_cost must not be negative, got %d", c.Economy.DrawCost))
	}
	if c.Economy.MonthlyDrawLimit < 0 {
		errs = append(errs, fmt.Errorf("economy.monthly_draw_limit must not be negative, got %d", c.Economy.MonthlyDrawLimit))
	}
	if c.Economy.VoiceExpPerTick < 1 {
		errs = append(errs, fmt.Errorf("economy.voice_exp_per_tick must be positive, got %d", c.Economy.VoiceExpPerTick))
	}
	if c.Economy.JobConcurrency < 1 {
		errs = append(errs, fmt.Errorf("economy.job_concurrency must be at least 1, got %d", c.Economy.JobConcurrency))
	}
	if _, err := time.Parse("15:04", c.Economy.ResetAt); err != nil {
		errs = append(errs, fmt.Errorf("economy.reset_at must be hh:mm, got %q", c.Economy.ResetAt))
	}
	for name, value := range map[string]string{
		"economy.voice_interval":   c.Economy.VoiceInterval,
		"economy.config_cache_ttl": c.Economy.ConfigCacheTTL,
		"economy.leaderboard_ttl":  c.Economy.LeaderboardTTL,
	} {
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration, got %q", name, value))
		}
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr is required when metrics are enabled"))
	}
	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			errs = append(errs, errors.New("archive.bucket is required when the archive is enabled"))
		}
		if c.Archive.Key == "" || c.Archive.Secret == "" {
			errs = append(errs, fmt.Errorf("archive credentials are required (key, secret or %s)", EnvArchiveSecret))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  %w", errors.Join(errs...))
	}
	return nil
}

// Location is only valid after Validate succeeded.
func (e EconomyConfig) Location() *time.Location {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (e EconomyConfig) Defaults() guildconfig.Defaults {
	return guildconfig.Defaults{
		DoubleThreshold:  e.DoubleThreshold,
		DrawCost:         e.DrawCost,
		MonthlyDrawLimit: e.MonthlyDrawLimit,
	}
}

func (e EconomyConfig) VoiceEvery() time.Duration { return mustDuration(e.VoiceInterval) }
func (e EconomyConfig) ConfigMaxAge() time.Duration { return mustDuration(e.ConfigCacheTTL) }
func (e EconomyConfig) LeaderboardMaxAge() time.Duration { return mustDuration(e.LeaderboardTTL) }

func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
