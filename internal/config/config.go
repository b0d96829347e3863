// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Games     GamesConfig     `mapstructure:"games"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// RedisConfig holds the optional leaderboard cache configuration.
// An empty Addr disables Redis entirely.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Enabled reports whether a Redis address is configured.
func (r *RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// ScheduleConfig holds the notification schedule.
type ScheduleConfig struct {
	Timezone   string          `mapstructure:"timezone"`
	Rabbits    []TriggerConfig `mapstructure:"rabbits"`
	RabbitLead time.Duration   `mapstructure:"rabbit_lead"`
	Birthdays  string          `mapstructure:"birthdays_at"` // HH:MM local time
}

// TriggerConfig is one weekly recurring trigger.
// Weekday follows time.Weekday numbering (0 = Sunday).
type TriggerConfig struct {
	Weekday int    `mapstructure:"weekday"`
	Hour    int    `mapstructure:"hour"`
	Minute  int    `mapstructure:"minute"`
	Label   string `mapstructure:"label"`
}

// DefaultRabbits is the in-game rabbit timetable used when the config has none.
var DefaultRabbits = []TriggerConfig{
	{Weekday: 2, Hour: 14, Minute: 35, Label: "Вторник"},
	{Weekday: 3, Hour: 20, Minute: 50, Label: "Среда"},
	{Weekday: 5, Hour: 19, Minute: 50, Label: "Пятница"},
}

// GamesConfig holds game-specific configuration.
type GamesConfig struct {
	Duel DuelConfig `mapstructure:"duel"`
	Coin CoinConfig `mapstructure:"coin"`
	Word WordConfig `mapstructure:"word"`

	// ForcedOutcomes maps a username (without @) to "win" or "lose".
	ForcedOutcomes map[string]string `mapstructure:"forced_outcomes"`
}

// DuelConfig holds duel game configuration.
type DuelConfig struct {
	BaseHitChance int           `mapstructure:"base_hit_chance"`
	AimBonus      int           `mapstructure:"aim_bonus"`
	MuteDuration  time.Duration `mapstructure:"mute_duration"`
	ChallengeTTL  time.Duration `mapstructure:"challenge_ttl"`
}

// CoinConfig holds coin flip configuration.
type CoinConfig struct {
	MuteDuration time.Duration `mapstructure:"mute_duration"`
	ChallengeTTL time.Duration `mapstructure:"challenge_ttl"`
}

// WordConfig holds word guessing game configuration.
type WordConfig struct {
	RoundDuration time.Duration `mapstructure:"round_duration"`
	PointsPerTier int           `mapstructure:"points_per_tier"`
	WordsFile     string        `mapstructure:"words_file"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. BOT_TOKEN, DATABASE_HOST, REDIS_ADDR
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Schedule.Rabbits) == 0 {
		cfg.Schedule.Rabbits = DefaultRabbits
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "derbybot")
	v.SetDefault("database.name", "derbybot")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.query_timeout", "5s")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")

	v.SetDefault("schedule.timezone", "Europe/Kyiv")
	v.SetDefault("schedule.rabbit_lead", "10m")
	v.SetDefault("schedule.birthdays_at", "00:00")

	v.SetDefault("games.duel.base_hit_chance", 60)
	v.SetDefault("games.duel.aim_bonus", 20)
	v.SetDefault("games.duel.mute_duration", "5m")
	v.SetDefault("games.duel.challenge_ttl", "5m")
	v.SetDefault("games.coin.mute_duration", "1m")
	v.SetDefault("games.coin.challenge_ttl", "5m")
	v.SetDefault("games.word.round_duration", "90s")
	v.SetDefault("games.word.points_per_tier", 10)
	v.SetDefault("games.word.words_file", "config/words.yaml")
}

// Validate checks values that would otherwise break the schedule or the games.
func (c *Config) Validate() error {
	for i, r := range c.Schedule.Rabbits {
		if r.Weekday < 0 || r.Weekday > 6 {
			return fmt.Errorf("schedule.rabbits[%d]: weekday %d out of range", i, r.Weekday)
		}
		if r.Hour < 0 || r.Hour > 23 || r.Minute < 0 || r.Minute > 59 {
			return fmt.Errorf("schedule.rabbits[%d]: invalid time %02d:%02d", i, r.Hour, r.Minute)
		}
	}
	for name, outcome := range c.Games.ForcedOutcomes {
		if outcome != "win" && outcome != "lose" {
			return fmt.Errorf("games.forced_outcomes[%s]: want win or lose, got %q", name, outcome)
		}
	}
	return nil
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
