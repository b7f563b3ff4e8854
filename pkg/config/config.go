package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Participant id allocator kinds.
const (
	AllocatorMemory   = "memory"
	AllocatorRedis    = "redis"
	AllocatorPostgres = "postgres"
)

type Config struct {
	Env  string
	Port int

	Telegram  TelegramConfig
	Sheets    SheetsConfig
	Admin     AdminConfig
	Broadcast BroadcastConfig
	Allocator AllocatorConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	APIAuth   APIAuthConfig
	CORS      CORSConfig
	Export    ExportConfig
	Log       LogConfig
}

// TelegramConfig holds the bot transport settings.
type TelegramConfig struct {
	Token         string
	Debug         bool
	UpdateTimeout int
}

// SheetsConfig points at the spreadsheet acting as the system of record.
type SheetsConfig struct {
	SpreadsheetID   string
	CredentialsFile string
	Timeout         time.Duration
}

// AdminConfig lists chat identities allowed to broadcast.
type AdminConfig struct {
	IDs []int64
}

// BroadcastConfig paces administrator fan-out below the transport rate limit.
type BroadcastConfig struct {
	Interval time.Duration
}

// AllocatorConfig selects the participant id sequence backend.
type AllocatorConfig struct {
	Kind string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// APIAuthConfig holds the single operator account for the ops API.
type APIAuthConfig struct {
	Username     string
	PasswordHash string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// ExportConfig tunes rendered lead exports.
type ExportConfig struct {
	PDFFontPath string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Telegram = TelegramConfig{
		Token:         v.GetString("TELEGRAM_TOKEN"),
		Debug:         v.GetBool("TELEGRAM_DEBUG"),
		UpdateTimeout: v.GetInt("TELEGRAM_UPDATE_TIMEOUT"),
	}

	cfg.Sheets = SheetsConfig{
		SpreadsheetID:   v.GetString("SPREADSHEET_ID"),
		CredentialsFile: v.GetString("GOOGLE_CREDENTIALS_FILE"),
		Timeout:         parseDuration(v.GetString("SHEETS_TIMEOUT"), 15*time.Second),
	}

	adminIDs, err := parseIDs(v.GetString("ADMIN_IDS"))
	if err != nil {
		return nil, err
	}
	cfg.Admin = AdminConfig{IDs: adminIDs}

	cfg.Broadcast = BroadcastConfig{
		Interval: parseDuration(v.GetString("BROADCAST_INTERVAL"), 40*time.Millisecond),
	}

	cfg.Allocator = AllocatorConfig{Kind: strings.ToLower(v.GetString("ID_ALLOCATOR"))}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
	}

	cfg.APIAuth = APIAuthConfig{
		Username:     v.GetString("API_USERNAME"),
		PasswordHash: v.GetString("API_PASSWORD_HASH"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS"))}

	cfg.Export = ExportConfig{PDFFontPath: v.GetString("EXPORT_PDF_FONT")}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

// Validate reports every missing startup value at once. The bot refuses to
// start without a transport token, a spreadsheet and credentials for it.
func (c *Config) Validate() error {
	var missing []string
	if c.Telegram.Token == "" {
		missing = append(missing, "TELEGRAM_TOKEN")
	}
	if c.Sheets.SpreadsheetID == "" {
		missing = append(missing, "SPREADSHEET_ID")
	}
	if c.Sheets.CredentialsFile == "" {
		missing = append(missing, "GOOGLE_CREDENTIALS_FILE")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.Allocator.Kind {
	case AllocatorMemory, AllocatorRedis, AllocatorPostgres:
	default:
		return fmt.Errorf("unknown ID_ALLOCATOR %q", c.Allocator.Kind)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("TELEGRAM_TOKEN", "")
	v.SetDefault("TELEGRAM_DEBUG", false)
	v.SetDefault("TELEGRAM_UPDATE_TIMEOUT", 60)

	v.SetDefault("SPREADSHEET_ID", "")
	v.SetDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json")
	v.SetDefault("SHEETS_TIMEOUT", "15s")

	v.SetDefault("ADMIN_IDS", "")
	v.SetDefault("BROADCAST_INTERVAL", "40ms")
	v.SetDefault("ID_ALLOCATOR", AllocatorMemory)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "referral_bot")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 4)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("API_USERNAME", "admin")
	v.SetDefault("API_PASSWORD_HASH", "")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("EXPORT_PDF_FONT", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func parseIDs(raw string) ([]int64, error) {
	parts := splitAndTrim(raw)
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
