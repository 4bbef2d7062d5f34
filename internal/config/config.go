package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Sheets   SheetsConfig   `mapstructure:"sheets"`
	Columns  ColumnsConfig  `mapstructure:"columns"`
	Market   MarketConfig   `mapstructure:"market"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Chart    ChartConfig    `mapstructure:"chart"`
	Display  DisplayConfig  `mapstructure:"display"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	PublicURL       string        `mapstructure:"public_url"` // linked from Telegram digests
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SheetsConfig locates the detection spreadsheet and its credentials
type SheetsConfig struct {
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	SpreadsheetName string `mapstructure:"spreadsheet_name"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
}

// ColumnsConfig names the sheet header cells
type ColumnsConfig struct {
	DetectedOn string `mapstructure:"detected_on"`
	Name       string `mapstructure:"name"`
	Code       string `mapstructure:"code"`
	Return     string `mapstructure:"return"`
	Price      string `mapstructure:"price"`
	Note       string `mapstructure:"note"`
}

// MarketConfig holds market-data API configuration
type MarketConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Suffix         string        `mapstructure:"suffix"`
	Window         int           `mapstructure:"window"`
	ClosePath      string        `mapstructure:"close_path"`
	DatePath       string        `mapstructure:"date_path"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// CacheConfig holds cache lifetimes
type CacheConfig struct {
	SheetTTL time.Duration `mapstructure:"sheet_ttl"`
	ChartTTL time.Duration `mapstructure:"chart_ttl"`
}

// ChartConfig holds sparkline dimensions in pixels
type ChartConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// DisplayConfig holds page text and cell formatting
type DisplayConfig struct {
	Title           string `mapstructure:"title"`
	Intro           string `mapstructure:"intro"` // markdown
	Currency        string `mapstructure:"currency"`
	UnresolvedPrice string `mapstructure:"unresolved_price"`
	CodeWidth       int    `mapstructure:"code_width"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	PollInterval   time.Duration `mapstructure:"poll_interval"` // background builds for digests
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	MaxLoadEvents int    `mapstructure:"max_load_events"`
	DBPath        string `mapstructure:"db_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// HUNTERBOARD_MARKET_API_KEY overrides market.api_key
	v.SetEnvPrefix("HUNTERBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
// Every key needs a default so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "2m") // a cold render fetches one chart per row
	v.SetDefault("server.shutdown_timeout", "10s")

	// Sheets defaults
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.spreadsheet_name", "")
	v.SetDefault("sheets.credentials_file", "")
	v.SetDefault("sheets.credentials_json", "")

	// Column defaults match the detector's header row
	v.SetDefault("columns.detected_on", "탐색일")
	v.SetDefault("columns.name", "종목명")
	v.SetDefault("columns.code", "종목코드")
	v.SetDefault("columns.return", "수익률")
	v.SetDefault("columns.price", "현재가")
	v.SetDefault("columns.note", "포착이유")

	// Market defaults
	v.SetDefault("market.base_url", "https://eodhd.com/api")
	v.SetDefault("market.api_key", "")
	v.SetDefault("market.suffix", ".KO")
	v.SetDefault("market.window", 30)
	v.SetDefault("market.close_path", "$[*].close")
	v.SetDefault("market.date_path", "$[*].date")
	v.SetDefault("market.timeout", "15s")
	v.SetDefault("market.max_retries", 3)
	v.SetDefault("market.retry_delay_base", "1s")

	// Cache defaults
	v.SetDefault("cache.sheet_ttl", "1m")
	v.SetDefault("cache.chart_ttl", "1h")

	// Chart defaults
	v.SetDefault("chart.width", 260)
	v.SetDefault("chart.height", 60)

	// Display defaults
	v.SetDefault("display.title", "작전주 헌터 대시보드")
	v.SetDefault("display.intro", "매일 **오후 3:40**, 세력의 매집 흔적이 있는 종목을 자동으로 찾아냅니다.")
	v.SetDefault("display.currency", "KRW")
	v.SetDefault("display.unresolved_price", "확인불가")
	v.SetDefault("display.code_width", 6)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")
	v.SetDefault("telegram.poll_interval", "5m")

	// Storage defaults
	v.SetDefault("storage.max_load_events", 1000)
	v.SetDefault("storage.db_path", "./data/hunterboard.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Server config
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}

	// Sheets config is checked lazily: a missing spreadsheet renders as a
	// configuration failure on the page instead of refusing to start.

	// Validate Columns config
	if c.Columns.DetectedOn == "" || c.Columns.Name == "" {
		return fmt.Errorf("columns.detected_on and columns.name are required")
	}

	// Validate Market config
	if c.Market.BaseURL == "" {
		return fmt.Errorf("market.base_url is required")
	}
	if c.Market.Window < 2 || c.Market.Window > 365 {
		return fmt.Errorf("market.window must be between 2 and 365")
	}
	if c.Market.ClosePath == "" || c.Market.DatePath == "" {
		return fmt.Errorf("market.close_path and market.date_path are required")
	}
	if c.Market.Timeout < time.Second {
		return fmt.Errorf("market.timeout must be at least 1 second")
	}
	if c.Market.MaxRetries < 1 {
		return fmt.Errorf("market.max_retries must be at least 1")
	}

	// Validate Cache config
	if c.Cache.SheetTTL < 0 || c.Cache.ChartTTL < 0 {
		return fmt.Errorf("cache TTLs must not be negative")
	}

	// Validate Chart config
	if c.Chart.Width < 20 || c.Chart.Height < 10 {
		return fmt.Errorf("chart.width must be at least 20 and chart.height at least 10")
	}

	// Validate Display config
	if len(c.Display.Currency) != 3 {
		return fmt.Errorf("display.currency must be a 3-letter ISO 4217 code")
	}
	if c.Display.CodeWidth < 0 || c.Display.CodeWidth > 12 {
		return fmt.Errorf("display.code_width must be between 0 and 12")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.PollInterval < time.Minute {
			return fmt.Errorf("telegram.poll_interval must be at least 1 minute")
		}
	}

	// Validate Storage config
	if c.Storage.MaxLoadEvents < 1 {
		return fmt.Errorf("storage.max_load_events must be at least 1")
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Credentials returns the service account JSON, preferring the inline value
// over the file. It returns nil, nil when neither is set.
func (c SheetsConfig) Credentials() ([]byte, error) {
	if c.CredentialsJSON != "" {
		return []byte(c.CredentialsJSON), nil
	}
	if c.CredentialsFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	return data, nil
}
