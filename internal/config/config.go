package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Calendar CalendarConfig `yaml:"calendar" mapstructure:"calendar"`
	Static   StaticConfig   `yaml:"static" mapstructure:"static"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Backend  BackendConfig  `yaml:"backend" mapstructure:"backend"`
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// StoreConfig configures the optional backend. An empty driver means
// static-only mode.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// CalendarConfig locates the volunteer calendar feed.
type CalendarConfig struct {
	URL          string   `yaml:"url" mapstructure:"url"`
	Proxies      []string `yaml:"proxies" mapstructure:"proxies"`
	Timezone     string   `yaml:"timezone" mapstructure:"timezone"`
	DefaultImage string   `yaml:"default_image" mapstructure:"default_image"`
}

// StaticConfig locates the public bulletin and gazette files.
type StaticConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	Dir           string `yaml:"dir" mapstructure:"dir"`
	BoletinesFile string `yaml:"boletines_file" mapstructure:"boletines_file"`
	GacetasFile   string `yaml:"gacetas_file" mapstructure:"gacetas_file"`
}

// CacheConfig tunes the query cache and request deduplication.
type CacheConfig struct {
	TTLSecs             int `yaml:"ttl_secs" mapstructure:"ttl_secs"`
	CleanupIntervalSecs int `yaml:"cleanup_interval_secs" mapstructure:"cleanup_interval_secs"`
	DedupWindowMS       int `yaml:"dedup_window_ms" mapstructure:"dedup_window_ms"`
}

// TTL returns the cache TTL as a duration.
func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSecs) * time.Second }

// CleanupInterval returns the sweep interval as a duration.
func (c CacheConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSecs) * time.Second
}

// DedupWindow returns the deduplication window as a duration.
func (c CacheConfig) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowMS) * time.Millisecond
}

// FetchConfig tunes outbound HTTP.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// BackendConfig configures the circuit breaker in front of the backend.
type BackendConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ProviderConfig controls the refresh loop.
type ProviderConfig struct {
	RefreshIntervalMins int  `yaml:"refresh_interval_mins" mapstructure:"refresh_interval_mins"`
	LiveGreenAreas      bool `yaml:"live_green_areas" mapstructure:"live_green_areas"`
}

// RefreshInterval returns the refresh period; zero disables the loop.
func (p ProviderConfig) RefreshInterval() time.Duration {
	return time.Duration(p.RefreshIntervalMins) * time.Minute
}

// Validate rejects settings the service cannot start with. Missing backend
// credentials are not an error.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "", "postgres", "sqlite":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Cache.TTLSecs <= 0 {
		return eris.Errorf("config: cache.ttl_secs must be positive, got %d", c.Cache.TTLSecs)
	}
	if c.Server.Port <= 0 {
		return eris.Errorf("config: server.port must be positive, got %d", c.Server.Port)
	}
	return nil
}

// Load reads configuration from an optional .env file, an optional
// config.yaml and MAPEO_* environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Debug("config: no .env file loaded", zap.Error(err))
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MAPEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key needs one so AutomaticEnv can see it.
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("store.driver", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "")
	v.SetDefault("store.max_conns", 5)
	v.SetDefault("calendar.url", "")
	v.SetDefault("calendar.proxies", []string{
		"https://api.allorigins.win/raw?url=",
		"https://corsproxy.io/?",
	})
	v.SetDefault("calendar.timezone", "America/Mexico_City")
	v.SetDefault("calendar.default_image", "https://images.unsplash.com/photo-1542601906990-b4d3fb778b09?w=800")
	v.SetDefault("static.base_url", "")
	v.SetDefault("static.dir", "")
	v.SetDefault("static.boletines_file", "boletines.json")
	v.SetDefault("static.gacetas_file", "gacetas_semarnat_analizadas.json")
	v.SetDefault("cache.ttl_secs", 300)
	v.SetDefault("cache.cleanup_interval_secs", 60)
	v.SetDefault("cache.dedup_window_ms", 1000)
	v.SetDefault("fetch.timeout_secs", 20)
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.user_agent", "mapeo-verde/1.0")
	v.SetDefault("fetch.rate_per_sec", 5.0)
	v.SetDefault("backend.failure_threshold", 3)
	v.SetDefault("backend.reset_timeout_secs", 60)
	v.SetDefault("provider.refresh_interval_mins", 0)
	v.SetDefault("provider.live_green_areas", false)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
