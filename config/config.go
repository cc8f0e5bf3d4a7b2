package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del hunter.
type Config struct {
	Feed      FeedConfig      `yaml:"feed"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Valuation ValuationConfig `yaml:"valuation"`
	Patterns  PatternsConfig  `yaml:"patterns"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

// FeedConfig controla el stream de precios del exchange.
type FeedConfig struct {
	QuoteAsset      string            `yaml:"quote_asset"` // sufijo de par por defecto ("USDT")
	UseTestnet      bool              `yaml:"use_testnet"`
	SymbolOverrides map[string]string `yaml:"symbol_overrides"` // símbolo interno → par del exchange
}

// IngestConfig controla el gateway de ingestión.
type IngestConfig struct {
	ReconnectDelaySeconds int `yaml:"reconnect_delay_seconds"`
	PersistQueueSize      int `yaml:"persist_queue_size"`
}

// ValuationConfig controla el engine de revaloración.
type ValuationConfig struct {
	ThrottleWindowMS     int `yaml:"throttle_window_ms"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
}

// PatternsConfig controla el detector de señales en vivo.
type PatternsConfig struct {
	Enabled         bool    `yaml:"enabled"`
	VolumeSpikeMult float64 `yaml:"volume_spike_mult"`
	PriceSurgePct   float64 `yaml:"price_surge_pct"`
	BreakoutWindow  int     `yaml:"breakout_window"`
	CooldownMinutes int     `yaml:"cooldown_minutes"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN           string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
	RetentionDays int    `yaml:"retention_days"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// ReconnectDelay devuelve la espera entre reconexiones del feed.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Ingest.ReconnectDelaySeconds) * time.Second
}

// ThrottleWindow devuelve la ventana de coalescencia del recompute.
func (c *Config) ThrottleWindow() time.Duration {
	return time.Duration(c.Valuation.ThrottleWindowMS) * time.Millisecond
}

// SweepInterval devuelve el ciclo del sweep de respaldo.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Valuation.SweepIntervalSeconds) * time.Second
}

// PatternCooldown devuelve el cooldown por token y tipo de patrón.
func (c *Config) PatternCooldown() time.Duration {
	return time.Duration(c.Patterns.CooldownMinutes) * time.Minute
}

// Retention devuelve cuánta historia se conserva al arrancar.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Storage.RetentionDays) * 24 * time.Hour
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("BINANCE_TESTNET"); v == "1" || v == "true" {
		cfg.Feed.UseTestnet = true
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Feed.QuoteAsset == "" {
		cfg.Feed.QuoteAsset = "USDT"
	}
	if cfg.Ingest.ReconnectDelaySeconds <= 0 {
		cfg.Ingest.ReconnectDelaySeconds = 5
	}
	if cfg.Ingest.PersistQueueSize <= 0 {
		cfg.Ingest.PersistQueueSize = 1024
	}
	if cfg.Valuation.ThrottleWindowMS <= 0 {
		cfg.Valuation.ThrottleWindowMS = 250
	}
	if cfg.Valuation.SweepIntervalSeconds <= 0 {
		cfg.Valuation.SweepIntervalSeconds = 30
	}
	if cfg.Patterns.VolumeSpikeMult <= 0 {
		cfg.Patterns.VolumeSpikeMult = 3
	}
	if cfg.Patterns.PriceSurgePct <= 0 {
		cfg.Patterns.PriceSurgePct = 15
	}
	if cfg.Patterns.BreakoutWindow <= 0 {
		cfg.Patterns.BreakoutWindow = 60
	}
	if cfg.Patterns.CooldownMinutes <= 0 {
		cfg.Patterns.CooldownMinutes = 30
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "hunter.db"
	}
	if cfg.Storage.RetentionDays <= 0 {
		cfg.Storage.RetentionDays = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
