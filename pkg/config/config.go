// pkg/config/config.go
package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Config - главная структура конфигурации
type Config struct {
	App      AppConfig      `koanf:"app"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Tracing  TracingConfig  `koanf:"tracing"`
	Database DatabaseConfig `koanf:"database"`
	Cache    CacheConfig    `koanf:"cache"`
	Sweep    SweepConfig    `koanf:"sweep"`
}

// AppConfig - общие настройки приложения
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // путь к файлу логов
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // количество бэкапов
	MaxAge     int    `koanf:"max_age"`     // дней
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig - настройки Prometheus метрик
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig - настройки OpenTelemetry
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// DatabaseConfig - настройки базы данных
type DatabaseConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Driver          string        `koanf:"driver"` // postgres
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// DSN возвращает строку подключения
func (d DatabaseConfig) DSN() string {
	switch strings.ToLower(d.Driver) {
	case "postgres", "postgresql", "pgx":
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
		)
	default:
		return ""
	}
}

// CacheConfig - настройки кэширования результатов поиска
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"` // для in-memory
}

// Address возвращает адрес кэша
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SweepConfig - параметры прогона по сетке λ
type SweepConfig struct {
	GraphID string    `koanf:"graph_id"`
	Lambdas []float64 `koanf:"lambdas"` // пусто: 0.0, 0.1, ..., 0.9

	TargetFraction float64 `koanf:"target_fraction"`
	Tolerance      float64 `koanf:"tolerance"`
	MaxIterations  int     `koanf:"max_iterations"`

	MaxWorkers    int    `koanf:"max_workers"`    // 0 = runtime.NumCPU()
	FailurePolicy string `koanf:"failure_policy"` // fail_fast, continue

	MuMin    float64 `koanf:"mu_min"`
	MuMax    float64 `koanf:"mu_max"` // 0 = вычисляется по графу
	Headroom float64 `koanf:"headroom"`

	BracketExpansion     bool    `koanf:"bracket_expansion"`
	BracketGrowth        float64 `koanf:"bracket_growth"`
	MaxBracketExpansions int     `koanf:"max_bracket_expansions"`
	ExpandAfter          int     `koanf:"expand_after"`

	Algorithm     string        `koanf:"algorithm"`      // dinic, edmonds_karp
	SolverTimeout time.Duration `koanf:"solver_timeout"` // на одно решение, 0 = без ограничения
	Timeout       time.Duration `koanf:"timeout"`        // на весь прогон, 0 = без ограничения
	Persist       bool          `koanf:"persist"`
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Sprintf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be in [0, 1], got %v", c.Tracing.SampleRate))
	}

	validDrivers := map[string]bool{"memory": true, "redis": true}
	if c.Cache.Enabled && !validDrivers[c.Cache.Driver] {
		errs = append(errs, fmt.Sprintf("cache.driver must be one of: memory, redis, got %s", c.Cache.Driver))
	}

	errs = append(errs, c.Sweep.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validate собирает ошибки секции sweep
func (s *SweepConfig) validate() []string {
	var errs []string

	seen := make(map[float64]bool, len(s.Lambdas))
	for _, l := range s.Lambdas {
		if math.IsNaN(l) || l < 0 || l >= 1 {
			errs = append(errs, fmt.Sprintf("sweep.lambdas: %v is outside [0, 1)", l))
			continue
		}
		if seen[l] {
			errs = append(errs, fmt.Sprintf("sweep.lambdas: duplicate value %v", l))
		}
		seen[l] = true
	}

	if s.TargetFraction < 0 || s.TargetFraction > 1 {
		errs = append(errs, fmt.Sprintf("sweep.target_fraction must be in [0, 1], got %v", s.TargetFraction))
	}
	if s.Tolerance < 0 {
		errs = append(errs, fmt.Sprintf("sweep.tolerance must be non-negative, got %v", s.Tolerance))
	}
	if s.MaxIterations < 1 {
		errs = append(errs, fmt.Sprintf("sweep.max_iterations must be positive, got %d", s.MaxIterations))
	}
	if s.MaxWorkers < 0 {
		errs = append(errs, fmt.Sprintf("sweep.max_workers must be non-negative, got %d", s.MaxWorkers))
	}

	switch s.FailurePolicy {
	case "fail_fast", "continue":
	default:
		errs = append(errs, fmt.Sprintf("sweep.failure_policy must be one of: fail_fast, continue, got %s", s.FailurePolicy))
	}

	switch s.Algorithm {
	case "", "dinic", "edmonds_karp":
	default:
		errs = append(errs, fmt.Sprintf("sweep.algorithm must be one of: dinic, edmonds_karp, got %s", s.Algorithm))
	}

	if s.MuMin < 0 {
		errs = append(errs, fmt.Sprintf("sweep.mu_min must be non-negative, got %v", s.MuMin))
	}
	if s.MuMax != 0 && s.MuMax <= s.MuMin {
		errs = append(errs, fmt.Sprintf("sweep.mu_max must be 0 or greater than mu_min, got %v", s.MuMax))
	}
	if s.Headroom <= 0 {
		errs = append(errs, fmt.Sprintf("sweep.headroom must be positive, got %v", s.Headroom))
	}
	if s.BracketExpansion && s.BracketGrowth <= 1 {
		errs = append(errs, fmt.Sprintf("sweep.bracket_growth must be greater than 1, got %v", s.BracketGrowth))
	}

	return errs
}
