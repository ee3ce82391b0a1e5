package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Input    InputConfig    `yaml:"input" envconfig:"INPUT"`
	Output   OutputConfig   `yaml:"output" envconfig:"OUTPUT"`
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
	Schema   Schema         `yaml:"schema" envconfig:"SCHEMA"`
}

// ServerConfig contains dashboard HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// InputConfig locates the source transaction file
type InputConfig struct {
	TransactionsFile string `yaml:"transactions_file" envconfig:"TRANSACTIONS_FILE"`
}

// OutputConfig locates exported reports
type OutputConfig struct {
	Dir          string `yaml:"dir" envconfig:"DIR"`
	WorkbookName string `yaml:"workbook_name" envconfig:"WORKBOOK_NAME"`
	// MonthlySampleRows caps the raw monthly sheet so the workbook stays
	// openable for very large datasets. 0 disables the cap.
	MonthlySampleRows int `yaml:"monthly_sample_rows" envconfig:"MONTHLY_SAMPLE_ROWS" validate:"min=0"`
}

// AnalysisConfig holds the tunable parameters of the retention computation
type AnalysisConfig struct {
	// Churn grace periods in days. A gap shorter than the grace period
	// continues the current journey.
	MonthlyGraceDays int `yaml:"monthly_grace_days" envconfig:"MONTHLY_GRACE_DAYS" validate:"min=1"`
	DefaultGraceDays int `yaml:"default_grace_days" envconfig:"DEFAULT_GRACE_DAYS" validate:"min=1"`

	// Significance thresholds on cohort initial population.
	MinSegmentCohortSize int `yaml:"min_segment_cohort_size" envconfig:"MIN_SEGMENT_COHORT_SIZE" validate:"min=1"`
	MinTrendCohortSize   int `yaml:"min_trend_cohort_size" envconfig:"MIN_TREND_COHORT_SIZE" validate:"min=1"`

	// Checkpoints are the relative month offsets reported in summaries.
	Checkpoints []int `yaml:"checkpoints" envconfig:"CHECKPOINTS"`

	// EarlyChurnHorizonMonths bounds the journeys counted as early churn in
	// the churn characteristics comparison.
	EarlyChurnHorizonMonths int `yaml:"early_churn_horizon_months" envconfig:"EARLY_CHURN_HORIZON_MONTHS" validate:"min=0"`

	// DefaultProcessor replaces an empty payment processor value when
	// segmenting, matching card payments recorded with a null PSP.
	DefaultProcessor string `yaml:"default_processor" envconfig:"DEFAULT_PROCESSOR"`

	// RevenueBands are the upper bounds of the fixed revenue buckets; the
	// last band is open-ended.
	RevenueBands []float64 `yaml:"revenue_bands" envconfig:"REVENUE_BANDS"`
}

// Load loads configuration from environment variables and an optional YAML
// file. Environment values take precedence over file values.
func Load(configFile string) (*Config, error) {
	var cfg Config

	if configFile != "" {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configFile, err)
		}
		cfg = *fileCfg
	}

	if err := envconfig.Process("CHURNLENS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration with all defaults applied and no file or
// environment overrides. Used by tests and as a CLI fallback.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills zero values that envconfig only populates when
// Process runs against an empty struct.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}
	if c.Input.TransactionsFile == "" {
		c.Input.TransactionsFile = "transactions.csv"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "reports"
	}
	if c.Output.WorkbookName == "" {
		c.Output.WorkbookName = "retention_analysis.xlsx"
	}
	if c.Output.MonthlySampleRows == 0 {
		c.Output.MonthlySampleRows = 10000
	}
	if c.Analysis.MonthlyGraceDays == 0 {
		c.Analysis.MonthlyGraceDays = 35
	}
	if c.Analysis.DefaultGraceDays == 0 {
		c.Analysis.DefaultGraceDays = 90
	}
	if c.Analysis.MinSegmentCohortSize == 0 {
		c.Analysis.MinSegmentCohortSize = 10
	}
	if c.Analysis.MinTrendCohortSize == 0 {
		c.Analysis.MinTrendCohortSize = 50
	}
	if len(c.Analysis.Checkpoints) == 0 {
		c.Analysis.Checkpoints = []int{1, 3, 6, 12, 13, 18, 24, 25}
	}
	if c.Analysis.EarlyChurnHorizonMonths == 0 {
		c.Analysis.EarlyChurnHorizonMonths = 2
	}
	if c.Analysis.DefaultProcessor == "" {
		c.Analysis.DefaultProcessor = "CB"
	}
	if len(c.Analysis.RevenueBands) == 0 {
		c.Analysis.RevenueBands = []float64{5, 10, 15, 20}
	}
	c.Schema.applyDefaults()
}

// Validate checks the configuration using struct tags plus the cross-field
// rules validator cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	for i := 1; i < len(c.Analysis.RevenueBands); i++ {
		if c.Analysis.RevenueBands[i] <= c.Analysis.RevenueBands[i-1] {
			return fmt.Errorf("revenue bands must be strictly increasing, got %v", c.Analysis.RevenueBands)
		}
	}
	for _, cp := range c.Analysis.Checkpoints {
		if cp < 0 {
			return fmt.Errorf("checkpoints must be non-negative, got %d", cp)
		}
	}

	return c.Schema.Validate()
}
