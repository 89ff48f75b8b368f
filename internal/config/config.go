package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"github.com/sells-group/sentiment-cli/internal/resilience"
)

// Mode selects which pipeline a run executes.
type Mode string

const (
	// ModeBigQuery runs the remote fetch → classify → write pipeline.
	ModeBigQuery Mode = "bigquery"
	// ModeLocal classifies the configured sample texts and prints a summary.
	ModeLocal Mode = "local"
)

// DefaultMode is used when no mode, or an unknown one, is requested.
const DefaultMode = ModeBigQuery

// ParseMode returns the Mode named by s. ok is false for unrecognized values,
// in which case DefaultMode is returned.
func ParseMode(s string) (mode Mode, ok bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeBigQuery:
		return ModeBigQuery, true
	case ModeLocal:
		return ModeLocal, true
	default:
		return DefaultMode, false
	}
}

// Recognized option values.
var (
	Tasks        = []string{"sentiment-analysis", "text-classification"}
	Devices      = []string{"auto", "cpu", "cuda", "mps"}
	Drivers      = []string{"bigquery", "postgres", "sqlite"}
	IDStrategies = []string{"uuid", "sequence", "range"}
	LogFormats   = []string{"json", "console"}
)

// Config holds the full application configuration.
type Config struct {
	Task        string          `yaml:"task" mapstructure:"task"`
	Model       string          `yaml:"model" mapstructure:"model"`
	Device      string          `yaml:"device" mapstructure:"device"`
	SampleTexts []string        `yaml:"sample_texts" mapstructure:"sample_texts"`
	Warehouse   WarehouseConfig `yaml:"warehouse" mapstructure:"warehouse"`
	Inference   InferenceConfig `yaml:"inference" mapstructure:"inference"`
	IDs         IDConfig        `yaml:"ids" mapstructure:"ids"`
	Log         LogConfig       `yaml:"log" mapstructure:"log"`
}

// WarehouseConfig configures the source and destination tables and the store
// that holds them.
type WarehouseConfig struct {
	Driver          string `yaml:"driver" mapstructure:"driver"`
	Project         string `yaml:"project" mapstructure:"project"`
	Location        string `yaml:"location" mapstructure:"location"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	DatabaseURL     string `yaml:"database_url" mapstructure:"database_url"`
	Dataset         string `yaml:"dataset" mapstructure:"dataset"`
	DestDataset     string `yaml:"dest_dataset" mapstructure:"dest_dataset"`
	ReviewsTable    string `yaml:"reviews_table" mapstructure:"reviews_table"`
	SentimentTable  string `yaml:"sentiment_table" mapstructure:"sentiment_table"`
	Limit           int    `yaml:"limit" mapstructure:"limit"`
}

// InferenceConfig configures the model server client.
type InferenceConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	// RequestsPerSecond throttles calls to the backend; 0 means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// IDConfig selects how sentiment_id values are generated.
type IDConfig struct {
	Strategy string `yaml:"strategy" mapstructure:"strategy"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// PipelineConfig is the per-run view of the configuration consumed by the
// pipeline stages.
type PipelineConfig struct {
	Task          string
	Model         string
	Device        string
	SourceDataset string
	SourceTable   string
	DestDataset   string
	DestTable     string
	Limit         int
	SampleTexts   []string
}

// Pipeline returns the run configuration. DestDataset falls back to the
// source dataset when unset.
func (c *Config) Pipeline() PipelineConfig {
	dest := c.Warehouse.DestDataset
	if dest == "" {
		dest = c.Warehouse.Dataset
	}
	return PipelineConfig{
		Task:          c.Task,
		Model:         c.Model,
		Device:        c.Device,
		SourceDataset: c.Warehouse.Dataset,
		SourceTable:   c.Warehouse.ReviewsTable,
		DestDataset:   dest,
		DestTable:     c.Warehouse.SentimentTable,
		Limit:         c.Warehouse.Limit,
		SampleTexts:   slices.Clone(c.SampleTexts),
	}
}

// envOnlyKeys are options with no default that may still be set from the
// environment. sample_texts takes a comma-separated list.
var envOnlyKeys = []string{
	"sample_texts",
	"warehouse.project",
	"warehouse.location",
	"warehouse.credentials_file",
	"warehouse.database_url",
	"warehouse.dest_dataset",
	"inference.api_key",
	"inference.requests_per_second",
}

// Load reads configuration from path (or config.yaml in . and ./config when
// path is empty) and SENTIMENT_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("SENTIMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("task", "sentiment-analysis")
	v.SetDefault("model", "distilbert-base-uncased-finetuned-sst-2-english")
	v.SetDefault("device", "auto")
	v.SetDefault("warehouse.driver", "bigquery")
	v.SetDefault("warehouse.dataset", "distilbert_demo")
	v.SetDefault("warehouse.reviews_table", "nlp_demo_reviews")
	v.SetDefault("warehouse.sentiment_table", "nlp_demo_sentiments")
	v.SetDefault("warehouse.limit", 5)
	v.SetDefault("inference.base_url", "http://localhost:8080")
	v.SetDefault("inference.timeout_secs", 120)
	v.SetDefault("inference.max_attempts", 3)
	v.SetDefault("ids.strategy", "uuid")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "logs/pipeline.log")

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, resilience.Wrap(resilience.KindConfig, eris.Wrapf(err, "config: bind env %s", key))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, resilience.Wrap(resilience.KindConfig, eris.Wrap(err, "config: read file"))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, resilience.Wrap(resilience.KindConfig, eris.Wrap(err, "config: unmarshal"))
	}
	return &cfg, nil
}

// Validate checks the fields the given mode depends on and reports every
// problem at once.
func (c *Config) Validate(mode Mode) error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	oneOf := func(field, value string, allowed []string) {
		if !slices.Contains(allowed, value) {
			addf("%s: %q is not one of %s", field, value, strings.Join(allowed, ", "))
		}
	}

	oneOf("task", c.Task, Tasks)
	if strings.TrimSpace(c.Model) == "" {
		addf("model: required")
	}
	oneOf("device", c.Device, Devices)
	oneOf("ids.strategy", c.IDs.Strategy, IDStrategies)
	oneOf("log.format", c.Log.Format, LogFormats)
	if c.Inference.BaseURL == "" {
		addf("inference.base_url: required")
	}
	if c.Inference.RequestsPerSecond < 0 {
		addf("inference.requests_per_second: must not be negative, got %v", c.Inference.RequestsPerSecond)
	}

	switch mode {
	case ModeLocal:
		if len(c.SampleTexts) == 0 {
			addf("sample_texts: at least one text is required for local mode")
		}
		for i, text := range c.SampleTexts {
			if strings.TrimSpace(text) == "" {
				addf("sample_texts[%d]: empty text", i)
			}
		}
	default:
		oneOf("warehouse.driver", c.Warehouse.Driver, Drivers)
		for field, value := range map[string]string{
			"warehouse.dataset":         c.Warehouse.Dataset,
			"warehouse.reviews_table":   c.Warehouse.ReviewsTable,
			"warehouse.sentiment_table": c.Warehouse.SentimentTable,
		} {
			if value == "" {
				addf("%s: required", field)
			}
		}
		if c.Warehouse.Limit <= 0 {
			addf("warehouse.limit: must be positive, got %d", c.Warehouse.Limit)
		}
		if c.Warehouse.Driver == "postgres" && c.Warehouse.DatabaseURL == "" {
			addf("warehouse.database_url: required for the postgres driver")
		}
	}

	if len(problems) == 0 {
		return nil
	}
	slices.Sort(problems)
	return resilience.Wrap(resilience.KindConfig,
		eris.Errorf("config: validation failed: %s", strings.Join(problems, "; ")))
}

const redacted = "<redacted>"

// Redacted returns a copy of c safe to print.
func (c *Config) Redacted() Config {
	out := *c
	out.SampleTexts = slices.Clone(c.SampleTexts)
	if out.Inference.APIKey != "" {
		out.Inference.APIKey = redacted
	}
	if out.Warehouse.DatabaseURL != "" {
		out.Warehouse.DatabaseURL = redacted
	}
	return out
}
