// Package config loads runtime settings for the vox CLI from an optional
// vox.yaml, VOX_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/roach88/vox/internal/entity"
	"github.com/roach88/vox/internal/locale"
	"github.com/roach88/vox/internal/matcher"
	"github.com/roach88/vox/internal/workflow"
)

// EnvPrefix prefixes every environment variable: matcher.high is read
// from VOX_MATCHER_HIGH.
const EnvPrefix = "VOX"

// FileName is the config file looked up in the working directory.
const FileName = "vox"

// Config is the complete runtime configuration.
type Config struct {
	Patterns string         `mapstructure:"patterns"`
	Locales  []string       `mapstructure:"locales" validate:"dive,locale"`
	Matcher  MatcherConfig  `mapstructure:"matcher"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Store    StoreConfig    `mapstructure:"store"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// MatcherConfig tunes the command matcher.
type MatcherConfig struct {
	High            float64 `mapstructure:"high" validate:"gt=0,lte=1,gtefield=Medium"`
	Medium          float64 `mapstructure:"medium" validate:"gt=0,lte=1,gtefield=Low"`
	Low             float64 `mapstructure:"low" validate:"gt=0,lte=1"`
	Fuzzy           float64 `mapstructure:"fuzzy" validate:"gt=0,lte=1"`
	SemanticCutoff  float64 `mapstructure:"semantic_cutoff" validate:"gt=0,lte=1"`
	Semantic        bool    `mapstructure:"semantic"`
	HistorySize     int     `mapstructure:"history_size" validate:"gte=1"`
	EntityCacheSize int     `mapstructure:"entity_cache_size" validate:"gte=1"`
}

// WorkflowConfig tunes the context manager.
type WorkflowConfig struct {
	Strict        bool          `mapstructure:"strict"`
	HistoryLimit  int           `mapstructure:"history_limit" validate:"gte=1"`
	StackLimit    int           `mapstructure:"stack_limit" validate:"gte=1"`
	MaxRetries    int           `mapstructure:"max_retries" validate:"gte=0"`
	GlobalTTL     time.Duration `mapstructure:"global_ttl" validate:"gt=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gte=0"`
}

// StoreConfig locates the match log. An empty path disables persistence.
type StoreConfig struct {
	Path     string `mapstructure:"path"`
	Snapshot string `mapstructure:"snapshot"`
}

// MetricsConfig exposes Prometheus metrics. An empty address disables
// the endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// Default returns the built-in configuration.
func Default() Config {
	th := matcher.DefaultThresholds()
	return Config{
		Patterns: "patterns",
		Matcher: MatcherConfig{
			High:            th.High,
			Medium:          th.Medium,
			Low:             th.Low,
			Fuzzy:           th.Fuzzy,
			SemanticCutoff:  th.SemanticCutoff,
			Semantic:        true,
			HistorySize:     matcher.DefaultHistorySize,
			EntityCacheSize: entity.DefaultCacheSize,
		},
		Workflow: WorkflowConfig{
			Strict:        true,
			HistoryLimit:  workflow.DefaultHistoryLimit,
			StackLimit:    workflow.DefaultStackLimit,
			MaxRetries:    workflow.DefaultMaxRetries,
			GlobalTTL:     workflow.DefaultGlobalTTL,
			SweepInterval: time.Minute,
		},
		Store: StoreConfig{Snapshot: "default"},
	}
}

// New returns a viper instance seeded with the defaults and bound to the
// VOX_* environment.
func New() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault("patterns", d.Patterns)
	v.SetDefault("matcher.high", d.Matcher.High)
	v.SetDefault("matcher.medium", d.Matcher.Medium)
	v.SetDefault("matcher.low", d.Matcher.Low)
	v.SetDefault("matcher.fuzzy", d.Matcher.Fuzzy)
	v.SetDefault("matcher.semantic_cutoff", d.Matcher.SemanticCutoff)
	v.SetDefault("matcher.semantic", d.Matcher.Semantic)
	v.SetDefault("matcher.history_size", d.Matcher.HistorySize)
	v.SetDefault("matcher.entity_cache_size", d.Matcher.EntityCacheSize)
	v.SetDefault("workflow.strict", d.Workflow.Strict)
	v.SetDefault("workflow.history_limit", d.Workflow.HistoryLimit)
	v.SetDefault("workflow.stack_limit", d.Workflow.StackLimit)
	v.SetDefault("workflow.max_retries", d.Workflow.MaxRetries)
	v.SetDefault("workflow.global_ttl", d.Workflow.GlobalTTL)
	v.SetDefault("workflow.sweep_interval", d.Workflow.SweepInterval)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.snapshot", d.Store.Snapshot)
	v.SetDefault("metrics.addr", d.Metrics.Addr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// No default: an unset list must decode as nil, not as an empty slice.
	_ = v.BindEnv("locales")
	return v
}

// Load reads the config file into v and decodes the result. An explicit
// file must exist; otherwise vox.yaml is looked up in the working
// directory and may be absent.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		slog.Debug("config file loaded", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("locale", func(fl validator.FieldLevel) bool {
		_, err := locale.Parse(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks ranges and cross-field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, len(fieldErrs))
			for i, fe := range fieldErrs {
				msgs[i] = fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ParsedLocales returns the configured locales. Empty means all.
func (c Config) ParsedLocales() []locale.Locale {
	var out []locale.Locale
	for _, s := range c.Locales {
		if l, err := locale.Parse(s); err == nil {
			out = append(out, l)
		}
	}
	return out
}

// Thresholds returns the matcher thresholds.
func (c Config) Thresholds() matcher.Thresholds {
	return matcher.Thresholds{
		High:           c.Matcher.High,
		Medium:         c.Matcher.Medium,
		Low:            c.Matcher.Low,
		Fuzzy:          c.Matcher.Fuzzy,
		SemanticCutoff: c.Matcher.SemanticCutoff,
	}
}

// MatcherOptions translates the matcher settings into options. The entity
// extractor is built here so it honors the locale selection.
func (c Config) MatcherOptions() ([]matcher.Option, error) {
	extOpts := []entity.Option{entity.WithCacheSize(c.Matcher.EntityCacheSize)}
	if locales := c.ParsedLocales(); len(locales) > 0 {
		extOpts = append(extOpts, entity.WithLocales(locales...))
	}
	ext, err := entity.NewExtractor(extOpts...)
	if err != nil {
		return nil, fmt.Errorf("entity extractor: %w", err)
	}
	return []matcher.Option{
		matcher.WithThresholds(c.Thresholds()),
		matcher.WithSemantic(c.Matcher.Semantic),
		matcher.WithHistorySize(c.Matcher.HistorySize),
		matcher.WithExtractor(ext),
	}, nil
}

// WorkflowOptions translates the context manager settings into options.
func (c Config) WorkflowOptions() []workflow.Option {
	return []workflow.Option{
		workflow.WithStrict(c.Workflow.Strict),
		workflow.WithHistoryLimit(c.Workflow.HistoryLimit),
		workflow.WithStackLimit(c.Workflow.StackLimit),
		workflow.WithMaxRetries(c.Workflow.MaxRetries),
		workflow.WithGlobalTTL(c.Workflow.GlobalTTL),
	}
}
