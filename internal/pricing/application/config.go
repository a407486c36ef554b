package application

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	pricing "broker-pricing/internal/pricing/domain"
)

// Config defines pricing configuration.
type Config struct {
	HTTPAddr       string                        `yaml:"http_addr"`
	LogLevel       string                        `yaml:"log_level"`
	DefaultSheet   string                        `yaml:"default_sheet"`
	MaxUploadBytes int64                         `yaml:"max_upload_bytes"`
	TermPolicy     pricing.TermPolicy            `yaml:"term_policy"`
	UpliftMode     pricing.UpliftMode            `yaml:"uplift_mode"`
	Weights        map[string]map[string]float64 `yaml:"weights"`
	LossFactors    pricing.LossFactors           `yaml:"loss_factors"`
	DefaultUplifts []pricing.UpliftEntry         `yaml:"default_uplifts"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:       ":8080",
		LogLevel:       "info",
		DefaultSheet:   "Standard",
		MaxUploadBytes: 32 << 20,
		TermPolicy:     pricing.TermPolicyCalendar,
		UpliftMode:     pricing.UpliftAdditive,
	}
}

// LoadConfig loads config from the yaml file named by PRICING_CONFIG, then
// applies environment overrides.
func LoadConfig() (Config, error) {
	return LoadConfigFile(os.Getenv("PRICING_CONFIG"))
}

// LoadConfigFile loads config from path (optional) and applies environment overrides.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("pricing config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("pricing config: decode yaml: %w", err)
		}
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultSheet = getenvDefault("PRICING_DEFAULT_SHEET", cfg.DefaultSheet)
	cfg.TermPolicy = pricing.TermPolicy(getenvDefault("PRICING_TERM_POLICY", string(cfg.TermPolicy)))
	cfg.UpliftMode = pricing.UpliftMode(getenvDefault("PRICING_UPLIFT_MODE", string(cfg.UpliftMode)))
	cfg.MaxUploadBytes = getenvInt64Default("PRICING_MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)

	if _, err := cfg.WeightTable(); err != nil {
		return cfg, err
	}
	if !cfg.TermPolicy.Valid() {
		return cfg, fmt.Errorf("pricing config: unknown term policy %q", cfg.TermPolicy)
	}
	if !cfg.UpliftMode.Valid() {
		return cfg, fmt.Errorf("pricing config: unknown uplift mode %q", cfg.UpliftMode)
	}
	return cfg, nil
}

// WeightTable merges configured weights over the defaults and validates them.
func (c Config) WeightTable() (pricing.WeightTable, error) {
	overrides := make(pricing.WeightTable, len(c.Weights))
	for profile, bands := range c.Weights {
		weights := make(pricing.Weights, len(bands))
		for name, w := range bands {
			component, ok := pricing.ParseComponent(name)
			if !ok {
				return nil, fmt.Errorf("%w: profile %s has unknown band %q", pricing.ErrInvalidWeights, profile, name)
			}
			weights[component] = w
		}
		overrides[pricing.WeightProfile(profile)] = weights
	}
	table := pricing.DefaultWeightTable().Merge(overrides)
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Calculator builds the TAC calculator described by the config.
func (c Config) Calculator() (*pricing.TACCalculator, error) {
	weights, err := c.WeightTable()
	if err != nil {
		return nil, err
	}
	return pricing.NewTACCalculator(weights, c.UpliftMode, c.LossFactors)
}

// Resolver builds the contract term resolver.
func (c Config) Resolver() (pricing.TermResolver, error) {
	return pricing.NewTermResolver(c.TermPolicy)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt64Default(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
