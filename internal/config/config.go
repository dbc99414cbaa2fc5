package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

const defaultConfigPath = "/config/config.yaml"

// SetDefaults sets default values for optional fields
func SetDefaults(cfg *Config) {
	if cfg.Namespace == "" {
		cfg.Namespace = "pg_ferret"
	}
	if cfg.Import.Strategy == "" {
		cfg.Import.Strategy = StrategyTree
	}
	if cfg.Import.TimePolicy == "" {
		// Historical pairing of the two capture scripts. Either policy can be
		// selected with either strategy; this only picks the default.
		if cfg.Import.Strategy == StrategyStack {
			cfg.Import.TimePolicy = TimePolicyPerSpanRebase
		} else {
			cfg.Import.TimePolicy = TimePolicyGlobalOffset
		}
	}
	if cfg.Import.OnMalformed == "" {
		cfg.Import.OnMalformed = "skip"
	}
	if cfg.OTLP.Endpoint == "" {
		cfg.OTLP.Endpoint = "localhost:4317"
	}
	if cfg.OTLP.ServiceName == "" {
		cfg.OTLP.ServiceName = "postgres"
	}
}

// Load reads the raw configuration from the YAML file named by
// PGFERRET_CONFIG_FILE (default /config/config.yaml). A missing file at the
// default path is not an error; the tool then runs on defaults and flags.
func Load() (*Config, error) {
	v := viper.New()

	configPath := os.Getenv("PGFERRET_CONFIG_FILE")
	explicit := configPath != ""
	if configPath == "" {
		configPath = defaultConfigPath
	}

	// Set config file path
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Finalize applies defaults and validates the configuration. Callers apply
// flag overrides between Load and Finalize.
func Finalize(cfg *Config) error {
	SetDefaults(cfg)
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", formatValidationError(err))
	}
	return nil
}

// LoadAndValidate loads configuration from the YAML file and validates it
func LoadAndValidate() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := Finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// formatValidationError formats validator errors into a readable string
func formatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var errMsgs []string
		for _, e := range validationErrors {
			errMsgs = append(errMsgs, fmt.Sprintf("field '%s' failed validation: %s", e.Field(), getValidationErrorMsg(e)))
		}
		return fmt.Errorf("%s", strings.Join(errMsgs, "; "))
	}
	return err
}

// getValidationErrorMsg returns a human-readable error message for validation errors
func getValidationErrorMsg(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "required_if":
		return "field is required by another setting"
	default:
		return fmt.Sprintf("failed validation tag: %s", e.Tag())
	}
}
