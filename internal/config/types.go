package config

// Reconstruction strategies.
const (
	StrategyTree  = "tree"  // explicit parent-id links
	StrategyStack = "stack" // per-thread call-stack inference from timing
)

// Timestamp rebasing policies.
const (
	TimePolicyGlobalOffset  = "global-offset"
	TimePolicyPerSpanRebase = "per-span-rebase"
)

// ImportConfig controls one import run
type ImportConfig struct {
	File           string  `yaml:"file" mapstructure:"file"`
	Strategy       string  `yaml:"strategy" mapstructure:"strategy" validate:"required,oneof=tree stack"`
	TimePolicy     string  `yaml:"timePolicy" mapstructure:"timePolicy" validate:"required,oneof=global-offset per-span-rebase"`
	OnMalformed    string  `yaml:"onMalformed" mapstructure:"onMalformed" validate:"required,oneof=skip fail"` // fail is safer with global-offset: one corrupt timestamp corrupts the shared offset
	SpansPerSecond float64 `yaml:"spansPerSecond" mapstructure:"spansPerSecond" validate:"omitempty,gt=0"`     // 0 disables throttling
}

// OTLPConfig represents the downstream exporter endpoint
type OTLPConfig struct {
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint" validate:"required"`
	ServiceName string `yaml:"serviceName" mapstructure:"serviceName"`
	Insecure    bool   `yaml:"insecure" mapstructure:"insecure"`
}

// VerifyConfig re-reads imported traces from a Tempo query frontend after the
// run completes
type VerifyConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	QueryEndpoint string `yaml:"queryEndpoint" mapstructure:"queryEndpoint" validate:"required_if=Enabled true"`
	TenantID      string `yaml:"tenantId" mapstructure:"tenantId"`
	TokenPath     string `yaml:"tokenPath" mapstructure:"tokenPath"`
}

// Config represents the YAML configuration structure
type Config struct {
	Namespace   string       `yaml:"namespace" mapstructure:"namespace"`
	MetricsAddr string       `yaml:"metricsAddr" mapstructure:"metricsAddr"` // empty disables the /metrics listener
	Import      ImportConfig `yaml:"import" mapstructure:"import"`
	OTLP        OTLPConfig   `yaml:"otlp" mapstructure:"otlp"`
	Verify      VerifyConfig `yaml:"verify" mapstructure:"verify"`
}
