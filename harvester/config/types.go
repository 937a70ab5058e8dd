package config

import "time"

type HarvesterConfig struct {
	// rpc configs
	Port int    `toml:"port" mapstructure:"port"`
	Host string `toml:"host" mapstructure:"host"`

	// CORS configs
	AllowedOrigins []string `toml:"allowed_origins" mapstructure:"allowed_origins"`

	// rate limiting configs
	RatePerMinute         int `toml:"rate_per_minute" mapstructure:"rate_per_minute"`
	MaxConcurrentRequests int `toml:"max_concurrent_requests" mapstructure:"max_concurrent_requests"`

	// OpenTelemetry configs
	ServiceName    string `toml:"service_name" mapstructure:"service_name"`
	ServiceVersion string `toml:"service_version" mapstructure:"service_version"`
	Environment    string `toml:"environment" mapstructure:"environment"` // PROD, DEV, TEST, LOCAL
	EnableTracing  bool   `toml:"enable_tracing" mapstructure:"enable_tracing"`
	UseOTLPTraces  bool   `toml:"use_otlp_traces" mapstructure:"use_otlp_traces"`
	OTLPTracesURL  string `toml:"otlp_traces_url" mapstructure:"otlp_traces_url"`
	EnableMetrics  bool   `toml:"enable_metrics" mapstructure:"enable_metrics"`
	UsePrometheus  bool   `toml:"use_prometheus" mapstructure:"use_prometheus"`
	UseOTLPMetrics bool   `toml:"use_otlp_metrics" mapstructure:"use_otlp_metrics"`
	OTLPMetricsURL string `toml:"otlp_metrics_url" mapstructure:"otlp_metrics_url"`
	EnableLogs     bool   `toml:"enable_logs" mapstructure:"enable_logs"`
	UseOTLPLogs    bool   `toml:"use_otlp_logs" mapstructure:"use_otlp_logs"`
	OTLPLogsURL    string `toml:"otlp_logs_url" mapstructure:"otlp_logs_url"`

	InsecureOTLP bool `toml:"insecure_otlp" mapstructure:"insecure_otlp"`

	// Development mode uses stdout exporters
	DevelopmentMode bool `toml:"development_mode" mapstructure:"development_mode"`

	// Sui network, one of mainnet, testnet, devnet or custom
	Network    string   `toml:"network" mapstructure:"network"`
	SuiRPCURLs []string `toml:"sui_rpc_urls" mapstructure:"sui_rpc_urls"`

	// upstream APIs, the first url is the primary
	LendingAPIURLs []string `toml:"lending_api_urls" mapstructure:"lending_api_urls"`
	SevenKAPIURLs  []string `toml:"sevenk_api_urls" mapstructure:"sevenk_api_urls"`
	CetusAPIURLs   []string `toml:"cetus_api_urls" mapstructure:"cetus_api_urls"`
	ProviderRPS    float64  `toml:"provider_rps" mapstructure:"provider_rps"`

	// 7k routing options, empty sources lets the aggregator use all of them
	SevenKSources []string `toml:"sevenk_sources" mapstructure:"sevenk_sources"`
	SevenKPartner string   `toml:"sevenk_partner" mapstructure:"sevenk_partner"`

	// swap configs
	DefaultProvider string        `toml:"default_provider" mapstructure:"default_provider"`
	TargetToken     string        `toml:"target_token" mapstructure:"target_token"` // symbol from the registry or a full coin type
	Slippage        string        `toml:"slippage" mapstructure:"slippage"`
	AutoSwap        bool          `toml:"auto_swap" mapstructure:"auto_swap"`
	ConfirmTimeout  time.Duration `toml:"confirm_timeout" mapstructure:"confirm_timeout"`
	TokenRegistry   string        `toml:"token_registry" mapstructure:"token_registry"`

	// signing key, suiprivkey1...
	PrivateKey string `toml:"private_key" mapstructure:"private_key"`

	// logging
	LogLevel string `toml:"log_level" mapstructure:"log_level"`
	LogFile  string `toml:"log_file" mapstructure:"log_file"`
}
