package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const envPrefix = "HARVESTER"

// LoadHarvesterConfig loads the harvester config from the given path, or from
// HARVESTER_* environment variables when the path is nil
func LoadHarvesterConfig(configPath *string) (*HarvesterConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == nil {
		config, err := loadEnv(v)
		if err != nil {
			return nil, fmt.Errorf("failed to load env config: %w", err)
		}
		return config, nil
	}

	config, err := loadFile(v, *configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load file config: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8090)
	v.SetDefault("host", "localhost")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("max_concurrent_requests", 50)
	v.SetDefault("service_name", "spectra-harvest")
	v.SetDefault("service_version", "1.0.0")
	v.SetDefault("environment", "production")
	v.SetDefault("use_otlp_traces", true)
	v.SetDefault("otlp_traces_url", "http://localhost:4318/v1/traces")
	v.SetDefault("enable_metrics", true)
	v.SetDefault("use_prometheus", true)
	v.SetDefault("otlp_metrics_url", "http://localhost:4318/v1/metrics")
	v.SetDefault("otlp_logs_url", "http://localhost:4318/v1/logs")
	v.SetDefault("network", "mainnet")
	v.SetDefault("provider_rps", 5)
	v.SetDefault("default_provider", "7k")
	v.SetDefault("target_token", "0x2::sui::SUI")
	v.SetDefault("slippage", "0.005")
	v.SetDefault("confirm_timeout", 60*time.Second)
	v.SetDefault("log_level", "info")
}

func loadEnv(v *viper.Viper) (*HarvesterConfig, error) {
	// a missing .env is fine, the environment may come from docker or systemd
	_ = godotenv.Load()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var config HarvesterConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal env config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

// bindEnvKeys binds each config key to its env var so Unmarshal sees env values
// when no config file is loaded (env-only mode).
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"port", "host", "allowed_origins",
		"rate_per_minute", "max_concurrent_requests",
		"service_name", "service_version", "environment",
		"enable_tracing", "use_otlp_traces", "otlp_traces_url",
		"enable_metrics", "use_prometheus", "use_otlp_metrics", "otlp_metrics_url",
		"enable_logs", "use_otlp_logs", "otlp_logs_url",
		"insecure_otlp", "development_mode",
		"network", "sui_rpc_urls",
		"lending_api_urls", "sevenk_api_urls", "cetus_api_urls", "provider_rps",
		"sevenk_sources", "sevenk_partner",
		"default_provider", "target_token", "slippage", "auto_swap",
		"confirm_timeout", "token_registry",
		"private_key", "log_level", "log_file",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func loadFile(v *viper.Viper, configPath string) (*HarvesterConfig, error) {
	if !strings.HasSuffix(configPath, ".toml") {
		return nil, fmt.Errorf("config file must be a toml file")
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// the key may live outside the file
	_ = v.BindEnv("private_key", envPrefix+"_PRIVATE_KEY")

	var config HarvesterConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}

	return &config, nil
}

func verifyConfig(config *HarvesterConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if config.Host == "" {
		return fmt.Errorf("host is required")
	}

	switch config.Network {
	case "mainnet", "testnet", "devnet":
	case "custom":
		if len(config.SuiRPCURLs) == 0 {
			return fmt.Errorf("sui_rpc_urls is required for a custom network")
		}
	default:
		return fmt.Errorf("network must be mainnet, testnet, devnet or custom, got %q", config.Network)
	}

	if len(config.LendingAPIURLs) == 0 {
		return fmt.Errorf("lending_api_urls is required")
	}
	if len(config.SevenKAPIURLs) == 0 && len(config.CetusAPIURLs) == 0 {
		return fmt.Errorf("at least one of sevenk_api_urls or cetus_api_urls is required")
	}

	for name, urls := range map[string][]string{
		"sui_rpc_urls":     config.SuiRPCURLs,
		"lending_api_urls": config.LendingAPIURLs,
		"sevenk_api_urls":  config.SevenKAPIURLs,
		"cetus_api_urls":   config.CetusAPIURLs,
	} {
		for _, url := range urls {
			if url == "" {
				return fmt.Errorf("%s must not contain empty urls", name)
			}
		}
	}

	switch strings.ToLower(config.DefaultProvider) {
	case "7k", "sevenk", "a":
		if len(config.SevenKAPIURLs) == 0 {
			return fmt.Errorf("default_provider 7k needs sevenk_api_urls")
		}
	case "cetus", "b":
		if len(config.CetusAPIURLs) == 0 {
			return fmt.Errorf("default_provider cetus needs cetus_api_urls")
		}
	default:
		return fmt.Errorf("default_provider must be 7k or cetus, got %q", config.DefaultProvider)
	}

	if config.TargetToken == "" {
		return fmt.Errorf("target_token is required")
	}

	slippage, err := decimal.NewFromString(config.Slippage)
	if err != nil {
		return fmt.Errorf("slippage %q is not a number", config.Slippage)
	}
	if slippage.IsNegative() || slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("slippage must be a fraction in [0, 1), got %s", config.Slippage)
	}

	if config.ProviderRPS < 0 {
		return fmt.Errorf("provider_rps must not be negative")
	}
	if config.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm_timeout must be positive")
	}

	return nil
}

// SlippageDecimal returns the validated slippage fraction.
func (c *HarvesterConfig) SlippageDecimal() decimal.Decimal {
	return decimal.RequireFromString(c.Slippage)
}
