package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/Cogwheel-Validator/spectra-harvest/harvester/config"
)

// helper to reset env vars with HARVESTER_ prefix between tests
func unsetHarvesterEnv() {
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "HARVESTER_") {
			if idx := strings.Index(e, "="); idx != -1 {
				_ = os.Unsetenv(e[:idx])
			}
		}
	}
}

// inEmptyDir keeps godotenv from picking up a .env next to the tests
func inEmptyDir(t *testing.T) {
	t.Helper()
	origWd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	_ = os.Chdir(t.TempDir())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harvester.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing temp config: %v", err)
	}
	return path
}

func TestLoadHarvesterConfig_FromEnv_Success(t *testing.T) {
	unsetHarvesterEnv()
	inEmptyDir(t)
	t.Cleanup(unsetHarvesterEnv)

	_ = os.Setenv("HARVESTER_PORT", "9000")
	_ = os.Setenv("HARVESTER_HOST", "0.0.0.0")
	_ = os.Setenv("HARVESTER_NETWORK", "testnet")
	_ = os.Setenv("HARVESTER_LENDING_API_URLS", "https://lending.example.com,https://lending-backup.example.com")
	_ = os.Setenv("HARVESTER_SEVENK_API_URLS", "https://7k.example.com")
	_ = os.Setenv("HARVESTER_SLIPPAGE", "0.01")
	_ = os.Setenv("HARVESTER_AUTO_SWAP", "true")
	_ = os.Setenv("HARVESTER_CONFIRM_TIMEOUT", "90s")

	cfg, err := LoadHarvesterConfig(nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 9000 || cfg.Host != "0.0.0.0" {
		t.Errorf("unexpected port/host: %v %v", cfg.Port, cfg.Host)
	}
	if cfg.Network != "testnet" {
		t.Errorf("expected testnet, got %s", cfg.Network)
	}
	if len(cfg.LendingAPIURLs) != 2 {
		t.Errorf("expected 2 lending urls, got %d", len(cfg.LendingAPIURLs))
	}
	if !cfg.AutoSwap {
		t.Errorf("expected auto swap")
	}
	if cfg.ConfirmTimeout != 90*time.Second {
		t.Errorf("expected 90s confirm timeout, got %s", cfg.ConfirmTimeout)
	}
	if cfg.SlippageDecimal().String() != "0.01" {
		t.Errorf("expected slippage 0.01, got %s", cfg.SlippageDecimal())
	}
}

func TestLoadHarvesterConfig_Defaults(t *testing.T) {
	unsetHarvesterEnv()
	inEmptyDir(t)
	t.Cleanup(unsetHarvesterEnv)

	_ = os.Setenv("HARVESTER_LENDING_API_URLS", "https://lending.example.com")
	_ = os.Setenv("HARVESTER_SEVENK_API_URLS", "https://7k.example.com")

	cfg, err := LoadHarvesterConfig(nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Network != "mainnet" {
		t.Errorf("expected mainnet, got %s", cfg.Network)
	}
	if cfg.DefaultProvider != "7k" {
		t.Errorf("expected 7k, got %s", cfg.DefaultProvider)
	}
	if cfg.Slippage != "0.005" {
		t.Errorf("expected 0.005, got %s", cfg.Slippage)
	}
	if cfg.ProviderRPS != 5 {
		t.Errorf("expected 5 rps, got %v", cfg.ProviderRPS)
	}
	if cfg.ConfirmTimeout != time.Minute {
		t.Errorf("expected 1m, got %s", cfg.ConfirmTimeout)
	}
}

func TestLoadHarvesterConfig_FromEnv_FailVerification(t *testing.T) {
	unsetHarvesterEnv()
	inEmptyDir(t)
	t.Cleanup(unsetHarvesterEnv)

	// no lending api
	_ = os.Setenv("HARVESTER_SEVENK_API_URLS", "https://7k.example.com")

	_, err := LoadHarvesterConfig(nil)
	if err == nil {
		t.Fatalf("expected error due to missing lending_api_urls, got nil")
	}
}

func TestLoadHarvesterConfig_FromFile_Success(t *testing.T) {
	unsetHarvesterEnv()

	path := writeConfig(t, `
port = 9091
host = "127.0.0.1"
allowed_origins = ["https://example.com"]
network = "custom"
sui_rpc_urls = ["https://rpc.example.com"]
lending_api_urls = ["https://lending.example.com"]
cetus_api_urls = ["https://cetus.example.com"]
sevenk_api_urls = ["https://7k.example.com"]
sevenk_sources = ["cetus", "bluefin"]
sevenk_partner = "0xpartner"
default_provider = "cetus"
target_token = "USDC"
slippage = 0.02
confirm_timeout = "2m"
`)

	cfg, err := LoadHarvesterConfig(&path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 9091 || cfg.Host != "127.0.0.1" {
		t.Errorf("unexpected port/host: %v %v", cfg.Port, cfg.Host)
	}
	if cfg.Network != "custom" || len(cfg.SuiRPCURLs) != 1 {
		t.Errorf("unexpected network config: %s %v", cfg.Network, cfg.SuiRPCURLs)
	}
	if cfg.DefaultProvider != "cetus" || cfg.TargetToken != "USDC" {
		t.Errorf("unexpected swap config: %s %s", cfg.DefaultProvider, cfg.TargetToken)
	}
	if cfg.SlippageDecimal().String() != "0.02" {
		t.Errorf("expected slippage 0.02, got %s", cfg.Slippage)
	}
	if cfg.ConfirmTimeout != 2*time.Minute {
		t.Errorf("expected 2m, got %s", cfg.ConfirmTimeout)
	}
	if len(cfg.SevenKSources) != 2 || cfg.SevenKSources[1] != "bluefin" || cfg.SevenKPartner != "0xpartner" {
		t.Errorf("unexpected 7k options: %v %q", cfg.SevenKSources, cfg.SevenKPartner)
	}
}

func TestLoadHarvesterConfig_PrivateKeyFromEnvWithFile(t *testing.T) {
	unsetHarvesterEnv()
	t.Cleanup(unsetHarvesterEnv)
	_ = os.Setenv("HARVESTER_PRIVATE_KEY", "suiprivkey1test")

	path := writeConfig(t, `
lending_api_urls = ["https://lending.example.com"]
sevenk_api_urls = ["https://7k.example.com"]
`)

	cfg, err := LoadHarvesterConfig(&path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.PrivateKey != "suiprivkey1test" {
		t.Errorf("expected private key from env, got %q", cfg.PrivateKey)
	}
}

func TestLoadHarvesterConfig_InvalidValues(t *testing.T) {
	unsetHarvesterEnv()

	cases := map[string]string{
		"bad network": `
network = "moonnet"
lending_api_urls = ["https://lending.example.com"]
sevenk_api_urls = ["https://7k.example.com"]
`,
		"custom without rpc": `
network = "custom"
lending_api_urls = ["https://lending.example.com"]
sevenk_api_urls = ["https://7k.example.com"]
`,
		"provider without urls": `
default_provider = "cetus"
lending_api_urls = ["https://lending.example.com"]
sevenk_api_urls = ["https://7k.example.com"]
`,
		"slippage too high": `
slippage = 1.5
lending_api_urls = ["https://lending.example.com"]
sevenk_api_urls = ["https://7k.example.com"]
`,
		"empty url": `
lending_api_urls = [""]
sevenk_api_urls = ["https://7k.example.com"]
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, content)
			if _, err := LoadHarvesterConfig(&path); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestLoadHarvesterConfig_NotToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvester.yaml")
	if _, err := LoadHarvesterConfig(&path); err == nil {
		t.Fatal("expected error for non toml file")
	}
}
