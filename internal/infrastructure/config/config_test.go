package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("BACKPACK_API_KEY", "test-key")
	t.Setenv("BACKPACK_SECRET_KEY", "test-secret")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setCredentials(t)
	path := writeConfig(t, `
[symbol]
name = "sol_usdc_perp"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Symbol.Name != "SOL_USDC_PERP" {
		t.Errorf("symbol must be upper-cased, got %q", cfg.Symbol.Name)
	}
	if cfg.App.OrderIntervalSec != 120 {
		t.Errorf("default order interval = %d, want 120", cfg.App.OrderIntervalSec)
	}
	if cfg.Grid.LevelsPerSide != 6 || cfg.Grid.Step != 0.0002 {
		t.Errorf("grid defaults wrong: %+v", cfg.Grid)
	}
	if cfg.Grid.QuoteOrderSize != 0 {
		t.Errorf("quote_order_size must stay unset unless configured, got %v", cfg.Grid.QuoteOrderSize)
	}
	if cfg.Bollinger.LongInterval != "1h" || cfg.Bollinger.ShortInterval != "5m" {
		t.Errorf("bollinger interval defaults wrong: %+v", cfg.Bollinger)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.KeepDays != 15 {
		t.Errorf("storage defaults wrong: %+v", cfg.Storage)
	}
	if cfg.APIKey != "test-key" || cfg.SecretKey != "test-secret" {
		t.Error("credentials must come from environment")
	}
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	t.Setenv("BACKPACK_API_KEY", "")
	t.Setenv("BACKPACK_SECRET_KEY", "")
	path := writeConfig(t, `
[symbol]
name = "SOL_USDC_PERP"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("missing credentials must fail validation")
	}
}

func TestLoadRejectsBadSymbol(t *testing.T) {
	setCredentials(t)
	path := writeConfig(t, `
[symbol]
name = "SOLUSDC"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("symbol without underscore must fail validation")
	}
}

func TestLoadRejectsPostgresWithoutDSN(t *testing.T) {
	setCredentials(t)
	path := writeConfig(t, `
[symbol]
name = "SOL_USDC_PERP"

[storage]
driver = "postgres"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("postgres driver without dsn must fail validation")
	}
}

func TestLoadRejectsInvertedSpreadBounds(t *testing.T) {
	setCredentials(t)
	path := writeConfig(t, `
[symbol]
name = "SOL_USDC_PERP"

[spread]
min = 0.01
max = 0.001
`)

	if _, err := Load(path); err == nil {
		t.Fatal("spread.min > spread.max must fail validation")
	}
}

func TestAssetSplit(t *testing.T) {
	setCredentials(t)
	path := writeConfig(t, `
[symbol]
name = "SOL_USDC_PERP"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseAsset() != "SOL" {
		t.Errorf("base asset = %q, want SOL", cfg.BaseAsset())
	}
	if cfg.QuoteAsset() != "USDC" {
		t.Errorf("quote asset = %q, want USDC", cfg.QuoteAsset())
	}
}
