package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App struct {
		LogLevel         string `toml:"log_level"`
		OrderIntervalSec int    `toml:"order_interval_sec"`
		HealthCheckSec   int    `toml:"health_check_sec"`
	} `toml:"app"`

	Exchange struct {
		RestURL string `toml:"rest_url"`
		WsURL   string `toml:"ws_url"`
		Window  string `toml:"window"`
	} `toml:"exchange"`

	Symbol struct {
		Name              string `toml:"name"`
		PricePrecision    int    `toml:"price_precision"`
		QuantityPrecision int    `toml:"quantity_precision"`
	} `toml:"symbol"`

	Grid struct {
		LevelsPerSide   int     `toml:"levels_per_side"`
		Step            float64 `toml:"step"`
		SideBudgetRatio float64 `toml:"side_budget_ratio"`
		TotalInvestment float64 `toml:"total_investment"`
		BaseOrderSize   float64 `toml:"base_order_size"`
		QuoteOrderSize  float64 `toml:"quote_order_size"` // >0 时改按计价资产定每层下单额
		MinProfitSpread float64 `toml:"min_profit_spread"`
	} `toml:"grid"`

	Bollinger struct {
		LongInterval  string  `toml:"long_interval"`
		LongPeriod    int     `toml:"long_period"`
		LongStd       float64 `toml:"long_std"`
		ShortInterval string  `toml:"short_interval"`
		ShortPeriod   int     `toml:"short_period"`
		ShortStd      float64 `toml:"short_std"`
		RefreshSec    int     `toml:"refresh_sec"`
	} `toml:"bollinger"`

	Scale struct {
		Min float64 `toml:"min"`
		Max float64 `toml:"max"`
	} `toml:"scale"`

	Spread struct {
		Base    float64 `toml:"base"`
		Dynamic bool    `toml:"dynamic"`
		Min     float64 `toml:"min"`
		Max     float64 `toml:"max"`
		VolLow  float64 `toml:"vol_low"`
		VolHigh float64 `toml:"vol_high"`
	} `toml:"spread"`

	Skew struct {
		Enabled   bool    `toml:"enabled"`
		Uptrend   float64 `toml:"uptrend"`
		Downtrend float64 `toml:"downtrend"`
	} `toml:"skew"`

	Risk struct {
		StopLossActivation float64 `toml:"stop_loss_activation"`
		StopLossRatio      float64 `toml:"stop_loss_ratio"`
		TakeProfitRatio    float64 `toml:"take_profit_ratio"`
	} `toml:"risk"`

	Gates struct {
		TradeInBand bool `toml:"trade_in_band"`
		BuyBelowSMA bool `toml:"buy_below_sma"`
	} `toml:"gates"`

	Storage struct {
		Driver   string `toml:"driver"` // sqlite | postgres
		Path     string `toml:"path"`   // sqlite 文件路径
		DSN      string `toml:"dsn"`    // postgres 连接串
		KeepDays int    `toml:"keep_days"`
	} `toml:"storage"`

	Redis struct {
		Addr   string `toml:"addr"` // 为空时禁用成交镜像
		Prefix string `toml:"prefix"`
	} `toml:"redis"`

	Cache struct {
		RefreshSec int `toml:"refresh_sec"`
		WaitSec    int `toml:"wait_sec"`
	} `toml:"cache"`

	// API 凭证只从环境变量读取，不进配置文件
	APIKey    string `toml:"-"`
	SecretKey string `toml:"-"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	cfg.APIKey = os.Getenv("BACKPACK_API_KEY")
	cfg.SecretKey = os.Getenv("BACKPACK_SECRET_KEY")

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.OrderIntervalSec <= 0 {
		cfg.App.OrderIntervalSec = 120
	}
	if cfg.App.HealthCheckSec <= 0 {
		cfg.App.HealthCheckSec = 30
	}
	if cfg.Exchange.RestURL == "" {
		cfg.Exchange.RestURL = "https://api.backpack.exchange"
	}
	if cfg.Exchange.WsURL == "" {
		cfg.Exchange.WsURL = "wss://ws.backpack.exchange"
	}
	if cfg.Exchange.Window == "" {
		cfg.Exchange.Window = "5000"
	}
	if cfg.Symbol.Name == "" {
		cfg.Symbol.Name = "SOL_USDC_PERP"
	}
	if cfg.Symbol.PricePrecision <= 0 {
		cfg.Symbol.PricePrecision = 2
	}
	if cfg.Symbol.QuantityPrecision <= 0 {
		cfg.Symbol.QuantityPrecision = 2
	}
	if cfg.Grid.LevelsPerSide <= 0 {
		cfg.Grid.LevelsPerSide = 6
	}
	if cfg.Grid.Step <= 0 {
		cfg.Grid.Step = 0.0002
	}
	if cfg.Grid.SideBudgetRatio <= 0 {
		cfg.Grid.SideBudgetRatio = 0.5
	}
	if cfg.Grid.TotalInvestment <= 0 {
		cfg.Grid.TotalInvestment = 200
	}
	if cfg.Grid.BaseOrderSize <= 0 {
		cfg.Grid.BaseOrderSize = 0.1
	}
	if cfg.Grid.MinProfitSpread <= 0 {
		cfg.Grid.MinProfitSpread = 0.0005
	}
	if cfg.Bollinger.LongInterval == "" {
		cfg.Bollinger.LongInterval = "1h"
	}
	if cfg.Bollinger.LongPeriod <= 0 {
		cfg.Bollinger.LongPeriod = 21
	}
	if cfg.Bollinger.LongStd <= 0 {
		cfg.Bollinger.LongStd = 2.0
	}
	if cfg.Bollinger.ShortInterval == "" {
		cfg.Bollinger.ShortInterval = "5m"
	}
	if cfg.Bollinger.ShortPeriod <= 0 {
		cfg.Bollinger.ShortPeriod = 21
	}
	if cfg.Bollinger.ShortStd <= 0 {
		cfg.Bollinger.ShortStd = 2.0
	}
	if cfg.Bollinger.RefreshSec <= 0 {
		cfg.Bollinger.RefreshSec = 60
	}
	if cfg.Scale.Min <= 0 {
		cfg.Scale.Min = 1.0
	}
	if cfg.Scale.Max <= 0 {
		cfg.Scale.Max = 10.0
	}
	if cfg.Spread.Base <= 0 {
		cfg.Spread.Base = 0.00018
	}
	if cfg.Spread.Min <= 0 {
		cfg.Spread.Min = 0.00022
	}
	if cfg.Spread.Max <= 0 {
		cfg.Spread.Max = 0.001
	}
	if cfg.Spread.VolLow <= 0 {
		cfg.Spread.VolLow = 0.0025
	}
	if cfg.Spread.VolHigh <= 0 {
		cfg.Spread.VolHigh = 0.05
	}
	if cfg.Skew.Uptrend <= 0 {
		cfg.Skew.Uptrend = 0.8
	}
	if cfg.Skew.Downtrend <= 0 {
		cfg.Skew.Downtrend = 1.2
	}
	if cfg.Risk.StopLossActivation <= 0 {
		cfg.Risk.StopLossActivation = 0.02
	}
	if cfg.Risk.StopLossRatio <= 0 {
		cfg.Risk.StopLossRatio = 0.03
	}
	if cfg.Risk.TakeProfitRatio <= 0 {
		cfg.Risk.TakeProfitRatio = 0.008
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/positions.db"
	}
	if cfg.Storage.KeepDays <= 0 {
		cfg.Storage.KeepDays = 15
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "bollmaker"
	}
	if cfg.Cache.RefreshSec <= 0 {
		cfg.Cache.RefreshSec = 1
	}
	if cfg.Cache.WaitSec <= 0 {
		cfg.Cache.WaitSec = 1
	}
}

func validate(cfg *Config) error {
	cfg.Symbol.Name = strings.ToUpper(strings.TrimSpace(cfg.Symbol.Name))
	if cfg.Symbol.Name == "" {
		return errors.New("symbol.name is empty")
	}
	if !strings.Contains(cfg.Symbol.Name, "_") {
		return fmt.Errorf("symbol.name %q must be BASE_QUOTE form", cfg.Symbol.Name)
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return errors.New("BACKPACK_API_KEY / BACKPACK_SECRET_KEY not set")
	}
	if cfg.Spread.Min > cfg.Spread.Max {
		return fmt.Errorf("spread.min %v > spread.max %v", cfg.Spread.Min, cfg.Spread.Max)
	}
	if cfg.Spread.VolLow >= cfg.Spread.VolHigh {
		return fmt.Errorf("spread.vol_low %v >= spread.vol_high %v", cfg.Spread.VolLow, cfg.Spread.VolHigh)
	}
	if cfg.Scale.Min > cfg.Scale.Max {
		return fmt.Errorf("scale.min %v > scale.max %v", cfg.Scale.Min, cfg.Scale.Max)
	}
	if cfg.Skew.Uptrend >= 1 {
		return fmt.Errorf("skew.uptrend %v must be < 1", cfg.Skew.Uptrend)
	}
	if cfg.Skew.Downtrend <= 1 {
		return fmt.Errorf("skew.downtrend %v must be > 1", cfg.Skew.Downtrend)
	}
	if cfg.Grid.SideBudgetRatio > 1 {
		return fmt.Errorf("grid.side_budget_ratio %v must be <= 1", cfg.Grid.SideBudgetRatio)
	}
	switch cfg.Storage.Driver {
	case "sqlite":
	case "postgres":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return errors.New("storage.dsn empty but driver is postgres")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", cfg.Storage.Driver)
	}
	return nil
}

// BaseAsset 返回交易对的基础资产，如 SOL_USDC_PERP -> SOL。
func (c *Config) BaseAsset() string {
	return strings.SplitN(c.Symbol.Name, "_", 2)[0]
}

// QuoteAsset 返回交易对的计价资产，如 SOL_USDC_PERP -> USDC。
func (c *Config) QuoteAsset() string {
	parts := strings.Split(c.Symbol.Name, "_")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
