package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"bollmaker/internal/application/port"
	appsvc "bollmaker/internal/application/service"
	"bollmaker/internal/domain/indicator"
	domsvc "bollmaker/internal/domain/service"
	"bollmaker/internal/infrastructure/config"
	"bollmaker/internal/infrastructure/exchange/backpack"
	"bollmaker/internal/infrastructure/logger"
	"bollmaker/internal/infrastructure/storage/postgres"
	storageredis "bollmaker/internal/infrastructure/storage/redis"
	"bollmaker/internal/infrastructure/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds := backpack.NewCredentials(cfg.APIKey, cfg.SecretKey)
	rest := backpack.NewRestClient(cfg.Exchange.RestURL, cfg.Exchange.Window, creds)

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("open position store failed")
	}
	defer store.Close()

	var mirror *storageredis.Repo
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
		mirror = storageredis.New(rdb, cfg.Redis.Prefix, "", "")
		defer mirror.Close()
	}

	ledger := domsvc.NewLedger(store, mirrorOrNil(mirror), cfg.Symbol.Name, domsvc.LedgerOptions{
		RefreshEvery: time.Duration(cfg.Cache.RefreshSec) * time.Second,
		WaitTimeout:  time.Duration(cfg.Cache.WaitSec) * time.Second,
		KeepDays:     cfg.Storage.KeepDays,
	})
	go ledger.Run(ctx)

	engine := indicator.NewEngine(cfg.Bollinger.LongPeriod, cfg.Bollinger.LongStd, cfg.Bollinger.ShortPeriod, cfg.Bollinger.ShortStd)

	refresher := appsvc.NewRefresher(appsvc.RefresherParams{
		Symbol:        cfg.Symbol.Name,
		LongInterval:  cfg.Bollinger.LongInterval,
		LongPeriod:    cfg.Bollinger.LongPeriod,
		ShortInterval: cfg.Bollinger.ShortInterval,
		ShortPeriod:   cfg.Bollinger.ShortPeriod,
		Every:         time.Duration(cfg.Bollinger.RefreshSec) * time.Second,
	}, rest, engine)
	go refresher.Run(ctx)

	feed := backpack.NewFeed(cfg.Exchange.WsURL, cfg.Symbol.Name, creds, cfg.Exchange.Window)
	if err := feed.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("market feed initial connect failed")
	}

	book := backpack.NewOrderBook()
	maker := appsvc.NewMaker(appsvc.MakerParams{
		Symbol:            cfg.Symbol.Name,
		OrderInterval:     time.Duration(cfg.App.OrderIntervalSec) * time.Second,
		PricePrecision:    cfg.Symbol.PricePrecision,
		QuantityPrecision: cfg.Symbol.QuantityPrecision,
		Grid: domsvc.LadderParams{
			Levels:            cfg.Grid.LevelsPerSide,
			Step:              cfg.Grid.Step,
			PricePrecision:    cfg.Symbol.PricePrecision,
			QuantityPrecision: cfg.Symbol.QuantityPrecision,
			BaseOrderSize:     cfg.Grid.BaseOrderSize,
			QuoteOrderSize:    cfg.Grid.QuoteOrderSize,
			TotalInvestment:   cfg.Grid.TotalInvestment,
			SideBudgetRatio:   cfg.Grid.SideBudgetRatio,
			MinProfitSpread:   cfg.Grid.MinProfitSpread,
			TradeInBand:       cfg.Gates.TradeInBand,
			BuyBelowSMA:       cfg.Gates.BuyBelowSMA,
		},
		Spread: domsvc.SpreadParams{
			Base:        cfg.Spread.Base,
			Dynamic:     cfg.Spread.Dynamic,
			Min:         cfg.Spread.Min,
			Max:         cfg.Spread.Max,
			VolLow:      cfg.Spread.VolLow,
			VolHigh:     cfg.Spread.VolHigh,
			SkewEnabled: cfg.Skew.Enabled,
			Uptrend:     cfg.Skew.Uptrend,
			Downtrend:   cfg.Skew.Downtrend,
		},
		Risk: domsvc.RiskParams{
			StopLossActivation: cfg.Risk.StopLossActivation,
			StopLossRatio:      cfg.Risk.StopLossRatio,
			TakeProfitRatio:    cfg.Risk.TakeProfitRatio,
		},
		ScaleMin: cfg.Scale.Min,
		ScaleMax: cfg.Scale.Max,
	}, rest, ledger, engine, book)
	go maker.Run(ctx, feed.Events())

	valuer := appsvc.NewValuer(rest, cfg.BaseAsset(), cfg.QuoteAsset())

	log.Info().
		Str("config", *configPath).
		Str("symbol", cfg.Symbol.Name).
		Str("storage", cfg.Storage.Driver).
		Bool("trade_mirror", mirror != nil).
		Msg("bollmaker started")

	healthLoop(ctx, rest, valuer, book, cfg.Symbol.Name, time.Duration(cfg.App.HealthCheckSec)*time.Second)

	shutdown(rest, cfg.Symbol.Name)
}

func openStore(cfg *config.Config) (port.PositionStore, error) {
	if cfg.Storage.Driver == "postgres" {
		return postgres.New(cfg.Storage.DSN)
	}
	return sqlite.New(cfg.Storage.Path)
}

// mirrorOrNil 避免把带类型的 nil 指针塞进接口。
func mirrorOrNil(m *storageredis.Repo) port.TradeMirror {
	if m == nil {
		return nil
	}
	return m
}

func shutdown(rest *backpack.RestClient, symbol string) {
	cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rest.CancelAllOrders(cctx, symbol); err != nil {
		log.Error().Err(err).Msg("cancel open orders on shutdown failed")
	} else {
		log.Info().Msg("open orders cancelled, shutting down")
	}
}

// healthLoop 周期探活：报价接口可达即视为健康，同时记录组合估值。
// 失败时探测间隔翻倍（封顶 10 倍），恢复后回到基准间隔。
func healthLoop(ctx context.Context, rest *backpack.RestClient, valuer *appsvc.Valuer, book *backpack.OrderBook, symbol string, base time.Duration) {
	interval := base
	maxInterval := base * 10

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		price, err := rest.Ticker(ctx, symbol)
		if err != nil {
			interval = minDur(interval*2, maxInterval)
			log.Warn().Err(err).Dur("next_check", interval).Msg("health check failed")
			timer.Reset(interval)
			continue
		}
		interval = base

		if mid := book.Mid(); mid > 0 {
			price = mid
		}
		if pf, verr := valuer.Value(ctx, price); verr != nil {
			log.Warn().Err(verr).Msg("portfolio valuation failed")
		} else {
			log.Info().
				Float64("price", price).
				Float64("base_qty", pf.BaseQuantity).
				Float64("quote_qty", pf.QuoteQuantity).
				Float64("total_quote", pf.TotalInQuote).
				Msg("health ok")
		}
		timer.Reset(interval)
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
