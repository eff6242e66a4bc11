package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sher1096/ai-trading-game-enhanced/config"
	"github.com/sher1096/ai-trading-game-enhanced/internal/analysis"
	"github.com/sher1096/ai-trading-game-enhanced/internal/engine"
	"github.com/sher1096/ai-trading-game-enhanced/internal/exchange"
	"github.com/sher1096/ai-trading-game-enhanced/internal/executor"
	"github.com/sher1096/ai-trading-game-enhanced/internal/portfolio"
	"github.com/sher1096/ai-trading-game-enhanced/internal/risk"
	"github.com/sher1096/ai-trading-game-enhanced/internal/telegram"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("🚀 Starting signal fusion trader...")

	cfg := config.Load()

	client := exchange.NewFuturesClient(cfg.BinanceAPIKey, cfg.BinanceSecretKey, cfg.BinanceTestnet)

	analysisCfg := analysis.DefaultConfig()
	analyzer := analysis.NewAnalyzer(analysisCfg)

	ledger := portfolio.NewLedger(cfg.InitialBalance, cfg.FeeRate)

	riskMgr := risk.NewManager(risk.Config{
		MinConfidence:       cfg.MinConfidence,
		MaxPositionNotional: cfg.MaxPositionNotional,
		MaxTotalFraction:    cfg.MaxTotalFraction,
		MaxPositionSize:     cfg.MaxPositionSize,
		StopLossPct:         cfg.StopLossPct,
		TakeProfitPct:       cfg.TakeProfitPct,
		BalanceReserve:      0.05,
	})

	exec := executor.New(ledger, riskMgr, client, nil, executor.Options{
		Live:            cfg.LiveTrading,
		DryRun:          cfg.DryRun,
		MaxLeverage:     cfg.MaxLeverage,
		DefaultLeverage: cfg.DefaultLeverage,
	})

	var trendTimeframes []string
	trendBars := 0
	if ts := analysisCfg.TrendStrength; ts != nil {
		trendTimeframes = ts.Timeframes
		trendBars = ts.BarsCount + 1
	}

	eng := engine.New(client, analyzer, exec, ledger, cfg.Coins, engine.Options{
		Interval:        cfg.Interval,
		AnalyzeEvery:    cfg.AnalyzeEvery,
		MonitorEvery:    cfg.MonitorEvery,
		CallTimeout:     cfg.CallTimeout,
		TrendBars:       trendBars,
		TrendTimeframes: trendTimeframes,
	})

	// Streamed mark prices keep the stop/target sweep off the REST API.
	// Polling takes over whenever the stream is down.
	stream := exchange.NewPriceStream(cfg.BinanceTestnet)
	streamCtx, streamCancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := stream.Connect(streamCtx); err != nil {
		log.Printf("⚠️ Price stream unavailable, falling back to polling: %v", err)
	} else {
		for _, coin := range cfg.Coins {
			symbol := coin
			if err := stream.Subscribe(symbol, func(u exchange.PriceUpdate) {
				eng.UpdateMarkPrice(symbol, u.Price)
			}); err != nil {
				log.Printf("⚠️ %s: mark price subscription failed: %v", symbol, err)
			}
		}
	}
	streamCancel()

	var bot *telegram.Bot
	if cfg.TelegramToken != "" && cfg.AuthorizedUserID != 0 {
		var err error
		bot, err = telegram.NewBot(cfg.TelegramToken, cfg.AuthorizedUserID, eng)
		if err != nil {
			log.Fatalf("Failed to create Telegram bot: %v", err)
		}
		eng.SetAnalysisCallback(bot.NotifyAnalysis)
		exec.SetNotifier(bot)
		go bot.Start()
		log.Println("📱 Telegram bot is ready. Use /start to begin trading.")
	} else {
		// Headless mode runs the loops immediately.
		eng.Start()
	}

	mode := "simulated"
	switch {
	case cfg.DryRun:
		mode = "dry run"
	case cfg.LiveTrading:
		mode = "LIVE"
	}
	log.Printf("✅ All systems initialized | mode: %s | coins: %v | interval: %s",
		mode, cfg.Coins, cfg.Interval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("🛑 Shutting down...")
	eng.Stop()
	stream.Close()
	if bot != nil {
		bot.Stop()
	}
	log.Println("👋 Goodbye!")
}
