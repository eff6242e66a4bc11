package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken    string
	AuthorizedUserID int64
	BinanceAPIKey    string
	BinanceSecretKey string
	BinanceTestnet   bool

	Coins    []string
	Interval string

	LiveTrading bool
	DryRun      bool

	InitialBalance float64
	FeeRate        float64

	MinConfidence       float64
	MaxPositionNotional float64
	MaxTotalFraction    float64
	MaxPositionSize     float64
	StopLossPct         float64
	TakeProfitPct       float64
	MaxLeverage         float64
	DefaultLeverage     float64

	AnalyzeEvery time.Duration
	MonitorEvery time.Duration
	CallTimeout  time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg := &Config{
		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceSecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		BinanceTestnet:   envBool("BINANCE_TESTNET", false),

		Coins:    envList("COINS", []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}),
		Interval: envString("INTERVAL", "1h"),

		LiveTrading: envBool("LIVE_TRADING", false),
		DryRun:      envBool("DRY_RUN", false),

		InitialBalance: envFloat("INITIAL_BALANCE", 10000),
		FeeRate:        envFloat("FEE_RATE", 0.0005),

		MinConfidence:       envFloat("MIN_CONFIDENCE", 60),
		MaxPositionNotional: envFloat("MAX_POSITION_NOTIONAL", 1000),
		MaxTotalFraction:    envFloat("MAX_TOTAL_FRACTION", 0.5),
		MaxPositionSize:     envFloat("MAX_POSITION_SIZE", 0),
		StopLossPct:         envFloat("STOP_LOSS_PCT", 0.05),
		TakeProfitPct:       envFloat("TAKE_PROFIT_PCT", 0.10),
		MaxLeverage:         envFloat("MAX_LEVERAGE", 5),
		DefaultLeverage:     envFloat("DEFAULT_LEVERAGE", 1),

		AnalyzeEvery: envDuration("ANALYZE_EVERY", 2*time.Minute),
		MonitorEvery: envDuration("MONITOR_EVERY", 30*time.Second),
		CallTimeout:  envDuration("CALL_TIMEOUT", 15*time.Second),
	}

	if id := os.Getenv("AUTHORIZED_USER_ID"); id != "" {
		userID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			log.Fatal("Invalid AUTHORIZED_USER_ID")
		}
		cfg.AuthorizedUserID = userID
	}

	if cfg.LiveTrading && (cfg.BinanceAPIKey == "" || cfg.BinanceSecretKey == "") {
		log.Fatal("LIVE_TRADING requires BINANCE_API_KEY and BINANCE_SECRET_KEY")
	}

	return cfg
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil {
			return val
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.ParseBool(v); err == nil {
			return val
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if val, err := time.ParseDuration(v); err == nil {
			return val
		}
	}
	return def
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(strings.ToUpper(p)); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
