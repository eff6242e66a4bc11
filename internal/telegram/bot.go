package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/sher1096/ai-trading-game-enhanced/internal/engine"
	"github.com/sher1096/ai-trading-game-enhanced/internal/models"
)

// Bot is the operator channel: it announces trades and answers status
// commands. Only the configured chat ID may talk to it.
type Bot struct {
	bot          *tele.Bot
	engine       *engine.Engine
	authorizedID int64
	startTime    time.Time
}

func NewBot(token string, authorizedID int64, eng *engine.Engine) (*Bot, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	bot := &Bot{
		bot:          b,
		engine:       eng,
		authorizedID: authorizedID,
		startTime:    time.Now(),
	}
	bot.setupHandlers()
	return bot, nil
}

func (b *Bot) Start() {
	log.Println("📱 Telegram bot started")
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

var (
	btnStartTrading = tele.Btn{Text: "▶️ Start trading", Unique: "start_trading"}
	btnStopTrading  = tele.Btn{Text: "⏸️ Stop trading", Unique: "stop_trading"}
	btnPortfolio    = tele.Btn{Text: "💼 Portfolio", Unique: "portfolio"}
	btnSignals      = tele.Btn{Text: "📊 Signals", Unique: "signals"}
	btnBack         = tele.Btn{Text: "🔙 Back", Unique: "back"}
)

func (b *Bot) setupHandlers() {
	b.bot.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender().ID != b.authorizedID {
				return c.Send("⛔ Unauthorized")
			}
			return next(c)
		}
	})

	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/portfolio", b.handlePortfolio)
	b.bot.Handle("/signals", b.handleSignals)

	b.bot.Handle(&btnStartTrading, b.handleStartTrading)
	b.bot.Handle(&btnStopTrading, b.handleStopTrading)
	b.bot.Handle(&btnPortfolio, b.handlePortfolio)
	b.bot.Handle(&btnSignals, b.handleSignals)
	b.bot.Handle(&btnBack, b.handleStart)
}

func (b *Bot) handleStart(c tele.Context) error {
	menu := &tele.ReplyMarkup{}

	startBtn := btnStartTrading
	status := "⏸️ Stopped"
	if b.engine.IsRunning() {
		startBtn = btnStopTrading
		status = "▶️ Running"
	}

	menu.Inline(
		menu.Row(startBtn),
		menu.Row(btnPortfolio, btnSignals),
	)

	msg := fmt.Sprintf("🤖 *Signal fusion trader*\n\n🔄 Status: %s\n⏱ Up since: %s\n\nPick an action:",
		status, b.startTime.Format("2006-01-02 15:04"))
	return c.Send(msg, menu, tele.ModeMarkdown)
}

func (b *Bot) handleStartTrading(c tele.Context) error {
	b.engine.Start()
	return b.handleStart(c)
}

func (b *Bot) handleStopTrading(c tele.Context) error {
	b.engine.Stop()
	return b.handleStart(c)
}

func (b *Bot) handlePortfolio(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	snap := b.engine.Snapshot(ctx)

	var sb strings.Builder
	fmt.Fprintf(&sb, "💼 *Portfolio*\n\n")
	fmt.Fprintf(&sb, "💵 Cash: %.2f USDT\n", snap.Cash)
	fmt.Fprintf(&sb, "📈 Unrealized P&L: %+.2f USDT\n", snap.UnrealizedPnL)
	fmt.Fprintf(&sb, "🏦 Realized P&L: %+.2f USDT\n", snap.RealizedPnL)
	fmt.Fprintf(&sb, "💰 Total value: %.2f USDT\n", snap.TotalValue)

	if len(snap.Positions) == 0 {
		sb.WriteString("\nNo open positions")
	}
	for _, p := range snap.Positions {
		fmt.Fprintf(&sb, "\n%s %s | qty %.6f @ %.4f (%gx)",
			p.Coin, p.Side, p.Quantity, p.AvgEntryPrice, p.Leverage)
	}

	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(btnBack))
	return c.Send(sb.String(), menu, tele.ModeMarkdown)
}

func (b *Bot) handleSignals(c tele.Context) error {
	var sb strings.Builder
	sb.WriteString("📊 *Latest signals*\n")

	any := false
	for _, coin := range b.engine.Coins() {
		sig, at, ok := b.engine.Supervisor().LastSignal(coin)
		if !ok {
			continue
		}
		any = true
		fmt.Fprintf(&sb, "\n%s: %s (%.0f) at %s\n_%s_\n",
			coin, sig.Action, sig.Confidence, at.Format("15:04:05"), sig.Reason)
	}
	if !any {
		sb.WriteString("\nNo evaluations yet")
	}

	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(btnBack))
	return c.Send(sb.String(), menu, tele.ModeMarkdown)
}

// NotifyTrade implements the executor's notifier hook.
func (b *Bot) NotifyTrade(trade models.Trade, cash float64) {
	closed := (trade.Side == models.SideLong && trade.Action == models.ActionSell) ||
		(trade.Side == models.SideShort && trade.Action == models.ActionBuy)

	var msg string
	if closed {
		msg = fmt.Sprintf("🎯 *Closed* %s %s\nqty %.6f @ %.4f\nP&L: %+.2f USDT\n💵 Cash: %.2f USDT",
			trade.Side, trade.Coin, trade.Quantity, trade.Price, trade.RealizedPnL, cash)
	} else {
		msg = fmt.Sprintf("✅ *Opened* %s %s\nqty %.6f @ %.4f (%gx)\n💵 Cash: %.2f USDT",
			trade.Side, trade.Coin, trade.Quantity, trade.Price, trade.Leverage, cash)
	}
	b.send(msg)
}

// NotifyAnalysis forwards an evaluation summary line.
func (b *Bot) NotifyAnalysis(summary string) {
	b.send("📊 " + summary)
}

func (b *Bot) send(msg string) {
	_, err := b.bot.Send(tele.ChatID(b.authorizedID), msg, tele.ModeMarkdown)
	if err != nil {
		log.Printf("⚠️ Telegram send failed: %v", err)
	}
}
