package exchange

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"github.com/sher1096/ai-trading-game-enhanced/internal/models"
)

// Client is the market-data and order surface the trading cycle talks to.
// Implementations wrap a real exchange; paper trading is handled above
// this layer by the ledger, so there is no emulator client here.
type Client interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Bar, error)
	GetPrice(ctx context.Context, symbol string) (float64, error)
	GetBalance(ctx context.Context) (float64, error)
	GetPositions(ctx context.Context) ([]models.Position, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	PlaceMarketOrder(ctx context.Context, symbol string, side models.Side, reduceOnly bool, quantity float64) (*OrderResult, error)
}

// OrderResult is the exchange acknowledgement for a placed order.
type OrderResult struct {
	OrderID     int64
	Symbol      string
	Status      string
	AvgPrice    float64
	ExecutedQty float64
}

// FuturesClient talks to Binance USDT-margined futures. Market-data reads
// are retried with backoff; order placement is never retried because a
// timed-out order may still have filled.
type FuturesClient struct {
	client *futures.Client
}

func NewFuturesClient(apiKey, secretKey string, testnet bool) *FuturesClient {
	if testnet {
		futures.UseTestnet = true
	}
	return &FuturesClient{client: futures.NewClient(apiKey, secretKey)}
}

func (c *FuturesClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Bar, error) {
	var klines []*futures.Kline
	err := withRetry(ctx, func() error {
		var err error
		klines, err = c.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
	}

	bars := make([]models.Bar, len(klines))
	for i, k := range klines {
		bars[i] = models.Bar{
			Timestamp: time.Unix(k.OpenTime/1000, 0).UTC(),
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
		}
	}
	return bars, nil
}

func (c *FuturesClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	var prices []*futures.SymbolPrice
	err := withRetry(ctx, func() error {
		var err error
		prices, err = c.client.NewListPricesService().Symbol(symbol).Do(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("price %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price data for %s", symbol)
	}
	return parseFloat(prices[0].Price), nil
}

func (c *FuturesClient) GetBalance(ctx context.Context) (float64, error) {
	var account *futures.Account
	err := withRetry(ctx, func() error {
		var err error
		account, err = c.client.NewGetAccountService().Do(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("account: %w", err)
	}

	for _, asset := range account.Assets {
		if asset.Asset == "USDT" {
			return parseFloat(asset.WalletBalance), nil
		}
	}
	return 0, nil
}

func (c *FuturesClient) GetPositions(ctx context.Context) ([]models.Position, error) {
	var risks []*futures.PositionRisk
	err := withRetry(ctx, func() error {
		var err error
		risks, err = c.client.NewGetPositionRiskService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("position risk: %w", err)
	}

	var positions []models.Position
	for _, r := range risks {
		amt := parseFloat(r.PositionAmt)
		if amt == 0 {
			continue
		}
		side := models.SideLong
		if amt < 0 {
			side = models.SideShort
		}
		positions = append(positions, models.Position{
			ID:            r.Symbol,
			Coin:          r.Symbol,
			Side:          side,
			Quantity:      math.Abs(amt),
			AvgEntryPrice: parseFloat(r.EntryPrice),
			Leverage:      parseFloat(r.Leverage),
		})
	}
	return positions, nil
}

func (c *FuturesClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := c.client.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("set leverage %s %dx: %w", symbol, leverage, err)
	}
	return nil
}

// PlaceMarketOrder submits a market order. No retry on error: the outcome
// of a failed submit is unknown and a blind resend can double the fill.
func (c *FuturesClient) PlaceMarketOrder(ctx context.Context, symbol string, side models.Side, reduceOnly bool, quantity float64) (*OrderResult, error) {
	orderSide := futures.SideTypeBuy
	if side == models.SideShort {
		orderSide = futures.SideTypeSell
	}
	if reduceOnly {
		// Closing flips the direction of the submitted order.
		if orderSide == futures.SideTypeBuy {
			orderSide = futures.SideTypeSell
		} else {
			orderSide = futures.SideTypeBuy
		}
	}

	svc := c.client.NewCreateOrderService().
		Symbol(symbol).
		Side(orderSide).
		Type(futures.OrderTypeMarket).
		Quantity(strconv.FormatFloat(quantity, 'f', -1, 64))
	if reduceOnly {
		svc = svc.ReduceOnly(true)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("market order %s %s %.8f: %w", symbol, orderSide, quantity, err)
	}

	return &OrderResult{
		OrderID:     resp.OrderID,
		Symbol:      resp.Symbol,
		Status:      string(resp.Status),
		AvgPrice:    parseFloat(resp.AvgPrice),
		ExecutedQty: parseFloat(resp.ExecutedQuantity),
	}, nil
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
