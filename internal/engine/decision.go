package engine

import (
	"fmt"
	"log"
	"sort"

	simplejson "github.com/bitly/go-simplejson"

	"github.com/sher1096/ai-trading-game-enhanced/internal/models"
)

// ParseDecisions parses an advisory payload of the form
//
//	{"BTCUSDT": {"signal": "buy_to_enter", "quantity": 0.5,
//	             "leverage": 3, "confidence": 78, "reason": "..."}}
//
// A payload that is not a JSON object is an error. A coin entry with an
// unknown signal string degrades to hold and is logged, so one bad field
// cannot take down the whole cycle.
func ParseDecisions(raw []byte) ([]models.Decision, error) {
	j, err := simplejson.NewJson(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed decision payload: %w", err)
	}
	byCoin, err := j.Map()
	if err != nil {
		return nil, fmt.Errorf("decision payload is not an object: %w", err)
	}

	coins := make([]string, 0, len(byCoin))
	for coin := range byCoin {
		coins = append(coins, coin)
	}
	sort.Strings(coins)

	decisions := make([]models.Decision, 0, len(coins))
	for _, coin := range coins {
		node := j.Get(coin)
		if _, err := node.Map(); err != nil {
			log.Printf("⚠️ %s: decision entry is not an object, treating as hold", coin)
			decisions = append(decisions, models.Decision{Coin: coin, Signal: models.SignalHold})
			continue
		}

		decisions = append(decisions, models.Decision{
			Coin:       coin,
			Signal:     normalizeSignal(coin, node.Get("signal").MustString()),
			Quantity:   node.Get("quantity").MustFloat64(),
			Leverage:   node.Get("leverage").MustFloat64(),
			Confidence: node.Get("confidence").MustFloat64(),
			Reason:     node.Get("reason").MustString(),
		})
	}
	return decisions, nil
}

func normalizeSignal(coin, s string) models.DecisionSignal {
	switch sig := models.DecisionSignal(s); sig {
	case models.SignalBuyToEnter, models.SignalSellToEnter, models.SignalClosePosition, models.SignalHold:
		return sig
	default:
		log.Printf("⚠️ %s: unknown signal %q, treating as hold", coin, s)
		return models.SignalHold
	}
}
