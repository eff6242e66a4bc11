package exchange

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamStaleConnDetection(t *testing.T) {
	s := NewPriceStream(false)
	defer s.Close()

	first := &websocket.Conn{}
	second := &websocket.Conn{}

	s.conn = first
	assert.False(t, s.stale(first))
	// a loop started for the first connection must exit once it is replaced
	s.conn = second
	assert.True(t, s.stale(first))
	assert.False(t, s.stale(second))

	s.conn = nil
	assert.True(t, s.stale(second))
}

func TestStreamSubscribeWithoutConnection(t *testing.T) {
	s := NewPriceStream(false)
	defer s.Close()

	err := s.Subscribe("BTCUSDT", func(PriceUpdate) {})
	require.Error(t, err)

	// the failed subscription must not leave a handler behind
	s.subMu.RLock()
	_, ok := s.handlers["BTCUSDT"]
	s.subMu.RUnlock()
	assert.False(t, ok)
}

func TestStreamDispatchRoutesMarkPrice(t *testing.T) {
	s := NewPriceStream(false)
	defer s.Close()

	var got PriceUpdate
	s.subMu.Lock()
	s.handlers["BTCUSDT"] = func(u PriceUpdate) { got = u }
	s.subMu.Unlock()

	s.dispatch([]byte(`{"e":"markPriceUpdate","s":"BTCUSDT","p":"43123.45","E":1700000000000}`))

	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.InDelta(t, 43123.45, got.Price, 1e-9)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), got.Time)
}

func TestStreamDispatchIgnoresOtherEvents(t *testing.T) {
	s := NewPriceStream(false)
	defer s.Close()

	called := false
	s.subMu.Lock()
	s.handlers["BTCUSDT"] = func(PriceUpdate) { called = true }
	s.subMu.Unlock()

	s.dispatch([]byte(`{"e":"aggTrade","s":"BTCUSDT","p":"43123.45"}`))
	s.dispatch([]byte(`{"result":null,"id":1}`))
	s.dispatch([]byte(`{"e":"markPriceUpdate","s":"ETHUSDT","p":"2200"}`))

	assert.False(t, called)
}
