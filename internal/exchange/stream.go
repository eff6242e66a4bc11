package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamBaseURL        = "wss://fstream.binance.com/ws"
	streamTestnetBaseURL = "wss://stream.binancefuture.com/ws"

	streamReconnectWait = 5 * time.Second
	streamPingInterval  = 30 * time.Second
	streamReadTimeout   = 60 * time.Second
	streamWriteTimeout  = 10 * time.Second
)

// PriceUpdate is one mark-price tick pushed by the exchange.
type PriceUpdate struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// PriceStream keeps a websocket open to the futures mark-price feed and
// fans ticks out to per-symbol handlers. It reconnects on its own until
// the context is cancelled.
type PriceStream struct {
	baseURL string

	connMu sync.RWMutex
	conn   *websocket.Conn

	subMu    sync.RWMutex
	handlers map[string]func(PriceUpdate)
	nextID   int

	ctx    context.Context
	cancel context.CancelFunc
}

type streamRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params,omitempty"`
	ID     int      `json:"id"`
}

type markPriceEvent struct {
	Event  string `json:"e"`
	Symbol string `json:"s"`
	Price  string `json:"p"`
	Time   int64  `json:"E"`
}

func NewPriceStream(testnet bool) *PriceStream {
	url := streamBaseURL
	if testnet {
		url = streamTestnetBaseURL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PriceStream{
		baseURL:  url,
		handlers: make(map[string]func(PriceUpdate)),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connect dials the stream endpoint and starts the read and ping loops.
func (s *PriceStream) Connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn != nil {
		return fmt.Errorf("price stream already connected")
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.baseURL, nil)
	if err != nil {
		return fmt.Errorf("dial price stream: %w", err)
	}
	s.conn = conn

	go s.readLoop(conn)
	go s.pingLoop(conn)
	return nil
}

// Subscribe registers a handler for the symbol's mark-price ticks.
func (s *PriceStream) Subscribe(symbol string, handler func(PriceUpdate)) error {
	upper := strings.ToUpper(symbol)

	s.subMu.Lock()
	if _, ok := s.handlers[upper]; ok {
		s.subMu.Unlock()
		return fmt.Errorf("already subscribed to %s", upper)
	}
	s.handlers[upper] = handler
	s.nextID++
	id := s.nextID
	s.subMu.Unlock()

	err := s.send(streamRequest{
		Method: "SUBSCRIBE",
		Params: []string{strings.ToLower(symbol) + "@markPrice"},
		ID:     id,
	})
	if err != nil {
		s.subMu.Lock()
		delete(s.handlers, upper)
		s.subMu.Unlock()
		return fmt.Errorf("subscribe %s: %w", upper, err)
	}
	return nil
}

// Close stops the loops and drops the connection.
func (s *PriceStream) Close() error {
	s.cancel()

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

func (s *PriceStream) send(req streamRequest) error {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()

	if conn == nil {
		return fmt.Errorf("price stream not connected")
	}

	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop and pingLoop are tied to the connection they were started
// with: once reconnect installs a replacement, loops from the previous
// connection exit instead of running alongside the new ones.
func (s *PriceStream) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		if s.stale(conn) {
			return
		}

		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("⚠️ Price stream read error: %v", err)
			}
			go s.reconnect()
			return
		}

		s.dispatch(data)
	}
}

func (s *PriceStream) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.stale(conn) {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("⚠️ Price stream ping failed: %v", err)
			}
		}
	}
}

// stale reports whether conn has been replaced or dropped.
func (s *PriceStream) stale(conn *websocket.Conn) bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.conn != conn
}

// reconnect tears down the dead connection, redials and resubscribes
// every registered symbol.
func (s *PriceStream) reconnect() {
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(streamReconnectWait):
		}

		if err := s.Connect(s.ctx); err != nil {
			log.Printf("⚠️ Price stream reconnect failed: %v", err)
			continue
		}

		s.subMu.RLock()
		symbols := make([]string, 0, len(s.handlers))
		for sym := range s.handlers {
			symbols = append(symbols, sym)
		}
		s.subMu.RUnlock()

		ok := true
		for _, sym := range symbols {
			s.subMu.Lock()
			s.nextID++
			id := s.nextID
			s.subMu.Unlock()
			err := s.send(streamRequest{
				Method: "SUBSCRIBE",
				Params: []string{strings.ToLower(sym) + "@markPrice"},
				ID:     id,
			})
			if err != nil {
				log.Printf("⚠️ Price stream resubscribe %s failed: %v", sym, err)
				ok = false
				break
			}
		}
		if ok {
			log.Printf("✅ Price stream reconnected (%d symbols)", len(symbols))
			return
		}
	}
}

func (s *PriceStream) dispatch(data []byte) {
	var ev markPriceEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.Event != "markPriceUpdate" {
		return
	}

	s.subMu.RLock()
	handler, ok := s.handlers[ev.Symbol]
	s.subMu.RUnlock()
	if !ok {
		return
	}

	handler(PriceUpdate{
		Symbol: ev.Symbol,
		Price:  parseFloat(ev.Price),
		Time:   time.Unix(ev.Time/1000, 0).UTC(),
	})
}
