package engine

import (
	"sync"
	"time"

	"github.com/sher1096/ai-trading-game-enhanced/internal/models"
)

// coinState is the per-instrument evaluation record. inFlight makes the
// analysis single-flight: a slow evaluation is never overlapped by the
// next tick for the same coin.
type coinState struct {
	inFlight   bool
	lastRun    time.Time
	lastSignal models.Signal
}

// Supervisor tracks evaluation state per instrument.
type Supervisor struct {
	mu    sync.Mutex
	coins map[string]*coinState
}

func NewSupervisor() *Supervisor {
	return &Supervisor{coins: make(map[string]*coinState)}
}

// TryAcquire claims the coin for evaluation. It returns false when an
// evaluation is already running, in which case the caller must skip.
func (s *Supervisor) TryAcquire(coin string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.coins[coin]
	if !ok {
		st = &coinState{}
		s.coins[coin] = st
	}
	if st.inFlight {
		return false
	}
	st.inFlight = true
	return true
}

// Release records the outcome and frees the coin for the next tick.
func (s *Supervisor) Release(coin string, sig models.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.coins[coin]; ok {
		st.inFlight = false
		st.lastRun = time.Now().UTC()
		st.lastSignal = sig
	}
}

// Deregister drops the coin's evaluation state. A deregistered coin
// stops reporting a last signal until the next TryAcquire re-registers it.
func (s *Supervisor) Deregister(coin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.coins, coin)
}

// LastSignal returns the most recent evaluation result for the coin.
func (s *Supervisor) LastSignal(coin string) (models.Signal, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.coins[coin]
	if !ok || st.lastRun.IsZero() {
		return models.Signal{}, time.Time{}, false
	}
	return st.lastSignal, st.lastRun, true
}
