package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sher1096/ai-trading-game-enhanced/internal/models"
)

func TestSupervisorSingleFlight(t *testing.T) {
	s := NewSupervisor()

	require.True(t, s.TryAcquire("BTCUSDT"))
	assert.False(t, s.TryAcquire("BTCUSDT"))

	// other coins are independent
	assert.True(t, s.TryAcquire("ETHUSDT"))

	s.Release("BTCUSDT", models.Signal{Action: models.ActionBuy, Confidence: 80})
	assert.True(t, s.TryAcquire("BTCUSDT"))
}

func TestSupervisorLastSignal(t *testing.T) {
	s := NewSupervisor()

	_, _, ok := s.LastSignal("BTCUSDT")
	assert.False(t, ok)

	require.True(t, s.TryAcquire("BTCUSDT"))
	s.Release("BTCUSDT", models.Signal{Action: models.ActionSell, Confidence: 62, Reason: "down"})

	sig, at, ok := s.LastSignal("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, models.ActionSell, sig.Action)
	assert.InDelta(t, 62, sig.Confidence, 1e-9)
	assert.False(t, at.IsZero())
}

func TestSupervisorDeregisterDropsState(t *testing.T) {
	s := NewSupervisor()

	require.True(t, s.TryAcquire("BTCUSDT"))
	s.Release("BTCUSDT", models.Signal{Action: models.ActionBuy, Confidence: 80})
	_, _, ok := s.LastSignal("BTCUSDT")
	require.True(t, ok)

	s.Deregister("BTCUSDT")
	_, _, ok = s.LastSignal("BTCUSDT")
	assert.False(t, ok)

	// re-registration starts from a clean slate
	assert.True(t, s.TryAcquire("BTCUSDT"))
}

func TestSupervisorConcurrentAcquire(t *testing.T) {
	s := NewSupervisor()

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryAcquire("BTCUSDT") {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, acquired)
}
