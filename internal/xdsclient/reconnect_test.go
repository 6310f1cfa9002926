package xdsclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDelayExponentialWithinJitterBounds(t *testing.T) {
	cfg := &Config{InitialReconnectDelay: 500 * time.Millisecond, MaxReconnectDelay: 30 * time.Second}
	rm := NewReconnectManager(cfg)

	d0 := rm.NextDelay()
	assert.InDelta(t, float64(500*time.Millisecond), float64(d0), float64(500*time.Millisecond)*0.2+1)

	d1 := rm.NextDelay()
	assert.InDelta(t, float64(time.Second), float64(d1), float64(time.Second)*0.2+1)
}

func TestNextDelayCapsAtMax(t *testing.T) {
	cfg := &Config{InitialReconnectDelay: 500 * time.Millisecond, MaxReconnectDelay: 2 * time.Second}
	rm := NewReconnectManager(cfg)

	var last time.Duration
	for i := 0; i < 10; i++ {
		last = rm.NextDelay()
	}
	assert.LessOrEqual(t, last, 2*time.Second+time.Duration(float64(2*time.Second)*0.2)+1)
}

func TestResetClearsReconnectCount(t *testing.T) {
	cfg := &Config{InitialReconnectDelay: 500 * time.Millisecond, MaxReconnectDelay: 30 * time.Second}
	rm := NewReconnectManager(cfg)
	rm.NextDelay()
	rm.NextDelay()
	require.Equal(t, 2, rm.GetReconnectCount())

	rm.Reset()
	assert.Equal(t, 0, rm.GetReconnectCount())
}

func TestWaitWithContextRespectsCancellation(t *testing.T) {
	cfg := &Config{InitialReconnectDelay: 10 * time.Second, MaxReconnectDelay: 30 * time.Second}
	rm := NewReconnectManager(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rm.WaitWithContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamErrorHint(t *testing.T) {
	assert.Equal(t, "check the control plane logs for more information",
		streamErrorHint(fmt.Errorf("rpc error: authentication failure")))
	assert.Equal(t, "is the DNS server reachable?",
		streamErrorHint(fmt.Errorf("dial tcp: Temporary failure in name resolution")))
	assert.Empty(t, streamErrorHint(fmt.Errorf("connection reset by peer")))
}
