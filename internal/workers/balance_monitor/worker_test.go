package balance_monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
)

type fakeStatus struct {
	status entities.RelayerStatus
	calls  atomic.Int32
}

func (f *fakeStatus) Status(context.Context) entities.RelayerStatus {
	f.calls.Add(1)
	return f.status
}

type countingSweeper struct {
	n atomic.Int32
}

func (s *countingSweeper) Sweep() int {
	s.n.Add(1)
	return 2
}

func TestCheckBalances_WarnsOnLowAndErrors(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	status := &fakeStatus{status: entities.RelayerStatus{
		Configured: true,
		Address:    "0xaa",
		Chains: []entities.ChainBalance{
			{ChainID: 8453, ChainName: "Base", Balance: "1.2"},
			{ChainID: 10, ChainName: "OP Mainnet", Balance: "0.001", LowBalance: true},
			{ChainID: 42161, ChainName: "Arbitrum One", Error: "dial tcp: timeout"},
		},
	}}

	w := NewWorker(status, "", zap.New(core))
	w.CheckBalances()

	assert.Equal(t, 1, logs.FilterMessage("Relayer balance low").Len())
	assert.Equal(t, 1, logs.FilterMessage("Relayer balance unavailable").Len())
	assert.Len(t, w.Last().Chains, 3)
}

func TestCheckBalances_NotConfigured(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	w := NewWorker(&fakeStatus{}, "", zap.New(core))
	w.CheckBalances()

	assert.Equal(t, 1, logs.FilterMessage("Balance check skipped, relayer key not configured").Len())
	assert.False(t, w.Last().Configured)
}

func TestStart_InvalidSchedule(t *testing.T) {
	w := NewWorker(&fakeStatus{}, "not a schedule", zap.NewNop())
	assert.Error(t, w.Start())
}

func TestStartAndShutdown(t *testing.T) {
	status := &fakeStatus{}
	sweeper := &countingSweeper{}
	w := NewWorker(status, "@every 1h", zap.NewNop(), sweeper)

	require.NoError(t, w.Start())
	assert.Eventually(t, func() bool { return status.calls.Load() >= 1 }, time.Second, 10*time.Millisecond)

	w.sweep()
	assert.Equal(t, int32(1), sweeper.n.Load())

	assert.NoError(t, w.Shutdown(time.Second))
}
