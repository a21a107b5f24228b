package reverse

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// scriptedSubmitter completes each coin type after its own delay
type scriptedSubmitter struct {
	delays  map[uint64]time.Duration
	fail    map[uint64]bool
	panicOn uint64

	mu       sync.Mutex
	finished []uint64
	active   int32
	peak     int32
}

func (s *scriptedSubmitter) Submit(ctx context.Context, req *entities.ReverseSetRequest, coinType uint64) entities.ChainResult {
	n := atomic.AddInt32(&s.active, 1)
	defer atomic.AddInt32(&s.active, -1)
	for {
		peak := atomic.LoadInt32(&s.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&s.peak, peak, n) {
			break
		}
	}

	if coinType == s.panicOn && coinType != 0 {
		panic("rpc client exploded")
	}
	time.Sleep(s.delays[coinType])

	s.mu.Lock()
	s.finished = append(s.finished, coinType)
	s.mu.Unlock()

	if s.fail[coinType] {
		return entities.ChainResult{CoinType: coinType, Status: entities.ChainStatusFailed, Error: "boom"}
	}
	return entities.ChainResult{CoinType: coinType, Status: entities.ChainStatusConfirmed, TransactionHash: "0x01"}
}

func TestBroadcaster_PreservesInputOrder(t *testing.T) {
	sub := &scriptedSubmitter{delays: map[uint64]time.Duration{
		baseCoinType:     60 * time.Millisecond,
		optimismCoinType: 0,
		arbitrumCoinType: 30 * time.Millisecond,
	}}
	b := NewBroadcaster(sub, 0, testLogger())

	resp := b.Broadcast(t.Context(), validRequest(baseCoinType, optimismCoinType, arbitrumCoinType))

	require.Len(t, resp.Results, 3)
	assert.Equal(t, baseCoinType, resp.Results[0].CoinType)
	assert.Equal(t, optimismCoinType, resp.Results[1].CoinType)
	assert.Equal(t, arbitrumCoinType, resp.Results[2].CoinType)
	assert.True(t, resp.Success)

	// completion order differed from input order
	assert.Equal(t, []uint64{optimismCoinType, arbitrumCoinType, baseCoinType}, sub.finished)
}

func TestBroadcaster_FailureIsolation(t *testing.T) {
	sub := &scriptedSubmitter{fail: map[uint64]bool{baseCoinType: true}}
	b := NewBroadcaster(sub, 0, testLogger())

	resp := b.Broadcast(t.Context(), validRequest(baseCoinType, optimismCoinType))

	assert.False(t, resp.Success)
	assert.Equal(t, entities.ChainStatusFailed, resp.Results[0].Status)
	assert.Equal(t, entities.ChainStatusConfirmed, resp.Results[1].Status)
}

func TestBroadcaster_PanicIsContained(t *testing.T) {
	sub := &scriptedSubmitter{panicOn: optimismCoinType}
	b := NewBroadcaster(sub, 0, testLogger())

	resp := b.Broadcast(t.Context(), validRequest(baseCoinType, optimismCoinType))

	require.Len(t, resp.Results, 2)
	assert.Equal(t, entities.ChainStatusConfirmed, resp.Results[0].Status)
	assert.Equal(t, entities.ChainStatusFailed, resp.Results[1].Status)
	assert.Equal(t, optimismCoinType, resp.Results[1].CoinType)
	assert.Contains(t, resp.Results[1].Error, "rpc client exploded")
}

func TestBroadcaster_PanicKeepsResolvedChain(t *testing.T) {
	transactor := new(mockTransactor)
	transactor.On("SendRegistrarCall", mock.Anything, onChain(10), mock.Anything).
		Run(func(mock.Arguments) { panic("nil header") })
	transactor.On("SendRegistrarCall", mock.Anything, onChain(8453), mock.Anything).
		Return(common.HexToHash("0xaa"), nil)
	transactor.On("TransactionReceipt", mock.Anything, mock.Anything, mock.Anything).
		Return(successReceipt(), nil)

	resp := NewBroadcaster(newTestSubmitter(t, transactor), 0, testLogger()).
		Broadcast(t.Context(), validRequest(baseCoinType, optimismCoinType))

	require.Len(t, resp.Results, 2)
	assert.Equal(t, entities.ChainStatusConfirmed, resp.Results[0].Status)

	panicked := resp.Results[1]
	assert.Equal(t, entities.ChainStatusFailed, panicked.Status)
	assert.Equal(t, uint64(10), panicked.ChainID)
	assert.Equal(t, "OP Mainnet", panicked.ChainName)
	assert.Contains(t, panicked.Error, "nil header")
}

func TestBroadcaster_PanicWithoutResolverIsUnlabelled(t *testing.T) {
	resp := NewBroadcaster(&scriptedSubmitter{panicOn: baseCoinType}, 0, testLogger()).
		Broadcast(t.Context(), validRequest(baseCoinType))

	require.Len(t, resp.Results, 1)
	assert.Equal(t, uint64(0), resp.Results[0].ChainID)
	assert.Equal(t, unknownChainName, resp.Results[0].ChainName)
}

func TestBroadcaster_ConcurrencyLimit(t *testing.T) {
	delays := map[uint64]time.Duration{}
	coinTypes := []uint64{baseCoinType, optimismCoinType, arbitrumCoinType, baseSepoliaCoinType}
	for _, ct := range coinTypes {
		delays[ct] = 20 * time.Millisecond
	}

	limited := &scriptedSubmitter{delays: delays}
	NewBroadcaster(limited, 1, testLogger()).Broadcast(t.Context(), validRequest(coinTypes...))
	assert.Equal(t, int32(1), limited.peak)

	unlimited := &scriptedSubmitter{delays: delays}
	NewBroadcaster(unlimited, 0, testLogger()).Broadcast(t.Context(), validRequest(coinTypes...))
	assert.Greater(t, unlimited.peak, int32(1))
}

func TestBroadcaster_CallerCancellationDoesNotAbortChains(t *testing.T) {
	transactor := new(mockTransactor)
	hash := common.HexToHash("0x04")
	transactor.On("SendRegistrarCall", mock.Anything, onChain(8453), mock.Anything).Return(hash, nil).Once()
	transactor.On("TransactionReceipt", mock.Anything, onChain(8453), hash).Return(successReceipt(), nil).Once()

	b := NewBroadcaster(newTestSubmitter(t, transactor), 0, testLogger())

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	resp := b.Broadcast(ctx, validRequest(baseCoinType))

	assert.True(t, resp.Success)
	transactor.AssertExpectations(t)
}

func TestBroadcaster_EndToEndScenarios(t *testing.T) {
	t.Run("single mainnet chain confirmed", func(t *testing.T) {
		transactor := new(mockTransactor)
		hash := common.HexToHash("0x05")
		transactor.On("SendRegistrarCall", mock.Anything, onChain(8453), mock.Anything).Return(hash, nil).Once()
		transactor.On("TransactionReceipt", mock.Anything, onChain(8453), hash).Return(successReceipt(), nil).Once()

		resp := NewBroadcaster(newTestSubmitter(t, transactor), 0, testLogger()).
			Broadcast(t.Context(), validRequest(baseCoinType))

		assert.True(t, resp.Success)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, baseCoinType, resp.Results[0].CoinType)
		assert.Equal(t, entities.ChainStatusConfirmed, resp.Results[0].Status)
		assert.Equal(t, hash.Hex(), resp.Results[0].TransactionHash)
	})

	t.Run("unresolvable coin type beside a healthy chain", func(t *testing.T) {
		transactor := new(mockTransactor)
		hash := common.HexToHash("0x06")
		transactor.On("SendRegistrarCall", mock.Anything, onChain(10), mock.Anything).Return(hash, nil).Once()
		transactor.On("TransactionReceipt", mock.Anything, onChain(10), hash).Return(successReceipt(), nil).Once()

		resp := NewBroadcaster(newTestSubmitter(t, transactor), 0, testLogger()).
			Broadcast(t.Context(), validRequest(999, optimismCoinType))

		assert.False(t, resp.Success)
		require.Len(t, resp.Results, 2)
		assert.Equal(t, uint64(0), resp.Results[0].ChainID)
		assert.Equal(t, entities.ChainStatusFailed, resp.Results[0].Status)
		assert.Equal(t, "chain not found", resp.Results[0].Error)
		assert.Equal(t, entities.ChainStatusConfirmed, resp.Results[1].Status)
	})

	t.Run("one chain fails to broadcast, the other confirms", func(t *testing.T) {
		transactor := new(mockTransactor)
		hash := common.HexToHash("0x07")
		transactor.On("SendRegistrarCall", mock.Anything, onChain(42161), mock.Anything).
			Return(common.Hash{}, errors.New("nonce too low")).Once()
		transactor.On("SendRegistrarCall", mock.Anything, onChain(8453), mock.Anything).Return(hash, nil).Once()
		transactor.On("TransactionReceipt", mock.Anything, onChain(8453), hash).Return(successReceipt(), nil).Once()

		resp := NewBroadcaster(newTestSubmitter(t, transactor), 0, testLogger()).
			Broadcast(t.Context(), validRequest(arbitrumCoinType, baseCoinType))

		assert.False(t, resp.Success)
		assert.Equal(t, "nonce too low", resp.Results[0].Error)
		assert.Equal(t, entities.ChainStatusConfirmed, resp.Results[1].Status)
	})
}
