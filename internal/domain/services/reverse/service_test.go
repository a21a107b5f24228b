package reverse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	domainerrors "github.com/ens-relayer/relayer_service/internal/domain/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mapGuard struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func (g *mapGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if g.err != nil {
		return nil, g.err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[key] {
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrConflict, key)
	}
	g.held[key] = true
	return func() {
		g.mu.Lock()
		delete(g.held, key)
		g.mu.Unlock()
	}, nil
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, address string) (bool, time.Duration, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Get(1).(time.Duration), args.Error(2)
}

type serviceFixture struct {
	service    *Service
	transactor *mockTransactor
	guard      *mapGuard
}

func newServiceFixture(t *testing.T, configured bool, limiter SubmissionLimiter) *serviceFixture {
	t.Helper()
	reg := testRegistry(t)
	transactor := new(mockTransactor)
	guard := &mapGuard{held: map[string]bool{}}
	validator := NewValidator(reg, WithClock(func() time.Time { return fixedNow }))
	submitter := NewSubmitter(reg, transactor, testRegistrars(), fastSubmitterConfig(), testLogger())
	broadcaster := NewBroadcaster(submitter, 0, testLogger())

	svc := NewService(reg, validator, broadcaster, testRegistrars(), staticCredential{configured: configured},
		guard, limiter, ServiceConfig{LockTTL: time.Minute, SignatureTTL: time.Hour}, testLogger())
	return &serviceFixture{service: svc, transactor: transactor, guard: guard}
}

func TestService_SetReverse_NotConfigured(t *testing.T) {
	f := newServiceFixture(t, false, nil)

	resp, err := f.service.SetReverse(t.Context(), validBody())

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, domainerrors.IsConfiguration(err))
	assert.Equal(t, "Relayer private key not configured", err.Error())
	assert.False(t, f.service.Configured())
}

func TestService_SetReverse_NotConfiguredBeatsValidation(t *testing.T) {
	f := newServiceFixture(t, false, nil)

	_, err := f.service.SetReverse(t.Context(), entities.SetReverseBody{})
	assert.True(t, domainerrors.IsConfiguration(err))
}

func TestService_SetReverse_ValidationStopsNetwork(t *testing.T) {
	f := newServiceFixture(t, true, nil)
	body := validBody()
	body.CoinTypes = []entities.FlexUint{}

	_, err := f.service.SetReverse(t.Context(), body)

	require.Error(t, err)
	assert.True(t, domainerrors.IsInvalidInput(err))
	f.transactor.AssertNotCalled(t, "SendRegistrarCall", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_SetReverse_PartialSuccess(t *testing.T) {
	f := newServiceFixture(t, true, nil)
	hash := common.HexToHash("0x08")
	f.transactor.On("SendRegistrarCall", mock.Anything, onChain(8453), mock.Anything).Return(hash, nil).Once()
	f.transactor.On("TransactionReceipt", mock.Anything, onChain(8453), hash).Return(successReceipt(), nil).Once()
	f.transactor.On("SendRegistrarCall", mock.Anything, onChain(10), mock.Anything).
		Return(common.Hash{}, errors.New("insufficient funds")).Once()

	resp, err := f.service.SetReverse(t.Context(), validBody())

	require.NoError(t, err)
	assert.False(t, resp.Success)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, entities.ChainStatusConfirmed, resp.Results[0].Status)
	assert.Equal(t, entities.ChainStatusFailed, resp.Results[1].Status)
	assert.Empty(t, f.guard.held, "guard released after broadcast")
}

func TestService_SetReverse_DuplicateInFlight(t *testing.T) {
	f := newServiceFixture(t, true, nil)
	body := validBody()
	f.guard.held[InflightKey([]byte{0xde, 0xad, 0xbe, 0xef})] = true

	_, err := f.service.SetReverse(t.Context(), body)

	require.Error(t, err)
	assert.True(t, domainerrors.IsConflict(err))
	assert.Equal(t, domainerrors.CodeConflict, domainerrors.GetErrorCode(err))
}

func TestService_SetReverse_GuardUnavailableFailsOpen(t *testing.T) {
	f := newServiceFixture(t, true, nil)
	f.guard.err = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
	hash := common.HexToHash("0x09")
	f.transactor.On("SendRegistrarCall", mock.Anything, mock.Anything, mock.Anything).Return(hash, nil)
	f.transactor.On("TransactionReceipt", mock.Anything, mock.Anything, hash).Return(successReceipt(), nil)

	resp, err := f.service.SetReverse(t.Context(), validBody())

	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestService_SetReverse_AddressLimited(t *testing.T) {
	limiter := new(mockLimiter)
	limiter.On("Allow", mock.Anything, targetAddress.Hex()).Return(false, 1500*time.Millisecond, nil).Once()
	f := newServiceFixture(t, true, limiter)

	_, err := f.service.SetReverse(t.Context(), validBody())

	require.Error(t, err)
	assert.True(t, domainerrors.IsRateLimit(err))
	assert.Equal(t, 2, domainerrors.GetErrorDetails(err)["retry_after"])
	f.transactor.AssertNotCalled(t, "SendRegistrarCall", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Chains(t *testing.T) {
	f := newServiceFixture(t, true, nil)

	all := f.service.Chains(entities.PartitionAll)
	mainnet := f.service.Chains(entities.PartitionMainnet)
	testnet := f.service.Chains(entities.PartitionTestnet)

	assert.Len(t, all.Chains, 10)
	assert.Len(t, mainnet.Chains, 5)
	assert.Len(t, testnet.Chains, 5)
	assert.Equal(t, entities.ChainSummary{ChainID: 8453, ChainName: "Base", CoinType: baseCoinType}, all.Chains[0])
	for _, c := range testnet.Chains {
		assert.True(t, c.IsTestnet)
	}
	assert.Len(t, f.service.SupportedCoinTypes(), 10)
}

func TestService_SignatureMessage(t *testing.T) {
	f := newServiceFixture(t, true, nil)

	msg, err := f.service.SignatureMessage(entities.SignatureMessageBody{
		Addr:      targetAddress.Hex(),
		Name:      "alice.eth",
		CoinTypes: []entities.FlexUint{entities.FlexUint(baseCoinType)},
	})
	require.NoError(t, err)

	expiry := uint64(fixedNow.Add(time.Hour).Unix())
	assert.Equal(t, expiry, msg.SignatureExpiry)
	assert.Equal(t, testRegistrars().Mainnet.Hex(), msg.Registrar)

	want := MessageHash(testRegistrars().Mainnet, targetAddress, "alice.eth", []uint64{baseCoinType}, expiry)
	assert.Equal(t, want.Hex(), msg.MessageHash)
	assert.Equal(t, SignableHash(want).Hex(), msg.SignableHash)
}

func TestService_SignatureMessage_SignedDigestRoundTrip(t *testing.T) {
	f := newServiceFixture(t, true, nil)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	msg, err := f.service.SignatureMessage(entities.SignatureMessageBody{
		Addr:            signer.Hex(),
		Name:            "alice.eth",
		CoinTypes:       []entities.FlexUint{entities.FlexUint(baseSepoliaCoinType)},
		SignatureExpiry: entities.FlexUint(fixedNow.Add(10 * time.Minute).Unix()),
	})
	require.NoError(t, err)
	assert.Equal(t, testnetRegistrar.Hex(), msg.Registrar)

	sig, err := crypto.Sign(common.HexToHash(msg.SignableHash).Bytes(), key)
	require.NoError(t, err)
	pub, err := crypto.SigToPub(common.HexToHash(msg.SignableHash).Bytes(), sig)
	require.NoError(t, err)
	assert.Equal(t, signer, crypto.PubkeyToAddress(*pub))
}

func TestService_SignatureMessage_MixedNetworks(t *testing.T) {
	f := newServiceFixture(t, true, nil)

	_, err := f.service.SignatureMessage(entities.SignatureMessageBody{
		Addr:      targetAddress.Hex(),
		Name:      "alice.eth",
		CoinTypes: []entities.FlexUint{entities.FlexUint(baseCoinType), entities.FlexUint(baseSepoliaCoinType)},
	})

	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeMixedNetworks, domainerrors.GetErrorCode(err))
}

func TestInflightKey(t *testing.T) {
	a := InflightKey([]byte{1, 2, 3})
	assert.Equal(t, a, InflightKey([]byte{1, 2, 3}))
	assert.NotEqual(t, a, InflightKey([]byte{1, 2, 4}))
	assert.Contains(t, a, "reverse:inflight:0x")
}
