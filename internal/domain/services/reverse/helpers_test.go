package reverse

import (
	"context"
	"testing"
	"time"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	"github.com/ens-relayer/relayer_service/internal/domain/services/registry"
	"github.com/ens-relayer/relayer_service/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	baseCoinType        = registry.ChainIDToCoinType(8453)
	optimismCoinType    = registry.ChainIDToCoinType(10)
	arbitrumCoinType    = registry.ChainIDToCoinType(42161)
	baseSepoliaCoinType = registry.ChainIDToCoinType(84532)

	testnetRegistrar = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	targetAddress    = common.HexToAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72")
)

type mockTransactor struct {
	mock.Mock
}

func (m *mockTransactor) SendRegistrarCall(ctx context.Context, chain entities.ChainConfig, call entities.RegistrarCall) (common.Hash, error) {
	args := m.Called(ctx, chain, call)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *mockTransactor) TransactionReceipt(ctx context.Context, chain entities.ChainConfig, hash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, chain, hash)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}

type staticCredential struct {
	configured bool
}

func (c staticCredential) Configured() bool        { return c.configured }
func (c staticCredential) Address() common.Address { return common.HexToAddress("0x1") }

func testLogger() *logger.Logger {
	return logger.New("debug", "test")
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.New(registry.DefaultChains())
	require.NoError(t, err)
	return r
}

func testRegistrars() RegistrarAddresses {
	return RegistrarAddresses{
		Mainnet: common.HexToAddress("0x0000000000D8e504002cC26E3Ec46D81971C1664"),
		Testnet: testnetRegistrar,
	}
}

func fastSubmitterConfig() SubmitterConfig {
	return SubmitterConfig{
		BroadcastTimeout:    time.Second,
		ConfirmationTimeout: 200 * time.Millisecond,
		PollInterval:        10 * time.Millisecond,
	}
}

func onChain(chainID uint64) interface{} {
	return mock.MatchedBy(func(c entities.ChainConfig) bool { return c.ChainID == chainID })
}

func validRequest(coinTypes ...uint64) *entities.ReverseSetRequest {
	return &entities.ReverseSetRequest{
		TargetAddress:   targetAddress,
		Name:            "alice.eth",
		CoinTypes:       coinTypes,
		SignatureExpiry: uint64(time.Now().Add(time.Hour).Unix()),
		Signature:       []byte{0xde, 0xad, 0xbe, 0xef},
	}
}

func successReceipt() *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}
}
