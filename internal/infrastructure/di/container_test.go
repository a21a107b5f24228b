package di

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	"github.com/ens-relayer/relayer_service/internal/infrastructure/cache"
	"github.com/ens-relayer/relayer_service/internal/infrastructure/config"
	"github.com/ens-relayer/relayer_service/pkg/crypto"
	"github.com/ens-relayer/relayer_service/pkg/health"
	"github.com/ens-relayer/relayer_service/pkg/logger"
	"github.com/ens-relayer/relayer_service/pkg/registrar"
	"github.com/ens-relayer/relayer_service/pkg/secrets"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func boolPtr(b bool) *bool { return &b }

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{Port: 8080, RateLimitPerMin: 60},
		Relayer: config.RelayerConfig{
			SecretsProvider:        "env",
			PrivateKeySecretName:   "RELAYER_TEST_UNSET_SECRET",
			BroadcastTimeout:       15 * time.Second,
			ConfirmationTimeout:    60 * time.Second,
			ReceiptPollInterval:    2 * time.Second,
			DefaultSignatureTTL:    time.Hour,
			LowBalanceThresholdETH: "0.01",
			PerAddressLimit:        10,
			PerAddressWindow:       time.Hour,
		},
	}
}

func TestBuildRegistry_DefaultsAndOverrides(t *testing.T) {
	cfg := testConfig()
	cfg.Chains = map[string]config.ChainOverride{
		"base":         {RPCURL: "https://base.example/rpc", ConfirmationTimeout: 90 * time.Second},
		"scroll":       {Enabled: boolPtr(false)},
		"base_sepolia": {RegistrarAddress: "0x00000000000000000000000000000000000A11cE"},
	}
	cfg.ExtraChains = []config.ExtraChain{
		{Name: "Zora", Slug: "zora", ChainID: 7777777, RPCURL: "https://rpc.zora.energy"},
	}

	reg, err := BuildRegistry(cfg)
	require.NoError(t, err)
	assert.Equal(t, 10, reg.Len())

	base, ok := reg.LookupByChainID(8453)
	require.True(t, ok)
	assert.Equal(t, "https://base.example/rpc", base.RPCURL)
	assert.Equal(t, 90*time.Second, base.ConfirmationTimeout)

	_, ok = reg.LookupByChainID(534352)
	assert.False(t, ok, "disabled chain is dropped")

	sepolia, ok := reg.LookupByChainID(84532)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000A11cE"), sepolia.RegistrarAddress)

	zora, ok := reg.LookupByCoinType(0x80000000 | 7777777)
	require.True(t, ok)
	assert.Equal(t, "Zora", zora.Name)
}

func TestBuildRegistry_RejectsDuplicateExtra(t *testing.T) {
	cfg := testConfig()
	cfg.ExtraChains = []config.ExtraChain{{Name: "Base again", Slug: "base2", ChainID: 8453}}

	_, err := BuildRegistry(cfg)
	assert.Error(t, err)
}

func TestBuildRegistrars(t *testing.T) {
	cfg := testConfig()
	r, err := BuildRegistrars(cfg)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(registrar.DefaultAddress), r.Mainnet)
	assert.Equal(t, r.Mainnet, r.Testnet)

	cfg.Relayer.TestnetRegistrarAddress = "0x00000000000000000000000000000000000A11cE"
	r, err = BuildRegistrars(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, r.Mainnet, r.Testnet)

	cfg.Relayer.RegistrarAddress = "nope"
	_, err = BuildRegistrars(cfg)
	assert.Error(t, err)
}

func TestLoadRelayerKey(t *testing.T) {
	ctx := context.Background()
	provider := secrets.NewEnvProvider()

	cfg := testConfig()
	key, err := LoadRelayerKey(ctx, cfg, provider)
	require.NoError(t, err)
	assert.Nil(t, key, "missing key is not an error")

	cfg.Relayer.PrivateKey = "0x" + testKeyHex
	key, err = LoadRelayerKey(ctx, cfg, provider)
	require.NoError(t, err)
	assert.NotNil(t, key)

	encrypted, err := crypto.Encrypt(testKeyHex, "passphrase")
	require.NoError(t, err)
	cfg = testConfig()
	cfg.Relayer.PrivateKeyEncrypted = encrypted
	cfg.Relayer.EncryptionKey = "passphrase"
	key, err = LoadRelayerKey(ctx, cfg, provider)
	require.NoError(t, err)
	assert.NotNil(t, key)

	cfg = testConfig()
	cfg.Relayer.PrivateKey = "zz"
	_, err = LoadRelayerKey(ctx, cfg, provider)
	assert.Error(t, err)
}

func TestNewContainer_InMemory(t *testing.T) {
	cfg := testConfig()
	cfg.Relayer.PrivateKey = testKeyHex

	c, err := NewContainer(context.Background(), cfg, logger.NewLogger(zap.NewNop()))
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Redis)
	assert.IsType(t, &cache.MemoryLocker{}, c.InflightGuard)
	assert.IsType(t, &cache.MemoryResponseStore{}, c.ResponseStore)
	assert.Len(t, c.Sweepers, 1)
	assert.True(t, c.ReverseService.Configured())
	assert.Len(t, c.ReverseService.Chains(entities.PartitionMainnet).Chains, 5)

	status, _ := c.Readiness.Check(context.Background())
	assert.Equal(t, health.StatusHealthy, status)
}

func TestNewContainer_WithoutKeyIsDegraded(t *testing.T) {
	c, err := NewContainer(context.Background(), testConfig(), logger.NewLogger(zap.NewNop()))
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.ReverseService.Configured())
	status, _ := c.Readiness.Check(context.Background())
	assert.Equal(t, health.StatusDegraded, status)

	relayerStatus := c.RelayerService.Status(context.Background())
	assert.False(t, relayerStatus.Configured)
}

func TestNewContainer_InvalidThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.Relayer.LowBalanceThresholdETH = "lots"

	_, err := NewContainer(context.Background(), cfg, logger.NewLogger(zap.NewNop()))
	assert.Error(t, err)
}

func TestNewContainer_WriteTimeoutTooShortForSerialBroadcast(t *testing.T) {
	cfg := testConfig()
	cfg.Server.WriteTimeout = 120
	cfg.Relayer.MaxConcurrency = 1

	_, err := NewContainer(context.Background(), cfg, logger.NewLogger(zap.NewNop()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write_timeout")

	cfg.Relayer.MaxConcurrency = 0
	c, err := NewContainer(context.Background(), cfg, logger.NewLogger(zap.NewNop()))
	require.NoError(t, err)
	_ = c.Close()
}
