package di

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ens-relayer/relayer_service/internal/api/middleware"
	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	"github.com/ens-relayer/relayer_service/internal/domain/services/registry"
	"github.com/ens-relayer/relayer_service/internal/domain/services/relayer"
	"github.com/ens-relayer/relayer_service/internal/domain/services/reverse"
	"github.com/ens-relayer/relayer_service/internal/infrastructure/adapters/evm"
	"github.com/ens-relayer/relayer_service/internal/infrastructure/cache"
	"github.com/ens-relayer/relayer_service/internal/infrastructure/config"
	"github.com/ens-relayer/relayer_service/internal/workers/balance_monitor"
	"github.com/ens-relayer/relayer_service/pkg/health"
	"github.com/ens-relayer/relayer_service/pkg/idempotency"
	"github.com/ens-relayer/relayer_service/pkg/logger"
	"github.com/ens-relayer/relayer_service/pkg/ratelimit"
	"github.com/ens-relayer/relayer_service/pkg/retry"
	"github.com/ens-relayer/relayer_service/pkg/security"
)

// Container holds the process-wide dependencies
type Container struct {
	Config *config.Config
	Logger *logger.Logger
	ZapLog *zap.Logger

	Registry   *registry.Registry
	Registrars reverse.RegistrarAddresses
	EVMClient  *evm.Client

	// Redis is nil when redis is disabled; the in-memory fallbacks are used instead
	Redis         cache.RedisClient
	InflightGuard reverse.InflightGuard
	ResponseStore idempotency.Store
	Sweepers      []balance_monitor.Sweeper

	SubmissionLimiter *ratelimit.TieredLimiter
	IPRateLimiter     *middleware.IPRateLimiter

	Submitter      *reverse.Submitter
	ReverseService *reverse.Service
	RelayerService *relayer.Service

	Liveness  *health.HealthChecker
	Readiness *health.HealthChecker
}

// NewContainer wires every component from configuration
func NewContainer(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	zapLog := log.Zap()

	reg, err := BuildRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build chain registry: %w", err)
	}

	registrars, err := BuildRegistrars(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve registrar addresses: %w", err)
	}

	provider, err := BuildSecretsProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets provider: %w", err)
	}
	key, err := LoadRelayerKey(ctx, cfg, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to load relayer key: %w", err)
	}

	evmClient := evm.NewClient(evm.Config{
		GasLimit:          cfg.Relayer.GasLimit,
		RequestsPerSecond: cfg.Relayer.RPCRequestsPerSec,
		ReadRetry:         retry.DefaultPolicy(),
	}, key, zapLog)

	if evmClient.Configured() {
		log.Info("Relayer key loaded", "address", evmClient.Address().Hex())
	} else {
		log.Warn("Relayer private key not configured; set-reverse will answer 500")
	}

	c := &Container{
		Config:     cfg,
		Logger:     log,
		ZapLog:     zapLog,
		Registry:   reg,
		Registrars: registrars,
		EVMClient:  evmClient,
		Liveness:   health.NewHealthChecker(2 * time.Second),
		Readiness:  health.NewHealthChecker(5 * time.Second),
	}

	if err := c.initStores(ctx); err != nil {
		return nil, err
	}
	if err := c.initServices(); err != nil {
		return nil, err
	}
	if err := cfg.CheckWriteTimeout(reg.Len(), c.Submitter.MaxWait()); err != nil {
		c.IPRateLimiter.Stop()
		return nil, err
	}
	c.initHealthChecks()

	log.Info("Container initialised",
		"chains", reg.Len(),
		"redis", c.Redis != nil,
		"max_concurrency", cfg.Relayer.MaxConcurrency)

	return c, nil
}

func (c *Container) initStores(ctx context.Context) error {
	var window ratelimit.Window

	if c.Config.Redis.Enabled {
		client, err := cache.NewRedisClient(&c.Config.Redis, c.ZapLog)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.Redis = client
		c.InflightGuard = cache.NewRedisLocker(client.Client(), c.ZapLog)
		c.ResponseStore = cache.NewRedisResponseStore(client)
		window = ratelimit.NewRedisWindow(client.Client())
	} else {
		responses := cache.NewMemoryResponseStore()
		c.InflightGuard = cache.NewMemoryLocker()
		c.ResponseStore = responses
		c.Sweepers = append(c.Sweepers, responses)
		window = ratelimit.NewMemoryWindow()
	}

	c.SubmissionLimiter = ratelimit.NewTieredLimiter(window, ratelimit.TieredConfig{
		GlobalLimit:   c.Config.Relayer.GlobalLimit,
		GlobalWindow:  c.Config.Relayer.GlobalWindow,
		AddressLimit:  c.Config.Relayer.PerAddressLimit,
		AddressWindow: c.Config.Relayer.PerAddressWindow,
	}, c.ZapLog)
	c.IPRateLimiter = middleware.NewIPRateLimiter(c.Config.Server.RateLimitPerMin)
	return nil
}

func (c *Container) initServices() error {
	rc := c.Config.Relayer

	c.Submitter = reverse.NewSubmitter(c.Registry, c.EVMClient, c.Registrars, reverse.SubmitterConfig{
		BroadcastTimeout:    rc.BroadcastTimeout,
		ConfirmationTimeout: rc.ConfirmationTimeout,
		PollInterval:        rc.ReceiptPollInterval,
	}, c.Logger)

	validator := reverse.NewValidator(c.Registry, reverse.WithStrictNames(rc.StrictNameNormalization))
	broadcaster := reverse.NewBroadcaster(c.Submitter, rc.MaxConcurrency, c.Logger)

	c.ReverseService = reverse.NewService(
		c.Registry,
		validator,
		broadcaster,
		c.Registrars,
		c.EVMClient,
		c.InflightGuard,
		c.SubmissionLimiter,
		reverse.ServiceConfig{
			LockTTL:      c.Submitter.MaxWait() + time.Minute,
			SignatureTTL: rc.DefaultSignatureTTL,
		},
		c.Logger,
	)

	relayerService, err := relayer.NewService(c.Registry, c.EVMClient, rc.LowBalanceThresholdETH, 0, c.Logger)
	if err != nil {
		return err
	}
	c.RelayerService = relayerService
	return nil
}

func (c *Container) initHealthChecks() {
	c.Liveness.Register("process", func(context.Context) error { return nil })

	c.Readiness.RegisterOptional("relayer_key", func(context.Context) error {
		if !c.EVMClient.Configured() {
			return errors.New(reverse.MsgRelayerNotConfigured)
		}
		return nil
	})
	if c.Redis != nil {
		c.Readiness.Register("redis", c.Redis.Ping)
	}
}

// VerifyChains probes each chain's registrar in parallel and logs mismatches.
// Best effort: it never fails startup and returns the number of healthy chains.
func (c *Container) VerifyChains(ctx context.Context) int {
	var (
		g  errgroup.Group
		ok atomic.Int32
	)
	for _, chain := range c.Registry.AllChains(entities.PartitionAll) {
		g.Go(func() error {
			registrarAddr := c.Registrars.For(chain)
			coinType, err := c.EVMClient.VerifyChain(ctx, chain, registrarAddr)
			switch {
			case err != nil:
				c.Logger.Warn("Chain verification failed",
					"chain", chain.Name,
					"chain_id", chain.ChainID,
					"error", security.RedactURLs(err.Error()))
			case coinType != chain.CoinType:
				c.Logger.Warn("Registrar coin type does not match registry",
					"chain", chain.Name,
					"registrar", registrarAddr.Hex(),
					"expected", chain.CoinType,
					"actual", coinType)
			default:
				ok.Add(1)
				c.Logger.Debug("Chain verified", "chain", chain.Name, "coin_type", coinType)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(ok.Load())
}

// Close releases the RPC connections, limiter goroutine and redis pool
func (c *Container) Close() error {
	var errs []error
	c.IPRateLimiter.Stop()
	if err := c.EVMClient.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
