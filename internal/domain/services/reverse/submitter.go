package reverse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	"github.com/ens-relayer/relayer_service/internal/domain/services/registry"
	"github.com/ens-relayer/relayer_service/pkg/logger"
	"github.com/ens-relayer/relayer_service/pkg/metrics"
	"github.com/ens-relayer/relayer_service/pkg/security"
	"github.com/ens-relayer/relayer_service/pkg/tracing"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	// ErrChainNotFound is reported for a coin type the registry cannot resolve
	ErrChainNotFound = errors.New("chain not found")

	// ErrTransactionReverted is reported when the receipt carries a failed status
	ErrTransactionReverted = errors.New("transaction reverted")

	// ErrConfirmationTimeout is reported when no receipt arrives within the chain's wait
	ErrConfirmationTimeout = errors.New("timed out waiting for transaction receipt")
)

const (
	unknownChainName = "Unknown"

	DefaultConfirmationTimeout = 60 * time.Second
	DefaultBroadcastTimeout    = 15 * time.Second
	DefaultPollInterval        = 2 * time.Second
)

// ChainTransactor is the per-chain RPC transport holding the relayer credential
type ChainTransactor interface {
	// SendRegistrarCall signs and broadcasts one registrar transaction and returns its hash
	SendRegistrarCall(ctx context.Context, chain entities.ChainConfig, call entities.RegistrarCall) (common.Hash, error)
	// TransactionReceipt returns ethereum.NotFound while the transaction is not yet included
	TransactionReceipt(ctx context.Context, chain entities.ChainConfig, hash common.Hash) (*types.Receipt, error)
}

// RegistrarAddresses holds the partition default registrar contracts
type RegistrarAddresses struct {
	Mainnet common.Address
	Testnet common.Address
}

// For returns the registrar a chain's transactions are sent to
func (r RegistrarAddresses) For(chain entities.ChainConfig) common.Address {
	if chain.RegistrarAddress != (common.Address{}) {
		return chain.RegistrarAddress
	}
	if chain.IsTestnet {
		return r.Testnet
	}
	return r.Mainnet
}

// ForPartition returns the default registrar of a partition
func (r RegistrarAddresses) ForPartition(p entities.NetworkPartition) common.Address {
	if p == entities.PartitionTestnet {
		return r.Testnet
	}
	return r.Mainnet
}

// SubmitterConfig holds the per-chain waits
type SubmitterConfig struct {
	BroadcastTimeout    time.Duration
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
}

// Submitter runs one chain's attempt: build, broadcast, await inclusion, classify.
// Each call makes at most one submission and never retries it.
type Submitter struct {
	registry   *registry.Registry
	transactor ChainTransactor
	registrars RegistrarAddresses
	cfg        SubmitterConfig
	logger     *logger.Logger
}

// NewSubmitter creates a chain submitter
func NewSubmitter(reg *registry.Registry, transactor ChainTransactor, registrars RegistrarAddresses, cfg SubmitterConfig, log *logger.Logger) *Submitter {
	if cfg.BroadcastTimeout <= 0 {
		cfg.BroadcastTimeout = DefaultBroadcastTimeout
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = DefaultConfirmationTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Submitter{
		registry:   reg,
		transactor: transactor,
		registrars: registrars,
		cfg:        cfg,
		logger:     log,
	}
}

// ConfirmationTimeout returns the inclusion wait applied to a chain
func (s *Submitter) ConfirmationTimeout(chain entities.ChainConfig) time.Duration {
	if chain.ConfirmationTimeout > 0 {
		return chain.ConfirmationTimeout
	}
	return s.cfg.ConfirmationTimeout
}

// MaxWait is the longest a single attempt can take across all registered chains
func (s *Submitter) MaxWait() time.Duration {
	longest := s.cfg.ConfirmationTimeout
	for _, chain := range s.registry.AllChains(entities.PartitionAll) {
		if t := s.ConfirmationTimeout(chain); t > longest {
			longest = t
		}
	}
	return s.cfg.BroadcastTimeout + longest
}

// Chain resolves a coin type against the registry
func (s *Submitter) Chain(coinType uint64) (entities.ChainConfig, bool) {
	return s.registry.LookupByCoinType(coinType)
}

// Submit performs the attempt for one coin type. It always returns a terminal result.
func (s *Submitter) Submit(ctx context.Context, req *entities.ReverseSetRequest, coinType uint64) entities.ChainResult {
	chain, ok := s.Chain(coinType)
	if !ok {
		s.logger.Warn("Coin type did not resolve to a chain", "coin_type", coinType)
		metrics.ObserveChainSubmission(unknownChainName, string(entities.ChainStatusFailed), 0)
		return entities.ChainResult{
			ChainID:   0,
			ChainName: unknownChainName,
			CoinType:  coinType,
			Status:    entities.ChainStatusFailed,
			Error:     ErrChainNotFound.Error(),
		}
	}

	ctx, span := tracing.GetTracer("reverse").Start(ctx, "reverse.submit_chain")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("chain.id", int64(chain.ChainID)),
		attribute.String("chain.name", chain.Name),
		attribute.Int64("chain.coin_type", int64(coinType)),
	)

	metrics.InflightSubmissions.Inc()
	defer metrics.InflightSubmissions.Dec()

	log := s.logger.With("chain_id", chain.ChainID, "chain", chain.Name, "coin_type", coinType)
	result := entities.ChainResult{
		ChainID:   chain.ChainID,
		ChainName: chain.Name,
		CoinType:  coinType,
		Status:    entities.ChainStatusPending,
	}

	call := entities.RegistrarCall{
		Registrar:       s.registrars.For(chain),
		Addr:            req.TargetAddress,
		Name:            req.Name,
		CoinTypes:       req.CoinTypes,
		SignatureExpiry: req.SignatureExpiry,
		Signature:       req.Signature,
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.BroadcastTimeout)
	hash, err := s.transactor.SendRegistrarCall(sendCtx, chain, call)
	cancel()
	if err != nil {
		log.Error("Failed to broadcast registrar transaction", "error", security.RedactURLs(err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "broadcast failed")
		return s.finish(result, entities.ChainStatusFailed, err, 0)
	}

	// The hash stays authoritative from here on, whatever the wait reports.
	result.TransactionHash = hash.Hex()
	span.SetAttributes(attribute.String("tx.hash", result.TransactionHash))
	log.Info("Registrar transaction broadcast", "tx_hash", result.TransactionHash)

	started := time.Now()
	receipt, err := s.awaitReceipt(ctx, chain, hash)
	elapsed := time.Since(started)
	if err != nil {
		log.Warn("Registrar transaction not confirmed", "tx_hash", result.TransactionHash,
			"error", security.RedactURLs(err.Error()), "waited", elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirmation failed")
		return s.finish(result, entities.ChainStatusFailed, err, 0)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		log.Warn("Registrar transaction reverted", "tx_hash", result.TransactionHash,
			"block", receipt.BlockNumber)
		span.SetStatus(codes.Error, "reverted")
		return s.finish(result, entities.ChainStatusFailed, ErrTransactionReverted, elapsed)
	}

	log.Info("Registrar transaction confirmed", "tx_hash", result.TransactionHash,
		"block", receipt.BlockNumber, "gas_used", receipt.GasUsed)
	return s.finish(result, entities.ChainStatusConfirmed, nil, elapsed)
}

func (s *Submitter) finish(result entities.ChainResult, status entities.ChainStatus, cause error, elapsed time.Duration) entities.ChainResult {
	if !result.Status.CanTransitionTo(status) {
		return result
	}
	result.Status = status
	if cause != nil {
		result.Error = security.RedactURLs(cause.Error())
	}
	metrics.ObserveChainSubmission(result.ChainName, string(status), elapsed)
	return result
}

// awaitReceipt polls until the receipt arrives or the chain's confirmation timeout passes.
// Receipt lookups that fail for reasons other than "not yet included" end the wait.
func (s *Submitter) awaitReceipt(ctx context.Context, chain entities.ChainConfig, hash common.Hash) (*types.Receipt, error) {
	timeout := s.ConfirmationTimeout(chain)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.transactor.TransactionReceipt(ctx, chain, hash)
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s", ErrConfirmationTimeout, timeout)
			}
			return nil, err
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s", ErrConfirmationTimeout, timeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
