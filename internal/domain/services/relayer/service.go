package relayer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	"github.com/ens-relayer/relayer_service/internal/domain/services/registry"
	"github.com/ens-relayer/relayer_service/pkg/logger"
	"github.com/ens-relayer/relayer_service/pkg/metrics"
	"github.com/ens-relayer/relayer_service/pkg/security"
)

const (
	weiDecimals            = 18
	DefaultBalanceTimeout  = 10 * time.Second
	DefaultLowBalanceLimit = "0.01"
)

// BalanceReader reads the relayer's native balance on a chain
type BalanceReader interface {
	Configured() bool
	Address() common.Address
	BalanceAt(ctx context.Context, chain entities.ChainConfig) (*big.Int, error)
}

// Service reports the relayer account across every configured chain
type Service struct {
	registry  *registry.Registry
	reader    BalanceReader
	threshold decimal.Decimal
	timeout   time.Duration
	logger    *logger.Logger
}

// NewService parses the low balance threshold in ETH
func NewService(reg *registry.Registry, reader BalanceReader, lowBalanceETH string, timeout time.Duration, log *logger.Logger) (*Service, error) {
	if lowBalanceETH == "" {
		lowBalanceETH = DefaultLowBalanceLimit
	}
	threshold, err := decimal.NewFromString(lowBalanceETH)
	if err != nil {
		return nil, fmt.Errorf("invalid low balance threshold %q: %w", lowBalanceETH, err)
	}
	if threshold.IsNegative() {
		return nil, fmt.Errorf("low balance threshold must not be negative")
	}
	if timeout <= 0 {
		timeout = DefaultBalanceTimeout
	}
	return &Service{
		registry:  reg,
		reader:    reader,
		threshold: threshold,
		timeout:   timeout,
		logger:    log,
	}, nil
}

// Threshold returns the low balance limit in ETH
func (s *Service) Threshold() decimal.Decimal {
	return s.threshold
}

// Status reads every chain in parallel. A failing chain is reported with its
// error and never fails the whole call.
func (s *Service) Status(ctx context.Context) entities.RelayerStatus {
	status := entities.RelayerStatus{
		Configured: s.reader.Configured(),
		Chains:     []entities.ChainBalance{},
	}
	if !status.Configured {
		return status
	}
	status.Address = s.reader.Address().Hex()

	chains := s.registry.AllChains(entities.PartitionAll)
	balances := make([]entities.ChainBalance, len(chains))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var g errgroup.Group
	for i, chain := range chains {
		g.Go(func() error {
			balances[i] = s.chainBalance(ctx, chain)
			return nil
		})
	}
	_ = g.Wait()

	status.Chains = balances
	return status
}

func (s *Service) chainBalance(ctx context.Context, chain entities.ChainConfig) entities.ChainBalance {
	out := entities.ChainBalance{
		ChainID:   chain.ChainID,
		ChainName: chain.Name,
		CoinType:  chain.CoinType,
	}

	wei, err := s.reader.BalanceAt(ctx, chain)
	if err != nil {
		out.Error = security.RedactURLs(err.Error())
		s.logger.Warn("Balance read failed", "chain", chain.Name, "error", out.Error)
		return out
	}

	eth := WeiToETH(wei)
	out.BalanceWei = wei.String()
	out.Balance = eth.String()
	out.LowBalance = eth.LessThan(s.threshold)

	metrics.RelayerBalance.WithLabelValues(chain.Slug).Set(eth.InexactFloat64())
	return out
}

// WeiToETH converts a wei amount to ETH without losing precision
func WeiToETH(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -weiDecimals)
}
