package reverse

import (
	"context"
	"fmt"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	"github.com/ens-relayer/relayer_service/pkg/logger"
	"github.com/ens-relayer/relayer_service/pkg/metrics"
	"github.com/ens-relayer/relayer_service/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ChainSubmitter runs one chain's attempt and always returns a terminal result
type ChainSubmitter interface {
	Submit(ctx context.Context, req *entities.ReverseSetRequest, coinType uint64) entities.ChainResult
}

// ChainResolver is implemented by submitters that can name a chain without running an attempt.
// Broadcaster uses it to label results whose attempt panicked.
type ChainResolver interface {
	Chain(coinType uint64) (entities.ChainConfig, bool)
}

// Broadcaster fans a request out to every selected chain and waits for all of them
type Broadcaster struct {
	submitter      ChainSubmitter
	maxConcurrency int
	logger         *logger.Logger
}

// NewBroadcaster creates a fan-out broadcaster. maxConcurrency <= 0 runs every chain at once.
func NewBroadcaster(submitter ChainSubmitter, maxConcurrency int, log *logger.Logger) *Broadcaster {
	return &Broadcaster{
		submitter:      submitter,
		maxConcurrency: maxConcurrency,
		logger:         log,
	}
}

// Broadcast submits to every coin type concurrently. A failure on one chain never
// cancels another; results come back in request order, not completion order.
func (b *Broadcaster) Broadcast(ctx context.Context, req *entities.ReverseSetRequest) entities.AggregateResponse {
	// Submissions already on the wire outlive the caller.
	ctx = context.WithoutCancel(ctx)

	ctx, span := tracing.GetTracer("reverse").Start(ctx, "reverse.broadcast")
	defer span.End()
	span.SetAttributes(attribute.Int("chains.count", len(req.CoinTypes)))

	results := make([]entities.ChainResult, len(req.CoinTypes))

	var g errgroup.Group
	if b.maxConcurrency > 0 {
		g.SetLimit(b.maxConcurrency)
	}
	for i, coinType := range req.CoinTypes {
		g.Go(func() error {
			results[i] = b.submit(ctx, req, coinType)
			return nil
		})
	}
	_ = g.Wait()

	resp := Aggregate(results)
	confirmed := CountConfirmed(results)
	metrics.ObserveBroadcast(confirmed, len(results))
	span.SetAttributes(attribute.Int("chains.confirmed", confirmed))

	b.logger.Info("Broadcast finished",
		"address", req.TargetAddress.Hex(),
		"chains", len(results),
		"confirmed", confirmed,
		"success", resp.Success)
	return resp
}

// submit isolates a panicking submitter so the other chains still report
func (b *Broadcaster) submit(ctx context.Context, req *entities.ReverseSetRequest, coinType uint64) (result entities.ChainResult) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Chain submission panicked", "coin_type", coinType, "panic", r)
			result = entities.ChainResult{
				ChainName: unknownChainName,
				CoinType:  coinType,
				Status:    entities.ChainStatusFailed,
				Error:     fmt.Sprintf("internal error: %v", r),
			}
			if resolver, ok := b.submitter.(ChainResolver); ok {
				if chain, found := resolver.Chain(coinType); found {
					result.ChainID = chain.ChainID
					result.ChainName = chain.Name
				}
			}
		}
	}()
	return b.submitter.Submit(ctx, req, coinType)
}
