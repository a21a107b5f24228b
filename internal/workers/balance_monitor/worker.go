package balance_monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
)

const (
	DefaultSchedule = "@every 5m"
	sweepSchedule   = "@every 10m"
	checkTimeout    = 30 * time.Second
)

// StatusReader samples the relayer balance on every chain
type StatusReader interface {
	Status(ctx context.Context) entities.RelayerStatus
}

// Sweeper drops expired entries from an in-memory store
type Sweeper interface {
	Sweep() int
}

// Worker runs the periodic balance check and in-memory store sweeps
type Worker struct {
	status   StatusReader
	sweepers []Sweeper
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger

	mu   sync.Mutex
	last entities.RelayerStatus
}

func NewWorker(status StatusReader, schedule string, logger *zap.Logger, sweepers ...Sweeper) *Worker {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Worker{
		status:   status,
		sweepers: sweepers,
		schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:   logger,
	}
}

func (w *Worker) Start() error {
	if _, err := w.cron.AddFunc(w.schedule, w.CheckBalances); err != nil {
		return fmt.Errorf("invalid balance check schedule %q: %w", w.schedule, err)
	}

	if len(w.sweepers) > 0 {
		if _, err := w.cron.AddFunc(sweepSchedule, w.sweep); err != nil {
			return err
		}
	}

	w.cron.Start()
	w.logger.Info("Balance monitor started", zap.String("schedule", w.schedule))

	// first sample right away so the gauges are populated before the first tick
	go w.CheckBalances()
	return nil
}

// CheckBalances samples every chain and warns on low or unreadable balances
func (w *Worker) CheckBalances() {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	status := w.status.Status(ctx)
	if !status.Configured {
		w.logger.Debug("Balance check skipped, relayer key not configured")
		return
	}

	low := 0
	for _, chain := range status.Chains {
		switch {
		case chain.Error != "":
			w.logger.Warn("Relayer balance unavailable",
				zap.String("chain", chain.ChainName),
				zap.Uint64("chain_id", chain.ChainID),
				zap.String("error", chain.Error))
		case chain.LowBalance:
			low++
			w.logger.Warn("Relayer balance low",
				zap.String("chain", chain.ChainName),
				zap.Uint64("chain_id", chain.ChainID),
				zap.String("address", status.Address),
				zap.String("balance_eth", chain.Balance))
		}
	}

	w.mu.Lock()
	w.last = status
	w.mu.Unlock()

	w.logger.Info("Relayer balances sampled",
		zap.Int("chains", len(status.Chains)),
		zap.Int("low", low))
}

// Last returns the most recent sample
func (w *Worker) Last() entities.RelayerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *Worker) sweep() {
	removed := 0
	for _, s := range w.sweepers {
		removed += s.Sweep()
	}
	if removed > 0 {
		w.logger.Debug("Swept expired entries", zap.Int("removed", removed))
	}
}

// Shutdown stops scheduling and waits for a running job up to timeout
func (w *Worker) Shutdown(timeout time.Duration) error {
	ctx := w.cron.Stop()
	select {
	case <-ctx.Done():
		w.logger.Info("Balance monitor stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("balance monitor did not stop within %s", timeout)
	}
}
