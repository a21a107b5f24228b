package graceful

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ens-relayer/relayer_service/pkg/logger"
)

const DefaultTimeout = 30 * time.Second

type Shutdowner interface {
	Shutdown(timeout time.Duration) error
}

// ShutdownFunc adapts a plain function to Shutdowner
type ShutdownFunc func(timeout time.Duration) error

func (f ShutdownFunc) Shutdown(timeout time.Duration) error { return f(timeout) }

type ShutdownManager struct {
	server      *http.Server
	shutdowners []Shutdowner
	timeout     time.Duration
	logger      *logger.Logger
}

// NewShutdownManager drains server within timeout. Registered components are
// stopped after the server so in-flight broadcasts still have their clients.
func NewShutdownManager(server *http.Server, timeout time.Duration, logger *logger.Logger) *ShutdownManager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ShutdownManager{
		server:      server,
		shutdowners: make([]Shutdowner, 0),
		timeout:     timeout,
		logger:      logger,
	}
}

func (sm *ShutdownManager) Register(s Shutdowner) {
	sm.shutdowners = append(sm.shutdowners, s)
}

// WaitForShutdown blocks until SIGINT or SIGTERM
func (sm *ShutdownManager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	<-quit

	sm.Shutdown()
}

// Shutdown stops the server then the registered components in reverse order
func (sm *ShutdownManager) Shutdown() {
	sm.logger.Info("Shutting down gracefully...", "timeout", sm.timeout.String())

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.Error("Server forced shutdown", "error", err)
		}
	}

	for i := len(sm.shutdowners) - 1; i >= 0; i-- {
		if err := sm.shutdowners[i].Shutdown(sm.timeout); err != nil {
			sm.logger.Warn("Component shutdown error", "error", err)
		}
	}

	sm.logger.Info("Shutdown complete")
}
