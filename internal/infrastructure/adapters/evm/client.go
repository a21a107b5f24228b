package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	"github.com/ens-relayer/relayer_service/internal/domain/services/reverse"
	"github.com/ens-relayer/relayer_service/pkg/metrics"
	"github.com/ens-relayer/relayer_service/pkg/registrar"
	"github.com/ens-relayer/relayer_service/pkg/retry"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultRequestsPerSecond = 10
	defaultGasBufferPercent  = 20
	defaultDialTimeout       = 10 * time.Second
)

// Config represents EVM transport configuration
type Config struct {
	// GasLimit skips estimation when non-zero
	GasLimit          uint64
	GasBufferPercent  uint64
	RequestsPerSecond float64
	DialTimeout       time.Duration
	ReadRetry         retry.Policy
}

// Client sends registrar transactions and reads chain state on every registered chain.
// Connections are opened lazily, one per chain, and reused.
type Client struct {
	config  Config
	key     *ecdsa.PrivateKey
	address common.Address
	dial    Dialer
	retrier *retry.Retrier
	logger  *zap.Logger

	mu     sync.Mutex
	chains map[uint64]*chainConn
}

// chainConn is one chain's connection with its own breaker, limiter and send lock
type chainConn struct {
	rpc     RPC
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	// sendMu serialises nonce reads and sends so concurrent requests never reuse a nonce
	sendMu sync.Mutex
	// nextNonce is one past the last nonce this process sent; guarded by sendMu.
	// Load-balanced RPCs can answer PendingNonceAt from a node that has not seen it yet.
	nextNonce uint64
	haveNonce bool
}

// reserveNonce picks the larger of the node's pending nonce and the local counter. Caller holds sendMu.
func (cc *chainConn) reserveNonce(pending uint64) uint64 {
	if cc.haveNonce && cc.nextNonce > pending {
		return cc.nextNonce
	}
	return pending
}

// commitNonce records a nonce as used after a successful send. Caller holds sendMu.
func (cc *chainConn) commitNonce(nonce uint64) {
	cc.nextNonce = nonce + 1
	cc.haveNonce = true
}

// resetNonce drops the local counter so the next send trusts the node again. Caller holds sendMu.
func (cc *chainConn) resetNonce() {
	cc.haveNonce = false
}

var (
	_ reverse.ChainTransactor = (*Client)(nil)
	_ reverse.Credential      = (*Client)(nil)
)

// NewClient creates an EVM client. key may be nil; writes then fail with ErrNoRelayerKey.
func NewClient(config Config, key *ecdsa.PrivateKey, logger *zap.Logger) *Client {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaultRequestsPerSecond
	}
	if config.GasBufferPercent == 0 {
		config.GasBufferPercent = defaultGasBufferPercent
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = defaultDialTimeout
	}
	if config.ReadRetry.Multiplier == 0 {
		config.ReadRetry = retry.DefaultPolicy()
	}

	c := &Client{
		config:  config,
		key:     key,
		dial:    dialEthclient,
		retrier: retry.NewRetrier(config.ReadRetry, logger),
		logger:  logger,
		chains:  make(map[uint64]*chainConn),
	}
	if key != nil {
		c.address = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c
}

// ParsePrivateKey parses a hex private key with or without the 0x prefix
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid relayer private key: %w", err)
	}
	return key, nil
}

// Configured reports whether a relayer key is loaded
func (c *Client) Configured() bool {
	return c.key != nil
}

// Address returns the relayer account address
func (c *Client) Address() common.Address {
	return c.address
}

// SendRegistrarCall builds, signs and broadcasts a setNameForAddrWithSignature transaction.
// The send itself is never retried; a second send could land twice.
func (c *Client) SendRegistrarCall(ctx context.Context, chain entities.ChainConfig, call entities.RegistrarCall) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, ErrNoRelayerKey
	}

	data, err := registrar.PackSetNameForAddrWithSignature(call.Addr, call.Name, call.CoinTypes, call.SignatureExpiry, call.Signature)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode registrar call: %w", err)
	}

	conn, err := c.conn(ctx, chain)
	if err != nil {
		return common.Hash{}, err
	}

	conn.sendMu.Lock()
	defer conn.sendMu.Unlock()

	tx, err := c.buildTransaction(ctx, chain, conn, call.Registrar, data)
	if err != nil {
		return common.Hash{}, err
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(new(big.Int).SetUint64(chain.ChainID)), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	_, err = c.execute(ctx, conn, func() (interface{}, error) {
		return nil, conn.rpc.SendTransaction(ctx, signed)
	})
	if err != nil {
		// The transaction may or may not have reached the mempool; let the node decide next time.
		conn.resetNonce()
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	conn.commitNonce(signed.Nonce())

	c.logger.Info("Transaction sent",
		zap.Uint64("chain_id", chain.ChainID),
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("nonce", signed.Nonce()),
		zap.Uint64("gas", signed.Gas()))
	return signed.Hash(), nil
}

func (c *Client) buildTransaction(ctx context.Context, chain entities.ChainConfig, conn *chainConn, to common.Address, data []byte) (*types.Transaction, error) {
	pending, err := read(ctx, c, conn, "eth_getTransactionCount", func(ctx context.Context) (uint64, error) {
		return conn.rpc.PendingNonceAt(ctx, c.address)
	})
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}
	nonce := conn.reserveNonce(pending)

	tip, err := read(ctx, c, conn, "eth_maxPriorityFeePerGas", func(ctx context.Context) (*big.Int, error) {
		return conn.rpc.SuggestGasTipCap(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("suggest gas tip: %w", err)
	}

	head, err := read(ctx, c, conn, "eth_getBlockByNumber", func(ctx context.Context) (*types.Header, error) {
		return conn.rpc.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("get latest header: %w", err)
	}

	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}
	// Leave room for two full blocks of base fee growth.
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(baseFee, big.NewInt(2)))

	gas := c.config.GasLimit
	if gas == 0 {
		estimated, err := read(ctx, c, conn, "eth_estimateGas", func(ctx context.Context) (uint64, error) {
			return conn.rpc.EstimateGas(ctx, ethereum.CallMsg{From: c.address, To: &to, Data: data})
		})
		if err != nil {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
		gas = estimated + estimated*c.config.GasBufferPercent/100
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(chain.ChainID),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Data:      data,
	}), nil
}

// TransactionReceipt returns ethereum.NotFound until the transaction is included
func (c *Client) TransactionReceipt(ctx context.Context, chain entities.ChainConfig, hash common.Hash) (*types.Receipt, error) {
	conn, err := c.conn(ctx, chain)
	if err != nil {
		return nil, err
	}
	return read(ctx, c, conn, "eth_getTransactionReceipt", func(ctx context.Context) (*types.Receipt, error) {
		return conn.rpc.TransactionReceipt(ctx, hash)
	})
}

// BalanceAt returns the relayer's native balance in wei
func (c *Client) BalanceAt(ctx context.Context, chain entities.ChainConfig) (*big.Int, error) {
	if c.key == nil {
		return nil, ErrNoRelayerKey
	}
	conn, err := c.conn(ctx, chain)
	if err != nil {
		return nil, err
	}
	return read(ctx, c, conn, "eth_getBalance", func(ctx context.Context) (*big.Int, error) {
		return conn.rpc.BalanceAt(ctx, c.address, nil)
	})
}

// VerifyChain checks the endpoint's chain id and returns the registrar's advertised coin type
func (c *Client) VerifyChain(ctx context.Context, chain entities.ChainConfig, registrarAddr common.Address) (uint64, error) {
	conn, err := c.conn(ctx, chain)
	if err != nil {
		return 0, err
	}

	remoteID, err := read(ctx, c, conn, "eth_chainId", func(ctx context.Context) (*big.Int, error) {
		return conn.rpc.ChainID(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("get chain id: %w", err)
	}
	if !remoteID.IsUint64() || remoteID.Uint64() != chain.ChainID {
		return 0, fmt.Errorf("%w: configured %d, endpoint reports %s", ErrChainIDMismatch, chain.ChainID, remoteID)
	}

	a, err := registrar.ABI()
	if err != nil {
		return 0, err
	}
	input, err := a.Pack(registrar.MethodCoinType)
	if err != nil {
		return 0, err
	}

	output, err := read(ctx, c, conn, "eth_call", func(ctx context.Context) ([]byte, error) {
		return conn.rpc.CallContract(ctx, ethereum.CallMsg{To: &registrarAddr, Data: input}, nil)
	})
	if err != nil {
		return 0, fmt.Errorf("call registrar coinType: %w", err)
	}

	values, err := a.Unpack(registrar.MethodCoinType, output)
	if err != nil || len(values) != 1 {
		return 0, fmt.Errorf("decode registrar coinType: %w", errors.Join(err, ErrUnexpectedOutput))
	}
	coinType, ok := values[0].(*big.Int)
	if !ok || !coinType.IsUint64() {
		return 0, ErrUnexpectedOutput
	}
	return coinType.Uint64(), nil
}

// ErrUnexpectedOutput is returned when a contract call decodes to an unexpected shape
var ErrUnexpectedOutput = errors.New("unexpected contract output")

// Close closes every open connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, conn := range c.chains {
		conn.rpc.Close()
		delete(c.chains, id)
	}
	return nil
}

func (c *Client) conn(ctx context.Context, chain entities.ChainConfig) (*chainConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.chains[chain.ChainID]; ok {
		return conn, nil
	}
	if chain.RPCURL == "" {
		return nil, fmt.Errorf("%w for chain %d", ErrNoRPCURL, chain.ChainID)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
	defer cancel()
	rpc, err := c.dial(dialCtx, chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s rpc: %w", chain.Name, err)
	}

	burst := int(c.config.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	conn := &chainConn{
		rpc:     rpc,
		breaker: c.newBreaker(chain),
		limiter: rate.NewLimiter(rate.Limit(c.config.RequestsPerSecond), burst),
	}
	c.chains[chain.ChainID] = conn
	c.logger.Debug("Opened RPC connection",
		zap.Uint64("chain_id", chain.ChainID),
		zap.String("chain", chain.Name))
	return conn, nil
}

func (c *Client) newBreaker(chain entities.ChainConfig) *gobreaker.CircuitBreaker {
	label := chain.Slug
	if label == "" {
		label = chain.Name
	}
	metrics.RPCCircuitState.WithLabelValues(label).Set(float64(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rpc-" + label,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: isCallerError,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			metrics.RPCCircuitState.WithLabelValues(label).Set(float64(to))
			c.logger.Warn("RPC circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// execute runs fn behind the chain's rate limiter and circuit breaker
func (c *Client) execute(ctx context.Context, conn *chainConn, fn func() (interface{}, error)) (interface{}, error) {
	if err := conn.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return conn.breaker.Execute(fn)
}

// read runs an idempotent call with retries, each attempt passing through execute
func read[T any](ctx context.Context, c *Client, conn *chainConn, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	return retry.DoWithResult(ctx, c.retrier, name, func(ctx context.Context) (T, error) {
		var zero T
		out, err := c.execute(ctx, conn, func() (interface{}, error) {
			v, err := fn(ctx)
			return v, err
		})
		if err != nil {
			return zero, err
		}
		v, _ := out.(T)
		return v, nil
	})
}
