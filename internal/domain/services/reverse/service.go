package reverse

import (
	"context"
	"math"
	"time"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	domainerrors "github.com/ens-relayer/relayer_service/internal/domain/errors"
	"github.com/ens-relayer/relayer_service/internal/domain/services/registry"
	"github.com/ens-relayer/relayer_service/pkg/logger"
	"github.com/ens-relayer/relayer_service/pkg/security"
	"github.com/ens-relayer/relayer_service/pkg/tracing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel/attribute"
)

// MsgRelayerNotConfigured is the error reported when no relayer key is loaded
const MsgRelayerNotConfigured = "Relayer private key not configured"

// Credential reports whether the relayer key is loaded
type Credential interface {
	Configured() bool
	Address() common.Address
}

// InflightGuard prevents the same signature being relayed twice at once.
// Acquire fails with an error matching domainerrors.ErrConflict when the key is held.
type InflightGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// SubmissionLimiter throttles set-reverse requests per target address
type SubmissionLimiter interface {
	Allow(ctx context.Context, address string) (allowed bool, retryAfter time.Duration, err error)
}

// ServiceConfig holds the facade settings
type ServiceConfig struct {
	// LockTTL bounds how long an in-flight guard is held if release never runs
	LockTTL time.Duration
	// SignatureTTL is the default expiry window for generated signature messages
	SignatureTTL time.Duration
}

// Service is the set-reverse facade: credential check, validation, duplicate guard, fan-out
type Service struct {
	registry    *registry.Registry
	validator   *Validator
	broadcaster *Broadcaster
	registrars  RegistrarAddresses
	credential  Credential
	guard       InflightGuard
	limiter     SubmissionLimiter
	cfg         ServiceConfig
	now         func() time.Time
	logger      *logger.Logger
}

// NewService creates the reverse record service. guard and limiter may be nil.
func NewService(
	reg *registry.Registry,
	validator *Validator,
	broadcaster *Broadcaster,
	registrars RegistrarAddresses,
	credential Credential,
	guard InflightGuard,
	limiter SubmissionLimiter,
	cfg ServiceConfig,
	log *logger.Logger,
) *Service {
	if cfg.SignatureTTL <= 0 {
		cfg.SignatureTTL = time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultBroadcastTimeout + DefaultConfirmationTimeout
	}
	return &Service{
		registry:    reg,
		validator:   validator,
		broadcaster: broadcaster,
		registrars:  registrars,
		credential:  credential,
		guard:       guard,
		limiter:     limiter,
		cfg:         cfg,
		now:         validator.now,
		logger:      log,
	}
}

// Configured reports whether set-reverse can be served at all
func (s *Service) Configured() bool {
	return s.credential != nil && s.credential.Configured()
}

// SetReverse validates the body and relays it to every selected chain.
// Per-chain failures are reported in the response; only request-level problems return an error.
func (s *Service) SetReverse(ctx context.Context, body entities.SetReverseBody) (*entities.AggregateResponse, error) {
	if !s.Configured() {
		return nil, domainerrors.ConfigurationError(MsgRelayerNotConfigured)
	}

	req, err := s.validator.Validate(body)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.GetTracer("reverse").Start(ctx, "reverse.set_reverse")
	defer span.End()
	span.SetAttributes(
		attribute.String("reverse.address", req.TargetAddress.Hex()),
		attribute.Int("reverse.chains", len(req.CoinTypes)),
	)

	if err := s.checkLimit(ctx, req.TargetAddress); err != nil {
		return nil, err
	}

	key := InflightKey(req.Signature)
	release, err := s.acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	s.logger.Info("Relaying reverse record",
		"address", req.TargetAddress.Hex(),
		"name", req.Name,
		"coin_types", req.CoinTypes,
		"signature", security.MaskSignature(body.Signature))

	resp := s.broadcaster.Broadcast(ctx, req)
	return &resp, nil
}

func (s *Service) checkLimit(ctx context.Context, addr common.Address) error {
	if s.limiter == nil {
		return nil
	}
	allowed, retryAfter, err := s.limiter.Allow(ctx, addr.Hex())
	if err != nil {
		s.logger.Warn("Address limiter unavailable, allowing request", "error", err)
		return nil
	}
	if !allowed {
		return domainerrors.RateLimitError("address", int(math.Ceil(retryAfter.Seconds())))
	}
	return nil
}

func (s *Service) acquire(ctx context.Context, key string) (func(), error) {
	noop := func() {}
	if s.guard == nil {
		return noop, nil
	}
	release, err := s.guard.Acquire(ctx, key, s.cfg.LockTTL)
	if err != nil {
		if domainerrors.IsConflict(err) {
			return nil, domainerrors.ConflictError("reverse record request",
				"this signature is already being relayed")
		}
		s.logger.Warn("In-flight guard unavailable, continuing without it", "error", err)
		return noop, nil
	}
	return release, nil
}

// InflightKey identifies a request by its signature
func InflightKey(signature []byte) string {
	return "reverse:inflight:" + crypto.Keccak256Hash(signature).Hex()
}

// Chains lists the registry entries of a partition
func (s *Service) Chains(partition entities.NetworkPartition) entities.ChainsResponse {
	chains := s.registry.AllChains(partition)
	out := make([]entities.ChainSummary, len(chains))
	for i, c := range chains {
		out[i] = c.Summary()
	}
	return entities.ChainsResponse{Chains: out}
}

// SupportedCoinTypes lists every coin type the registry can relay to
func (s *Service) SupportedCoinTypes() []entities.SupportedCoinType {
	return s.registry.SupportedCoinTypes()
}

// SignatureMessage builds the digest the user's wallet must sign for the selected chains
func (s *Service) SignatureMessage(body entities.SignatureMessageBody) (*entities.SignatureMessage, error) {
	expiry := uint64(body.SignatureExpiry)
	if expiry == 0 {
		expiry = uint64(s.now().Add(s.cfg.SignatureTTL).Unix())
	}

	req, err := s.validator.Validate(entities.SetReverseBody{
		Addr:            body.Addr,
		Name:            body.Name,
		CoinTypes:       body.CoinTypes,
		SignatureExpiry: entities.FlexUint(expiry),
		// placeholder so the signature check passes; nothing is relayed here
		Signature: "0x00",
	})
	if err != nil {
		return nil, err
	}

	registrarAddr, err := s.registrarFor(req.CoinTypes)
	if err != nil {
		return nil, err
	}

	messageHash := MessageHash(registrarAddr, req.TargetAddress, req.Name, req.CoinTypes, req.SignatureExpiry)
	return &entities.SignatureMessage{
		Registrar:       registrarAddr.Hex(),
		Addr:            req.TargetAddress.Hex(),
		Name:            req.Name,
		CoinTypes:       req.CoinTypes,
		SignatureExpiry: req.SignatureExpiry,
		MessageHash:     messageHash.Hex(),
		SignableHash:    hexutil.Encode(SignableHash(messageHash).Bytes()),
	}, nil
}

// registrarFor returns the single registrar every selected chain verifies against
func (s *Service) registrarFor(coinTypes []uint64) (common.Address, error) {
	var (
		found common.Address
		seen  bool
	)
	for _, ct := range coinTypes {
		chain, ok := s.registry.LookupByCoinType(ct)
		if !ok {
			continue
		}
		addr := s.registrars.For(chain)
		if seen && addr != found {
			return common.Address{}, domainerrors.ValidationError(domainerrors.CodeMixedNetworks, "coinTypes",
				"Selected chains use different registrar contracts; sign mainnet and testnet chains separately")
		}
		found, seen = addr, true
	}
	return found, nil
}
