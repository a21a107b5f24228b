package reverse

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	ens "github.com/benny-conn/go-ens"
	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	domainerrors "github.com/ens-relayer/relayer_service/internal/domain/errors"
	"github.com/ens-relayer/relayer_service/internal/domain/services/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
)

// requiredFields is the field list the missing-field message always names
var requiredFields = []string{"addr", "name", "coinTypes", "signatureExpiry", "signature"}

// Validator gates set-reverse requests before any network activity
type Validator struct {
	registry    *registry.Registry
	validate    *validator.Validate
	now         func() time.Time
	strictNames bool
}

// ValidatorOption customises a Validator
type ValidatorOption func(*Validator)

// WithClock replaces the wall clock used for the expiry check
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

// WithStrictNames rejects names that are not already ENS-normalised
func WithStrictNames(strict bool) ValidatorOption {
	return func(v *Validator) { v.strictNames = strict }
}

// NewValidator creates a request validator backed by the chain registry
func NewValidator(reg *registry.Registry, opts ...ValidatorOption) *Validator {
	v := &Validator{
		registry: reg,
		validate: newStructValidator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func newStructValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// Validate runs the checks in order and stops at the first failure:
// fields present, coin types supported, expiry in the future, signature is hex.
func (v *Validator) Validate(body entities.SetReverseBody) (*entities.ReverseSetRequest, error) {
	if err := v.checkFields(body); err != nil {
		return nil, err
	}

	coinTypes := body.CoinTypeValues()
	if err := v.checkCoinTypes(coinTypes); err != nil {
		return nil, err
	}

	expiry := uint64(body.SignatureExpiry)
	if err := v.checkExpiry(expiry); err != nil {
		return nil, err
	}

	signature, err := decodeSignature(body.Signature)
	if err != nil {
		return nil, err
	}

	return &entities.ReverseSetRequest{
		TargetAddress:   common.HexToAddress(body.Addr),
		Name:            body.Name,
		CoinTypes:       coinTypes,
		SignatureExpiry: expiry,
		Signature:       signature,
	}, nil
}

func (v *Validator) checkFields(body entities.SetReverseBody) error {
	err := v.validate.Struct(body)
	if err == nil {
		return v.checkName(body.Name)
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domainerrors.ValidationError(domainerrors.CodeValidation, "", err.Error())
	}

	var missing []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		}
	}
	if len(missing) > 0 {
		return domainerrors.ValidationError(domainerrors.CodeMissingField, missing[0],
			"Missing required fields: "+strings.Join(requiredFields, ", ")).
			WithDetails(map[string]interface{}{"fields": missing})
	}

	fe := verrs[0]
	if fe.Tag() == "eth_addr" {
		return domainerrors.ValidationError(domainerrors.CodeInvalidAddress, fe.Field(), "Invalid address")
	}
	return domainerrors.ValidationError(domainerrors.CodeValidation, fe.Field(),
		fmt.Sprintf("Invalid %s", fe.Field()))
}

func (v *Validator) checkName(name string) error {
	if !v.strictNames {
		return nil
	}
	normalised, err := ens.NormaliseDomain(name)
	if err != nil || normalised != name {
		return domainerrors.ValidationError(domainerrors.CodeInvalidName, "name", "Name is not normalized")
	}
	return nil
}

func (v *Validator) checkCoinTypes(coinTypes []uint64) error {
	if len(coinTypes) == 0 {
		return domainerrors.ValidationError(domainerrors.CodeEmptyCoinTypes, "coinTypes",
			"coinTypes must be a non-empty array")
	}

	unsupported := v.registry.Unsupported(coinTypes)
	if len(unsupported) == 0 {
		return nil
	}

	names := make([]string, len(unsupported))
	for i, ct := range unsupported {
		names[i] = strconv.FormatUint(ct, 10)
	}
	return domainerrors.ValidationError(domainerrors.CodeUnsupportedCoins, "coinTypes",
		"Unsupported coin types: "+strings.Join(names, ", ")).
		WithDetails(map[string]interface{}{"unsupportedCoinTypes": unsupported})
}

func (v *Validator) checkExpiry(expiry uint64) error {
	now := v.now().Unix()
	if now < 0 || expiry <= uint64(now) {
		return domainerrors.ValidationError(domainerrors.CodeSignatureExpired, "signatureExpiry",
			"Signature has expired")
	}
	return nil
}

// decodeSignature only checks the hex encoding; the bytes are forwarded verbatim.
// Odd-length hex is rejected: the value is a bytes argument and must be whole bytes.
func decodeSignature(signature string) ([]byte, error) {
	raw, err := hexutil.Decode(signature)
	if err != nil || len(raw) == 0 {
		return nil, domainerrors.ValidationError(domainerrors.CodeInvalidSignature, "signature",
			"Invalid hex string")
	}
	return raw, nil
}
