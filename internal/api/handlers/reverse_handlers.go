package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	domainerrors "github.com/ens-relayer/relayer_service/internal/domain/errors"
	"github.com/ens-relayer/relayer_service/internal/domain/services/reverse"
	"github.com/ens-relayer/relayer_service/pkg/logger"
)

// ReverseService is the set-reverse facade the handlers depend on
type ReverseService interface {
	Configured() bool
	SetReverse(ctx context.Context, body entities.SetReverseBody) (*entities.AggregateResponse, error)
	Chains(partition entities.NetworkPartition) entities.ChainsResponse
	SignatureMessage(body entities.SignatureMessageBody) (*entities.SignatureMessage, error)
	SupportedCoinTypes() []entities.SupportedCoinType
}

// ReverseHandlers serves the reverse record API
type ReverseHandlers struct {
	service ReverseService
	logger  *logger.Logger
}

// NewReverseHandlers creates the reverse record handlers
func NewReverseHandlers(service ReverseService, logger *logger.Logger) *ReverseHandlers {
	return &ReverseHandlers{
		service: service,
		logger:  logger,
	}
}

// GetChains lists the supported chains
// @Summary List supported chains
// @Tags reverse
// @Produce json
// @Param network query string false "mainnet, testnet or all"
// @Success 200 {object} entities.ChainsResponse
// @Failure 400 {object} entities.ErrorResponse
// @Router /api/chains [get]
func (h *ReverseHandlers) GetChains(c *gin.Context) {
	partition := entities.NetworkPartition(c.DefaultQuery("network", string(entities.PartitionAll)))
	if !partition.IsValid() {
		SendBadRequest(c, ErrCodeInvalidRequest, MsgInvalidNetwork)
		return
	}

	SendSuccess(c, h.service.Chains(partition))
}

// SetReverse relays a signed reverse record to every selected chain
// @Summary Set reverse records
// @Tags reverse
// @Accept json
// @Produce json
// @Param request body entities.SetReverseBody true "Signed reverse record"
// @Success 200 {object} entities.AggregateResponse
// @Failure 400 {object} entities.ErrorResponse
// @Failure 409 {object} entities.ErrorResponse
// @Failure 429 {object} entities.ErrorResponse
// @Failure 500 {object} entities.ErrorResponse
// @Router /api/set-reverse [post]
func (h *ReverseHandlers) SetReverse(c *gin.Context) {
	// credential is checked before the body is read
	if !h.service.Configured() {
		NewError(http.StatusInternalServerError, domainerrors.CodeRelayerNotReady).
			Message(reverse.MsgRelayerNotConfigured).
			Send(c)
		return
	}

	var body entities.SetReverseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		SendBadRequest(c, ErrCodeInvalidJSON, MsgInvalidJSON)
		return
	}

	resp, err := h.service.SetReverse(c.Request.Context(), body)
	if err != nil {
		h.requestLogger(c).Info("Set reverse rejected",
			"code", domainerrors.GetErrorCode(err),
			"error", err.Error())
		respondDomainError(c, err, h.service.SupportedCoinTypes)
		return
	}

	SendSuccess(c, resp)
}

// SignatureMessage returns the digest the wallet must sign
// @Summary Build signature message
// @Tags reverse
// @Accept json
// @Produce json
// @Param request body entities.SignatureMessageBody true "Reverse record to sign"
// @Success 200 {object} entities.SignatureMessage
// @Failure 400 {object} entities.ErrorResponse
// @Router /api/signature-message [post]
func (h *ReverseHandlers) SignatureMessage(c *gin.Context) {
	var body entities.SignatureMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		SendBadRequest(c, ErrCodeInvalidJSON, MsgInvalidJSON)
		return
	}

	msg, err := h.service.SignatureMessage(body)
	if err != nil {
		respondDomainError(c, err, h.service.SupportedCoinTypes)
		return
	}

	SendSuccess(c, msg)
}

func (h *ReverseHandlers) requestLogger(c *gin.Context) *logger.Logger {
	if l, ok := c.Get("logger"); ok {
		if rl, ok := l.(*logger.Logger); ok {
			return rl
		}
	}
	return h.logger
}
