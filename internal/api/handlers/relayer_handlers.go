package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
)

// RelayerStatusProvider reports the relayer account per chain
type RelayerStatusProvider interface {
	Status(ctx context.Context) entities.RelayerStatus
}

// RelayerHandlers serves relayer account endpoints
type RelayerHandlers struct {
	status RelayerStatusProvider
}

func NewRelayerHandlers(status RelayerStatusProvider) *RelayerHandlers {
	return &RelayerHandlers{status: status}
}

// GetStatus reports the relayer address and its balance on every chain
// @Summary Relayer status
// @Tags relayer
// @Produce json
// @Success 200 {object} entities.RelayerStatus
// @Router /api/relayer/status [get]
func (h *RelayerHandlers) GetStatus(c *gin.Context) {
	SendSuccess(c, h.status.Status(c.Request.Context()))
}
