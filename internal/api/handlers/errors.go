package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	domainerrors "github.com/ens-relayer/relayer_service/internal/domain/errors"
)

// Error codes as constants for consistent error responses across handlers
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidJSON        = "INVALID_JSON"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Error messages as constants for consistency
const (
	MsgInvalidJSON        = "Invalid JSON body"
	MsgInvalidNetwork     = "network must be one of mainnet, testnet, all"
	MsgInternalError      = "Internal server error"
	MsgServiceUnavailable = "Service temporarily unavailable"
)

// ErrorResponseBuilder provides a fluent interface for building error responses
type ErrorResponseBuilder struct {
	status    int
	code      string
	message   string
	details   map[string]interface{}
	supported []entities.SupportedCoinType
}

// NewError creates a new ErrorResponseBuilder
func NewError(status int, code string) *ErrorResponseBuilder {
	return &ErrorResponseBuilder{
		status: status,
		code:   code,
	}
}

// Message sets the error message
func (e *ErrorResponseBuilder) Message(msg string) *ErrorResponseBuilder {
	e.message = msg
	return e
}

// Detail adds a single detail to the error response
func (e *ErrorResponseBuilder) Detail(key string, value interface{}) *ErrorResponseBuilder {
	if e.details == nil {
		e.details = make(map[string]interface{})
	}
	e.details[key] = value
	return e
}

// Details sets all details at once
func (e *ErrorResponseBuilder) Details(details map[string]interface{}) *ErrorResponseBuilder {
	e.details = details
	return e
}

// SupportedCoinTypes echoes the relayable chains back to the caller
func (e *ErrorResponseBuilder) SupportedCoinTypes(supported []entities.SupportedCoinType) *ErrorResponseBuilder {
	e.supported = supported
	return e
}

// Send sends the error response
func (e *ErrorResponseBuilder) Send(c *gin.Context) {
	c.JSON(e.status, entities.ErrorResponse{
		Success:            false,
		Error:              e.message,
		Code:               e.code,
		Details:            e.details,
		SupportedCoinTypes: e.supported,
	})
}

// SendBadRequest sends a 400 Bad Request error
func SendBadRequest(c *gin.Context, code, message string) {
	NewError(http.StatusBadRequest, code).Message(message).Send(c)
}

// SendInternalError sends a 500 Internal Server Error
func SendInternalError(c *gin.Context, code, message string) {
	NewError(http.StatusInternalServerError, code).Message(message).Send(c)
}

// SendSuccess sends a 200 OK response with data
func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// statusForDomainError maps the domain taxonomy onto HTTP statuses
func statusForDomainError(err error) int {
	switch {
	case domainerrors.IsConfiguration(err):
		return http.StatusInternalServerError
	case domainerrors.IsInvalidInput(err):
		return http.StatusBadRequest
	case domainerrors.IsConflict(err):
		return http.StatusConflict
	case domainerrors.IsRateLimit(err):
		return http.StatusTooManyRequests
	case domainerrors.IsNotFound(err):
		return http.StatusNotFound
	case domainerrors.IsServiceUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError renders a service error. Unknown errors never leak their text.
func respondDomainError(c *gin.Context, err error, supported func() []entities.SupportedCoinType) {
	var de *domainerrors.DomainError
	if !errors.As(err, &de) {
		SendInternalError(c, ErrCodeInternalError, MsgInternalError)
		return
	}

	status := statusForDomainError(err)
	b := NewError(status, de.Code).Message(de.Error()).Details(de.Details)

	if de.Code == domainerrors.CodeUnsupportedCoins && supported != nil {
		b.SupportedCoinTypes(supported())
	}
	if status == http.StatusTooManyRequests {
		if secs, ok := de.Details["retry_after"].(int); ok && secs > 0 {
			c.Header("Retry-After", strconv.Itoa(secs))
		}
	}
	if status == http.StatusInternalServerError && !domainerrors.IsConfiguration(err) {
		b.Message(MsgInternalError).Details(nil)
	}

	b.Send(c)
}
