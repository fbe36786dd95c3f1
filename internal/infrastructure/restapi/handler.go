package restapi

import (
	"net/http"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// APIResponse wraps every successful payload.
type APIResponse struct {
	Data any `json:"data"`
}

// APIError is the body of every failed request. Message is safe to show to the user.
type APIError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Deps groups the services exposed over HTTP.
type Deps struct {
	Session     port.WalletSessionManager
	Marketplace port.MarketplaceService
	ReadModel   port.ReadModelService
	Profiles    port.ProfileService
	Stats       port.NetworkStatsService
	Networks    port.NetworkRegistry
	Reconciler  port.ReconciliationQueue
	Intents     port.IntentTracker
	Logger      port.Logger
}

// Handler serves the /api/v1 routes.
type Handler struct {
	deps           Deps
	logger         port.Logger
	maxUploadBytes int64
}

// NewHandler creates the API handler. Uploaded images larger than maxUploadBytes are rejected.
func NewHandler(deps Deps, maxUploadBytes int64) *Handler {
	return &Handler{deps: deps, logger: deps.Logger.With("component", "restapi"), maxUploadBytes: maxUploadBytes}
}

func statusFor(kind entity.ErrorKind) int {
	switch kind {
	case entity.KindValidation, entity.KindUnsupportedNetwork:
		return http.StatusBadRequest
	case entity.KindProviderNotFound:
		return http.StatusNotFound
	case entity.KindUserRejected:
		return http.StatusConflict
	case entity.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case entity.KindContractReverted:
		return http.StatusUnprocessableEntity
	case entity.KindSwitchFailed, entity.KindRPC:
		return http.StatusBadGateway
	case entity.KindConfirmationTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse{Data: data})
}

// fail writes the user-facing message for err. The raw cause is only logged.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := entity.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "kind", kind.String(), "error", err)
	} else {
		h.logger.Debug("Request rejected", "path", c.FullPath(), "kind", kind.String(), "error", err)
	}
	c.AbortWithStatusJSON(status, APIError{Kind: kind.String(), Message: entity.UserMessage(err)})
}

const msgConnectWallet = "Please connect your wallet first"

func (h *Handler) badRequest(c *gin.Context, op, reason string, cause error) {
	h.fail(c, entity.NewError(entity.KindValidation, op, reason, cause))
}

// bind decodes the JSON body into req, answering 400 on malformed input.
func (h *Handler) bind(c *gin.Context, op string, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.badRequest(c, op, "Invalid request body", err)
		return false
	}
	return true
}
