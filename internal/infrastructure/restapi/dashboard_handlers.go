package restapi

import (
	"net/http"
	"strconv"

	"sakura_marketplace/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

type reconciliationResponse struct {
	Pending int                        `json:"pending"`
	Jobs    []entity.ReconciliationJob `json:"jobs"`
}

// Networks lists the supported networks in registry order.
func (h *Handler) Networks(c *gin.Context) {
	ok(c, h.deps.Networks.ListNetworks())
}

func (h *Handler) NetworkStats(c *gin.Context) {
	chainID, err := strconv.ParseUint(c.Param("chainId"), 10, 64)
	if err != nil {
		h.badRequest(c, "network stats", "chainId must be a positive integer", err)
		return
	}
	stats, err := h.deps.Stats.NetworkStats(c.Request.Context(), chainID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, stats)
}

func (h *Handler) AllNetworkStats(c *gin.Context) {
	ok(c, h.deps.Stats.AllNetworkStats(c.Request.Context()))
}

func (h *Handler) Activity(c *gin.Context) {
	feed, err := h.deps.ReadModel.ActivityFeed(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, feed)
}

func (h *Handler) Marketplace(c *gin.Context) {
	listings, err := h.deps.ReadModel.MarketplaceListings(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, listings)
}

func (h *Handler) Analytics(c *gin.Context) {
	summary, err := h.deps.ReadModel.Analytics(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, summary)
}

func (h *Handler) Leaderboard(c *gin.Context) {
	board, err := h.deps.ReadModel.Leaderboard(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, board)
}

// walletParam returns the ?wallet= query value, defaulting to the connected account.
func (h *Handler) walletParam(c *gin.Context, op string) (string, bool) {
	if w := c.Query("wallet"); w != "" {
		return w, true
	}
	return h.connectedAccount(c, op)
}

// connectedAccount returns the session account, answering 400 when no wallet is connected.
func (h *Handler) connectedAccount(c *gin.Context, op string) (string, bool) {
	if s := h.deps.Session.Session(); s.IsConnected() {
		return s.Account, true
	}
	h.badRequest(c, op, msgConnectWallet, nil)
	return "", false
}

func (h *Handler) Notifications(c *gin.Context) {
	wallet, found := h.walletParam(c, "notifications")
	if !found {
		return
	}
	items, err := h.deps.ReadModel.Notifications(c.Request.Context(), wallet)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, items)
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	if err := h.deps.ReadModel.MarkNotificationRead(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	wallet, found := h.walletParam(c, "mark_all_read")
	if !found {
		return
	}
	if err := h.deps.ReadModel.MarkAllNotificationsRead(c.Request.Context(), wallet); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Reconciliation(c *gin.Context) {
	ok(c, reconciliationResponse{Pending: h.deps.Reconciler.Pending(), Jobs: h.deps.Reconciler.Jobs()})
}

// Intent reports the status of a recent workflow run.
func (h *Handler) Intent(c *gin.Context) {
	intent, found := h.deps.Intents.Intent(c.Param("id"))
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, APIError{Kind: entity.KindUnknown.String(), Message: "Intent not found"})
		return
	}
	ok(c, intent)
}
