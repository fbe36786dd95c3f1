package restapi

import (
	"net/http"

	"sakura_marketplace/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// priceAlertBody is the body of PUT /watchlist/:nftId/alert.
type priceAlertBody struct {
	PriceAlert string `json:"priceAlert"`
}

func (h *Handler) Profile(c *gin.Context) {
	wallet, found := h.walletParam(c, "profile")
	if !found {
		return
	}
	view, err := h.deps.Profiles.Profile(c.Request.Context(), wallet)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, view)
}

// UpdateProfile edits the connected account's own profile.
func (h *Handler) UpdateProfile(c *gin.Context) {
	const op = "update_profile"
	account, found := h.connectedAccount(c, op)
	if !found {
		return
	}
	var req entity.ProfileUpdate
	if !h.bind(c, op, &req) {
		return
	}
	saved, err := h.deps.Profiles.UpdateProfile(c.Request.Context(), account, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, saved)
}

func (h *Handler) Watchlist(c *gin.Context) {
	wallet, found := h.walletParam(c, "watchlist")
	if !found {
		return
	}
	list, err := h.deps.Profiles.Watchlist(c.Request.Context(), wallet)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, list)
}

func (h *Handler) AddToWatchlist(c *gin.Context) {
	const op = "add_watchlist"
	account, found := h.connectedAccount(c, op)
	if !found {
		return
	}
	var req entity.WatchlistRequest
	if !h.bind(c, op, &req) {
		return
	}
	entry, err := h.deps.Profiles.AddToWatchlist(c.Request.Context(), account, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, APIResponse{Data: entry})
}

func (h *Handler) RemoveFromWatchlist(c *gin.Context) {
	account, found := h.connectedAccount(c, "remove_watchlist")
	if !found {
		return
	}
	if err := h.deps.Profiles.RemoveFromWatchlist(c.Request.Context(), account, c.Param("nftId")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetPriceAlert sets or, with an empty priceAlert, clears the alert of a watched NFT.
func (h *Handler) SetPriceAlert(c *gin.Context) {
	const op = "price_alert"
	account, found := h.connectedAccount(c, op)
	if !found {
		return
	}
	var body priceAlertBody
	if !h.bind(c, op, &body) {
		return
	}
	req := entity.WatchlistRequest{NFTID: c.Param("nftId"), PriceAlert: body.PriceAlert}
	if err := h.deps.Profiles.SetPriceAlert(c.Request.Context(), account, req); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
