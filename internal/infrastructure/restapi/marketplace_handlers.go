package restapi

import (
	"io"

	"sakura_marketplace/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

const msgImageTooLarge = "image file is too large"

// Mint accepts a multipart form with name, description and the image file.
func (h *Handler) Mint(c *gin.Context) {
	req := entity.MintRequest{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		h.badRequest(c, "mint", "image is required", err)
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		h.badRequest(c, "mint", msgImageTooLarge, nil)
		return
	}
	req.Image, err = io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		h.badRequest(c, "mint", "Failed to read the uploaded image", err)
		return
	}
	if int64(len(req.Image)) > h.maxUploadBytes {
		h.badRequest(c, "mint", msgImageTooLarge, nil)
		return
	}
	req.FileName = header.Filename

	result, err := h.deps.Marketplace.MintNFT(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, result)
}

func (h *Handler) List(c *gin.Context) {
	var req entity.ListRequest
	if !h.bind(c, "list", &req) {
		return
	}
	result, err := h.deps.Marketplace.ListNFT(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, result)
}

func (h *Handler) Buy(c *gin.Context) {
	var req entity.BuyRequest
	if !h.bind(c, "buy", &req) {
		return
	}
	result, err := h.deps.Marketplace.BuyNFT(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, result)
}

func (h *Handler) MakeOffer(c *gin.Context) {
	var req entity.OfferRequest
	if !h.bind(c, "make offer", &req) {
		return
	}
	result, err := h.deps.Marketplace.MakeOffer(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, result)
}

func (h *Handler) AcceptOffer(c *gin.Context) {
	var req entity.AcceptOfferRequest
	if !h.bind(c, "accept offer", &req) {
		return
	}
	result, err := h.deps.Marketplace.AcceptOffer(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, result)
}

func (h *Handler) CancelOffer(c *gin.Context) {
	var req entity.CancelOfferRequest
	if !h.bind(c, "cancel offer", &req) {
		return
	}
	result, err := h.deps.Marketplace.CancelOffer(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, result)
}
