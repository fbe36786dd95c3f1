package restapi

import (
	"sakura_marketplace/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

type connectRequest struct {
	Wallet string `json:"wallet"`
}

type switchNetworkRequest struct {
	ChainID uint64 `json:"chainId"`
}

type connectResponse struct {
	Account string               `json:"account"`
	Session entity.WalletSession `json:"session"`
}

// Connect authorizes the requested wallet kind.
func (h *Handler) Connect(c *gin.Context) {
	var req connectRequest
	if !h.bind(c, "connect", &req) {
		return
	}
	kind, err := entity.ParseWalletKind(req.Wallet)
	if err != nil {
		h.badRequest(c, "connect", "Unknown wallet. Choose MetaMask, OKX Wallet or Bitget Wallet.", err)
		return
	}

	account, err := h.deps.Session.Connect(c.Request.Context(), kind)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, connectResponse{Account: account, Session: h.deps.Session.Session()})
}

func (h *Handler) Disconnect(c *gin.Context) {
	h.deps.Session.Disconnect()
	ok(c, h.deps.Session.Session())
}

func (h *Handler) Session(c *gin.Context) {
	ok(c, h.deps.Session.Session())
}

func (h *Handler) SwitchNetwork(c *gin.Context) {
	var req switchNetworkRequest
	if !h.bind(c, "switch network", &req) {
		return
	}
	if err := h.deps.Session.SwitchNetwork(c.Request.Context(), req.ChainID); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, h.deps.Session.Session())
}
