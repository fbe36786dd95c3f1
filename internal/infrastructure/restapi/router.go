package restapi

import (
	"net/http"
	"time"

	"sakura_marketplace/internal/infrastructure/configloader"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter builds the gin engine with the /api/v1 routes, /metrics and /healthz.
func SetupRouter(h *Handler, cfg configloader.ServerConfig, metricsHandler http.Handler) *gin.Engine {
	router := gin.Default()
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	corsCfg.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	v1 := router.Group("/api/v1")
	{
		wallet := v1.Group("/wallet")
		wallet.POST("/connect", h.Connect)
		wallet.POST("/disconnect", h.Disconnect)
		wallet.GET("/session", h.Session)
		wallet.POST("/switch-network", h.SwitchNetwork)

		nfts := v1.Group("/nfts")
		nfts.POST("/mint", h.Mint)
		nfts.POST("/list", h.List)
		nfts.POST("/buy", h.Buy)

		offers := v1.Group("/offers")
		offers.POST("", h.MakeOffer)
		offers.POST("/accept", h.AcceptOffer)
		offers.POST("/cancel", h.CancelOffer)

		v1.GET("/networks", h.Networks)
		v1.GET("/networks/stats", h.AllNetworkStats)
		v1.GET("/networks/:chainId/stats", h.NetworkStats)

		v1.GET("/activity", h.Activity)
		v1.GET("/marketplace", h.Marketplace)
		v1.GET("/analytics", h.Analytics)
		v1.GET("/leaderboard", h.Leaderboard)

		v1.GET("/notifications", h.Notifications)
		v1.POST("/notifications/read-all", h.MarkAllNotificationsRead)
		v1.POST("/notifications/:id/read", h.MarkNotificationRead)

		v1.GET("/profile", h.Profile)
		v1.PUT("/profile", h.UpdateProfile)

		watchlist := v1.Group("/watchlist")
		watchlist.GET("", h.Watchlist)
		watchlist.POST("", h.AddToWatchlist)
		watchlist.DELETE("/:nftId", h.RemoveFromWatchlist)
		watchlist.PUT("/:nftId/alert", h.SetPriceAlert)

		v1.GET("/reconciliation", h.Reconciliation)
		v1.GET("/intents/:id", h.Intent)
	}

	return router
}
