package port

import (
	"context"

	"sakura_marketplace/internal/domain/entity"
)

// MarketplaceService is the produced surface: each call runs one saga and returns its result or a *entity.WorkflowError.
type MarketplaceService interface {
	MintNFT(ctx context.Context, req entity.MintRequest) (*entity.MintResult, error)
	ListNFT(ctx context.Context, req entity.ListRequest) (*entity.ListResult, error)
	BuyNFT(ctx context.Context, req entity.BuyRequest) (*entity.BuyResult, error)
	MakeOffer(ctx context.Context, req entity.OfferRequest) (*entity.OfferResult, error)
	AcceptOffer(ctx context.Context, req entity.AcceptOfferRequest) (*entity.OfferResult, error)
	CancelOffer(ctx context.Context, req entity.CancelOfferRequest) (*entity.OfferResult, error)
}

// ReadModelService serves cached dashboard views.
type ReadModelService interface {
	ActivityFeed(ctx context.Context) ([]entity.TransactionRecord, error)
	MarketplaceListings(ctx context.Context) ([]entity.ListingRecord, error)
	Analytics(ctx context.Context) (*entity.AnalyticsSummary, error)
	Leaderboard(ctx context.Context) (*entity.Leaderboard, error)
	Notifications(ctx context.Context, walletAddress string) ([]entity.NotificationRecord, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, walletAddress string) error
	// Invalidate drops the views that depend on tables.
	Invalidate(tables ...string)
}

// ProfileService serves profile pages and the per-wallet watchlist.
type ProfileService interface {
	Profile(ctx context.Context, walletAddress string) (*entity.ProfileView, error)
	UpdateProfile(ctx context.Context, walletAddress string, update entity.ProfileUpdate) (*entity.Profile, error)
	Watchlist(ctx context.Context, walletAddress string) ([]entity.WatchlistEntry, error)
	AddToWatchlist(ctx context.Context, walletAddress string, req entity.WatchlistRequest) (*entity.WatchlistEntry, error)
	RemoveFromWatchlist(ctx context.Context, walletAddress, nftID string) error
	SetPriceAlert(ctx context.Context, walletAddress string, req entity.WatchlistRequest) error
}

// NetworkStatsService reports live chain statistics.
type NetworkStatsService interface {
	NetworkStats(ctx context.Context, chainID uint64) (entity.NetworkStats, error)
	// AllNetworkStats queries every registry network concurrently, omitting unreachable ones.
	AllNetworkStats(ctx context.Context) []entity.NetworkStats
}

// ReconciliationQueue accepts off-chain writes that must eventually succeed.
type ReconciliationQueue interface {
	Enqueue(description string, write func(ctx context.Context) error)
	Pending() int
	Jobs() []entity.ReconciliationJob
}

// IntentTracker exposes recently run transaction intents.
type IntentTracker interface {
	Intent(id string) (entity.TransactionIntent, bool)
}
