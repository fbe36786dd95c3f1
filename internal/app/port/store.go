package port

import (
	"context"
	"encoding/json"

	"sakura_marketplace/internal/domain/entity"
)

// ProfileRepository stores lightweight wallet profiles.
type ProfileRepository interface {
	// UpsertProfile creates the profile for walletAddress if it does not exist yet.
	UpsertProfile(ctx context.Context, walletAddress string) error
	FindProfileByWallet(ctx context.Context, walletAddress string) (*entity.Profile, error)
	// SaveProfile upserts the editable fields of p on wallet_address, clearing empty ones.
	SaveProfile(ctx context.Context, p entity.Profile) (*entity.Profile, error)
}

// NFTRepository stores minted tokens.
type NFTRepository interface {
	InsertNFT(ctx context.Context, nft entity.NFTRecord) (*entity.NFTRecord, error)
	FindNFT(ctx context.Context, contract string, tokenID, chainID uint64) (*entity.NFTRecord, error)
	UpdateNFTOwner(ctx context.Context, nftID, owner string) error
}

// ListingRepository stores marketplace listings.
type ListingRepository interface {
	InsertListing(ctx context.Context, listing entity.ListingRecord) error
	FindListing(ctx context.Context, listingID, chainID uint64) (*entity.ListingRecord, error)
	DeactivateListing(ctx context.Context, listingID, chainID uint64) error
}

// OfferRepository stores offers.
type OfferRepository interface {
	InsertOffer(ctx context.Context, offer entity.OfferRecord) error
	// UpdateOfferStatus moves the pending offer of offerer on nftID to status and returns the updated row.
	UpdateOfferStatus(ctx context.Context, nftID, offerer string, status entity.OfferStatus) (*entity.OfferRecord, error)
}

// TransactionRepository stores the transaction history.
type TransactionRepository interface {
	// RecordTransaction upserts on tx_hash+type so retried writes never duplicate history.
	RecordTransaction(ctx context.Context, tx entity.TransactionRecord) error
}

// NotificationRepository stores per-profile notifications.
type NotificationRepository interface {
	InsertNotification(ctx context.Context, n entity.NotificationRecord) error
	ListNotifications(ctx context.Context, profileID string, limit int) ([]entity.NotificationRecord, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, profileID string) error
}

// WatchlistRepository stores the NFTs each profile follows.
type WatchlistRepository interface {
	// AddToWatchlist upserts on (profile_id, nft_id).
	AddToWatchlist(ctx context.Context, entry entity.WatchlistEntry) (*entity.WatchlistEntry, error)
	RemoveFromWatchlist(ctx context.Context, profileID, nftID string) error
	// SetPriceAlert returns entity.ErrRecordNotFound when the NFT is not watched.
	SetPriceAlert(ctx context.Context, profileID, nftID string, alert *json.Number) error
	ListWatchlist(ctx context.Context, profileID string) ([]entity.WatchlistEntry, error)
	// PriceAlertsFor returns the entries of nftID that carry a price alert.
	PriceAlertsFor(ctx context.Context, nftID string) ([]entity.WatchlistEntry, error)
}

// ReadModelRepository runs the denormalized dashboard queries.
type ReadModelRepository interface {
	RecentTransactions(ctx context.Context, limit int) ([]entity.TransactionRecord, error)
	ActiveListings(ctx context.Context, limit int) ([]entity.ListingRecord, error)
	SaleTransactions(ctx context.Context) ([]entity.TransactionRecord, error)
	AllNFTs(ctx context.Context) ([]entity.NFTRecord, error)
	CountActiveListings(ctx context.Context) (int, error)
	OwnedNFTs(ctx context.Context, owner string) ([]entity.OwnedNFT, error)
}

// MarketStore is the full external data store.
type MarketStore interface {
	ProfileRepository
	NFTRepository
	ListingRepository
	OfferRepository
	TransactionRepository
	NotificationRepository
	WatchlistRepository
	ReadModelRepository
}

// ObjectStorage uploads public assets.
type ObjectStorage interface {
	// Upload stores data at bucket/path and returns its public URL.
	Upload(ctx context.Context, bucket, path, contentType string, data []byte) (string, error)
	Remove(ctx context.Context, bucket string, paths ...string) error
}

// ChangeFeed delivers row change notifications for tables.
type ChangeFeed interface {
	// Listen streams changes until ctx is cancelled; the channel is closed afterwards.
	Listen(ctx context.Context, tables []string) (<-chan entity.ChangeEvent, error)
}

// URLProber checks that a public URL is reachable.
type URLProber interface {
	Probe(ctx context.Context, url string) error
}
