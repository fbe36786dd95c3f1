package entity

import (
	"encoding/json"
	"time"
)

// MintRequest carries the form input of the mint workflow.
type MintRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	FileName    string `json:"fileName"`
	Image       []byte `json:"-" validate:"required"`
}

// ListRequest lists an owned token on the marketplace. Price is a decimal amount of the native currency.
type ListRequest struct {
	TokenID uint64 `json:"tokenId" validate:"required,gt=0"`
	Price   string `json:"price" validate:"required,numeric"`
}

// BuyRequest purchases an active listing at its on-chain price.
type BuyRequest struct {
	ListingID uint64 `json:"listingId" validate:"required,gt=0"`
}

// OfferRequest places an escrowed offer on a token.
type OfferRequest struct {
	TokenID uint64 `json:"tokenId" validate:"required,gt=0"`
	Price   string `json:"price" validate:"required,numeric"`
}

// AcceptOfferRequest accepts the pending offer of Offerer on a token owned by the session account.
type AcceptOfferRequest struct {
	TokenID uint64 `json:"tokenId" validate:"required,gt=0"`
	Offerer string `json:"offerer" validate:"required,eth_addr"`
}

// CancelOfferRequest withdraws the session account's offer on a token.
type CancelOfferRequest struct {
	TokenID uint64 `json:"tokenId" validate:"required,gt=0"`
}

// WorkflowResult is embedded in every workflow result.
// Warnings lists off-chain writes that failed after the on-chain action was confirmed.
type WorkflowResult struct {
	IntentID    string   `json:"intentId"`
	ChainID     uint64   `json:"chainId"`
	TxHash      string   `json:"txHash"`
	ExplorerURL string   `json:"explorerUrl,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// MintResult is returned by a confirmed mint.
type MintResult struct {
	WorkflowResult
	TokenID     uint64 `json:"tokenId"`
	ImageURL    string `json:"imageUrl"`
	MetadataURI string `json:"metadataUri"`
}

// ListResult is returned by a confirmed listing.
type ListResult struct {
	WorkflowResult
	ListingID   uint64 `json:"listingId"`
	ApproveHash string `json:"approveTxHash"`
}

// BuyResult is returned by a confirmed purchase.
type BuyResult struct {
	WorkflowResult
	ListingID uint64 `json:"listingId"`
	TokenID   uint64 `json:"tokenId"`
	Price     string `json:"price"`
}

// OfferResult is returned by the three offer workflows.
type OfferResult struct {
	WorkflowResult
	TokenID     uint64 `json:"tokenId"`
	Price       string `json:"price,omitempty"`
	ApproveHash string `json:"approveTxHash,omitempty"`
}

// TokenMetadata is the JSON document referenced by the token URI.
type TokenMetadata struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Attributes  []MetadataAttribute `json:"attributes"`
}

// MetadataAttribute is a single trait in TokenMetadata.
type MetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// Profile is a row of the profiles table.
type Profile struct {
	ID            string     `json:"id,omitempty"`
	WalletAddress string     `json:"wallet_address"`
	Username      string     `json:"username,omitempty"`
	Bio           string     `json:"bio,omitempty"`
	AvatarURL     string     `json:"avatar_url,omitempty"`
	TwitterURL    string     `json:"twitter_url,omitempty"`
	DiscordURL    string     `json:"discord_url,omitempty"`
	WebsiteURL    string     `json:"website_url,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// ProfileUpdate edits the public fields of the session account's profile.
type ProfileUpdate struct {
	Username   string `json:"username" validate:"max=50"`
	Bio        string `json:"bio" validate:"max=500"`
	AvatarURL  string `json:"avatarUrl" validate:"omitempty,url"`
	TwitterURL string `json:"twitterUrl" validate:"omitempty,url"`
	DiscordURL string `json:"discordUrl" validate:"omitempty,url"`
	WebsiteURL string `json:"websiteUrl" validate:"omitempty,url"`
}

// ListingSummary is the listing state embedded in an owned NFT.
type ListingSummary struct {
	Active bool        `json:"active"`
	Price  json.Number `json:"price"`
}

// OwnedNFT is an NFT row joined with its listings.
type OwnedNFT struct {
	NFTRecord
	Listings []ListingSummary `json:"listings"`
}

// ProfileView is a wallet's profile page. Profile is nil when the wallet never connected.
type ProfileView struct {
	WalletAddress string     `json:"walletAddress"`
	Profile       *Profile   `json:"profile"`
	OwnedNFTs     []OwnedNFT `json:"ownedNfts"`
}

// WatchlistRequest adds an NFT to the session account's watchlist or changes its price alert.
// An empty PriceAlert clears the alert.
type WatchlistRequest struct {
	NFTID      string `json:"nftId" validate:"required"`
	PriceAlert string `json:"priceAlert" validate:"omitempty,numeric"`
}

// WatchlistEntry is a row of the watchlist table, optionally joined with its NFT.
type WatchlistEntry struct {
	ID         string       `json:"id,omitempty"`
	ProfileID  string       `json:"profile_id"`
	NFTID      string       `json:"nft_id"`
	PriceAlert *json.Number `json:"price_alert"`
	CreatedAt  *time.Time   `json:"created_at,omitempty"`
	NFT        *NFTRecord   `json:"nfts,omitempty"`
}

// NFTRecord is a row of the nfts table.
type NFTRecord struct {
	ID             string     `json:"id,omitempty"`
	TokenID        uint64     `json:"token_id"`
	ContractAddr   string     `json:"contract_address"`
	ChainID        uint64     `json:"chain_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	ImageURL       string     `json:"image_url"`
	OwnerAddress   string     `json:"owner_address"`
	CreatorAddress string     `json:"creator_address"`
	MetadataURI    string     `json:"metadata_uri"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

// ListingRecord is a row of the listings table, optionally joined with its NFT.
type ListingRecord struct {
	ID            string      `json:"id,omitempty"`
	ListingID     uint64      `json:"listing_id"`
	NFTID         string      `json:"nft_id"`
	ChainID       uint64      `json:"chain_id"`
	SellerAddress string      `json:"seller_address"`
	Price         json.Number `json:"price"`
	Active        bool        `json:"active"`
	CreatedAt     *time.Time  `json:"created_at,omitempty"`
	NFT           *NFTRecord  `json:"nfts,omitempty"`
}

// OfferRecord is a row of the offers table.
type OfferRecord struct {
	ID             string      `json:"id,omitempty"`
	NFTID          string      `json:"nft_id"`
	ChainID        uint64      `json:"chain_id"`
	OffererAddress string      `json:"offerer_address"`
	Price          json.Number `json:"price"`
	Status         OfferStatus `json:"status"`
	CreatedAt      *time.Time  `json:"created_at,omitempty"`
}

// TransactionRecord is a row of the transactions table, optionally joined with its NFT.
type TransactionRecord struct {
	ID          string       `json:"id,omitempty"`
	NFTID       string       `json:"nft_id,omitempty"`
	ChainID     uint64       `json:"chain_id"`
	FromAddress string       `json:"from_address"`
	ToAddress   string       `json:"to_address"`
	Price       *json.Number `json:"price,omitempty"`
	Type        HistoryType  `json:"type"`
	TxHash      string       `json:"tx_hash"`
	CreatedAt   *time.Time   `json:"created_at,omitempty"`
	NFT         *NFTRecord   `json:"nfts,omitempty"`
}

// NotificationRecord is a row of the notifications table.
type NotificationRecord struct {
	ID           string           `json:"id,omitempty"`
	ProfileID    string           `json:"profile_id"`
	Type         NotificationKind `json:"type"`
	Title        string           `json:"title"`
	Message      string           `json:"message"`
	RelatedNFTID string           `json:"related_nft_id,omitempty"`
	Read         bool             `json:"read"`
	CreatedAt    *time.Time       `json:"created_at,omitempty"`
}

// ChangeType is the kind of row change delivered by the change feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent notifies that a row of Table changed.
type ChangeEvent struct {
	Table  string          `json:"table"`
	Type   ChangeType      `json:"type"`
	Record json.RawMessage `json:"record,omitempty"`
}

// AnalyticsSummary is the marketplace-wide dashboard.
type AnalyticsSummary struct {
	TotalNFTs        int       `json:"totalNfts"`
	TotalSales       int       `json:"totalSales"`
	ActiveListings   int       `json:"activeListings"`
	VolumeETH        string    `json:"volume"`
	AverageSaleETH   string    `json:"averageSalePrice"`
	UniqueCollectors int       `json:"uniqueCollectors"`
	GeneratedAt      time.Time `json:"generatedAt"`
}

// LeaderboardEntry ranks one wallet.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	WalletAddress string `json:"walletAddress"`
	Count         int    `json:"count"`
	VolumeETH     string `json:"volume,omitempty"`
}

// Leaderboard groups the three rankings shown on the dashboard.
type Leaderboard struct {
	TopCreators   []LeaderboardEntry `json:"topCreators"`
	TopCollectors []LeaderboardEntry `json:"topCollectors"`
	TopTraders    []LeaderboardEntry `json:"topTraders"`
	GeneratedAt   time.Time          `json:"generatedAt"`
}
