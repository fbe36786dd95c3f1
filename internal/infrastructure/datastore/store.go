package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"

	"github.com/supabase-community/postgrest-go"
)

const (
	tableProfiles      = "profiles"
	tableNFTs          = "nfts"
	tableListings      = "listings"
	tableOffers        = "offers"
	tableTransactions  = "transactions"
	tableNotifications = "notifications"
	tableWatchlist     = "watchlist"

	returnMinimal        = "minimal"
	returnRepresentation = "representation"
	withNFT              = "*, nfts(*)"
	withListings         = "*, listings(active, price)"
)

var newestFirst = &postgrest.OrderOpts{Ascending: false} //nolint:gochecknoglobals

// Store implements port.MarketStore on Supabase PostgREST.
// Writes that may be retried are upserts on the natural key of their table.
type Store struct {
	db     queryer
	logger port.Logger
}

// NewStore creates a store over db.
func NewStore(db queryer, logger port.Logger) *Store {
	return &Store{db: db, logger: logger.With("component", "store")}
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

// exec runs a write whose response body is not needed.
func exec(ctx context.Context, op string, fb *postgrest.FilterBuilder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := fb.Execute(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// rows runs a query and decodes the returned rows into out.
func rows[T any](ctx context.Context, op string, fb *postgrest.FilterBuilder) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []T
	if _, err := fb.ExecuteTo(&out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// first returns the first row or entity.ErrRecordNotFound.
func first[T any](ctx context.Context, op string, fb *postgrest.FilterBuilder) (*T, error) {
	out, err := rows[T](ctx, op, fb.Limit(1, ""))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrRecordNotFound)
	}
	return &out[0], nil
}

func (s *Store) UpsertProfile(ctx context.Context, walletAddress string) error {
	row := map[string]string{"wallet_address": walletAddress}
	return exec(ctx, "upsert profile", s.db.From(tableProfiles).Upsert(row, "wallet_address", returnMinimal, ""))
}

func (s *Store) FindProfileByWallet(ctx context.Context, walletAddress string) (*entity.Profile, error) {
	return first[entity.Profile](ctx, "find profile",
		s.db.From(tableProfiles).Select("*", "", false).Eq("wallet_address", walletAddress))
}

func (s *Store) SaveProfile(ctx context.Context, p entity.Profile) (*entity.Profile, error) {
	row := map[string]interface{}{
		"wallet_address": p.WalletAddress,
		"username":       p.Username,
		"bio":            p.Bio,
		"avatar_url":     p.AvatarURL,
		"twitter_url":    p.TwitterURL,
		"discord_url":    p.DiscordURL,
		"website_url":    p.WebsiteURL,
		"updated_at":     time.Now().UTC(),
	}
	out, err := rows[entity.Profile](ctx, "save profile",
		s.db.From(tableProfiles).Upsert(row, "wallet_address", returnRepresentation, ""))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("save profile: no row returned")
	}
	return &out[0], nil
}

// InsertNFT upserts on (contract_address, token_id, chain_id) and returns the stored row.
func (s *Store) InsertNFT(ctx context.Context, nft entity.NFTRecord) (*entity.NFTRecord, error) {
	out, err := rows[entity.NFTRecord](ctx, "insert nft",
		s.db.From(tableNFTs).Upsert(nft, "contract_address,token_id,chain_id", returnRepresentation, ""))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("insert nft: no row returned")
	}
	return &out[0], nil
}

func (s *Store) FindNFT(ctx context.Context, contract string, tokenID, chainID uint64) (*entity.NFTRecord, error) {
	return first[entity.NFTRecord](ctx, "find nft",
		s.db.From(tableNFTs).Select("*", "", false).
			Eq("contract_address", contract).
			Eq("token_id", u64(tokenID)).
			Eq("chain_id", u64(chainID)))
}

func (s *Store) UpdateNFTOwner(ctx context.Context, nftID, owner string) error {
	return exec(ctx, "update nft owner",
		s.db.From(tableNFTs).Update(map[string]string{"owner_address": owner}, returnMinimal, "").Eq("id", nftID))
}

func (s *Store) InsertListing(ctx context.Context, listing entity.ListingRecord) error {
	listing.NFT = nil
	return exec(ctx, "insert listing",
		s.db.From(tableListings).Upsert(listing, "listing_id,chain_id", returnMinimal, ""))
}

func (s *Store) FindListing(ctx context.Context, listingID, chainID uint64) (*entity.ListingRecord, error) {
	return first[entity.ListingRecord](ctx, "find listing",
		s.db.From(tableListings).Select("*", "", false).
			Eq("listing_id", u64(listingID)).
			Eq("chain_id", u64(chainID)))
}

func (s *Store) DeactivateListing(ctx context.Context, listingID, chainID uint64) error {
	return exec(ctx, "deactivate listing",
		s.db.From(tableListings).Update(map[string]bool{"active": false}, returnMinimal, "").
			Eq("listing_id", u64(listingID)).
			Eq("chain_id", u64(chainID)))
}

func (s *Store) InsertOffer(ctx context.Context, offer entity.OfferRecord) error {
	return exec(ctx, "insert offer",
		s.db.From(tableOffers).Upsert(offer, "nft_id,offerer_address", returnMinimal, ""))
}

// UpdateOfferStatus only moves pending offers.
func (s *Store) UpdateOfferStatus(ctx context.Context, nftID, offerer string, status entity.OfferStatus) (*entity.OfferRecord, error) {
	out, err := rows[entity.OfferRecord](ctx, "update offer status",
		s.db.From(tableOffers).Update(map[string]string{"status": string(status)}, returnRepresentation, "").
			Eq("nft_id", nftID).
			Eq("offerer_address", offerer).
			Eq("status", string(entity.OfferPending)))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("update offer status: %w", entity.ErrRecordNotFound)
	}
	return &out[0], nil
}

func (s *Store) RecordTransaction(ctx context.Context, tx entity.TransactionRecord) error {
	tx.NFT = nil
	return exec(ctx, "record transaction",
		s.db.From(tableTransactions).Upsert(tx, "tx_hash,type", returnMinimal, ""))
}

func (s *Store) InsertNotification(ctx context.Context, n entity.NotificationRecord) error {
	return exec(ctx, "insert notification",
		s.db.From(tableNotifications).Insert(n, false, "", returnMinimal, ""))
}

func (s *Store) ListNotifications(ctx context.Context, profileID string, limit int) ([]entity.NotificationRecord, error) {
	return rows[entity.NotificationRecord](ctx, "list notifications",
		s.db.From(tableNotifications).Select("*", "", false).
			Eq("profile_id", profileID).
			Order("created_at", newestFirst).
			Limit(limit, ""))
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	return exec(ctx, "mark notification read",
		s.db.From(tableNotifications).Update(map[string]bool{"read": true}, returnMinimal, "").Eq("id", id))
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, profileID string) error {
	return exec(ctx, "mark all notifications read",
		s.db.From(tableNotifications).Update(map[string]bool{"read": true}, returnMinimal, "").
			Eq("profile_id", profileID).
			Eq("read", "false"))
}

func (s *Store) AddToWatchlist(ctx context.Context, entry entity.WatchlistEntry) (*entity.WatchlistEntry, error) {
	entry.NFT = nil
	out, err := rows[entity.WatchlistEntry](ctx, "add to watchlist",
		s.db.From(tableWatchlist).Upsert(entry, "profile_id,nft_id", returnRepresentation, ""))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("add to watchlist: no row returned")
	}
	return &out[0], nil
}

func (s *Store) RemoveFromWatchlist(ctx context.Context, profileID, nftID string) error {
	return exec(ctx, "remove from watchlist",
		s.db.From(tableWatchlist).Delete(returnMinimal, "").
			Eq("profile_id", profileID).
			Eq("nft_id", nftID))
}

func (s *Store) SetPriceAlert(ctx context.Context, profileID, nftID string, alert *json.Number) error {
	out, err := rows[entity.WatchlistEntry](ctx, "set price alert",
		s.db.From(tableWatchlist).Update(map[string]*json.Number{"price_alert": alert}, returnRepresentation, "").
			Eq("profile_id", profileID).
			Eq("nft_id", nftID))
	if err != nil {
		return err
	}
	if len(out) == 0 {
		return fmt.Errorf("set price alert: %w", entity.ErrRecordNotFound)
	}
	return nil
}

func (s *Store) ListWatchlist(ctx context.Context, profileID string) ([]entity.WatchlistEntry, error) {
	return rows[entity.WatchlistEntry](ctx, "list watchlist",
		s.db.From(tableWatchlist).Select(withNFT, "", false).
			Eq("profile_id", profileID).
			Order("created_at", newestFirst))
}

func (s *Store) PriceAlertsFor(ctx context.Context, nftID string) ([]entity.WatchlistEntry, error) {
	return rows[entity.WatchlistEntry](ctx, "price alerts",
		s.db.From(tableWatchlist).Select("*", "", false).
			Eq("nft_id", nftID).
			Not("price_alert", "is", "null"))
}

func (s *Store) RecentTransactions(ctx context.Context, limit int) ([]entity.TransactionRecord, error) {
	return rows[entity.TransactionRecord](ctx, "recent transactions",
		s.db.From(tableTransactions).Select(withNFT, "", false).
			Order("created_at", newestFirst).
			Limit(limit, ""))
}

func (s *Store) ActiveListings(ctx context.Context, limit int) ([]entity.ListingRecord, error) {
	return rows[entity.ListingRecord](ctx, "active listings",
		s.db.From(tableListings).Select(withNFT, "", false).
			Eq("active", "true").
			Order("created_at", newestFirst).
			Limit(limit, ""))
}

func (s *Store) SaleTransactions(ctx context.Context) ([]entity.TransactionRecord, error) {
	return rows[entity.TransactionRecord](ctx, "sale transactions",
		s.db.From(tableTransactions).Select("*", "", false).Eq("type", string(entity.HistorySale)))
}

func (s *Store) AllNFTs(ctx context.Context) ([]entity.NFTRecord, error) {
	return rows[entity.NFTRecord](ctx, "all nfts", s.db.From(tableNFTs).Select("*", "", false))
}

func (s *Store) CountActiveListings(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	_, count, err := s.db.From(tableListings).Select("id", "exact", true).Eq("active", "true").Execute()
	if err != nil {
		return 0, fmt.Errorf("count active listings: %w", err)
	}
	return int(count), nil
}

// OwnedNFTs returns the NFTs held by owner with their listings, newest first.
func (s *Store) OwnedNFTs(ctx context.Context, owner string) ([]entity.OwnedNFT, error) {
	return rows[entity.OwnedNFT](ctx, "owned nfts",
		s.db.From(tableNFTs).Select(withListings, "", false).
			Eq("owner_address", owner).
			Order("created_at", newestFirst))
}

var _ port.MarketStore = (*Store)(nil)
