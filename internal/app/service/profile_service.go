package service

import (
	"context"
	"encoding/json"
	"errors"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/pkg/utils"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

const msgNotWatched = "This NFT is not on your watchlist"

// ProfileServiceImpl serves profile pages and watchlists straight from the store.
type ProfileServiceImpl struct {
	store    port.MarketStore
	validate *validator.Validate
	logger   port.Logger
}

// NewProfileService creates the profile service.
func NewProfileService(store port.MarketStore, logger port.Logger) *ProfileServiceImpl {
	return &ProfileServiceImpl{
		store:    store,
		validate: newValidator(),
		logger:   logger.With("component", "profile_service"),
	}
}

func walletKey(op, walletAddress string) (string, error) {
	addr := utils.NormalizeAddress(walletAddress)
	if addr == "" {
		return "", validationError(op, "wallet address is required")
	}
	return addr, nil
}

// Profile loads the profile and the owned NFTs of walletAddress concurrently.
func (s *ProfileServiceImpl) Profile(ctx context.Context, walletAddress string) (*entity.ProfileView, error) {
	addr, err := walletKey("profile", walletAddress)
	if err != nil {
		return nil, err
	}

	view := &entity.ProfileView{WalletAddress: addr, OwnedNFTs: []entity.OwnedNFT{}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.store.FindProfileByWallet(gctx, addr)
		if errors.Is(err, entity.ErrRecordNotFound) {
			return nil
		}
		view.Profile = p
		return err
	})
	g.Go(func() error {
		owned, err := s.store.OwnedNFTs(gctx, addr)
		if len(owned) > 0 {
			view.OwnedNFTs = owned
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, entity.NewError(entity.KindRPC, "profile", "", err)
	}
	return view, nil
}

// UpdateProfile saves the editable profile fields, creating the profile if needed.
func (s *ProfileServiceImpl) UpdateProfile(ctx context.Context, walletAddress string, update entity.ProfileUpdate) (*entity.Profile, error) {
	const op = "update_profile"
	addr, err := walletKey(op, walletAddress)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(update); err != nil {
		return nil, validationError(op, validationMessage(err))
	}

	saved, err := s.store.SaveProfile(ctx, entity.Profile{
		WalletAddress: addr,
		Username:      update.Username,
		Bio:           update.Bio,
		AvatarURL:     update.AvatarURL,
		TwitterURL:    update.TwitterURL,
		DiscordURL:    update.DiscordURL,
		WebsiteURL:    update.WebsiteURL,
	})
	if err != nil {
		return nil, entity.NewError(entity.KindRPC, op, "", err)
	}
	s.logger.Info("Profile updated", "wallet", addr)
	return saved, nil
}

// Watchlist lists the NFTs walletAddress follows. A wallet without a profile has an empty watchlist.
func (s *ProfileServiceImpl) Watchlist(ctx context.Context, walletAddress string) ([]entity.WatchlistEntry, error) {
	const op = "watchlist"
	profile, err := s.findProfile(ctx, op, walletAddress)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return []entity.WatchlistEntry{}, nil
	}
	list, err := s.store.ListWatchlist(ctx, profile.ID)
	if err != nil {
		return nil, entity.NewError(entity.KindRPC, op, "", err)
	}
	if list == nil {
		list = []entity.WatchlistEntry{}
	}
	return list, nil
}

// AddToWatchlist follows an NFT. Adding an NFT that is already watched replaces its price alert.
func (s *ProfileServiceImpl) AddToWatchlist(ctx context.Context, walletAddress string, req entity.WatchlistRequest) (*entity.WatchlistEntry, error) {
	const op = "add_watchlist"
	addr, err := walletKey(op, walletAddress)
	if err != nil {
		return nil, err
	}
	alert, err := s.priceAlert(op, req)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpsertProfile(ctx, addr); err != nil {
		return nil, entity.NewError(entity.KindRPC, op, "", err)
	}
	profile, err := s.store.FindProfileByWallet(ctx, addr)
	if err != nil {
		return nil, entity.NewError(entity.KindRPC, op, "", err)
	}

	entry, err := s.store.AddToWatchlist(ctx, entity.WatchlistEntry{ProfileID: profile.ID, NFTID: req.NFTID, PriceAlert: alert})
	if err != nil {
		return nil, entity.NewError(entity.KindRPC, op, "", err)
	}
	s.logger.Debug("NFT added to watchlist", "wallet", addr, "nft_id", req.NFTID)
	return entry, nil
}

// RemoveFromWatchlist unfollows an NFT. Removing an NFT that is not watched is a no-op.
func (s *ProfileServiceImpl) RemoveFromWatchlist(ctx context.Context, walletAddress, nftID string) error {
	const op = "remove_watchlist"
	if nftID == "" {
		return validationError(op, "nftId is required")
	}
	profile, err := s.findProfile(ctx, op, walletAddress)
	if err != nil || profile == nil {
		return err
	}
	if err := s.store.RemoveFromWatchlist(ctx, profile.ID, nftID); err != nil {
		return entity.NewError(entity.KindRPC, op, "", err)
	}
	return nil
}

// SetPriceAlert changes the alert of a watched NFT. An empty PriceAlert clears it.
func (s *ProfileServiceImpl) SetPriceAlert(ctx context.Context, walletAddress string, req entity.WatchlistRequest) error {
	const op = "price_alert"
	alert, err := s.priceAlert(op, req)
	if err != nil {
		return err
	}
	profile, err := s.findProfile(ctx, op, walletAddress)
	if err != nil {
		return err
	}
	if profile == nil {
		return validationError(op, msgNotWatched)
	}

	err = s.store.SetPriceAlert(ctx, profile.ID, req.NFTID, alert)
	switch {
	case errors.Is(err, entity.ErrRecordNotFound):
		return validationError(op, msgNotWatched)
	case err != nil:
		return entity.NewError(entity.KindRPC, op, "", err)
	}
	return nil
}

func (s *ProfileServiceImpl) priceAlert(op string, req entity.WatchlistRequest) (*json.Number, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(op, validationMessage(err))
	}
	if req.PriceAlert == "" {
		return nil, nil
	}
	if _, err := utils.ParseEther(req.PriceAlert); err != nil {
		return nil, validationError(op, "Price alert must be a positive amount with at most 18 decimals")
	}
	alert := json.Number(req.PriceAlert)
	return &alert, nil
}

// findProfile returns nil without error when the wallet has no profile.
func (s *ProfileServiceImpl) findProfile(ctx context.Context, op, walletAddress string) (*entity.Profile, error) {
	addr, err := walletKey(op, walletAddress)
	if err != nil {
		return nil, err
	}
	profile, err := s.store.FindProfileByWallet(ctx, addr)
	if errors.Is(err, entity.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, entity.NewError(entity.KindRPC, op, "", err)
	}
	return profile, nil
}

var _ port.ProfileService = (*ProfileServiceImpl)(nil)
