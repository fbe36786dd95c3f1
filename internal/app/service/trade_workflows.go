package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"sakura_marketplace/internal/app/saga"
	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/contracts"
	"sakura_marketplace/internal/pkg/utils"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func parsePrice(op, price string) (*big.Int, error) {
	wei, err := utils.ParseEther(price)
	if err != nil {
		return nil, validationError(op, "Price must be a positive amount with at most 18 decimals")
	}
	return wei, nil
}

type listState struct {
	flow
	req      entity.ListRequest
	priceWei *big.Int

	approveHash    common.Hash
	approveReceipt *types.Receipt
	listHash       common.Hash
	listReceipt    *types.Receipt
	listed         contracts.ListedEvent
}

func (s *MarketplaceServiceImpl) buildListSaga() *saga.Saga[listState] {
	retries, delay := s.storeRetries()
	return newWorkflow(s, "list", func(st *listState) *flow { return &st.flow }).
		WithStep("validate", func(_ context.Context, st *listState) error {
			if err := s.validateRequest("validate", st.req); err != nil {
				return err
			}
			wei, err := parsePrice("validate", st.req.Price)
			st.priceWei = wei
			return err
		}).
		WithStep("check_session", func(ctx context.Context, st *listState) error { return s.checkSession(ctx, &st.flow) }).
		WithStep("check_balance", func(ctx context.Context, st *listState) error {
			return s.tx.ensureBalance(ctx, st.tc, nil)
		}).
		WithSubmitStep("submit_approve", func(ctx context.Context, st *listState) error {
			call, err := s.Codec.ApproveMarketplace(new(big.Int).SetUint64(st.req.TokenID))
			if err != nil {
				return err
			}
			return s.submit(ctx, &st.flow, call, &st.approveHash)
		}).
		WithStep("confirm_approve", func(ctx context.Context, st *listState) error {
			return s.confirm(ctx, &st.flow, "approve", st.approveHash, &st.approveReceipt)
		}).
		WithSubmitStep("submit_list", func(ctx context.Context, st *listState) error {
			call, err := s.Codec.ListNFT(new(big.Int).SetUint64(st.req.TokenID), st.priceWei)
			if err != nil {
				return err
			}
			return s.submit(ctx, &st.flow, call, &st.listHash)
		}).
		WithStep("confirm_list", func(ctx context.Context, st *listState) error {
			return s.confirm(ctx, &st.flow, "listNFT", st.listHash, &st.listReceipt)
		}).
		WithStep("parse_listed", func(_ context.Context, st *listState) error {
			ev, err := s.Codec.ParseListed(st.listReceipt)
			st.listed = ev
			return err
		}).
		WithSoftStep("persist_listing", "The NFT was listed but the marketplace page may take a moment to show it.",
			s.persistListing, retries, delay)
}

func (s *MarketplaceServiceImpl) persistListing(ctx context.Context, st *listState) error {
	nft, err := s.Store.FindNFT(ctx, s.Codec.NFTAddress().Hex(), st.req.TokenID, st.tc.chainID)
	if err != nil {
		return fmt.Errorf("failed to find nft %d: %w", st.req.TokenID, err)
	}
	price := json.Number(utils.FormatEther(st.priceWei))
	if err := s.Store.InsertListing(ctx, entity.ListingRecord{
		ListingID:     st.listed.ListingID.Uint64(),
		NFTID:         nft.ID,
		ChainID:       st.tc.chainID,
		SellerAddress: st.account,
		Price:         price,
		Active:        true,
	}); err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	if err := s.Store.RecordTransaction(ctx, entity.TransactionRecord{
		NFTID:       nft.ID,
		ChainID:     st.tc.chainID,
		FromAddress: st.account,
		ToAddress:   utils.NormalizeAddress(s.Codec.MarketplaceAddress().Hex()),
		Price:       &price,
		Type:        entity.HistoryList,
		TxHash:      st.listHash.Hex(),
	}); err != nil {
		return fmt.Errorf("failed to record listing: %w", err)
	}
	s.alertWatchers(ctx, nft, st.priceWei, fmt.Sprintf("%s %s", price, st.network.NativeCurrency.Symbol))
	return nil
}

// alertWatchers notifies every watcher whose price alert is at or above the listing price.
// Alerts are best effort and never fail the listing.
func (s *MarketplaceServiceImpl) alertWatchers(ctx context.Context, nft *entity.NFTRecord, priceWei *big.Int, display string) {
	entries, err := s.Store.PriceAlertsFor(ctx, nft.ID)
	if err != nil {
		s.Logger.Warn("Failed to load price alerts", "nft_id", nft.ID, "error", err)
		return
	}
	for _, e := range entries {
		if e.PriceAlert == nil {
			continue
		}
		limit, err := utils.ParseEther(e.PriceAlert.String())
		if err != nil || priceWei.Cmp(limit) > 0 {
			continue
		}
		if err := s.Store.InsertNotification(ctx, entity.NotificationRecord{
			ProfileID:    e.ProfileID,
			Type:         entity.NotificationPriceAlert,
			Title:        "Price Alert",
			Message:      fmt.Sprintf("%s was listed for %s", nft.Name, display),
			RelatedNFTID: nft.ID,
		}); err != nil {
			s.Logger.Warn("Failed to send price alert", "nft_id", nft.ID, "profile_id", e.ProfileID, "error", err)
		}
	}
}

// ListNFT approves the marketplace for the token and lists it at the requested price.
func (s *MarketplaceServiceImpl) ListNFT(ctx context.Context, req entity.ListRequest) (*entity.ListResult, error) {
	return dedupe(s, s.dedupKey(entity.IntentList, req.TokenID, req.Price), func() (*entity.ListResult, error) {
		st := &listState{req: req}
		out, err := runWorkflow(ctx, s, s.listSaga, entity.IntentList, st)
		if err != nil {
			return nil, err
		}
		s.invalidate("listings", "transactions")
		return &entity.ListResult{
			WorkflowResult: st.result(out.Intent.ID, out.Warnings),
			ListingID:      st.listed.ListingID.Uint64(),
			ApproveHash:    st.approveHash.Hex(),
		}, nil
	})
}

type buyState struct {
	flow
	req     entity.BuyRequest
	listing contracts.Listing

	txHash  common.Hash
	receipt *types.Receipt
	sold    contracts.SoldEvent
}

func (s *MarketplaceServiceImpl) buildBuySaga() *saga.Saga[buyState] {
	retries, delay := s.storeRetries()
	return newWorkflow(s, "buy", func(st *buyState) *flow { return &st.flow }).
		WithStep("validate", func(_ context.Context, st *buyState) error {
			return s.validateRequest("validate", st.req)
		}).
		WithStep("check_session", func(ctx context.Context, st *buyState) error { return s.checkSession(ctx, &st.flow) }).
		WithRetryableStep("read_listing", s.readListing, retries, delay).
		WithStep("check_balance", func(ctx context.Context, st *buyState) error {
			return s.tx.ensureBalance(ctx, st.tc, st.listing.Price)
		}).
		WithSubmitStep("submit_buy", func(ctx context.Context, st *buyState) error {
			call, err := s.Codec.BuyNFT(new(big.Int).SetUint64(st.req.ListingID), st.listing.Price)
			if err != nil {
				return err
			}
			return s.submit(ctx, &st.flow, call, &st.txHash)
		}).
		WithStep("confirm_buy", func(ctx context.Context, st *buyState) error {
			return s.confirm(ctx, &st.flow, "buyNFT", st.txHash, &st.receipt)
		}).
		WithStep("parse_sold", func(_ context.Context, st *buyState) error {
			ev, err := s.Codec.ParseSold(st.receipt)
			st.sold = ev
			return err
		}).
		WithSoftStep("persist_sale", "The purchase succeeded but ownership records are still syncing. They will be corrected automatically.",
			s.persistSale, retries, delay)
}

// readListing fetches the exact on-chain price; the payment never comes from the store.
func (s *MarketplaceServiceImpl) readListing(ctx context.Context, st *buyState) error {
	call, err := s.Codec.ListingQuery(new(big.Int).SetUint64(st.req.ListingID))
	if err != nil {
		return err
	}
	to := call.To
	data, err := st.tc.client.CallContract(ctx, ethereum.CallMsg{From: st.tc.account, To: &to, Data: call.Data})
	if err != nil {
		return err
	}
	listing, err := s.Codec.UnpackListing(data)
	if err != nil {
		return entity.NewError(entity.KindEventNotFound, "read_listing", "", err)
	}
	if !listing.Active || listing.Price == nil || listing.Price.Sign() == 0 {
		return validationError("read_listing", msgListingInactive)
	}
	st.listing = listing
	return nil
}

// persistSale converges owner, listing flag and history. Every write is idempotent so the step can be retried.
func (s *MarketplaceServiceImpl) persistSale(ctx context.Context, st *buyState) error {
	listingID := st.req.ListingID
	seller := utils.NormalizeAddress(st.listing.Seller.Hex())

	var nftID string
	rec, err := s.Store.FindListing(ctx, listingID, st.tc.chainID)
	switch {
	case err == nil:
		nftID = rec.NFTID
		seller = rec.SellerAddress
	case errors.Is(err, entity.ErrRecordNotFound):
		nft, findErr := s.Store.FindNFT(ctx, st.listing.NFT.Hex(), st.listing.TokenID.Uint64(), st.tc.chainID)
		if findErr != nil {
			return fmt.Errorf("failed to find nft for listing %d: %w", listingID, findErr)
		}
		nftID = nft.ID
	default:
		return fmt.Errorf("failed to find listing %d: %w", listingID, err)
	}

	if err := s.Store.UpdateNFTOwner(ctx, nftID, st.account); err != nil {
		return fmt.Errorf("failed to update owner: %w", err)
	}
	if err := s.Store.DeactivateListing(ctx, listingID, st.tc.chainID); err != nil && !errors.Is(err, entity.ErrRecordNotFound) {
		return fmt.Errorf("failed to deactivate listing: %w", err)
	}

	price := json.Number(utils.FormatEther(st.listing.Price))
	if err := s.Store.RecordTransaction(ctx, entity.TransactionRecord{
		NFTID:       nftID,
		ChainID:     st.tc.chainID,
		FromAddress: seller,
		ToAddress:   st.account,
		Price:       &price,
		Type:        entity.HistorySale,
		TxHash:      st.txHash.Hex(),
	}); err != nil {
		return fmt.Errorf("failed to record sale: %w", err)
	}

	return s.notify(ctx, seller, entity.NotificationRecord{
		Type:         entity.NotificationSale,
		Title:        "NFT Sold",
		Message:      fmt.Sprintf("Your NFT sold for %s %s", price, st.network.NativeCurrency.Symbol),
		RelatedNFTID: nftID,
	})
}

// BuyNFT pays the exact on-chain listing price and transfers ownership records to the buyer.
func (s *MarketplaceServiceImpl) BuyNFT(ctx context.Context, req entity.BuyRequest) (*entity.BuyResult, error) {
	return dedupe(s, s.dedupKey(entity.IntentBuy, req.ListingID), func() (*entity.BuyResult, error) {
		st := &buyState{req: req}
		out, err := runWorkflow(ctx, s, s.buySaga, entity.IntentBuy, st)
		if err != nil {
			return nil, err
		}
		s.invalidate("nfts", "listings", "transactions")
		return &entity.BuyResult{
			WorkflowResult: st.result(out.Intent.ID, out.Warnings),
			ListingID:      req.ListingID,
			TokenID:        st.listing.TokenID.Uint64(),
			Price:          utils.FormatEther(st.listing.Price),
		}, nil
	})
}
