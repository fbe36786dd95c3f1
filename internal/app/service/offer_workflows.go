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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type makeOfferState struct {
	flow
	req      entity.OfferRequest
	priceWei *big.Int

	txHash  common.Hash
	receipt *types.Receipt
	made    contracts.OfferMadeEvent
}

func (s *MarketplaceServiceImpl) buildMakeOfferSaga() *saga.Saga[makeOfferState] {
	retries, delay := s.storeRetries()
	return newWorkflow(s, "make_offer", func(st *makeOfferState) *flow { return &st.flow }).
		WithStep("validate", func(_ context.Context, st *makeOfferState) error {
			if err := s.validateRequest("validate", st.req); err != nil {
				return err
			}
			wei, err := parsePrice("validate", st.req.Price)
			st.priceWei = wei
			return err
		}).
		WithStep("check_session", func(ctx context.Context, st *makeOfferState) error { return s.checkSession(ctx, &st.flow) }).
		WithStep("check_balance", func(ctx context.Context, st *makeOfferState) error {
			return s.tx.ensureBalance(ctx, st.tc, st.priceWei)
		}).
		WithSubmitStep("submit_offer", func(ctx context.Context, st *makeOfferState) error {
			call, err := s.Codec.MakeOffer(new(big.Int).SetUint64(st.req.TokenID), st.priceWei)
			if err != nil {
				return err
			}
			return s.submit(ctx, &st.flow, call, &st.txHash)
		}).
		WithStep("confirm_offer", func(ctx context.Context, st *makeOfferState) error {
			return s.confirm(ctx, &st.flow, "makeOffer", st.txHash, &st.receipt)
		}).
		WithStep("parse_offer_made", func(_ context.Context, st *makeOfferState) error {
			ev, err := s.Codec.ParseOfferMade(st.receipt)
			st.made = ev
			return err
		}).
		WithSoftStep("persist_offer", "The offer was placed but the owner may not see it immediately.",
			s.persistOffer, retries, delay)
}

func (s *MarketplaceServiceImpl) persistOffer(ctx context.Context, st *makeOfferState) error {
	nft, err := s.Store.FindNFT(ctx, s.Codec.NFTAddress().Hex(), st.req.TokenID, st.tc.chainID)
	if err != nil {
		return fmt.Errorf("failed to find nft %d: %w", st.req.TokenID, err)
	}
	price := json.Number(utils.FormatEther(st.priceWei))
	if err := s.Store.InsertOffer(ctx, entity.OfferRecord{
		NFTID:          nft.ID,
		ChainID:        st.tc.chainID,
		OffererAddress: st.account,
		Price:          price,
		Status:         entity.OfferPending,
	}); err != nil {
		return fmt.Errorf("failed to insert offer: %w", err)
	}
	if err := s.Store.RecordTransaction(ctx, entity.TransactionRecord{
		NFTID:       nft.ID,
		ChainID:     st.tc.chainID,
		FromAddress: st.account,
		ToAddress:   nft.OwnerAddress,
		Price:       &price,
		Type:        entity.HistoryOffer,
		TxHash:      st.txHash.Hex(),
	}); err != nil {
		return fmt.Errorf("failed to record offer: %w", err)
	}
	return s.notify(ctx, nft.OwnerAddress, entity.NotificationRecord{
		Type:         entity.NotificationOffer,
		Title:        "New Offer Received",
		Message:      fmt.Sprintf("You received an offer of %s %s on your NFT", price, st.network.NativeCurrency.Symbol),
		RelatedNFTID: nft.ID,
	})
}

// MakeOffer escrows the offered amount for a token.
func (s *MarketplaceServiceImpl) MakeOffer(ctx context.Context, req entity.OfferRequest) (*entity.OfferResult, error) {
	return dedupe(s, s.dedupKey(entity.IntentMakeOffer, req.TokenID, req.Price), func() (*entity.OfferResult, error) {
		st := &makeOfferState{req: req}
		out, err := runWorkflow(ctx, s, s.makeOfferSaga, entity.IntentMakeOffer, st)
		if err != nil {
			return nil, err
		}
		s.invalidate("offers", "transactions")
		return &entity.OfferResult{
			WorkflowResult: st.result(out.Intent.ID, out.Warnings),
			TokenID:        req.TokenID,
			Price:          utils.FormatEther(st.priceWei),
		}, nil
	})
}

type acceptOfferState struct {
	flow
	req entity.AcceptOfferRequest

	approveHash    common.Hash
	approveReceipt *types.Receipt
	acceptHash     common.Hash
	acceptReceipt  *types.Receipt
	accepted       contracts.OfferAcceptedEvent
}

// offerer prefers the address the contract paid out to over the requested one.
func (st *acceptOfferState) offerer() string {
	if st.accepted.Buyer != (common.Address{}) {
		return utils.NormalizeAddress(st.accepted.Buyer.Hex())
	}
	return utils.NormalizeAddress(st.req.Offerer)
}

func (s *MarketplaceServiceImpl) buildAcceptOfferSaga() *saga.Saga[acceptOfferState] {
	retries, delay := s.storeRetries()
	return newWorkflow(s, "accept_offer", func(st *acceptOfferState) *flow { return &st.flow }).
		WithStep("validate", func(_ context.Context, st *acceptOfferState) error {
			return s.validateRequest("validate", st.req)
		}).
		WithStep("check_session", func(ctx context.Context, st *acceptOfferState) error { return s.checkSession(ctx, &st.flow) }).
		WithStep("check_balance", func(ctx context.Context, st *acceptOfferState) error {
			return s.tx.ensureBalance(ctx, st.tc, nil)
		}).
		WithSubmitStep("submit_approve", func(ctx context.Context, st *acceptOfferState) error {
			call, err := s.Codec.ApproveOffer(new(big.Int).SetUint64(st.req.TokenID))
			if err != nil {
				return err
			}
			return s.submit(ctx, &st.flow, call, &st.approveHash)
		}).
		WithStep("confirm_approve", func(ctx context.Context, st *acceptOfferState) error {
			return s.confirm(ctx, &st.flow, "approve", st.approveHash, &st.approveReceipt)
		}).
		WithSubmitStep("submit_accept", func(ctx context.Context, st *acceptOfferState) error {
			call, err := s.Codec.AcceptOffer(new(big.Int).SetUint64(st.req.TokenID))
			if err != nil {
				return err
			}
			return s.submit(ctx, &st.flow, call, &st.acceptHash)
		}).
		WithStep("confirm_accept", func(ctx context.Context, st *acceptOfferState) error {
			return s.confirm(ctx, &st.flow, "acceptOffer", st.acceptHash, &st.acceptReceipt)
		}).
		WithStep("parse_offer_accepted", func(_ context.Context, st *acceptOfferState) error {
			ev, err := s.Codec.ParseOfferAccepted(st.acceptReceipt)
			st.accepted = ev
			return err
		}).
		WithSoftStep("persist_accepted_offer", "The offer was accepted but ownership records are still syncing. They will be corrected automatically.",
			s.persistAcceptedOffer, retries, delay)
}

func (s *MarketplaceServiceImpl) persistAcceptedOffer(ctx context.Context, st *acceptOfferState) error {
	nft, err := s.Store.FindNFT(ctx, s.Codec.NFTAddress().Hex(), st.req.TokenID, st.tc.chainID)
	if err != nil {
		return fmt.Errorf("failed to find nft %d: %w", st.req.TokenID, err)
	}
	offerer := st.offerer()
	if err := s.Store.UpdateNFTOwner(ctx, nft.ID, offerer); err != nil {
		return fmt.Errorf("failed to update owner: %w", err)
	}

	price := json.Number(utils.FormatEther(st.accepted.Price))
	offer, err := s.Store.UpdateOfferStatus(ctx, nft.ID, offerer, entity.OfferAccepted)
	switch {
	case errors.Is(err, entity.ErrRecordNotFound):
		// Already settled by an earlier attempt.
	case err != nil:
		return fmt.Errorf("failed to mark offer accepted: %w", err)
	case st.accepted.Price.Sign() == 0:
		price = offer.Price
	}

	if err := s.Store.RecordTransaction(ctx, entity.TransactionRecord{
		NFTID:       nft.ID,
		ChainID:     st.tc.chainID,
		FromAddress: st.account,
		ToAddress:   offerer,
		Price:       &price,
		Type:        entity.HistorySale,
		TxHash:      st.acceptHash.Hex(),
	}); err != nil {
		return fmt.Errorf("failed to record sale: %w", err)
	}
	return s.notify(ctx, offerer, entity.NotificationRecord{
		Type:         entity.NotificationOfferAccepted,
		Title:        "Offer Accepted",
		Message:      fmt.Sprintf("Your offer of %s %s was accepted", price, st.network.NativeCurrency.Symbol),
		RelatedNFTID: nft.ID,
	})
}

// AcceptOffer approves the offer escrow for the token and accepts the pending offer.
func (s *MarketplaceServiceImpl) AcceptOffer(ctx context.Context, req entity.AcceptOfferRequest) (*entity.OfferResult, error) {
	key := s.dedupKey(entity.IntentAcceptOffer, req.TokenID, utils.NormalizeAddress(req.Offerer))
	return dedupe(s, key, func() (*entity.OfferResult, error) {
		st := &acceptOfferState{req: req}
		out, err := runWorkflow(ctx, s, s.acceptOfferSaga, entity.IntentAcceptOffer, st)
		if err != nil {
			return nil, err
		}
		s.invalidate("nfts", "offers", "transactions")
		return &entity.OfferResult{
			WorkflowResult: st.result(out.Intent.ID, out.Warnings),
			TokenID:        req.TokenID,
			Price:          utils.FormatEther(st.accepted.Price),
			ApproveHash:    st.approveHash.Hex(),
		}, nil
	})
}

type cancelOfferState struct {
	flow
	req entity.CancelOfferRequest

	txHash    common.Hash
	receipt   *types.Receipt
	cancelled contracts.OfferCancelledEvent
}

func (s *MarketplaceServiceImpl) buildCancelOfferSaga() *saga.Saga[cancelOfferState] {
	retries, delay := s.storeRetries()
	return newWorkflow(s, "cancel_offer", func(st *cancelOfferState) *flow { return &st.flow }).
		WithStep("validate", func(_ context.Context, st *cancelOfferState) error {
			return s.validateRequest("validate", st.req)
		}).
		WithStep("check_session", func(ctx context.Context, st *cancelOfferState) error { return s.checkSession(ctx, &st.flow) }).
		WithStep("check_balance", func(ctx context.Context, st *cancelOfferState) error {
			return s.tx.ensureBalance(ctx, st.tc, nil)
		}).
		WithSubmitStep("submit_cancel", func(ctx context.Context, st *cancelOfferState) error {
			call, err := s.Codec.CancelOffer(new(big.Int).SetUint64(st.req.TokenID))
			if err != nil {
				return err
			}
			return s.submit(ctx, &st.flow, call, &st.txHash)
		}).
		WithStep("confirm_cancel", func(ctx context.Context, st *cancelOfferState) error {
			return s.confirm(ctx, &st.flow, "cancelOffer", st.txHash, &st.receipt)
		}).
		WithStep("parse_offer_cancelled", func(_ context.Context, st *cancelOfferState) error {
			ev, err := s.Codec.ParseOfferCancelled(st.receipt)
			st.cancelled = ev
			return err
		}).
		WithSoftStep("persist_cancelled_offer", "The offer was cancelled but may still show as pending for a moment.",
			func(ctx context.Context, st *cancelOfferState) error {
				nft, err := s.Store.FindNFT(ctx, s.Codec.NFTAddress().Hex(), st.req.TokenID, st.tc.chainID)
				if err != nil {
					return fmt.Errorf("failed to find nft %d: %w", st.req.TokenID, err)
				}
				if _, err := s.Store.UpdateOfferStatus(ctx, nft.ID, st.account, entity.OfferCancelled); err != nil && !errors.Is(err, entity.ErrRecordNotFound) {
					return fmt.Errorf("failed to mark offer cancelled: %w", err)
				}
				return nil
			}, retries, delay)
}

// CancelOffer withdraws the session account's offer and refunds the escrow.
func (s *MarketplaceServiceImpl) CancelOffer(ctx context.Context, req entity.CancelOfferRequest) (*entity.OfferResult, error) {
	return dedupe(s, s.dedupKey(entity.IntentCancelOffer, req.TokenID), func() (*entity.OfferResult, error) {
		st := &cancelOfferState{req: req}
		out, err := runWorkflow(ctx, s, s.cancelOfferSaga, entity.IntentCancelOffer, st)
		if err != nil {
			return nil, err
		}
		s.invalidate("offers")
		return &entity.OfferResult{
			WorkflowResult: st.result(out.Intent.ID, out.Warnings),
			TokenID:        req.TokenID,
		}, nil
	})
}
