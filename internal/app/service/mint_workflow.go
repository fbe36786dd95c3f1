package service

import (
	"context"
	"fmt"

	"sakura_marketplace/internal/app/saga"
	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/contracts"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// allowedImageTypes maps accepted MIME types to the stored file extension.
var allowedImageTypes = map[string]string{ //nolint:gochecknoglobals
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

type mintState struct {
	flow
	req         entity.MintRequest
	contentType string
	ext         string

	imagePath    string
	imageURL     string
	metadataPath string
	metadataURI  string

	txHash  common.Hash
	receipt *types.Receipt
	minted  contracts.MintedEvent
}

func (s *MarketplaceServiceImpl) buildMintSaga() *saga.Saga[mintState] {
	retries, delay := s.storeRetries()
	return newWorkflow(s, "mint", func(st *mintState) *flow { return &st.flow }).
		WithStep("validate", s.validateMint).
		WithStep("check_session", func(ctx context.Context, st *mintState) error { return s.checkSession(ctx, &st.flow) }).
		WithCompensableStep("upload_image", s.uploadImage, s.removeImage).
		WithCompensableStep("upload_metadata", s.uploadMetadata, s.removeMetadata).
		WithRetryableStep("verify_metadata", func(ctx context.Context, st *mintState) error {
			return s.Prober.Probe(ctx, st.metadataURI)
		}, s.cfg.MetadataProbeRetries, delay).
		WithStep("check_balance", func(ctx context.Context, st *mintState) error {
			return s.tx.ensureBalance(ctx, st.tc, nil)
		}).
		WithSubmitStep("submit_mint", func(ctx context.Context, st *mintState) error {
			call, err := s.Codec.MintNFT(st.tc.account, st.metadataURI)
			if err != nil {
				return err
			}
			return s.submit(ctx, &st.flow, call, &st.txHash)
		}).
		WithStep("confirm_mint", func(ctx context.Context, st *mintState) error {
			return s.confirm(ctx, &st.flow, "mintNFT", st.txHash, &st.receipt)
		}).
		WithStep("parse_minted", func(_ context.Context, st *mintState) error {
			ev, err := s.Codec.ParseMinted(st.receipt)
			if err != nil {
				return err
			}
			st.minted = ev
			return nil
		}).
		WithSoftStep("persist_nft", "The NFT was minted but could not be saved to the marketplace yet. It will be retried automatically.",
			s.persistMint, retries, delay)
}

func (s *MarketplaceServiceImpl) validateMint(_ context.Context, st *mintState) error {
	const op = "validate"
	if err := s.validateRequest(op, st.req); err != nil {
		return err
	}
	if len(st.req.Image) > s.cfg.MaxImageBytes {
		return validationError(op, fmt.Sprintf("Image must be at most %d MB", s.cfg.MaxImageBytes>>20))
	}
	detected := mimetype.Detect(st.req.Image)
	for mime, ext := range allowedImageTypes {
		if detected.Is(mime) {
			st.contentType, st.ext = mime, ext
			return nil
		}
	}
	return validationError(op, fmt.Sprintf("Unsupported image type %s. Please upload a PNG, JPEG, GIF or WebP image.", detected.String()))
}

func (s *MarketplaceServiceImpl) uploadImage(ctx context.Context, st *mintState) error {
	path := fmt.Sprintf("nfts/%s.%s", uuid.NewString(), st.ext)
	url, err := s.Storage.Upload(ctx, s.buckets.ImagesBucket, path, st.contentType, st.req.Image)
	if err != nil {
		return fmt.Errorf("failed to upload image: %w", err)
	}
	st.imagePath, st.imageURL = path, url
	return nil
}

func (s *MarketplaceServiceImpl) removeImage(ctx context.Context, st *mintState) error {
	return s.Storage.Remove(ctx, s.buckets.ImagesBucket, st.imagePath)
}

func (s *MarketplaceServiceImpl) uploadMetadata(ctx context.Context, st *mintState) error {
	doc := entity.TokenMetadata{
		Name:        st.req.Name,
		Description: st.req.Description,
		Image:       st.imageURL,
		Attributes:  []entity.MetadataAttribute{},
	}
	data, err := jsonAPI.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	path := fmt.Sprintf("metadata/%s.json", uuid.NewString())
	uri, err := s.Storage.Upload(ctx, s.buckets.MetadataBucket, path, "application/json", data)
	if err != nil {
		return fmt.Errorf("failed to upload metadata: %w", err)
	}
	st.metadataPath, st.metadataURI = path, uri
	return nil
}

func (s *MarketplaceServiceImpl) removeMetadata(ctx context.Context, st *mintState) error {
	return s.Storage.Remove(ctx, s.buckets.MetadataBucket, st.metadataPath)
}

// persistMint is idempotent: the NFT upserts on (contract, token, chain) and the history row on (tx_hash, type).
func (s *MarketplaceServiceImpl) persistMint(ctx context.Context, st *mintState) error {
	nft, err := s.Store.InsertNFT(ctx, entity.NFTRecord{
		TokenID:        st.minted.TokenID.Uint64(),
		ContractAddr:   s.Codec.NFTAddress().Hex(),
		ChainID:        st.tc.chainID,
		Name:           st.req.Name,
		Description:    st.req.Description,
		ImageURL:       st.imageURL,
		OwnerAddress:   st.account,
		CreatorAddress: st.account,
		MetadataURI:    st.metadataURI,
	})
	if err != nil {
		return fmt.Errorf("failed to insert nft: %w", err)
	}
	return s.Store.RecordTransaction(ctx, entity.TransactionRecord{
		NFTID:       nft.ID,
		ChainID:     st.tc.chainID,
		FromAddress: common.Address{}.Hex(),
		ToAddress:   st.account,
		Type:        entity.HistoryMint,
		TxHash:      st.txHash.Hex(),
	})
}

// MintNFT uploads the image and metadata, mints the token and records it.
func (s *MarketplaceServiceImpl) MintNFT(ctx context.Context, req entity.MintRequest) (*entity.MintResult, error) {
	key := s.dedupKey(entity.IntentMint, req.Name, req.Description, hexutil.Encode(crypto.Keccak256(req.Image)))
	return dedupe(s, key, func() (*entity.MintResult, error) {
		st := &mintState{req: req}
		out, err := runWorkflow(ctx, s, s.mintSaga, entity.IntentMint, st)
		if err != nil {
			return nil, err
		}
		s.invalidate("nfts", "transactions")
		return &entity.MintResult{
			WorkflowResult: st.result(out.Intent.ID, out.Warnings),
			TokenID:        st.minted.TokenID.Uint64(),
			ImageURL:       st.imageURL,
			MetadataURI:    st.metadataURI,
		}, nil
	})
}
