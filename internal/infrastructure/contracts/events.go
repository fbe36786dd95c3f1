package contracts

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrEventNotFound means the receipt carries no log of the expected event from the expected contract.
var ErrEventNotFound = errors.New("event not found in receipt")

// ErrIDOutOfRange means an event carried an id that does not fit in uint64. It wraps ErrEventNotFound
// since no usable event was decoded.
var ErrIDOutOfRange = fmt.Errorf("id out of uint64 range: %w", ErrEventNotFound)

// MintedEvent is SakuraNFT.Minted.
type MintedEvent struct {
	To       common.Address
	TokenID  *big.Int
	TokenURI string
}

// ListedEvent is Marketplace.Listed.
type ListedEvent struct {
	ListingID *big.Int
	Seller    common.Address
	NFT       common.Address
	TokenID   *big.Int
	Price     *big.Int
}

// SoldEvent is Marketplace.Sold.
type SoldEvent struct {
	ListingID *big.Int
	Buyer     common.Address
	Price     *big.Int
}

// OfferMadeEvent is Offer.OfferMade.
type OfferMadeEvent struct {
	NFT     common.Address
	TokenID *big.Int
	Offerer common.Address
	Price   *big.Int
}

// OfferAcceptedEvent is Offer.OfferAccepted. Buyer is the offerer who receives the token.
type OfferAcceptedEvent struct {
	NFT     common.Address
	TokenID *big.Int
	Buyer   common.Address
	Price   *big.Int
}

// OfferCancelledEvent is Offer.OfferCancelled.
type OfferCancelledEvent struct {
	NFT     common.Address
	TokenID *big.Int
	Offerer common.Address
}

// decodeEvent returns the fields of the first log of event name emitted by addr.
func decodeEvent(contract abi.ABI, addr common.Address, name string, receipt *types.Receipt) (map[string]interface{}, error) {
	event, ok := contract.Events[name]
	if !ok {
		return nil, fmt.Errorf("unknown event %s", name)
	}
	if receipt == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrEventNotFound)
	}

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	for _, lg := range receipt.Logs {
		if lg == nil || lg.Address != addr || len(lg.Topics) == 0 || lg.Topics[0] != event.ID {
			continue
		}
		fields := make(map[string]interface{}, len(event.Inputs))
		if err := contract.UnpackIntoMap(fields, name, lg.Data); err != nil {
			return nil, fmt.Errorf("failed to unpack %s data: %w", name, err)
		}
		if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
			return nil, fmt.Errorf("failed to parse %s topics: %w", name, err)
		}
		return fields, nil
	}
	return nil, fmt.Errorf("%s: %w", name, ErrEventNotFound)
}

// idField reads a token or listing id, which the marketplace stores as uint64.
func idField(fields map[string]interface{}, event, key string) (*big.Int, error) {
	v := bigField(fields, key)
	if !v.IsUint64() {
		return nil, fmt.Errorf("%s.%s %s: %w", event, key, v, ErrIDOutOfRange)
	}
	return v, nil
}

func addressField(fields map[string]interface{}, key string) common.Address {
	v, _ := fields[key].(common.Address)
	return v
}

func bigField(fields map[string]interface{}, key string) *big.Int {
	if v, ok := fields[key].(*big.Int); ok && v != nil {
		return v
	}
	return new(big.Int)
}

// ParseMinted extracts the Minted event from a mint receipt.
func (c *Codec) ParseMinted(receipt *types.Receipt) (MintedEvent, error) {
	f, err := decodeEvent(c.nft, c.nftAddr, "Minted", receipt)
	if err != nil {
		return MintedEvent{}, err
	}
	tokenID, err := idField(f, "Minted", "tokenId")
	if err != nil {
		return MintedEvent{}, err
	}
	uri, _ := f["tokenURI"].(string)
	return MintedEvent{To: addressField(f, "to"), TokenID: tokenID, TokenURI: uri}, nil
}

// ParseListed extracts the Listed event from a listNFT receipt.
func (c *Codec) ParseListed(receipt *types.Receipt) (ListedEvent, error) {
	f, err := decodeEvent(c.marketplace, c.marketplaceAddr, "Listed", receipt)
	if err != nil {
		return ListedEvent{}, err
	}
	listingID, err := idField(f, "Listed", "listingId")
	if err != nil {
		return ListedEvent{}, err
	}
	tokenID, err := idField(f, "Listed", "tokenId")
	if err != nil {
		return ListedEvent{}, err
	}
	return ListedEvent{
		ListingID: listingID,
		Seller:    addressField(f, "seller"),
		NFT:       addressField(f, "nft"),
		TokenID:   tokenID,
		Price:     bigField(f, "price"),
	}, nil
}

// ParseSold extracts the Sold event from a buyNFT receipt.
func (c *Codec) ParseSold(receipt *types.Receipt) (SoldEvent, error) {
	f, err := decodeEvent(c.marketplace, c.marketplaceAddr, "Sold", receipt)
	if err != nil {
		return SoldEvent{}, err
	}
	return SoldEvent{ListingID: bigField(f, "listingId"), Buyer: addressField(f, "buyer"), Price: bigField(f, "price")}, nil
}

// ParseOfferMade extracts the OfferMade event from a makeOffer receipt.
func (c *Codec) ParseOfferMade(receipt *types.Receipt) (OfferMadeEvent, error) {
	f, err := decodeEvent(c.offer, c.offerAddr, "OfferMade", receipt)
	if err != nil {
		return OfferMadeEvent{}, err
	}
	return OfferMadeEvent{
		NFT:     addressField(f, "nft"),
		TokenID: bigField(f, "tokenId"),
		Offerer: addressField(f, "offerer"),
		Price:   bigField(f, "price"),
	}, nil
}

// ParseOfferAccepted extracts the OfferAccepted event from an acceptOffer receipt.
func (c *Codec) ParseOfferAccepted(receipt *types.Receipt) (OfferAcceptedEvent, error) {
	f, err := decodeEvent(c.offer, c.offerAddr, "OfferAccepted", receipt)
	if err != nil {
		return OfferAcceptedEvent{}, err
	}
	return OfferAcceptedEvent{
		NFT:     addressField(f, "nft"),
		TokenID: bigField(f, "tokenId"),
		Buyer:   addressField(f, "buyer"),
		Price:   bigField(f, "price"),
	}, nil
}

// ParseOfferCancelled extracts the OfferCancelled event from a cancelOffer receipt.
func (c *Codec) ParseOfferCancelled(receipt *types.Receipt) (OfferCancelledEvent, error) {
	f, err := decodeEvent(c.offer, c.offerAddr, "OfferCancelled", receipt)
	if err != nil {
		return OfferCancelledEvent{}, err
	}
	return OfferCancelledEvent{
		NFT:     addressField(f, "nft"),
		TokenID: bigField(f, "tokenId"),
		Offerer: addressField(f, "offerer"),
	}, nil
}
