package contracts

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"sakura_marketplace/internal/domain/entity"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	parseOnce      sync.Once
	parsedABIs     map[string]abi.ABI
	errParseABI    error
	ErrNotDeployed = errors.New("contract address is not configured")
)

func loadABIs() (map[string]abi.ABI, error) {
	parseOnce.Do(func() {
		parsedABIs = make(map[string]abi.ABI, 3)
		for name, src := range map[string]string{
			"marketplace": marketplaceABI,
			"sakuraNFT":   sakuraNFTABI,
			"offer":       offerABI,
		} {
			parsed, err := abi.JSON(strings.NewReader(src))
			if err != nil {
				errParseABI = fmt.Errorf("failed to parse %s ABI: %w", name, err)
				return
			}
			parsedABIs[name] = parsed
		}
	})
	return parsedABIs, errParseABI
}

// ContractCall is an encoded call ready for eth_call or eth_sendTransaction.
type ContractCall struct {
	Method string
	To     common.Address
	Data   []byte
	Value  *big.Int
}

// Listing is the on-chain state of a marketplace listing.
type Listing struct {
	Seller  common.Address
	NFT     common.Address
	TokenID *big.Int
	Price   *big.Int
	Active  bool
}

// Codec encodes calls to and decodes events from the three marketplace contracts.
type Codec struct {
	marketplace     abi.ABI
	nft             abi.ABI
	offer           abi.ABI
	marketplaceAddr common.Address
	nftAddr         common.Address
	offerAddr       common.Address
}

// NewCodec builds a codec bound to addrs.
func NewCodec(addrs entity.ContractAddresses) (*Codec, error) {
	abis, err := loadABIs()
	if err != nil {
		return nil, err
	}
	for name, a := range map[string]string{"marketplace": addrs.Marketplace, "sakuraNFT": addrs.SakuraNFT, "offer": addrs.Offer} {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotDeployed)
		}
	}
	return &Codec{
		marketplace:     abis["marketplace"],
		nft:             abis["sakuraNFT"],
		offer:           abis["offer"],
		marketplaceAddr: common.HexToAddress(addrs.Marketplace),
		nftAddr:         common.HexToAddress(addrs.SakuraNFT),
		offerAddr:       common.HexToAddress(addrs.Offer),
	}, nil
}

// NFTAddress is the SakuraNFT collection address.
func (c *Codec) NFTAddress() common.Address { return c.nftAddr }

// MarketplaceAddress is the marketplace contract address.
func (c *Codec) MarketplaceAddress() common.Address { return c.marketplaceAddr }

// OfferAddress is the offer escrow contract address.
func (c *Codec) OfferAddress() common.Address { return c.offerAddr }

func pack(contract abi.ABI, to common.Address, value *big.Int, method string, args ...interface{}) (ContractCall, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return ContractCall{}, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	if value == nil {
		value = new(big.Int)
	}
	return ContractCall{Method: method, To: to, Data: data, Value: value}, nil
}

// MintNFT encodes SakuraNFT.mintNFT(to, uri).
func (c *Codec) MintNFT(to common.Address, uri string) (ContractCall, error) {
	return pack(c.nft, c.nftAddr, nil, "mintNFT", to, uri)
}

// ApproveMarketplace lets the marketplace transfer tokenID when it sells.
func (c *Codec) ApproveMarketplace(tokenID *big.Int) (ContractCall, error) {
	return pack(c.nft, c.nftAddr, nil, "approve", c.marketplaceAddr, tokenID)
}

// ApproveOffer lets the offer escrow transfer tokenID when an offer is accepted.
func (c *Codec) ApproveOffer(tokenID *big.Int) (ContractCall, error) {
	return pack(c.nft, c.nftAddr, nil, "approve", c.offerAddr, tokenID)
}

// ListNFT encodes Marketplace.listNFT(nft, tokenId, price).
func (c *Codec) ListNFT(tokenID, priceWei *big.Int) (ContractCall, error) {
	return pack(c.marketplace, c.marketplaceAddr, nil, "listNFT", c.nftAddr, tokenID, priceWei)
}

// BuyNFT encodes Marketplace.buyNFT(listingId) paying priceWei.
func (c *Codec) BuyNFT(listingID, priceWei *big.Int) (ContractCall, error) {
	return pack(c.marketplace, c.marketplaceAddr, priceWei, "buyNFT", listingID)
}

// MakeOffer encodes Offer.makeOffer(nft, tokenId) escrowing priceWei.
func (c *Codec) MakeOffer(tokenID, priceWei *big.Int) (ContractCall, error) {
	return pack(c.offer, c.offerAddr, priceWei, "makeOffer", c.nftAddr, tokenID)
}

// AcceptOffer encodes Offer.acceptOffer(nft, tokenId).
func (c *Codec) AcceptOffer(tokenID *big.Int) (ContractCall, error) {
	return pack(c.offer, c.offerAddr, nil, "acceptOffer", c.nftAddr, tokenID)
}

// CancelOffer encodes Offer.cancelOffer(nft, tokenId).
func (c *Codec) CancelOffer(tokenID *big.Int) (ContractCall, error) {
	return pack(c.offer, c.offerAddr, nil, "cancelOffer", c.nftAddr, tokenID)
}

// ListingQuery encodes the read of Marketplace.listings(listingId).
func (c *Codec) ListingQuery(listingID *big.Int) (ContractCall, error) {
	return pack(c.marketplace, c.marketplaceAddr, nil, "listings", listingID)
}

// UnpackListing decodes the result of ListingQuery.
func (c *Codec) UnpackListing(data []byte) (Listing, error) {
	out, err := c.marketplace.Unpack("listings", data)
	if err != nil {
		return Listing{}, fmt.Errorf("failed to unpack listings result: %w", err)
	}
	if len(out) != 5 {
		return Listing{}, fmt.Errorf("listings returned %d values, want 5", len(out))
	}

	var l Listing
	var ok bool
	if l.Seller, ok = out[0].(common.Address); !ok {
		return Listing{}, fmt.Errorf("listings seller: unexpected type %T", out[0])
	}
	if l.NFT, ok = out[1].(common.Address); !ok {
		return Listing{}, fmt.Errorf("listings nft: unexpected type %T", out[1])
	}
	if l.TokenID, ok = out[2].(*big.Int); !ok {
		return Listing{}, fmt.Errorf("listings tokenId: unexpected type %T", out[2])
	}
	if !l.TokenID.IsUint64() {
		return Listing{}, fmt.Errorf("listings tokenId %s: %w", l.TokenID, ErrIDOutOfRange)
	}
	if l.Price, ok = out[3].(*big.Int); !ok {
		return Listing{}, fmt.Errorf("listings price: unexpected type %T", out[3])
	}
	if l.Active, ok = out[4].(bool); !ok {
		return Listing{}, fmt.Errorf("listings active: unexpected type %T", out[4])
	}
	return l, nil
}
