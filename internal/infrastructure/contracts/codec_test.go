package contracts

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"sakura_marketplace/internal/domain/entity"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(entity.DeployedContracts)
	require.NoError(t, err)
	return c
}

func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

func TestNewCodec_RejectsMissingAddress(t *testing.T) {
	_, err := NewCodec(entity.ContractAddresses{Marketplace: entity.DeployedContracts.Marketplace})
	assert.ErrorIs(t, err, ErrNotDeployed)
}

func TestCodec_PacksCallsWithSelectorsAndValue(t *testing.T) {
	c := newTestCodec(t)

	mint, err := c.MintNFT(alice, "https://example.com/metadata/1.json")
	require.NoError(t, err)
	assert.Equal(t, selector("mintNFT(address,string)"), mint.Data[:4])
	assert.Equal(t, c.NFTAddress(), mint.To)
	assert.Zero(t, mint.Value.Sign())

	approve, err := c.ApproveMarketplace(big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, selector("approve(address,uint256)"), approve.Data[:4])
	assert.Equal(t, common.LeftPadBytes(c.MarketplaceAddress().Bytes(), 32), approve.Data[4:36])

	approveOffer, err := c.ApproveOffer(big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, common.LeftPadBytes(c.OfferAddress().Bytes(), 32), approveOffer.Data[4:36])

	price := big.NewInt(1_000_000_000_000_000)
	buy, err := c.BuyNFT(big.NewInt(3), price)
	require.NoError(t, err)
	assert.Equal(t, selector("buyNFT(uint256)"), buy.Data[:4])
	assert.Equal(t, c.MarketplaceAddress(), buy.To)
	assert.Equal(t, 0, buy.Value.Cmp(price))

	offer, err := c.MakeOffer(big.NewInt(3), price)
	require.NoError(t, err)
	assert.Equal(t, selector("makeOffer(address,uint256)"), offer.Data[:4])
	assert.Equal(t, c.OfferAddress(), offer.To)
	assert.Equal(t, 0, offer.Value.Cmp(price))

	list, err := c.ListNFT(big.NewInt(3), price)
	require.NoError(t, err)
	assert.Equal(t, selector("listNFT(address,uint256,uint256)"), list.Data[:4])
}

func TestCodec_UnpackListing(t *testing.T) {
	c := newTestCodec(t)
	seller := common.HexToAddress("0x00000000000000000000000000000000000005e1")
	encoded, err := c.marketplace.Methods["listings"].Outputs.Pack(seller, c.NFTAddress(), big.NewInt(9), big.NewInt(5e17), true)
	require.NoError(t, err)

	l, err := c.UnpackListing(encoded)
	require.NoError(t, err)
	assert.Equal(t, seller, l.Seller)
	assert.Equal(t, c.NFTAddress(), l.NFT)
	assert.Equal(t, int64(9), l.TokenID.Int64())
	assert.Equal(t, int64(5e17), l.Price.Int64())
	assert.True(t, l.Active)
}

func mintedLog(t *testing.T, c *Codec, addr common.Address, tokenID int64, uri string) *types.Log {
	t.Helper()
	ev := c.nft.Events["Minted"]
	data, err := ev.Inputs.NonIndexed().Pack(uri)
	require.NoError(t, err)
	return &types.Log{
		Address: addr,
		Topics: []common.Hash{
			ev.ID,
			common.BytesToHash(alice.Bytes()),
			common.BigToHash(big.NewInt(tokenID)),
		},
		Data: data,
	}
}

func TestCodec_ParseMinted(t *testing.T) {
	c := newTestCodec(t)
	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: c.NFTAddress(), Topics: []common.Hash{c.nft.Events["Transfer"].ID}},
		mintedLog(t, c, c.NFTAddress(), 42, "ipfs://meta"),
	}}

	ev, err := c.ParseMinted(receipt)
	require.NoError(t, err)
	assert.Equal(t, alice, ev.To)
	assert.Equal(t, int64(42), ev.TokenID.Int64())
	assert.Equal(t, "ipfs://meta", ev.TokenURI)
}

func TestCodec_RejectsIDsBeyondUint64(t *testing.T) {
	c := newTestCodec(t)
	huge := new(big.Int).Lsh(big.NewInt(1), 64)

	lg := mintedLog(t, c, c.NFTAddress(), 1, "ipfs://meta")
	lg.Topics[2] = common.BigToHash(huge)
	_, err := c.ParseMinted(&types.Receipt{Logs: []*types.Log{lg}})
	assert.ErrorIs(t, err, ErrIDOutOfRange)
	assert.ErrorIs(t, err, ErrEventNotFound)

	encoded, err := c.marketplace.Methods["listings"].Outputs.Pack(alice, c.NFTAddress(), huge, big.NewInt(1), true)
	require.NoError(t, err)
	_, err = c.UnpackListing(encoded)
	assert.ErrorIs(t, err, ErrIDOutOfRange)
}

func TestCodec_ParseIgnoresLogsFromOtherContracts(t *testing.T) {
	c := newTestCodec(t)
	receipt := &types.Receipt{Logs: []*types.Log{mintedLog(t, c, alice, 1, "x")}}

	_, err := c.ParseMinted(receipt)
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = c.ParseSold(&types.Receipt{})
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = c.ParseListed(nil)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestCodec_ParseOfferCancelledWithOnlyIndexedFields(t *testing.T) {
	c := newTestCodec(t)
	ev := c.offer.Events["OfferCancelled"]
	receipt := &types.Receipt{Logs: []*types.Log{{
		Address: c.OfferAddress(),
		Topics: []common.Hash{
			ev.ID,
			common.BytesToHash(c.NFTAddress().Bytes()),
			common.BigToHash(big.NewInt(5)),
			common.BytesToHash(alice.Bytes()),
		},
	}}}

	got, err := c.ParseOfferCancelled(receipt)
	require.NoError(t, err)
	assert.Equal(t, c.NFTAddress(), got.NFT)
	assert.Equal(t, int64(5), got.TokenID.Int64())
	assert.Equal(t, alice, got.Offerer)
}

func TestCodec_ParseSold(t *testing.T) {
	c := newTestCodec(t)
	ev := c.marketplace.Events["Sold"]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(1234))
	require.NoError(t, err)
	receipt := &types.Receipt{Logs: []*types.Log{{
		Address: c.MarketplaceAddress(),
		Topics:  []common.Hash{ev.ID, common.BigToHash(big.NewInt(8)), common.BytesToHash(alice.Bytes())},
		Data:    data,
	}}}

	sold, err := c.ParseSold(receipt)
	require.NoError(t, err)
	assert.Equal(t, int64(8), sold.ListingID.Int64())
	assert.Equal(t, alice, sold.Buyer)
	assert.Equal(t, int64(1234), sold.Price.Int64())
}

type revertError struct {
	msg  string
	data string
}

func (e *revertError) Error() string          { return e.msg }
func (e *revertError) ErrorCode() int         { return 3 }
func (e *revertError) ErrorData() interface{} { return e.data }

func TestRevertReason(t *testing.T) {
	stringTy, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringTy}}.Pack("Not token owner")
	require.NoError(t, err)
	data := hexutil.Encode(append(selector("Error(string)"), packed...))

	rpcErr := &revertError{msg: "execution reverted", data: data}
	assert.True(t, IsRevert(rpcErr))
	assert.Equal(t, "Not token owner", RevertReason(fmt.Errorf("eth_estimateGas on Sepolia: %w", rpcErr)))

	plain := errors.New("execution reverted: Listing not active")
	assert.True(t, IsRevert(plain))
	assert.Equal(t, "Listing not active", RevertReason(plain))

	assert.False(t, IsRevert(errors.New("connection refused")))
	assert.Empty(t, RevertReason(errors.New("connection refused")))
}
