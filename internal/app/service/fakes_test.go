package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/configloader"
	"sakura_marketplace/internal/infrastructure/contracts"
	networkdefinition "sakura_marketplace/internal/infrastructure/network/definition"
	"sakura_marketplace/internal/pkg/logger"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000A11CE")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000B0B")
)

// providerError mimics an EIP-1193 error as surfaced by the go-ethereum rpc client.
type providerError struct {
	code int
	msg  string
	data interface{}
}

func (e *providerError) Error() string          { return e.msg }
func (e *providerError) ErrorCode() int         { return e.code }
func (e *providerError) ErrorData() interface{} { return e.data }

type walletHandler func(params []any) (any, error)

// fakeWallet is a scripted port.WalletProvider.
type fakeWallet struct {
	kind entity.WalletKind

	mu       sync.Mutex
	handlers map[string]walletHandler
	calls    []string
	subs     map[entity.ProviderEvent]map[int]func(json.RawMessage)
	nextSub  int
}

func newFakeWallet(kind entity.WalletKind) *fakeWallet {
	return &fakeWallet{
		kind:     kind,
		handlers: make(map[string]walletHandler),
		subs:     make(map[entity.ProviderEvent]map[int]func(json.RawMessage)),
	}
}

func (w *fakeWallet) Kind() entity.WalletKind { return w.kind }

func (w *fakeWallet) handle(method string, h walletHandler) *fakeWallet {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[method] = h
	return w
}

func (w *fakeWallet) returns(method string, v any) *fakeWallet {
	return w.handle(method, func([]any) (any, error) { return v, nil })
}

func (w *fakeWallet) fails(method string, err error) *fakeWallet {
	return w.handle(method, func([]any) (any, error) { return nil, err })
}

func (w *fakeWallet) Request(_ context.Context, result any, method string, params ...any) error {
	w.mu.Lock()
	w.calls = append(w.calls, method)
	h, ok := w.handlers[method]
	w.mu.Unlock()
	if !ok {
		return &providerError{code: -32601, msg: "method not supported: " + method}
	}

	v, err := h(params)
	if err != nil || result == nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

func (w *fakeWallet) Subscribe(event entity.ProviderEvent, handler func(json.RawMessage)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.subs[event] == nil {
		w.subs[event] = make(map[int]func(json.RawMessage))
	}
	w.nextSub++
	id := w.nextSub
	w.subs[event][id] = handler
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs[event], id)
	}
}

func (w *fakeWallet) emit(event entity.ProviderEvent, payload string) {
	w.mu.Lock()
	handlers := make([]func(json.RawMessage), 0, len(w.subs[event]))
	for _, h := range w.subs[event] {
		handlers = append(handlers, h)
	}
	w.mu.Unlock()
	for _, h := range handlers {
		h(json.RawMessage(payload))
	}
}

func (w *fakeWallet) subscriptions(event entity.ProviderEvent) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs[event])
}

func (w *fakeWallet) callLog() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

func (w *fakeWallet) count(method string) int {
	n := 0
	for _, c := range w.callLog() {
		if c == method {
			n++
		}
	}
	return n
}

type fakeWalletRegistry struct {
	wallets map[entity.WalletKind]port.WalletProvider
}

func (r *fakeWalletRegistry) Lookup(_ context.Context, kind entity.WalletKind) (port.WalletProvider, error) {
	if w, ok := r.wallets[kind]; ok {
		return w, nil
	}
	return nil, entity.NewError(entity.KindProviderNotFound, "lookup", kind.DisplayName()+" not installed. Please install "+kind.DisplayName()+" and try again.", nil)
}

func testNetworks() *networkdefinition.NetworkDefinitionProvider {
	p, err := networkdefinition.NewNetworkDefinitionProvider(logger.NewNop())
	if err != nil {
		panic(err)
	}
	return p
}

// fakeChain is a port.BlockchainClient whose receipts are produced by the wallet's eth_sendTransaction handler.
type fakeChain struct {
	def entity.NetworkDefinition

	mu          sync.Mutex
	balance     *big.Int
	estimateErr error
	gas         uint64
	callResult  []byte
	callErrs    []error
	receipts    map[common.Hash]*types.Receipt
	events      []string
	estimates   int
}

func newFakeChain(def entity.NetworkDefinition) *fakeChain {
	return &fakeChain{
		def:      def,
		balance:  big.NewInt(5e18),
		gas:      90_000,
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (c *fakeChain) record(event string) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

func (c *fakeChain) eventLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

func (c *fakeChain) BalanceAt(context.Context, common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balance), nil
}

func (c *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.estimates++
	if c.estimateErr != nil {
		return 0, c.estimateErr
	}
	return c.gas, nil
}

func (c *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (c *fakeChain) CallContract(context.Context, ethereum.CallMsg) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.callErrs) > 0 {
		err := c.callErrs[0]
		c.callErrs = c.callErrs[1:]
		return nil, err
	}
	return c.callResult, nil
}

func (c *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	c.events = append(c.events, "receipt:"+hash.Big().String())
	return r, nil
}

func (c *fakeChain) NetworkStats(context.Context) (entity.NetworkStats, error) {
	return entity.NetworkStats{ChainID: c.def.ChainID, NetworkName: c.def.Name, BlockNumber: 100}, nil
}

func (c *fakeChain) Definition() entity.NetworkDefinition { return c.def }

type fakeClients struct {
	clients map[uint64]port.BlockchainClient
	err     error
}

func (f *fakeClients) GetClient(def entity.NetworkDefinition) (port.BlockchainClient, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.clients[def.ChainID]
	if !ok {
		return nil, fmt.Errorf("no client for %s", def.Name)
	}
	return c, nil
}

// fakeSession is a connected port.SessionReader backed by a fakeWallet.
type fakeSession struct {
	wallet  *fakeWallet
	account string
	chainID uint64
}

func (s *fakeSession) Session() entity.WalletSession {
	if s.wallet == nil {
		return entity.WalletSession{}
	}
	return entity.WalletSession{Account: s.account, ChainID: s.chainID, State: entity.Connected, WalletKind: s.wallet.kind}
}

func (s *fakeSession) ActiveProvider() (port.WalletProvider, bool) {
	if s.wallet == nil {
		return nil, false
	}
	return s.wallet, true
}

func (s *fakeSession) CurrentAccount(ctx context.Context) (string, bool) {
	if s.wallet == nil {
		return "", false
	}
	var accounts []string
	if err := s.wallet.Request(ctx, &accounts, "eth_accounts"); err != nil || len(accounts) == 0 {
		return "", false
	}
	return accounts[0], true
}

func (s *fakeSession) CurrentChainID(ctx context.Context) (uint64, bool) {
	if s.wallet == nil {
		return 0, false
	}
	var id hexutil.Uint64
	if err := s.wallet.Request(ctx, &id, "eth_chainId"); err != nil {
		return 0, false
	}
	return uint64(id), true
}

// fakeStore is an in-memory port.MarketStore. failures[method] makes the next n calls of method fail.
type fakeStore struct {
	mu            sync.Mutex
	failures      map[string]int
	calls         map[string]int
	profiles      map[string]*entity.Profile
	nfts          []*entity.NFTRecord
	listings      []*entity.ListingRecord
	offers        []*entity.OfferRecord
	txs           []entity.TransactionRecord
	notifications []entity.NotificationRecord
	watchlist     []*entity.WatchlistEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		failures: make(map[string]int),
		calls:    make(map[string]int),
		profiles: make(map[string]*entity.Profile),
	}
}

var errStoreUnavailable = errors.New("store unavailable")

func (s *fakeStore) failNext(method string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = n
}

// enter must be called with s.mu held.
func (s *fakeStore) enter(method string) error {
	s.calls[method]++
	if s.failures[method] > 0 {
		s.failures[method]--
		return fmt.Errorf("%s: %w", method, errStoreUnavailable)
	}
	return nil
}

func (s *fakeStore) callCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *fakeStore) UpsertProfile(_ context.Context, wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpsertProfile"); err != nil {
		return err
	}
	if _, ok := s.profiles[wallet]; !ok {
		s.profiles[wallet] = &entity.Profile{ID: fmt.Sprintf("profile-%d", len(s.profiles)+1), WalletAddress: wallet}
	}
	return nil
}

func (s *fakeStore) FindProfileByWallet(_ context.Context, wallet string) (*entity.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindProfileByWallet"); err != nil {
		return nil, err
	}
	p, ok := s.profiles[wallet]
	if !ok {
		return nil, entity.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) SaveProfile(_ context.Context, p entity.Profile) (*entity.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SaveProfile"); err != nil {
		return nil, err
	}
	if existing, ok := s.profiles[p.WalletAddress]; ok {
		p.ID = existing.ID
	} else {
		p.ID = fmt.Sprintf("profile-%d", len(s.profiles)+1)
	}
	s.profiles[p.WalletAddress] = &p
	cp := p
	return &cp, nil
}

func (s *fakeStore) AddToWatchlist(_ context.Context, entry entity.WatchlistEntry) (*entity.WatchlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AddToWatchlist"); err != nil {
		return nil, err
	}
	for _, w := range s.watchlist {
		if w.ProfileID == entry.ProfileID && w.NFTID == entry.NFTID {
			w.PriceAlert = entry.PriceAlert
			cp := *w
			return &cp, nil
		}
	}
	entry.ID = fmt.Sprintf("watch-%d", len(s.watchlist)+1)
	s.watchlist = append(s.watchlist, &entry)
	cp := entry
	return &cp, nil
}

func (s *fakeStore) RemoveFromWatchlist(_ context.Context, profileID, nftID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("RemoveFromWatchlist"); err != nil {
		return err
	}
	kept := s.watchlist[:0]
	for _, w := range s.watchlist {
		if w.ProfileID != profileID || w.NFTID != nftID {
			kept = append(kept, w)
		}
	}
	s.watchlist = kept
	return nil
}

func (s *fakeStore) SetPriceAlert(_ context.Context, profileID, nftID string, alert *json.Number) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SetPriceAlert"); err != nil {
		return err
	}
	for _, w := range s.watchlist {
		if w.ProfileID == profileID && w.NFTID == nftID {
			w.PriceAlert = alert
			return nil
		}
	}
	return entity.ErrRecordNotFound
}

func (s *fakeStore) ListWatchlist(_ context.Context, profileID string) ([]entity.WatchlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListWatchlist"); err != nil {
		return nil, err
	}
	var out []entity.WatchlistEntry
	for _, w := range s.watchlist {
		if w.ProfileID == profileID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (s *fakeStore) PriceAlertsFor(_ context.Context, nftID string) ([]entity.WatchlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("PriceAlertsFor"); err != nil {
		return nil, err
	}
	var out []entity.WatchlistEntry
	for _, w := range s.watchlist {
		if w.NFTID == nftID && w.PriceAlert != nil {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (s *fakeStore) OwnedNFTs(_ context.Context, owner string) ([]entity.OwnedNFT, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("OwnedNFTs"); err != nil {
		return nil, err
	}
	var out []entity.OwnedNFT
	for _, n := range s.nfts {
		if n.OwnerAddress != owner {
			continue
		}
		owned := entity.OwnedNFT{NFTRecord: *n}
		for _, l := range s.listings {
			if l.NFTID == n.ID {
				owned.Listings = append(owned.Listings, entity.ListingSummary{Active: l.Active, Price: l.Price})
			}
		}
		out = append(out, owned)
	}
	return out, nil
}

func (s *fakeStore) InsertNFT(_ context.Context, nft entity.NFTRecord) (*entity.NFTRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertNFT"); err != nil {
		return nil, err
	}
	for _, n := range s.nfts {
		if strings.EqualFold(n.ContractAddr, nft.ContractAddr) && n.TokenID == nft.TokenID && n.ChainID == nft.ChainID {
			id := n.ID
			*n = nft
			n.ID = id
			cp := *n
			return &cp, nil
		}
	}
	nft.ID = fmt.Sprintf("nft-%d", len(s.nfts)+1)
	stored := nft
	s.nfts = append(s.nfts, &stored)
	return &nft, nil
}

func (s *fakeStore) FindNFT(_ context.Context, contract string, tokenID, chainID uint64) (*entity.NFTRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindNFT"); err != nil {
		return nil, err
	}
	for _, n := range s.nfts {
		if strings.EqualFold(n.ContractAddr, contract) && n.TokenID == tokenID && n.ChainID == chainID {
			cp := *n
			return &cp, nil
		}
	}
	return nil, entity.ErrRecordNotFound
}

func (s *fakeStore) UpdateNFTOwner(_ context.Context, nftID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateNFTOwner"); err != nil {
		return err
	}
	for _, n := range s.nfts {
		if n.ID == nftID {
			n.OwnerAddress = owner
			return nil
		}
	}
	return entity.ErrRecordNotFound
}

func (s *fakeStore) nft(id string) *entity.NFTRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.nfts {
		if n.ID == id {
			cp := *n
			return &cp
		}
	}
	return nil
}

func (s *fakeStore) InsertListing(_ context.Context, l entity.ListingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertListing"); err != nil {
		return err
	}
	for _, existing := range s.listings {
		if existing.ListingID == l.ListingID && existing.ChainID == l.ChainID {
			id := existing.ID
			*existing = l
			existing.ID = id
			return nil
		}
	}
	l.ID = fmt.Sprintf("listing-%d", len(s.listings)+1)
	s.listings = append(s.listings, &l)
	return nil
}

func (s *fakeStore) FindListing(_ context.Context, listingID, chainID uint64) (*entity.ListingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindListing"); err != nil {
		return nil, err
	}
	for _, l := range s.listings {
		if l.ListingID == listingID && l.ChainID == chainID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, entity.ErrRecordNotFound
}

func (s *fakeStore) DeactivateListing(_ context.Context, listingID, chainID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DeactivateListing"); err != nil {
		return err
	}
	for _, l := range s.listings {
		if l.ListingID == listingID && l.ChainID == chainID {
			l.Active = false
			return nil
		}
	}
	return entity.ErrRecordNotFound
}

func (s *fakeStore) listing(listingID uint64) *entity.ListingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listings {
		if l.ListingID == listingID {
			cp := *l
			return &cp
		}
	}
	return nil
}

func (s *fakeStore) InsertOffer(_ context.Context, o entity.OfferRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertOffer"); err != nil {
		return err
	}
	for _, existing := range s.offers {
		if existing.NFTID == o.NFTID && existing.OffererAddress == o.OffererAddress {
			id := existing.ID
			*existing = o
			existing.ID = id
			return nil
		}
	}
	o.ID = fmt.Sprintf("offer-%d", len(s.offers)+1)
	s.offers = append(s.offers, &o)
	return nil
}

func (s *fakeStore) UpdateOfferStatus(_ context.Context, nftID, offerer string, status entity.OfferStatus) (*entity.OfferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateOfferStatus"); err != nil {
		return nil, err
	}
	for _, o := range s.offers {
		if o.NFTID == nftID && o.OffererAddress == offerer {
			o.Status = status
			cp := *o
			return &cp, nil
		}
	}
	return nil, entity.ErrRecordNotFound
}

func (s *fakeStore) RecordTransaction(_ context.Context, tx entity.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("RecordTransaction"); err != nil {
		return err
	}
	for i, existing := range s.txs {
		if existing.TxHash == tx.TxHash && existing.Type == tx.Type {
			s.txs[i] = tx
			return nil
		}
	}
	s.txs = append(s.txs, tx)
	return nil
}

func (s *fakeStore) transactions() []entity.TransactionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.TransactionRecord(nil), s.txs...)
}

func (s *fakeStore) InsertNotification(_ context.Context, n entity.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertNotification"); err != nil {
		return err
	}
	n.ID = fmt.Sprintf("notification-%d", len(s.notifications)+1)
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *fakeStore) ListNotifications(_ context.Context, profileID string, limit int) ([]entity.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListNotifications"); err != nil {
		return nil, err
	}
	var out []entity.NotificationRecord
	for i := len(s.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if s.notifications[i].ProfileID == profileID {
			out = append(out, s.notifications[i])
		}
	}
	return out, nil
}

func (s *fakeStore) MarkNotificationRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("MarkNotificationRead"); err != nil {
		return err
	}
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].Read = true
		}
	}
	return nil
}

func (s *fakeStore) MarkAllNotificationsRead(_ context.Context, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("MarkAllNotificationsRead"); err != nil {
		return err
	}
	for i := range s.notifications {
		if s.notifications[i].ProfileID == profileID {
			s.notifications[i].Read = true
		}
	}
	return nil
}

func (s *fakeStore) RecentTransactions(_ context.Context, limit int) ([]entity.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("RecentTransactions"); err != nil {
		return nil, err
	}
	var out []entity.TransactionRecord
	for i := len(s.txs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.txs[i])
	}
	return out, nil
}

func (s *fakeStore) ActiveListings(_ context.Context, limit int) ([]entity.ListingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ActiveListings"); err != nil {
		return nil, err
	}
	var out []entity.ListingRecord
	for _, l := range s.listings {
		if l.Active && len(out) < limit {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *fakeStore) SaleTransactions(context.Context) ([]entity.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SaleTransactions"); err != nil {
		return nil, err
	}
	var out []entity.TransactionRecord
	for _, tx := range s.txs {
		if tx.Type == entity.HistorySale {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *fakeStore) AllNFTs(context.Context) ([]entity.NFTRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AllNFTs"); err != nil {
		return nil, err
	}
	out := make([]entity.NFTRecord, len(s.nfts))
	for i, n := range s.nfts {
		out[i] = *n
	}
	return out, nil
}

func (s *fakeStore) CountActiveListings(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CountActiveListings"); err != nil {
		return 0, err
	}
	n := 0
	for _, l := range s.listings {
		if l.Active {
			n++
		}
	}
	return n, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
	failOn  string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(_ context.Context, bucket, path, _ string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && strings.HasPrefix(path, f.failOn) {
		return "", errors.New("upload failed")
	}
	f.objects[bucket+"/"+path] = data
	return "https://storage.test/" + bucket + "/" + path, nil
}

func (f *fakeStorage) Remove(_ context.Context, bucket string, paths ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		delete(f.objects, bucket+"/"+p)
		f.removed = append(f.removed, bucket+"/"+p)
	}
	return nil
}

type fakeProber struct {
	failures int
	calls    int
}

func (p *fakeProber) Probe(context.Context, string) error {
	p.calls++
	if p.failures > 0 {
		p.failures--
		return errors.New("metadata not reachable yet")
	}
	return nil
}

type fakeReadModel struct {
	mu          sync.Mutex
	invalidated []string
}

func (f *fakeReadModel) ActivityFeed(context.Context) ([]entity.TransactionRecord, error) {
	return nil, nil
}

func (f *fakeReadModel) MarketplaceListings(context.Context) ([]entity.ListingRecord, error) {
	return nil, nil
}
func (f *fakeReadModel) Analytics(context.Context) (*entity.AnalyticsSummary, error) { return nil, nil }
func (f *fakeReadModel) Leaderboard(context.Context) (*entity.Leaderboard, error)    { return nil, nil }
func (f *fakeReadModel) Notifications(context.Context, string) ([]entity.NotificationRecord, error) {
	return nil, nil
}
func (f *fakeReadModel) MarkNotificationRead(context.Context, string) error     { return nil }
func (f *fakeReadModel) MarkAllNotificationsRead(context.Context, string) error { return nil }
func (f *fakeReadModel) Invalidate(tables ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, tables...)
}

func testConfig() *configloader.Config {
	return &configloader.Config{
		Supabase: configloader.SupabaseConfig{ImagesBucket: "nft-images", MetadataBucket: "nft-metadata"},
		Workflow: configloader.WorkflowConfig{
			ConfirmationTimeoutSeconds: 2,
			ReceiptPollIntervalMillis:  1,
			FallbackGasLimit:           500_000,
			StoreWriteRetries:          3,
			StoreRetryDelayMillis:      1,
			MetadataProbeRetries:       3,
			MaxImageBytes:              1 << 20,
		},
		Reconciler: configloader.ReconcilerConfig{IntervalSeconds: 1, MaxAttempts: 3},
	}
}

// receipt log builders

func eventTopic(sig string) common.Hash {
	return crypto.Keccak256Hash([]byte(sig))
}

func word(v *big.Int) []byte {
	return common.BigToHash(v).Bytes()
}

func addressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func mintedLog(nft common.Address, to common.Address, tokenID int64, uri string) *types.Log {
	stringTy, _ := abi.NewType("string", "", nil)
	data, _ := abi.Arguments{{Type: stringTy}}.Pack(uri)
	return &types.Log{
		Address: nft,
		Topics:  []common.Hash{eventTopic("Minted(address,uint256,string)"), addressTopic(to), common.BigToHash(big.NewInt(tokenID))},
		Data:    data,
	}
}

func listedLog(marketplace, seller, nft common.Address, listingID, tokenID int64, price *big.Int) *types.Log {
	data := append(append(word(new(big.Int).SetBytes(nft.Bytes())), word(big.NewInt(tokenID))...), word(price)...)
	return &types.Log{
		Address: marketplace,
		Topics:  []common.Hash{eventTopic("Listed(uint256,address,address,uint256,uint256)"), common.BigToHash(big.NewInt(listingID)), addressTopic(seller)},
		Data:    data,
	}
}

func soldLog(marketplace, buyer common.Address, listingID int64, price *big.Int) *types.Log {
	return &types.Log{
		Address: marketplace,
		Topics:  []common.Hash{eventTopic("Sold(uint256,address,uint256)"), common.BigToHash(big.NewInt(listingID)), addressTopic(buyer)},
		Data:    word(price),
	}
}

func offerLog(offerContract common.Address, sig string, nft common.Address, tokenID int64, who common.Address, price *big.Int) *types.Log {
	l := &types.Log{
		Address: offerContract,
		Topics:  []common.Hash{eventTopic(sig), addressTopic(nft), common.BigToHash(big.NewInt(tokenID)), addressTopic(who)},
	}
	if price != nil {
		l.Data = word(price)
	}
	return l
}

// marketHarness wires a MarketplaceServiceImpl to fakes. Each eth_sendTransaction mines immediately
// with the logs returned by onSend.
type marketHarness struct {
	svc        *MarketplaceServiceImpl
	wallet     *fakeWallet
	session    *fakeSession
	chain      *fakeChain
	store      *fakeStore
	storage    *fakeStorage
	prober     *fakeProber
	reconciler *Reconciler
	readModel  *fakeReadModel
	codec      *contracts.Codec
	network    entity.NetworkDefinition

	mu     sync.Mutex
	sent   []sendTxArgs
	onSend func(args sendTxArgs) []*types.Log
}

func newMarketHarness() *marketHarness {
	networks := testNetworks()
	def := networks.DefaultNetwork()
	codec, err := contracts.NewCodec(entity.DeployedContracts)
	if err != nil {
		panic(err)
	}

	h := &marketHarness{
		wallet:    newFakeWallet(entity.WalletMetaMask),
		chain:     newFakeChain(def),
		store:     newFakeStore(),
		storage:   newFakeStorage(),
		prober:    &fakeProber{},
		readModel: &fakeReadModel{},
		codec:     codec,
		network:   def,
	}
	h.session = &fakeSession{wallet: h.wallet, account: alice.Hex(), chainID: def.ChainID}
	h.wallet.
		returns("eth_accounts", []string{alice.Hex()}).
		returns("eth_chainId", hexutil.Uint64(def.ChainID)).
		handle("eth_sendTransaction", h.mine)

	cfg := testConfig()
	h.reconciler = NewReconciler(cfg.Reconciler, logger.NewNop(), nil)
	h.svc = NewMarketplaceService(MarketplaceDeps{
		Session:    h.session,
		Networks:   networks,
		Clients:    &fakeClients{clients: map[uint64]port.BlockchainClient{def.ChainID: h.chain}},
		Store:      h.store,
		Storage:    h.storage,
		Prober:     h.prober,
		Codec:      codec,
		Reconciler: h.reconciler,
		ReadModel:  h.readModel,
		Logger:     logger.NewNop(),
	}, cfg)
	return h
}

func (h *marketHarness) mine(params []any) (any, error) {
	args, ok := params[0].(sendTxArgs)
	if !ok {
		return nil, errors.New("unexpected eth_sendTransaction params")
	}

	h.mu.Lock()
	h.sent = append(h.sent, args)
	n := len(h.sent)
	onSend := h.onSend
	h.mu.Unlock()

	hash := common.BigToHash(big.NewInt(int64(0x1000 + n)))
	var logs []*types.Log
	if onSend != nil {
		logs = onSend(args)
	}
	h.chain.record("send:" + hash.Big().String())
	h.chain.mu.Lock()
	h.chain.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash, BlockNumber: big.NewInt(int64(n)), Logs: logs}
	h.chain.mu.Unlock()
	return hash, nil
}

func (h *marketHarness) sentTxs() []sendTxArgs {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]sendTxArgs(nil), h.sent...)
}

// seedNFT stores a minted token owned by owner.
func (h *marketHarness) seedNFT(tokenID uint64, owner common.Address) *entity.NFTRecord {
	nft, err := h.store.InsertNFT(context.Background(), entity.NFTRecord{
		TokenID:        tokenID,
		ContractAddr:   h.codec.NFTAddress().Hex(),
		ChainID:        h.network.ChainID,
		Name:           "Sakura",
		OwnerAddress:   strings.ToLower(owner.Hex()),
		CreatorAddress: strings.ToLower(owner.Hex()),
	})
	if err != nil {
		panic(err)
	}
	return nft
}

func selectorOf(data []byte, sig string) bool {
	return len(data) >= 4 && string(data[:4]) == string(crypto.Keccak256([]byte(sig))[:4])
}

func pngImage() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
}
