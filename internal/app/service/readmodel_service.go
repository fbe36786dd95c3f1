package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/configloader"
	"sakura_marketplace/internal/infrastructure/metrics"
	"sakura_marketplace/internal/pkg/utils"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	viewActivity    = "activity"
	viewListings    = "listings"
	viewAnalytics   = "analytics"
	viewLeaderboard = "leaderboard"

	notificationLimit = 50
	leaderboardSize   = 10
	refreshTimeout    = 15 * time.Second
)

// WatchedTables are the store tables whose changes invalidate cached views.
var WatchedTables = []string{"transactions", "listings", "nfts", "offers"} //nolint:gochecknoglobals

// viewsByTable lists the cached views that read each table.
var viewsByTable = map[string][]string{ //nolint:gochecknoglobals
	"transactions": {viewActivity, viewAnalytics, viewLeaderboard},
	"listings":     {viewListings, viewAnalytics},
	"nfts":         {viewActivity, viewListings, viewAnalytics, viewLeaderboard},
	"offers":       {},
}

// ReadModelServiceImpl serves dashboard views from a cache kept fresh by the store's change feed.
type ReadModelServiceImpl struct {
	store    port.MarketStore
	feed     port.ChangeFeed
	views    *cache.Cache
	group    singleflight.Group
	genMu    sync.Mutex
	gens     map[string]uint64
	metrics  port.Metrics
	logger   port.Logger
	activity int
	listings int
	debounce time.Duration

	timersMu sync.Mutex
	timers   map[string]*time.Timer
	baseCtx  context.Context
}

// NewReadModelService creates the read-model service. feed may be nil, then views only expire by TTL.
func NewReadModelService(store port.MarketStore, feed port.ChangeFeed, cfg configloader.CacheConfig, logger port.Logger, recorder port.Metrics) *ReadModelServiceImpl {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &ReadModelServiceImpl{
		store:    store,
		feed:     feed,
		views:    cache.New(time.Duration(cfg.DefaultExpirationSeconds)*time.Second, time.Duration(cfg.CleanupIntervalSeconds)*time.Second),
		metrics:  recorder,
		logger:   logger.With("component", "read_model"),
		activity: cfg.ActivityLimit,
		listings: cfg.ListingsLimit,
		debounce: time.Duration(cfg.RefreshDebounceMillis) * time.Millisecond,
		timers:   make(map[string]*time.Timer),
		gens:     make(map[string]uint64),
		baseCtx:  context.Background(),
	}
}

// Start follows the change feed until ctx is done. Each change drops the dependent views and
// schedules a debounced re-fetch.
func (s *ReadModelServiceImpl) Start(ctx context.Context) error {
	if s.feed == nil {
		return nil
	}
	events, err := s.feed.Listen(ctx, WatchedTables)
	if err != nil {
		return fmt.Errorf("failed to subscribe to change feed: %w", err)
	}

	s.timersMu.Lock()
	s.baseCtx = ctx
	s.timersMu.Unlock()

	go func() {
		for ev := range events {
			s.logger.Debug("Store change received", "table", ev.Table, "type", string(ev.Type))
			s.Invalidate(ev.Table)
			for _, view := range viewsByTable[ev.Table] {
				s.scheduleRefresh(view)
			}
		}
		s.stopTimers()
	}()
	return nil
}

// Invalidate drops the cached views that depend on tables.
func (s *ReadModelServiceImpl) Invalidate(tables ...string) {
	for _, table := range tables {
		for _, view := range viewsByTable[table] {
			s.dropView(view)
		}
	}
}

// dropView deletes view and bumps its generation so loads already in flight are not cached.
func (s *ReadModelServiceImpl) dropView(view string) {
	s.genMu.Lock()
	s.gens[view]++
	s.views.Delete(view)
	s.genMu.Unlock()
}

func (s *ReadModelServiceImpl) generation(view string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[view]
}

// storeView caches v unless view was dropped after generation gen was read.
func (s *ReadModelServiceImpl) storeView(view string, gen uint64, v interface{}) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gens[view] != gen {
		return false
	}
	s.views.Set(view, v, cache.DefaultExpiration)
	return true
}

func (s *ReadModelServiceImpl) scheduleRefresh(view string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	if t, ok := s.timers[view]; ok {
		t.Reset(s.debounce)
		return
	}
	s.timers[view] = time.AfterFunc(s.debounce, func() {
		s.timersMu.Lock()
		delete(s.timers, view)
		base := s.baseCtx
		s.timersMu.Unlock()

		if base.Err() != nil {
			return
		}
		ctx, cancel := context.WithTimeout(base, refreshTimeout)
		defer cancel()
		s.dropView(view)
		if err := s.refresh(ctx, view); err != nil {
			s.logger.Warn("Background view refresh failed", "view", view, "error", err)
		}
	})
}

func (s *ReadModelServiceImpl) stopTimers() {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	for view, t := range s.timers {
		t.Stop()
		delete(s.timers, view)
	}
}

func (s *ReadModelServiceImpl) refresh(ctx context.Context, view string) error {
	var err error
	switch view {
	case viewActivity:
		_, err = s.ActivityFeed(ctx)
	case viewListings:
		_, err = s.MarketplaceListings(ctx)
	case viewAnalytics:
		_, err = s.Analytics(ctx)
	case viewLeaderboard:
		_, err = s.Leaderboard(ctx)
	}
	return err
}

// cached returns the cached view or loads it once for all concurrent callers.
func cached[T any](ctx context.Context, s *ReadModelServiceImpl, view string, load func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := s.views.Get(view); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	gen := s.generation(view)
	v, err, _ := s.group.Do(fmt.Sprintf("%s#%d", view, gen), func() (interface{}, error) {
		loaded, err := load(ctx)
		if err != nil {
			s.metrics.IncReadModelRefresh(view, "error")
			return nil, err
		}
		if !s.storeView(view, gen, loaded) {
			s.logger.Debug("View changed while loading, not cached", "view", view)
		}
		s.metrics.IncReadModelRefresh(view, "ok")
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, entity.NewError(entity.KindRPC, view, "", err)
	}
	typed, _ := v.(T)
	return typed, nil
}

// ActivityFeed returns the latest transactions with their NFTs.
func (s *ReadModelServiceImpl) ActivityFeed(ctx context.Context) ([]entity.TransactionRecord, error) {
	return cached(ctx, s, viewActivity, func(ctx context.Context) ([]entity.TransactionRecord, error) {
		return s.store.RecentTransactions(ctx, s.activity)
	})
}

// MarketplaceListings returns the active listings with their NFTs.
func (s *ReadModelServiceImpl) MarketplaceListings(ctx context.Context) ([]entity.ListingRecord, error) {
	return cached(ctx, s, viewListings, func(ctx context.Context) ([]entity.ListingRecord, error) {
		return s.store.ActiveListings(ctx, s.listings)
	})
}

// Analytics computes the marketplace summary. The three store queries run concurrently.
func (s *ReadModelServiceImpl) Analytics(ctx context.Context) (*entity.AnalyticsSummary, error) {
	return cached(ctx, s, viewAnalytics, func(ctx context.Context) (*entity.AnalyticsSummary, error) {
		var (
			nfts   []entity.NFTRecord
			sales  []entity.TransactionRecord
			active int
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) { nfts, err = s.store.AllNFTs(gctx); return })
		g.Go(func() (err error) { sales, err = s.store.SaleTransactions(gctx); return })
		g.Go(func() (err error) { active, err = s.store.CountActiveListings(gctx); return })
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return summarize(nfts, sales, active), nil
	})
}

func priceWei(p *string) *big.Int {
	if p == nil || *p == "" {
		return new(big.Int)
	}
	wei, err := utils.ParseUnits(*p, utils.EtherDecimals)
	if err != nil {
		return new(big.Int)
	}
	return wei
}

func txPrice(tx entity.TransactionRecord) *big.Int {
	if tx.Price == nil {
		return new(big.Int)
	}
	s := tx.Price.String()
	return priceWei(&s)
}

func summarize(nfts []entity.NFTRecord, sales []entity.TransactionRecord, active int) *entity.AnalyticsSummary {
	volume := new(big.Int)
	for _, sale := range sales {
		volume.Add(volume, txPrice(sale))
	}
	average := new(big.Int)
	if len(sales) > 0 {
		average.Quo(volume, big.NewInt(int64(len(sales))))
	}

	owners := make(map[string]struct{}, len(nfts))
	for _, n := range nfts {
		if owner := utils.NormalizeAddress(n.OwnerAddress); owner != "" {
			owners[owner] = struct{}{}
		}
	}

	return &entity.AnalyticsSummary{
		TotalNFTs:        len(nfts),
		TotalSales:       len(sales),
		ActiveListings:   active,
		VolumeETH:        utils.FormatEther(volume),
		AverageSaleETH:   utils.FormatEther(average),
		UniqueCollectors: len(owners),
		GeneratedAt:      time.Now().UTC(),
	}
}

// Leaderboard ranks creators and collectors by NFT count and traders by sale volume.
func (s *ReadModelServiceImpl) Leaderboard(ctx context.Context) (*entity.Leaderboard, error) {
	return cached(ctx, s, viewLeaderboard, func(ctx context.Context) (*entity.Leaderboard, error) {
		var (
			nfts  []entity.NFTRecord
			sales []entity.TransactionRecord
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) { nfts, err = s.store.AllNFTs(gctx); return })
		g.Go(func() (err error) { sales, err = s.store.SaleTransactions(gctx); return })
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return rank(nfts, sales), nil
	})
}

type tally struct {
	count  int
	volume *big.Int
}

func rank(nfts []entity.NFTRecord, sales []entity.TransactionRecord) *entity.Leaderboard {
	creators := make(map[string]*tally)
	collectors := make(map[string]*tally)
	traders := make(map[string]*tally)

	bump := func(m map[string]*tally, addr string, amount *big.Int) {
		addr = utils.NormalizeAddress(addr)
		if addr == "" {
			return
		}
		t, ok := m[addr]
		if !ok {
			t = &tally{volume: new(big.Int)}
			m[addr] = t
		}
		t.count++
		if amount != nil {
			t.volume.Add(t.volume, amount)
		}
	}

	for _, n := range nfts {
		bump(creators, n.CreatorAddress, nil)
		bump(collectors, n.OwnerAddress, nil)
	}
	for _, sale := range sales {
		price := txPrice(sale)
		bump(traders, sale.FromAddress, price)
		bump(traders, sale.ToAddress, price)
	}

	return &entity.Leaderboard{
		TopCreators:   toEntries(creators, false),
		TopCollectors: toEntries(collectors, false),
		TopTraders:    toEntries(traders, true),
		GeneratedAt:   time.Now().UTC(),
	}
}

func toEntries(m map[string]*tally, byVolume bool) []entity.LeaderboardEntry {
	addrs := make([]string, 0, len(m))
	for addr := range m {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		a, b := m[addrs[i]], m[addrs[j]]
		if byVolume {
			if c := a.volume.Cmp(b.volume); c != 0 {
				return c > 0
			}
		}
		if a.count != b.count {
			return a.count > b.count
		}
		return addrs[i] < addrs[j]
	})

	addrs = utils.TopN(addrs, leaderboardSize)
	entries := make([]entity.LeaderboardEntry, len(addrs))
	for i, addr := range addrs {
		entries[i] = entity.LeaderboardEntry{Rank: i + 1, WalletAddress: addr, Count: m[addr].count}
		if byVolume {
			entries[i].VolumeETH = utils.FormatEther(m[addr].volume)
		}
	}
	return entries
}

// Notifications returns the latest notifications of the wallet's profile.
func (s *ReadModelServiceImpl) Notifications(ctx context.Context, walletAddress string) ([]entity.NotificationRecord, error) {
	profile, err := s.store.FindProfileByWallet(ctx, utils.NormalizeAddress(walletAddress))
	if errors.Is(err, entity.ErrRecordNotFound) {
		return []entity.NotificationRecord{}, nil
	}
	if err != nil {
		return nil, entity.NewError(entity.KindRPC, "notifications", "", err)
	}
	list, err := s.store.ListNotifications(ctx, profile.ID, notificationLimit)
	if err != nil {
		return nil, entity.NewError(entity.KindRPC, "notifications", "", err)
	}
	return list, nil
}

// MarkNotificationRead marks one notification read.
func (s *ReadModelServiceImpl) MarkNotificationRead(ctx context.Context, id string) error {
	if id == "" {
		return validationError("mark_read", "notification id is required")
	}
	if err := s.store.MarkNotificationRead(ctx, id); err != nil {
		return entity.NewError(entity.KindRPC, "mark_read", "", err)
	}
	return nil
}

// MarkAllNotificationsRead marks every notification of the wallet's profile read.
func (s *ReadModelServiceImpl) MarkAllNotificationsRead(ctx context.Context, walletAddress string) error {
	profile, err := s.store.FindProfileByWallet(ctx, utils.NormalizeAddress(walletAddress))
	if errors.Is(err, entity.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return entity.NewError(entity.KindRPC, "mark_all_read", "", err)
	}
	if err := s.store.MarkAllNotificationsRead(ctx, profile.ID); err != nil {
		return entity.NewError(entity.KindRPC, "mark_all_read", "", err)
	}
	return nil
}

var _ port.ReadModelService = (*ReadModelServiceImpl)(nil)
