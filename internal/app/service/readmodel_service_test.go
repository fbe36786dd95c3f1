package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/configloader"
	"sakura_marketplace/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanFeed struct {
	events chan entity.ChangeEvent
	tables []string
}

func (f *chanFeed) Listen(ctx context.Context, tables []string) (<-chan entity.ChangeEvent, error) {
	f.tables = tables
	out := make(chan entity.ChangeEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-f.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func testCacheConfig() configloader.CacheConfig {
	return configloader.CacheConfig{
		DefaultExpirationSeconds: 60,
		CleanupIntervalSeconds:   60,
		ActivityLimit:            50,
		ListingsLimit:            100,
		RefreshDebounceMillis:    5,
	}
}

func sale(from, to, price, hash string) entity.TransactionRecord {
	p := json.Number(price)
	return entity.TransactionRecord{FromAddress: from, ToAddress: to, Price: &p, Type: entity.HistorySale, TxHash: hash}
}

func seedMarket(t *testing.T, store *fakeStore) {
	t.Helper()
	ctx := context.Background()
	for i, owner := range []string{"0xaaa", "0xaaa", "0xbbb"} {
		_, err := store.InsertNFT(ctx, entity.NFTRecord{TokenID: uint64(i + 1), ContractAddr: "0xnft", ChainID: 1, OwnerAddress: owner, CreatorAddress: "0xccc"})
		require.NoError(t, err)
	}
	require.NoError(t, store.InsertListing(ctx, entity.ListingRecord{ListingID: 1, ChainID: 1, Price: "1", Active: true}))
	require.NoError(t, store.InsertListing(ctx, entity.ListingRecord{ListingID: 2, ChainID: 1, Price: "1", Active: false}))
	require.NoError(t, store.RecordTransaction(ctx, sale("0xbbb", "0xaaa", "0.5", "0x1")))
	require.NoError(t, store.RecordTransaction(ctx, sale("0xccc", "0xaaa", "1.5", "0x2")))
	require.NoError(t, store.RecordTransaction(ctx, entity.TransactionRecord{Type: entity.HistoryMint, TxHash: "0x3", ToAddress: "0xccc"}))
}

func TestAnalytics_Summarizes(t *testing.T) {
	store := newFakeStore()
	seedMarket(t, store)
	svc := NewReadModelService(store, nil, testCacheConfig(), logger.NewNop(), nil)

	got, err := svc.Analytics(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalNFTs)
	assert.Equal(t, 2, got.TotalSales)
	assert.Equal(t, 1, got.ActiveListings)
	assert.Equal(t, "2", got.VolumeETH)
	assert.Equal(t, "1", got.AverageSaleETH)
	assert.Equal(t, 2, got.UniqueCollectors)
}

func TestLeaderboard_Ranks(t *testing.T) {
	store := newFakeStore()
	seedMarket(t, store)
	svc := NewReadModelService(store, nil, testCacheConfig(), logger.NewNop(), nil)

	got, err := svc.Leaderboard(context.Background())

	require.NoError(t, err)
	require.Len(t, got.TopCollectors, 2)
	assert.Equal(t, entity.LeaderboardEntry{Rank: 1, WalletAddress: "0xaaa", Count: 2}, got.TopCollectors[0])
	require.Len(t, got.TopCreators, 1)
	assert.Equal(t, 3, got.TopCreators[0].Count)

	require.Len(t, got.TopTraders, 3)
	assert.Equal(t, "0xaaa", got.TopTraders[0].WalletAddress)
	assert.Equal(t, "2", got.TopTraders[0].VolumeETH)
	assert.Equal(t, "0xccc", got.TopTraders[1].WalletAddress)
}

func TestActivityFeed_CachesUntilInvalidated(t *testing.T) {
	store := newFakeStore()
	seedMarket(t, store)
	svc := NewReadModelService(store, nil, testCacheConfig(), logger.NewNop(), nil)
	ctx := context.Background()

	feed, err := svc.ActivityFeed(ctx)
	require.NoError(t, err)
	assert.Len(t, feed, 3)
	assert.Equal(t, "0x3", feed[0].TxHash)

	_, err = svc.ActivityFeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.callCount("RecentTransactions"))

	svc.Invalidate("offers")
	_, _ = svc.ActivityFeed(ctx)
	assert.Equal(t, 1, store.callCount("RecentTransactions"))

	svc.Invalidate("transactions")
	_, _ = svc.ActivityFeed(ctx)
	assert.Equal(t, 2, store.callCount("RecentTransactions"))
}

// gatedStore blocks RecentTransactions until release is closed.
type gatedStore struct {
	*fakeStore
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) RecentTransactions(ctx context.Context, limit int) ([]entity.TransactionRecord, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.fakeStore.RecentTransactions(ctx, limit)
}

func TestActivityFeed_LoadRacingInvalidateIsNotCached(t *testing.T) {
	store := &gatedStore{fakeStore: newFakeStore(), entered: make(chan struct{}, 1), release: make(chan struct{})}
	seedMarket(t, store.fakeStore)
	svc := NewReadModelService(store, nil, testCacheConfig(), logger.NewNop(), nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.ActivityFeed(ctx)
		done <- err
	}()
	<-store.entered

	svc.Invalidate("transactions")
	close(store.release)
	require.NoError(t, <-done)

	feed, err := svc.ActivityFeed(ctx)
	require.NoError(t, err)
	assert.Len(t, feed, 3)
	assert.Equal(t, 2, store.callCount("RecentTransactions"))
}

func TestMarketplaceListings_OnlyActive(t *testing.T) {
	store := newFakeStore()
	seedMarket(t, store)
	svc := NewReadModelService(store, nil, testCacheConfig(), logger.NewNop(), nil)

	listings, err := svc.MarketplaceListings(context.Background())

	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, uint64(1), listings[0].ListingID)
}

func TestReadModel_StoreFailureIsRPCError(t *testing.T) {
	store := newFakeStore()
	store.failNext("RecentTransactions", 1)
	svc := NewReadModelService(store, nil, testCacheConfig(), logger.NewNop(), nil)

	_, err := svc.ActivityFeed(context.Background())

	assert.Equal(t, entity.KindRPC, entity.KindOf(err))
}

func TestReadModel_ChangeFeedRefreshesViews(t *testing.T) {
	store := newFakeStore()
	seedMarket(t, store)
	feed := &chanFeed{events: make(chan entity.ChangeEvent)}
	cfg := testCacheConfig()
	cfg.RefreshDebounceMillis = 50
	svc := NewReadModelService(store, feed, cfg, logger.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Start(ctx))
	assert.ElementsMatch(t, WatchedTables, feed.tables)

	_, err := svc.ActivityFeed(ctx)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		feed.events <- entity.ChangeEvent{Table: "transactions", Type: entity.ChangeInsert}
	}

	assert.Eventually(t, func() bool {
		return store.callCount("RecentTransactions") == 2
	}, time.Second, 5*time.Millisecond)
	// Bursts collapse into one refresh.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 2, store.callCount("RecentTransactions"))
}

func TestNotifications(t *testing.T) {
	store := newFakeStore()
	svc := NewReadModelService(store, nil, testCacheConfig(), logger.NewNop(), nil)
	ctx := context.Background()

	list, err := svc.Notifications(ctx, "0xABC")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, store.UpsertProfile(ctx, "0xabc"))
	profile, err := store.FindProfileByWallet(ctx, "0xabc")
	require.NoError(t, err)
	for _, title := range []string{"first", "second"} {
		require.NoError(t, store.InsertNotification(ctx, entity.NotificationRecord{ProfileID: profile.ID, Title: title}))
	}

	list, err = svc.Notifications(ctx, "0xABC")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Title)

	require.NoError(t, svc.MarkNotificationRead(ctx, list[1].ID))
	require.NoError(t, svc.MarkAllNotificationsRead(ctx, "0xabc"))
	list, err = svc.Notifications(ctx, "0xabc")
	require.NoError(t, err)
	for _, n := range list {
		assert.True(t, n.Read)
	}

	assert.Equal(t, entity.KindValidation, entity.KindOf(svc.MarkNotificationRead(ctx, "")))
}
