package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

const networkStatsTTL = 10 * time.Second

// NetworkStatsServiceImpl reports live chain statistics, cached briefly per chain.
type NetworkStatsServiceImpl struct {
	networks      port.NetworkRegistry
	clients       port.BlockchainClientProvider
	logger        port.Logger
	cache         *cache.Cache
	maxConcurrent int
}

func NewNetworkStatsService(networks port.NetworkRegistry, clients port.BlockchainClientProvider, maxConcurrent int, logger port.Logger) *NetworkStatsServiceImpl {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &NetworkStatsServiceImpl{
		networks:      networks,
		clients:       clients,
		logger:        logger.With("component", "network_stats"),
		cache:         cache.New(networkStatsTTL, time.Minute),
		maxConcurrent: maxConcurrent,
	}
}

// NetworkStats returns head block, gas price and block time of chainID.
func (s *NetworkStatsServiceImpl) NetworkStats(ctx context.Context, chainID uint64) (entity.NetworkStats, error) {
	def, ok := s.networks.GetNetwork(chainID)
	if !ok {
		return entity.NetworkStats{}, entity.NewError(entity.KindUnsupportedNetwork, "network_stats",
			fmt.Sprintf("Chain %d is not supported", chainID), nil)
	}

	key := strconv.FormatUint(chainID, 10)
	if v, found := s.cache.Get(key); found {
		if stats, ok := v.(entity.NetworkStats); ok {
			return stats, nil
		}
	}

	client, err := s.clients.GetClient(def)
	if err != nil {
		return entity.NetworkStats{}, entity.NewError(entity.KindRPC, "network_stats", "", err)
	}
	stats, err := client.NetworkStats(ctx)
	if err != nil {
		s.logger.Warn("Failed to fetch network stats", "network", def.Name, "error", err)
		return entity.NetworkStats{}, entity.NewError(entity.KindRPC, "network_stats", "", err)
	}
	s.cache.Set(key, stats, cache.DefaultExpiration)
	return stats, nil
}

// AllNetworkStats fetches stats for every registered network concurrently.
// Networks whose endpoints fail are omitted and logged.
func (s *NetworkStatsServiceImpl) AllNetworkStats(ctx context.Context) []entity.NetworkStats {
	defs := s.networks.ListNetworks()
	results := make([]*entity.NetworkStats, len(defs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for i, def := range defs {
		i, def := i, def
		g.Go(func() error {
			stats, err := s.NetworkStats(gctx, def.ChainID)
			if err != nil {
				return nil
			}
			results[i] = &stats
			return nil
		})
	}
	_ = g.Wait()

	out := make([]entity.NetworkStats, 0, len(defs))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

var _ port.NetworkStatsService = (*NetworkStatsServiceImpl)(nil)
