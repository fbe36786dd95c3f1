package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"sakura_marketplace/internal/app/service"
	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/contracts"
	"sakura_marketplace/internal/infrastructure/datastore"
	"sakura_marketplace/internal/infrastructure/metrics"
	clientprovider "sakura_marketplace/internal/infrastructure/network/client"
	networkdefinition "sakura_marketplace/internal/infrastructure/network/definition"
	"sakura_marketplace/internal/infrastructure/restapi"
	"sakura_marketplace/internal/infrastructure/wallet"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the reconciler and the read-model sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheus(reg)

	networks, err := networkdefinition.NewNetworkDefinitionProvider(log)
	if err != nil {
		return err
	}
	clients := clientprovider.NewEVMClientProvider(cfg, log, recorder)

	codec, err := contracts.NewCodec(entity.DeployedContracts)
	if err != nil {
		return fmt.Errorf("failed to load contract ABIs: %w", err)
	}

	sb, err := datastore.NewClient(cfg.Supabase)
	if err != nil {
		return err
	}
	store := datastore.NewStore(sb, log)
	storage := datastore.NewStorage(sb.Storage, log)
	prober := datastore.NewProber(cfg.ConnectionTimeout())

	endpoint, err := datastore.RealtimeEndpoint(cfg.Supabase)
	if err != nil {
		return err
	}
	feed := datastore.NewRealtime(endpoint, log)

	wallets := wallet.NewRegistry(cfg, log, recorder)
	defer wallets.Close()

	switcher := service.NewNetworkSwitchCoordinator(networks, log)
	session := service.NewSessionService(wallets, networks, switcher, store, log)
	defer session.Disconnect()

	readModel := service.NewReadModelService(store, feed, cfg.Cache, log, recorder)
	reconciler := service.NewReconciler(cfg.Reconciler, log, recorder)
	stats := service.NewNetworkStatsService(networks, clients, cfg.Performance.MaxConcurrentRoutines, log)

	marketplace := service.NewMarketplaceService(service.MarketplaceDeps{
		Session:    session,
		Networks:   networks,
		Clients:    clients,
		Store:      store,
		Storage:    storage,
		Prober:     prober,
		Codec:      codec,
		Reconciler: reconciler,
		ReadModel:  readModel,
		Metrics:    recorder,
		Logger:     log,
	}, cfg)

	go reconciler.Run(ctx)
	if err := readModel.Start(ctx); err != nil {
		// Views still expire on their TTL without the feed.
		log.Warn("Read-model change feed unavailable", "error", err)
	}

	profiles := service.NewProfileService(store, log)

	handler := restapi.NewHandler(restapi.Deps{
		Session:     session,
		Marketplace: marketplace,
		ReadModel:   readModel,
		Profiles:    profiles,
		Stats:       stats,
		Networks:    networks,
		Reconciler:  reconciler,
		Intents:     marketplace,
		Logger:      log,
	}, cfg.Server.MaxUploadBytes)
	router := restapi.SetupRouter(handler, cfg.Server, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exiting", "pending_reconciliation", reconciler.Pending())
	return nil
}
