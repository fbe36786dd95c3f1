package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"sakura_marketplace/internal/app/service"
	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/metrics"
	clientprovider "sakura_marketplace/internal/infrastructure/network/client"
	networkdefinition "sakura_marketplace/internal/infrastructure/network/definition"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	var chainID uint64
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print live block height, gas price and block time",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := networkdefinition.NewNetworkDefinitionProvider(log)
			if err != nil {
				return err
			}
			clients := clientprovider.NewEVMClientProvider(cfg, log, metrics.Nop{})
			svc := service.NewNetworkStatsService(registry, clients, cfg.Performance.MaxConcurrentRoutines, log)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			var rows []entity.NetworkStats
			if chainID != 0 {
				st, err := svc.NetworkStats(ctx, chainID)
				if err != nil {
					return errors.New(entity.UserMessage(err))
				}
				rows = append(rows, st)
			} else {
				rows = svc.AllNetworkStats(ctx)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NETWORK\tCHAIN ID\tBLOCK\tGAS (GWEI)\tBLOCK TIME (S)")
			for _, st := range rows {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%.2f\n", st.NetworkName, st.ChainID, st.BlockNumber, st.GasPriceGwei, st.AvgBlockTimeSeconds)
			}
			return w.Flush()
		},
	}

	cmd.Flags().Uint64Var(&chainID, "chain", 0, "chain id to query (default: every supported network)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline")
	return cmd
}
