package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	networkdefinition "sakura_marketplace/internal/infrastructure/network/definition"

	"github.com/spf13/cobra"
)

func networksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List the supported networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := networkdefinition.NewNetworkDefinitionProvider(log)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHAIN ID\tHEX\tNAME\tRPC\tEXPLORER")
			for _, def := range registry.ListNetworks() {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", def.ChainID, def.ChainIDHex, def.Name, def.PrimaryRPCURL, def.BlockExplorerURL)
			}
			return w.Flush()
		},
	}
}
