package main

import (
	"os"

	"sakura_marketplace/cmd/marketplace/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
