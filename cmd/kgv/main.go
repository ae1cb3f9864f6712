package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "kgv",
		Short:         "Verwaltung von Kleingartenbezirken, Parzellen und Anträgen",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Pfad zur Konfigurationsdatei")

	root.AddCommand(
		migrateCmd(&configPath),
		districtCmd(&configPath),
		plotCmd(&configPath),
		statsCmd(&configPath),
		waitlistCmd(&configPath),
	)
	return root
}
