package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/safeplate/safescan/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "safescan",
	Short: "Scan-to-safety pipeline for dietary restrictions",
	Long:  "Normalizes barcode decodes, looks products up in the catalog, resolves the subject's dietary restrictions, and computes a conservative safety verdict per scan.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
