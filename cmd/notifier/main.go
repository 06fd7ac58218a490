// Command notifier runs the pair-notify push delivery engine.
//
// Usage:
//
//	pair-notify serve
//	pair-notify sweep --limit 500
//	pair-notify countdown
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "pair-notify",
		Short:        "Push delivery for paired-relationship messaging",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(countdownCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
