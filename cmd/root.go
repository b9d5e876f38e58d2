package cmd

import (
	"fmt"
	"os"

	"chowlive/logger"
	"chowlive/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chowlive",
	Short: "Chowlive is a shared listening room service.",
	Run: func(cmd *cobra.Command, args []string) {
		logger.InitLogger(logger.DefaultConfig())
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
