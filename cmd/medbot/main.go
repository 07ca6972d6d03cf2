package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "medbot",
		Short:         "Medical question answering over an indexed reference",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (uses ./config.yaml or ~/.config/medbot/config.yaml if not provided)")

	root.AddCommand(
		newServeCmd(&cfgPath),
		newIngestCmd(&cfgPath),
		newChatCmd(&cfgPath),
		newMCPCmd(&cfgPath),
		newConfigCmd(&cfgPath),
	)
	return root
}
