package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/ad2web/internal/client"
	"github.com/alfredjeanlab/ad2web/internal/ui"
)

var (
	bridgeURL  string
	authToken  string
	mountPath  string
	jsonOutput bool

	bridgeClient client.BridgeClient
)

func envOr(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

var rootCmd = &cobra.Command{
	Use:           "ad2web <command>",
	Short:         "AlarmDecoder event bridge",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.SetColor(!jsonOutput && ui.ShouldUseColor(os.Stdout))
		bridgeClient = client.NewHTTPClient(bridgeURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if bridgeClient != nil {
			bridgeClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&bridgeURL, "url", envOr("AD2WEB_URL", "http://localhost:5000"), "bridge base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("AD2WEB_AUTH_TOKEN"), "bearer token for the bridge API")
	rootCmd.PersistentFlags().StringVar(&mountPath, "mount-path", envOr("AD2WEB_MOUNT_PATH", "/socket.io"), "websocket mount path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "panel", Title: "Panel:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	// Panel
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(keypressCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
