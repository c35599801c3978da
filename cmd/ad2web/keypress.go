package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/ad2web/internal/client"
)

var keypressCmd = &cobra.Command{
	Use:     "keypress <keys>",
	Short:   "Send keys to the panel as if typed on a keypad",
	GroupID: "panel",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		stream, err := client.Dial(ctx, bridgeURL, mountPath, authToken)
		if err != nil {
			return fmt.Errorf("connecting to bridge: %w", err)
		}
		defer stream.Close()

		if err := stream.Keypress(args[0]); err != nil {
			return fmt.Errorf("sending keys: %w", err)
		}
		if !jsonOutput {
			fmt.Printf("Sent %d key(s)\n", len(args[0]))
		}
		return nil
	},
}
