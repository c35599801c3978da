package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/ad2web/internal/model"
	"github.com/alfredjeanlab/ad2web/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show the panel link and subscriber counts",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := bridgeClient.Status(context.Background())
		if err != nil {
			return fmt.Errorf("fetching status: %w", err)
		}
		if jsonOutput {
			return printJSON(st)
		}
		printStatus(st)
		if !st.Device.Connected {
			return fmt.Errorf("device not connected")
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the bridge",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := bridgeClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			if err := printJSON(map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			fmt.Printf("Health: %s\n", status)
		}

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

func printStatus(st *model.BridgeStatus) {
	link := ui.RenderCritical("disconnected")
	switch {
	case st.Device.Connected && st.Device.Healthy:
		link = ui.RenderAccent("connected")
	case st.Device.Connected:
		link = ui.RenderCritical("silent")
	}
	fmt.Printf("Device:      %s (%s)\n", st.Device.Addr, link)
	if st.Device.Error != "" {
		fmt.Printf("Error:       %s\n", st.Device.Error)
	}
	if !st.Device.LastSeen.IsZero() {
		fmt.Printf("Last Event:  %s at %s\n", ui.RenderKind(st.Device.LastKind), st.Device.LastSeen.Local().Format(time.DateTime))
	}
	fmt.Printf("Events:      %d\n", st.Device.EventCount)
	fmt.Printf("Subscribers: %d (websocket %d, sse %d)\n",
		st.Subscribers.Total, st.Subscribers.Websocket, st.Subscribers.SSE)
	fmt.Printf("Uptime:      %s\n", (time.Duration(st.UptimeSecs) * time.Second).String())
}
