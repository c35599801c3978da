package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/ad2web/internal/client"
	"github.com/alfredjeanlab/ad2web/internal/events"
	"github.com/alfredjeanlab/ad2web/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream live panel events",
	GroupID: "panel",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eventsOnly, _ := cmd.Flags().GetBool("events-only")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		stream, err := client.Dial(dialCtx, bridgeURL, mountPath, authToken)
		cancel()
		if err != nil {
			return fmt.Errorf("connecting to bridge: %w", err)
		}

		// Closing the stream unblocks Next on interrupt.
		go func() {
			<-ctx.Done()
			stream.Close()
		}()

		for {
			env, err := stream.Next()
			if err != nil {
				if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return fmt.Errorf("reading stream: %w", err)
			}
			if eventsOnly && env.Channel() != events.ChannelEvent {
				continue
			}
			if err := printEnvelope(env); err != nil {
				return err
			}
		}
	},
}

// printEnvelope writes one line per envelope.
func printEnvelope(env events.Envelope) error {
	if jsonOutput {
		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		_, err = fmt.Println(string(data))
		return err
	}
	name := ui.RenderAccent(env.Channel())
	if env.Channel() == events.ChannelMessage {
		name = ui.RenderMuted(env.Channel())
	}
	_, err := fmt.Printf("%s  %-8s %s\n", ui.RenderMuted(time.Now().Format(time.TimeOnly)), name, env.Args())
	return err
}

func init() {
	watchCmd.Flags().Bool("events-only", false, "hide raw panel messages")
}
