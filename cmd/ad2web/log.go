package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/ad2web/internal/client"
)

var logCmd = &cobra.Command{
	Use:     "log",
	Short:   "Show the persisted event log, newest first",
	GroupID: "panel",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		types, _ := cmd.Flags().GetStringSlice("type")
		sinceFlag, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")

		since, err := parseSince(sinceFlag, time.Now())
		if err != nil {
			return err
		}
		for i, t := range types {
			types[i] = strings.ToUpper(strings.TrimSpace(t))
		}

		entries, err := bridgeClient.ListEvents(context.Background(), &client.ListEventsRequest{
			Types: types,
			Since: since,
			Limit: limit,
		})
		if err != nil {
			return fmt.Errorf("listing events: %w", err)
		}

		if jsonOutput {
			return printJSON(entries)
		}
		printEntries(entries)
		return nil
	},
}

// parseSince accepts an RFC 3339 timestamp or a duration before now
// (e.g. "90m"). Empty means no lower bound.
func parseSince(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("invalid --since %q: negative duration", s)
		}
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: want a duration or RFC 3339 time", s)
	}
	return t, nil
}

func init() {
	logCmd.Flags().StringSlice("type", nil, "filter by event type (repeatable, e.g. --type ARM --type BYPASS)")
	logCmd.Flags().String("since", "", "only events after this time (RFC 3339) or duration ago (e.g. 24h)")
	logCmd.Flags().Int("limit", 0, "maximum number of entries (0 = server default, -1 = unlimited)")
}
