package main

import (
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/ad2web/internal/model"
	"github.com/alfredjeanlab/ad2web/internal/ui"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printEntries(entries []*model.EventLogEntry) {
	if len(entries) == 0 {
		fmt.Println(ui.RenderMuted("No events."))
		return
	}
	for _, e := range entries {
		fmt.Println(ui.FormatEntry(e))
	}
}
