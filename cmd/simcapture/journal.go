package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"simcapture-go/internal/output"
)

var journalLimit int

var journalDumpCmd = &cobra.Command{
	Use:   "journal-dump <path>",
	Short: "Print the entries of an event journal as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer f.Close()

		count := 0
		return output.ReadJournal(f, journalLimit, func(entry output.JournalEntry) error {
			pretty, err := json.MarshalIndent(map[string]any{
				"session": entry.Session,
				"dir":     entry.Direction,
				"event":   entry.Event.Name,
				"data":    summarize(entry.Event.Data),
			}, "", "  ")
			if err != nil {
				log.Printf("record %d: JSON encode error: %v", count, err)
				count++
				return nil
			}
			log.Printf("record %d timestamp=%s", count, entry.Time.Format(time.RFC3339Nano))
			fmt.Println(string(pretty))
			count++
			return nil
		})
	},
}

// summarize shortens base64 images so frames do not swamp the output.
func summarize(data map[string]any) map[string]any {
	image, ok := data["image"].(string)
	if !ok || len(image) <= 32 {
		return data
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	out["image"] = fmt.Sprintf("%s... (%d chars)", image[:32], len(image))
	return out
}

func init() {
	journalDumpCmd.Flags().IntVar(&journalLimit, "limit", 0, "Number of records to dump (0 for all)")
	rootCmd.AddCommand(journalDumpCmd)
}
