package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/mapeo-verde/mapeo-verde-api/internal/ical"
	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
)

var eventsURL string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Fetch the calendar feed and list its events",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := eventsURL
		if url == "" {
			url = cfg.Calendar.URL
		}
		if url == "" {
			return eris.New("no calendar URL: pass --url or set calendar.url")
		}

		adapter := ical.NewAdapter(newFetcher(cfg), ical.Config{
			URL:          url,
			Proxies:      cfg.Calendar.Proxies,
			Timezone:     cfg.Calendar.Timezone,
			DefaultImage: cfg.Calendar.DefaultImage,
		}, nil)

		events, err := adapter.Events(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "fetch calendar")
		}

		formatEvents(os.Stdout, events)
		return nil
	},
}

// formatEvents writes a tabular listing of events to w.
func formatEvents(out io.Writer, events []model.Event) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tTIME\tCATEGORY\tTITLE\tLOCATION")
	_, _ = fmt.Fprintln(w, "----\t----\t--------\t-----\t--------")
	for _, e := range events {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Date, e.Time, e.Category, e.Title, e.Location)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\n%d events\n", len(events))
}

func init() {
	eventsCmd.Flags().StringVar(&eventsURL, "url", "", "calendar feed URL (default from config)")
	rootCmd.AddCommand(eventsCmd)
}
