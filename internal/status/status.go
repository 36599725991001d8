// Package status reports the queue's current shape from the persisted
// index, for humans or machines.
package status

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/taskrelay/relay/internal/state"
)

type Report struct {
	Pending    []string          `json:"pending"`
	Processing []string          `json:"processing"`
	Completed  int               `json:"completed"`
	Failed     int               `json:"failed"`
	Parents    map[string]string `json:"parents,omitempty"`
}

// Run loads the index and writes a summary to w. With jsonOutput the
// report is a single JSON object; otherwise a short human listing.
func Run(store *state.Store, w io.Writer, jsonOutput bool) error {
	s, err := store.Load()
	if err != nil {
		return fmt.Errorf("load index (run `relay reconcile` if it is lost or corrupt): %w", err)
	}

	report := Report{
		Pending:    s.Pending,
		Processing: s.Processing,
		Completed:  len(s.Completed),
		Failed:     len(s.Failed),
		Parents:    s.Parents,
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printReport(w, report)
	return nil
}

func printReport(w io.Writer, r Report) {
	fmt.Fprintf(w, "pending:    %d\n", len(r.Pending))
	for _, id := range r.Pending {
		fmt.Fprintf(w, "  %s\n", id)
	}
	fmt.Fprintf(w, "processing: %d\n", len(r.Processing))
	for _, id := range r.Processing {
		fmt.Fprintf(w, "  %s\n", id)
	}
	fmt.Fprintf(w, "completed:  %d\n", r.Completed)
	fmt.Fprintf(w, "failed:     %d\n", r.Failed)
}
