package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fablekeep/internal/app"
	"github.com/roach88/fablekeep/internal/store"
)

// StorageEntry is one stored record in "storage" output.
type StorageEntry struct {
	Key       string `json:"key"`
	Bytes     int64  `json:"bytes"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// StorageView is the result of "storage".
type StorageView struct {
	Entries    []StorageEntry `json:"entries"`
	TotalBytes int64          `json:"totalBytes"`
}

// NewStorageCommand creates the storage command.
func NewStorageCommand(opts *RootOptions) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "List locally stored records, newest first",
		Long: `Show what fablekeep keeps in its local database and how many bytes
each record takes. Timeline progress is the first thing evicted when the
quota runs out.

Examples:
  fablekeep storage
  fablekeep storage --prefix fablekeep/timeline/`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				view := StorageView{Entries: []StorageEntry{}}
				for _, e := range a.Store().Entries(ctx, prefix) {
					row := StorageEntry{Key: e.Key, Bytes: e.Size}
					if !e.UpdatedAt.IsZero() {
						row.UpdatedAt = e.UpdatedAt.UTC().Format(time.RFC3339)
					}
					view.Entries = append(view.Entries, row)
					view.TotalBytes += e.Size
				}
				return out.Render(view, func(w io.Writer) {
					for _, e := range view.Entries {
						fmt.Fprintf(w, "%8d  %-20s  %s\n", e.Bytes, orDash(e.UpdatedAt), e.Key)
					}
					fmt.Fprintf(w, "%d record(s), %d bytes\n", len(view.Entries), view.TotalBytes)
				})
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", store.Prefix, "only list keys starting with this prefix")
	return cmd
}
