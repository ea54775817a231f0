package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mediaserver/store"
	"mediaserver/types"
)

func newListCommand(opts *globalOptions) *cobra.Command {
	var dbPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print download records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				dbPath = cfg.DBPath
			}

			st, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRecords(records))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Database path (defaults to the configured one)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to print (0 for all)")
	return cmd
}

func renderRecords(records []types.DownloadRecord) string {
	if len(records) == 0 {
		return "No downloads recorded"
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			orDash(string(r.MediaType)),
			r.StartTime,
			finished(r),
			truncate(orDash(deref(r.Title)), 48),
			truncate(r.URL, 60),
		})
	}
	return renderTable(
		[]string{"ID", "Type", "Started", "Finished", "Title", "URL"},
		rows,
		[]columnAlignment{alignRight},
	)
}

func finished(r types.DownloadRecord) string {
	if !r.Complete() {
		return "in flight"
	}
	return *r.EndTime
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
