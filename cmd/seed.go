package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mediaserver/store"
)

func newSeedCommand(opts *globalOptions) *cobra.Command {
	var dbPath string
	var count int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert demo download records",
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

			records := store.DemoRecords(time.Now(), count)
			if err := st.Seed(cmd.Context(), records); err != nil {
				return fmt.Errorf("seed database: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d records into %s\n", len(records), dbPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Database path (defaults to the configured one)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Total rows to insert; extra rows are generated")
	return cmd
}
