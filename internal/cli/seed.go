package cli

import (
	"fmt"
	"sort"

	"github.com/me/folio/internal/config"
	"github.com/me/folio/internal/seed"
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load portfolio content from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := seed.New(st, logger).LoadFile(cmd.Context(), file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			seen := map[string]bool{}
			var names []string
			for _, counts := range []map[string]int{res.Inserted, res.Skipped} {
				for name := range counts {
					if !seen[name] {
						seen[name] = true
						names = append(names, name)
					}
				}
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "%-12s inserted %d, skipped %d\n", name, res.Inserted[name], res.Skipped[name])
			}
			fmt.Fprintf(out, "Seeded %d records\n", res.Total())
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Seed file (YAML)")
	return cmd
}
