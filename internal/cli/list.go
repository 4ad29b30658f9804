package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ingestions, err := a.catalog.List()
			if err != nil {
				return err
			}
			if len(ingestions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No documents indexed yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE ID\tNAME\tCHUNKS\tSTORE\tCREATED")
			for _, ing := range ingestions {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", ing.SourceID, ing.Name, ing.ChunkCount, ing.Store, ing.CreatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
}
