package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"study-assistant/internal/catalog"
	"study-assistant/internal/models"
)

func newRemoveCmd(root *rootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "remove [source-id]",
		Short: "Remove an indexed document",
		Long: `Deletes the stored index of a source and its catalog entry.
With --all every index in the configured store is removed.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if all {
				ingestions, err := a.catalog.List()
				if err != nil {
					return err
				}
				if err := a.store.RemoveAll(cmd.Context()); err != nil {
					return err
				}
				for _, ing := range ingestions {
					if err := a.catalog.Delete(ing.SourceID); err != nil {
						return err
					}
				}
				fmt.Fprintf(out, "Removed %d indexes\n", len(ingestions))
				return nil
			}

			sourceID := args[0]
			handle := models.IndexHandle{SourceID: sourceID, Location: a.store.Location(sourceID)}
			ing, err := a.catalog.Get(sourceID)
			switch {
			case err == nil:
				handle = ing.Handle()
			case !errors.Is(err, catalog.ErrNotFound):
				return err
			}

			if err := a.store.Remove(cmd.Context(), handle); err != nil {
				return err
			}
			if err := a.catalog.Delete(sourceID); err != nil {
				return err
			}
			fmt.Fprintf(out, "Removed %s\n", sourceID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "remove every index")
	return cmd
}
