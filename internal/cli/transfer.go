package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"study-assistant/internal/catalog"
	"study-assistant/internal/models"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [source-id] [file]",
		Short: "Export an index to an encrypted file",
		Long:  `Writes a chromem index to a file encrypted with rag.encryption_key (32 bytes).`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.chromem()
			if err != nil {
				return err
			}
			ing, err := a.ingestion(args[0])
			if err != nil {
				return err
			}
			if !store.Exists(ing.Handle()) {
				return fmt.Errorf("%w: no index stored for %s", models.ErrIndexUnavailable, ing.SourceID)
			}
			if err := store.Export(cmd.Context(), ing.Handle(), args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", ing.SourceID, args[1])
			return nil
		},
	}
}

func newImportCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import [source-id] [file]",
		Short: "Import an index from an encrypted file",
		Long:  `Loads an exported index under source-id, replacing any index it already has.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.chromem()
			if err != nil {
				return err
			}
			sourceID, path := args[0], args[1]
			handle := models.IndexHandle{SourceID: sourceID, Location: store.Location(sourceID)}
			if err := store.Import(cmd.Context(), handle, path); err != nil {
				return err
			}

			ing := catalog.Ingestion{
				SourceID: sourceID,
				Name:     filepath.Base(path),
				Location: handle.Location,
				Store:    root.cfg.RAG.Store,
			}
			if prev, err := a.catalog.Get(sourceID); err == nil {
				ing.Name = prev.Name
				ing.ChunkCount = prev.ChunkCount
			}
			if err := a.catalog.Save(ing); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s from %s\n", sourceID, path)
			return nil
		},
	}
}
