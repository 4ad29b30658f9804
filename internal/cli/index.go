package cli

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"study-assistant/internal/catalog"
	"study-assistant/internal/helper"
	"study-assistant/internal/parser"
)

func newIndexCmd(root *rootOptions) *cobra.Command {
	var (
		sourceID string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "index [file]",
		Short: "Index a study document",
		Long: `Reads a document, splits it into paragraph chunks, embeds them and stores
them as a new index. Indexing again under the same --source-id replaces the
previous index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			text, err := parser.ParseFile(path)
			if err != nil {
				return err
			}

			if dryRun {
				chunks := parser.SplitOversized(parser.Chunk(text), root.cfg.RAG.MaxChunkChars, root.cfg.RAG.ChunkOverlap)
				docs, _ := parser.BuildDocuments(chunks, sourceIDOrName(sourceID, path))
				helper.PrettyPrint(cmd.OutOrStdout(), docs)
				return nil
			}

			if sourceID == "" {
				if sourceID, err = helper.GenerateUUID(); err != nil {
					return err
				}
			}

			a, err := openApp(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			handle, err := a.rag.ChunkAndIndex(cmd.Context(), text, sourceID)
			if err != nil {
				return err
			}

			chunks := len(a.rag.SplitText(text))
			err = a.catalog.Save(catalog.Ingestion{
				SourceID:   handle.SourceID,
				Name:       filepath.Base(path),
				Location:   handle.Location,
				Store:      root.cfg.RAG.Store,
				ChunkCount: chunks,
			})
			if err != nil {
				log.Warn().Err(err).Str("source", handle.SourceID).Msg("Failed to record ingestion")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s: %d chunks\nSource ID: %s\n", filepath.Base(path), chunks, handle.SourceID)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceID, "source-id", "", "identifier of the index (a new UUID when empty)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the documents without embedding or storing them")
	return cmd
}

func sourceIDOrName(sourceID, path string) string {
	if sourceID != "" {
		return sourceID
	}
	return filepath.Base(path)
}
