package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"study-assistant/internal/models"
	"study-assistant/internal/tui"
)

func newAskCmd(root *rootOptions) *cobra.Command {
	var (
		sourceID   string
		k          int
		showScores bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question about an indexed document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))

			a, err := openApp(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ing, err := a.ingestion(sourceID)
			if err != nil {
				return err
			}

			resp, err := a.rag.Query(cmd.Context(), ing.Handle(), question, k)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if resp.Context == "" {
				fmt.Fprintln(out, models.NoContextNotice)
			}
			fmt.Fprintln(out, resp.Content)

			if showScores {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Sources:")
				for _, src := range resp.Sources {
					fmt.Fprintf(out, "  [%s] %.4f  %s\n", src.Document.ID, src.Score, preview(src.Document.Content, 60))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceID, "source-id", "", "identifier of the index to query")
	cmd.Flags().IntVarP(&k, "top-k", "k", 0, "number of chunks to retrieve (0 uses the configured default)")
	cmd.Flags().BoolVar(&showScores, "scores", false, "list the retrieved chunks with their scores")
	_ = cmd.MarkFlagRequired("source-id")
	return cmd
}

func newChatCmd(root *rootOptions) *cobra.Command {
	var sourceID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat about an indexed document in the terminal",
		Long:  `Opens an interactive chat over one index. Type q and press enter to quit.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ing, err := a.ingestion(sourceID)
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), a.rag, ing.Handle(), root.cfg.RAG.TopK, ing.Name)
		},
	}

	cmd.Flags().StringVar(&sourceID, "source-id", "", "identifier of the index to chat about")
	_ = cmd.MarkFlagRequired("source-id")
	return cmd
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
