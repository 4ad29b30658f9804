package cli

import (
	"github.com/spf13/cobra"

	"study-assistant/internal/web"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web chat UI",
		Long: `Serves a chat page where each browser session uploads its own document
and asks questions about it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = root.cfg.Server.Addr
			}
			srv := web.NewServer(a.rag,
				web.WithRecorder(a.catalog, root.cfg.RAG.Store),
				web.WithTopK(root.cfg.RAG.TopK),
				web.WithMaxUploadMB(root.cfg.Server.MaxUploadMB),
			)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr from the config)")
	return cmd
}
