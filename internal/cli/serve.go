package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/llm"
	"github.com/conclave-ai/conclave/internal/search"
	"github.com/conclave-ai/conclave/internal/server"
	"github.com/conclave-ai/conclave/internal/store"
)

var (
	servePort int
	serveData string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve starts the conversation API: persistent multi-turn conversations,
the scrub-review flow, and a streaming message endpoint that relays
deliberation progress as server-sent events.

Example:
  conclave serve
  conclave serve --port 9000 --data ./conversations`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	serveCmd.Flags().StringVar(&serveData, "data", "", "conversation data directory (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveData != "" {
		cfg.Data.Dir = serveData
	}

	provider, err := llm.NewOpenRouterProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return fmt.Errorf("set OPENROUTER_API_KEY or llm.api_key in the config file: %w", err)
	}

	searchClient := search.NewTavilyClient(cfg.Search)
	if searchClient == nil && cfg.Council.Stage25Enabled {
		fmt.Fprintln(os.Stderr, "No TAVILY_API_KEY set: claims will be reported unverifiable")
	}

	st, err := store.New(cfg.Data.Dir)
	if err != nil {
		return err
	}

	cn := council.New(provider, cfg, clientOrNil(searchClient))
	srv, err := server.New(cfg.Server, cn, st)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("conclave listening on http://127.0.0.1:%d\n", cfg.Server.Port)
	return srv.Run(ctx)
}
