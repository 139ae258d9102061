package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/llm"
	"github.com/conclave-ai/conclave/internal/search"
)

var (
	askTimeout  time.Duration
	askModels   []string
	askChairman string
	askNoScrub  bool
	askNoVerify bool
	askJSON     bool
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the council a single question",
	Long: `Ask runs one full deliberation turn from the terminal:
- Stage 1: every council model answers independently with declared confidence
- Stage 2: models rank each other's anonymized, style-neutralized answers
- Stage 2.5: high-confidence claims are spot-checked against web search
- Stage 3: a chairman model synthesizes the final answer

Example:
  conclave ask "What caused the 2008 financial crisis?"
  conclave ask --models openai/gpt-5.1,x-ai/grok-4 "Is P equal to NP?"
  conclave ask --json "How do vaccines work?" > turn.json`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().DurationVar(&askTimeout, "timeout", 10*time.Minute, "overall turn timeout")
	askCmd.Flags().StringSliceVar(&askModels, "models", nil, "council models (overrides config)")
	askCmd.Flags().StringVar(&askChairman, "chairman", "", "chairman model (overrides config)")
	askCmd.Flags().BoolVar(&askNoScrub, "no-scrub", false, "skip the framing-bias scrub of the question")
	askCmd.Flags().BoolVar(&askNoVerify, "no-verify", false, "skip external claim verification")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full turn result as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(askModels) > 0 {
		cfg.Council.Models = askModels
	}
	if askChairman != "" {
		cfg.Council.Chairman = askChairman
	}
	if askNoScrub {
		cfg.Council.Phase0Enabled = false
	}
	if askNoVerify {
		cfg.Council.Stage25Enabled = false
	}

	provider, err := llm.NewOpenRouterProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return fmt.Errorf("set OPENROUTER_API_KEY or llm.api_key in the config file: %w", err)
	}

	searchClient := search.NewTavilyClient(cfg.Search)
	if searchClient == nil && cfg.Council.Stage25Enabled && verbose {
		fmt.Fprintln(os.Stderr, "No TAVILY_API_KEY set: claims will be reported unverifiable")
	}

	cn := council.New(provider, cfg, clientOrNil(searchClient))

	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	// One-shot mode has no review loop: a changed scrub is shown and used
	if cfg.Council.Phase0Enabled {
		scrub := cn.Scrubber().ScrubQuery(ctx, query)
		if scrub.Scrubbed != scrub.Original {
			fmt.Fprintf(os.Stderr, "Question neutralized for deliberation:\n  %s\n", scrub.Scrubbed)
			if scrub.Reasoning != "" {
				fmt.Fprintf(os.Stderr, "  (%s)\n", scrub.Reasoning)
			}
			fmt.Fprintln(os.Stderr)
		}
		query = scrub.Scrubbed
	}

	emitter := council.NopEmitter
	if verbose {
		emitter = council.EmitterFunc(func(ev council.Event) {
			fmt.Fprintf(os.Stderr, "... %s\n", ev.Type)
		})
	}

	result, err := cn.RunTurn(ctx, query, council.Memory{}, emitter)
	if err != nil {
		return fmt.Errorf("deliberation failed: %w", err)
	}

	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Println(result.Synthesis.Annotated)
	fmt.Println()
	fmt.Printf("Reliability: %s", result.Verdict)
	if n := len(result.Verification); n > 0 {
		fmt.Printf(" (%d claim(s) spot-checked)", n)
	}
	fmt.Println()
	return nil
}

// clientOrNil keeps a typed-nil *TavilyClient from masquerading as a
// non-nil search.Client.
func clientOrNil(c *search.TavilyClient) search.Client {
	if c == nil {
		return nil
	}
	return c
}
