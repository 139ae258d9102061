package council

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/conclave-ai/conclave/internal/llm"
	"github.com/conclave-ai/conclave/internal/model"
)

const maxTitleRunes = 50

// FormatVerificationContext renders Stage 2.5 results as a prompt block for
// the chairman, grouped by the model whose claims were checked. Directive
// markers tell the chairman how to weigh each line: [!] contradicted claims
// must not be repeated as fact, [~] contested claims need the disagreement
// surfaced, [✓] verified claims may be stated with confidence. UNVERIFIABLE
// results are omitted entirely; they carry no signal the chairman can act on.
// Returns "" when nothing actionable remains.
func FormatVerificationContext(results []model.VerificationResult) string {
	byModel := make(map[string][]model.VerificationResult)
	var order []string
	for _, r := range results {
		if !r.Status.Actionable() {
			continue
		}
		if _, ok := byModel[r.Model]; !ok {
			order = append(order, r.Model)
		}
		byModel[r.Model] = append(byModel[r.Model], r)
	}
	if len(order) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("STAGE 2.5 - External Fact-Check Results:\n")
	b.WriteString("An independent verifier spot-checked high-confidence claims against web search results.\n")
	b.WriteString("[!] = contradicted by evidence: do NOT restate as fact; correct or flag it.\n")
	b.WriteString("[~] = contested: credible sources disagree; present both sides.\n")
	b.WriteString("[✓] = externally verified: may be stated with confidence.\n")

	for _, m := range order {
		fmt.Fprintf(&b, "\nClaims from %s:\n", m)
		for _, r := range byModel[m] {
			marker := "✓"
			switch r.Status {
			case model.StatusContradicted:
				marker = "!"
			case model.StatusContested:
				marker = "~"
			}
			fmt.Fprintf(&b, "[%s] %s: %q", marker, r.Status, r.Claim)
			if r.Delta != "" {
				fmt.Fprintf(&b, " — %s", r.Delta)
			}
			if r.Source != "" {
				fmt.Fprintf(&b, " (source: %s)", r.Source)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// formatPriorContext renders settled facts and the previous synthesis for a
// multi-turn conversation. Returns "" on the first turn.
func formatPriorContext(mem Memory) string {
	if len(mem.SettledFacts) == 0 && mem.PriorSynthesis == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("[PRIOR COUNCIL CONTEXT]\n")
	b.WriteString("This is a follow-up turn in an ongoing conversation.\n")
	if len(mem.SettledFacts) > 0 {
		b.WriteString("\nFacts verified in earlier turns (treat as established, do not re-litigate):\n")
		for _, f := range mem.SettledFacts {
			fmt.Fprintf(&b, "- %s (turn %d", f.Text, f.SourceTurn)
			if f.Source != "" {
				fmt.Fprintf(&b, ", source: %s", f.Source)
			}
			b.WriteString(")\n")
		}
	}
	if mem.PriorSynthesis != "" {
		b.WriteString("\nPrevious council answer:\n")
		b.WriteString(mem.PriorSynthesis)
		b.WriteString("\n")
	}
	return b.String()
}

// Synthesize runs Stage 3: the chairman model sees every Stage 1 response
// under its real model id, every full Stage 2 ballot, the fact-check
// context, and any prior-turn memory, and produces the single final answer.
// Unlike the earlier stages this one is fatal on failure: there is nothing
// to return without it.
func (c *Council) Synthesize(ctx context.Context, query string, stage1 []model.ModelResponse, rankings []model.RankingResult, verification []model.VerificationResult, mem Memory) (model.SynthesisResult, error) {
	var stage1Blocks []string
	for _, r := range stage1 {
		block := fmt.Sprintf("Model: %s\n%s", r.Model, r.Response)
		if r.Confidence != nil {
			block = fmt.Sprintf("Model: %s (declared confidence: %d/100)\n%s", r.Model, *r.Confidence, r.Response)
		}
		stage1Blocks = append(stage1Blocks, block)
	}

	var stage2Blocks []string
	for _, r := range rankings {
		stage2Blocks = append(stage2Blocks, fmt.Sprintf("Ranking by %s:\n%s", r.Model, r.Ranking))
	}
	if len(stage2Blocks) == 0 {
		stage2Blocks = append(stage2Blocks, "(no valid peer rankings were produced)")
	}

	var extra strings.Builder
	if vc := FormatVerificationContext(verification); vc != "" {
		extra.WriteString("\n")
		extra.WriteString(vc)
	}
	if pc := formatPriorContext(mem); pc != "" {
		extra.WriteString("\n")
		extra.WriteString(pc)
	}

	prompt := fmt.Sprintf(c.prompts.Chairman,
		query,
		strings.Join(stage1Blocks, "\n\n---\n\n"),
		strings.Join(stage2Blocks, "\n\n---\n\n"),
		extra.String(),
	)

	reply, err := c.provider.Call(ctx, c.cfg.Chairman, llm.SystemUser("", prompt))
	if err != nil {
		return model.SynthesisResult{}, fmt.Errorf("chairman synthesis (%s): %w", c.cfg.Chairman, err)
	}

	return model.SynthesisResult{
		Model:    c.cfg.Chairman,
		Response: strings.TrimSpace(reply),
	}, nil
}

// GenerateTitle asks the title model for a short conversation title. Any
// failure falls back to "New Conversation"; a title must never sink a turn.
func (c *Council) GenerateTitle(ctx context.Context, query string) string {
	const fallback = "New Conversation"

	reply, err := c.provider.Call(ctx, c.cfg.TitleModel, llm.SystemUser("", fmt.Sprintf(c.prompts.Title, query)))
	if err != nil {
		warnDegraded("title generation", err)
		return fallback
	}

	title := strings.TrimSpace(reply)
	title = strings.Trim(title, `"'`)
	title = strings.TrimSpace(title)
	if title == "" {
		return fallback
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		runes := []rune(title)
		title = strings.TrimSpace(string(runes[:maxTitleRunes]))
	}
	return title
}
