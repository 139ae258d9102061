package council

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/conclave-ai/conclave/internal/llm"
	"github.com/conclave-ai/conclave/internal/model"
	"github.com/conclave-ai/conclave/internal/search"
)

const maxSearchQueryLen = 200

// Verifier spot-checks high-confidence factual claims from the top-ranked
// responses against external web evidence. Everything here degrades: a
// missing search backend, a failed call, or unparsable output produce
// UNVERIFIABLE verdicts or an empty result set, never a failed turn.
type Verifier struct {
	provider  llm.Provider
	model     string
	search    search.Client
	prompts   Prompts
	threshold int
	maxClaims int
}

// NewVerifier creates a verifier. searchClient may be nil.
func NewVerifier(provider llm.Provider, modelID string, searchClient search.Client, prompts Prompts, threshold, maxClaims int) *Verifier {
	if threshold <= 0 {
		threshold = 75
	}
	if maxClaims <= 0 {
		maxClaims = 4
	}
	return &Verifier{
		provider:  provider,
		model:     modelID,
		search:    searchClient,
		prompts:   prompts,
		threshold: threshold,
		maxClaims: maxClaims,
	}
}

// ExtractClaims pulls verifiable claims from the given responses: only
// those declaring confidence strictly above threshold are eligible, and
// factual_claims are preferred, with key_assumptions as a fallback for the
// older data shape that lacked them. The pool is capped at maxClaims with a
// deterministic truncation: stable sort by declared confidence descending,
// extraction order preserved among ties.
func ExtractClaims(responses []model.ModelResponse, threshold, maxClaims int) []model.VerifiableClaim {
	var claims []model.VerifiableClaim
	for _, r := range responses {
		confidence := r.DeclaredConfidence()
		if confidence <= threshold {
			continue
		}

		texts := r.FactualClaims
		source := "factual_claims"
		if len(texts) == 0 {
			texts = r.KeyAssumptions
			source = "key_assumptions"
		}

		for _, t := range texts {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			claims = append(claims, model.VerifiableClaim{
				Model:            r.Model,
				Confidence:       confidence,
				ConfidenceSource: r.ConfidenceSource,
				Claim:            t,
				ClaimSource:      source,
			})
		}
	}

	sort.SliceStable(claims, func(i, j int) bool {
		return claims[i].Confidence > claims[j].Confidence
	})
	if len(claims) > maxClaims {
		claims = claims[:maxClaims]
	}
	return claims
}

// VerifyClaims runs the full Stage 2.5 flow: extract, generate a
// corroboration/refutation query pair per claim, dispatch every search in
// one interleaved concurrent batch, and adjudicate each claim against both
// result sets. Returns nil when no claim is eligible.
func (v *Verifier) VerifyClaims(ctx context.Context, topResponses []model.ModelResponse, query string) []model.VerificationResult {
	claims := ExtractClaims(topResponses, v.threshold, v.maxClaims)
	if len(claims) == 0 {
		return nil
	}

	// Without a search backend every claim degrades to the safe default
	if v.search == nil {
		results := make([]model.VerificationResult, len(claims))
		for i, c := range claims {
			results[i] = unverifiable(c, "Search backend not configured")
		}
		return results
	}

	// Step 1: query pairs for all claims, concurrently
	type queryPair struct{ corroboration, refutation string }
	pairs := make([]queryPair, len(claims))
	var wg sync.WaitGroup
	for i, c := range claims {
		wg.Add(1)
		go func(idx int, claim string) {
			defer wg.Done()
			corr, refu := v.generateQueryPair(ctx, claim, query)
			pairs[idx] = queryPair{corroboration: corr, refutation: refu}
		}(i, c.Claim)
	}
	wg.Wait()

	// Step 2: one interleaved batch [corr0, refu0, corr1, refu1, ...] so
	// verifying several claims costs the latency of one.
	queries := make([]string, 0, 2*len(claims))
	for _, p := range pairs {
		queries = append(queries, p.corroboration, p.refutation)
	}
	responses := v.searchAll(ctx, queries)

	// Step 3: adjudicate each claim against both result sets, concurrently
	results := make([]model.VerificationResult, len(claims))
	for i, c := range claims {
		wg.Add(1)
		go func(idx int, claim model.VerifiableClaim) {
			defer wg.Done()
			results[idx] = v.adjudicate(ctx, claim, responses[2*idx], responses[2*idx+1])
		}(i, c)
	}
	wg.Wait()

	return results
}

// searchAll dispatches all queries concurrently; a failed search yields a
// nil response in its slot.
func (v *Verifier) searchAll(ctx context.Context, queries []string) []*search.Response {
	responses := make([]*search.Response, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(idx int, query string) {
			defer wg.Done()
			resp, err := v.search.Search(ctx, query)
			if err != nil {
				warnDegraded("stage2.5 search", err)
				return
			}
			responses[idx] = resp
		}(i, q)
	}
	wg.Wait()
	return responses
}

// generateQueryPair asks the verifier model for a corroboration and a
// refutation query in one call, falling back to derived defaults.
func (v *Verifier) generateQueryPair(ctx context.Context, claim, query string) (string, string) {
	defaultCorr := clampQuery(claim)
	defaultRefu := clampQuery("evidence against " + claim)

	prompt := fmt.Sprintf(v.prompts.QueryGen, query, claim)
	reply, err := v.provider.Call(ctx, v.model, llm.SystemUser("", prompt))
	if err != nil {
		warnDegraded("stage2.5 query generation", err)
		return defaultCorr, defaultRefu
	}

	obj, ok := extractJSONObject(reply)
	if !ok {
		return defaultCorr, defaultRefu
	}

	var parsed struct {
		Corroboration string `json:"corroboration"`
		Refutation    string `json:"refutation"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return defaultCorr, defaultRefu
	}

	corr := clampQuery(strings.Trim(strings.TrimSpace(parsed.Corroboration), `"'`))
	refu := clampQuery(strings.Trim(strings.TrimSpace(parsed.Refutation), `"'`))
	if corr == "" {
		corr = defaultCorr
	}
	if refu == "" {
		refu = defaultRefu
	}
	return corr, refu
}

// adjudicate decides the four-way verdict for one claim given both result
// sets. The safe default is UNVERIFIABLE: absence of evidence is never
// treated as contradiction.
func (v *Verifier) adjudicate(ctx context.Context, claim model.VerifiableClaim, corr, refu *search.Response) model.VerificationResult {
	if !corr.HasData() && !refu.HasData() {
		return unverifiable(claim, "No search results returned")
	}

	prompt := fmt.Sprintf("Claim to verify: %s\n\n%s\n\n%s",
		claim.Claim,
		buildSearchContext(corr, "CORROBORATION SEARCH"),
		buildSearchContext(refu, "REFUTATION SEARCH"),
	)

	reply, err := v.provider.Call(ctx, v.model, llm.SystemUser(v.prompts.VerifierSystem, prompt))
	if err != nil {
		return unverifiable(claim, "Verifier model unavailable")
	}

	obj, ok := extractJSONObject(reply)
	if !ok {
		return unverifiable(claim, "Verifier returned unparsable output")
	}

	var parsed struct {
		Claim  string `json:"claim"`
		Status string `json:"status"`
		Source string `json:"source"`
		Delta  string `json:"delta"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return unverifiable(claim, "Verifier returned unparsable output")
	}

	status := model.VerificationStatus(strings.ToUpper(strings.TrimSpace(parsed.Status)))
	switch status {
	case model.StatusVerified, model.StatusContradicted, model.StatusContested, model.StatusUnverifiable:
	default:
		status = model.StatusUnverifiable
	}

	return model.VerificationResult{
		Claim:              claim.Claim,
		Status:             status,
		Source:             parsed.Source,
		Delta:              parsed.Delta,
		Model:              claim.Model,
		OriginalConfidence: claim.Confidence,
	}
}

// buildSearchContext formats one result set into a compact block for the
// adjudicating model.
func buildSearchContext(resp *search.Response, label string) string {
	var lines []string
	if resp != nil {
		if resp.Answer != "" {
			lines = append(lines, "Direct answer: "+resp.Answer)
		}
		for i, r := range resp.Results {
			if i >= 3 {
				break
			}
			lines = append(lines, "URL: "+r.URL)
			lines = append(lines, "Excerpt: "+truncateOnRune(r.Content, 400))
		}
	}
	body := "(no results)"
	if len(lines) > 0 {
		body = strings.Join(lines, "\n")
	}
	return fmt.Sprintf("--- %s ---\n%s", label, body)
}

// unverifiable builds the degraded verdict for one claim. The reason goes
// in Delta; Source stays empty because it holds evidence URLs only.
func unverifiable(claim model.VerifiableClaim, reason string) model.VerificationResult {
	return model.VerificationResult{
		Claim:              claim.Claim,
		Status:             model.StatusUnverifiable,
		Delta:              reason,
		Model:              claim.Model,
		OriginalConfidence: claim.Confidence,
	}
}

// clampQuery bounds a search query's length, preferring a word boundary
func clampQuery(q string) string {
	if len(q) <= maxSearchQueryLen {
		return q
	}
	clamped := truncateOnRune(q, maxSearchQueryLen)
	if idx := strings.LastIndexByte(clamped, ' '); idx > 0 {
		clamped = clamped[:idx]
	}
	return clamped
}

// truncateOnRune cuts s to at most n bytes without splitting a UTF-8
// sequence.
func truncateOnRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
