package model

// ConfidenceSource classifies where a model's declared confidence comes from
type ConfidenceSource string

const (
	SourceRecalled    ConfidenceSource = "recalled"    // stable, uncontested fact
	SourceReasoned    ConfidenceSource = "reasoned"    // derived via logic, or the answer is contested
	SourceSpeculative ConfidenceSource = "speculative" // best guess from limited information
)

// NormalizeConfidenceSource collapses anything outside the three allowed
// values to the empty string (absent)
func NormalizeConfidenceSource(raw string) ConfidenceSource {
	switch ConfidenceSource(raw) {
	case SourceRecalled, SourceReasoned, SourceSpeculative:
		return ConfidenceSource(raw)
	}
	return ""
}

// Metadata is the structured block a council model appends after its prose
// answer. Every field is independently optional: Confidence is nil unless
// the model declared one, Source is empty unless it matched the enum.
type Metadata struct {
	Confidence     *int             `json:"confidence"`
	Source         ConfidenceSource `json:"confidence_source,omitempty"`
	FactualClaims  []string         `json:"factual_claims,omitempty"`
	KeyAssumptions []string         `json:"key_assumptions,omitempty"`
	KnownUnknowns  []string         `json:"known_unknowns,omitempty"`
}

// ModelResponse is one council member's Stage 1 answer: prose plus parsed
// metadata. Immutable once collected.
type ModelResponse struct {
	Model            string           `json:"model"`
	Response         string           `json:"response"`
	Confidence       *int             `json:"confidence"`
	ConfidenceSource ConfidenceSource `json:"confidence_source,omitempty"`
	FactualClaims    []string         `json:"factual_claims,omitempty"`
	KeyAssumptions   []string         `json:"key_assumptions,omitempty"`
	KnownUnknowns    []string         `json:"known_unknowns,omitempty"`
}

// DeclaredConfidence returns the declared confidence or 0 when absent
func (r ModelResponse) DeclaredConfidence() int {
	if r.Confidence == nil {
		return 0
	}
	return *r.Confidence
}

// ScrubResult is the Phase 0 output: the original query, the neutralized
// rewrite, and the scrubber's explanation of what changed.
type ScrubResult struct {
	Original  string `json:"original"`
	Scrubbed  string `json:"scrubbed"`
	Reasoning string `json:"reasoning"`
}

// SynthesisResult is the chairman's Stage 3 output
type SynthesisResult struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Annotated string `json:"annotated,omitempty"`
}
