package model

// VerificationStatus is the four-way verdict for a single spot-checked claim
type VerificationStatus string

const (
	StatusVerified     VerificationStatus = "VERIFIED"     // corroborated, no credible refutation
	StatusContradicted VerificationStatus = "CONTRADICTED" // a refutation source directly negates the claim
	StatusContested    VerificationStatus = "CONTESTED"    // credible evidence on both sides
	StatusUnverifiable VerificationStatus = "UNVERIFIABLE" // safe default: absent or inconclusive evidence, opinions, predictions
)

// Actionable reports whether the status carries external evidence the
// pipeline should act on. UNVERIFIABLE never does.
func (s VerificationStatus) Actionable() bool {
	switch s {
	case StatusVerified, StatusContradicted, StatusContested:
		return true
	}
	return false
}

// VerifiableClaim is a high-confidence factual assertion pulled from a
// top-ranked response for external spot-checking.
type VerifiableClaim struct {
	Model            string           `json:"model"`
	Confidence       int              `json:"confidence"`
	ConfidenceSource ConfidenceSource `json:"confidence_source,omitempty"`
	Claim            string           `json:"claim"`
	ClaimSource      string           `json:"claim_source"` // "factual_claims" or "key_assumptions"
}

// VerificationResult is the adjudicated outcome for one claim. Created once
// per claim per turn; immutable.
type VerificationResult struct {
	Claim              string             `json:"claim"`
	Status             VerificationStatus `json:"status"`
	Source             string             `json:"source,omitempty"`
	Delta              string             `json:"delta,omitempty"`
	Model              string             `json:"model"`
	OriginalConfidence int                `json:"original_confidence"`
}

// ReliabilityVerdict is the display-layer summary label for a completed turn
type ReliabilityVerdict string

const (
	VerdictVerified  ReliabilityVerdict = "Verified"
	VerdictDisputed  ReliabilityVerdict = "Disputed"
	VerdictConsensus ReliabilityVerdict = "Consensus"
	VerdictSplit     ReliabilityVerdict = "Split"
	VerdictUncertain ReliabilityVerdict = "Uncertain"
	VerdictUnknown   ReliabilityVerdict = "Unknown"
)
