package council

import (
	"encoding/json"
	"strings"

	"github.com/conclave-ai/conclave/internal/model"
)

// rawMetadata mirrors the JSON block models append after their prose.
// Only these five fields are recognized; anything else is ignored.
type rawMetadata struct {
	Confidence       *float64 `json:"confidence"`
	ConfidenceSource *string  `json:"confidence_source"`
	FactualClaims    []string `json:"factual_claims"`
	KeyAssumptions   []string `json:"key_assumptions"`
	KnownUnknowns    []string `json:"known_unknowns"`
}

// ParseMetadata splits a raw model reply into prose and the trailing
// metadata block. The block must be the rightmost valid top-level JSON
// object in the text, ending at the final closing brace; prose may contain
// JSON-like fragments earlier (quoted examples) that must not be picked up.
// If no valid trailing object parses, metadata is nil and the whole text is
// prose. This is backward-compatible degradation, not an error.
func ParseMetadata(raw string) (string, *model.Metadata) {
	end := strings.LastIndexByte(raw, '}')
	if end == -1 {
		return raw, nil
	}
	// Only whitespace may follow the metadata block
	if strings.TrimSpace(raw[end+1:]) != "" {
		return raw, nil
	}

	// Try candidate opening braces right to left: the first start that
	// yields a valid object ending at the final brace is the matching one.
	// Decoy objects earlier in the prose are never reached because a true
	// trailing block parses first.
	for start := strings.LastIndexByte(raw[:end], '{'); start != -1; start = strings.LastIndexByte(raw[:start], '{') {
		candidate := raw[start : end+1]

		var parsed rawMetadata
		dec := json.NewDecoder(strings.NewReader(candidate))
		if err := dec.Decode(&parsed); err != nil {
			continue
		}
		// Decode stops at the end of the first complete value, which may be
		// a nested object when this start brace is not the outermost one.
		// Only a candidate consumed in full ends at the final brace.
		if dec.InputOffset() != int64(len(candidate)) {
			continue
		}

		meta := &model.Metadata{
			FactualClaims:  parsed.FactualClaims,
			KeyAssumptions: parsed.KeyAssumptions,
			KnownUnknowns:  parsed.KnownUnknowns,
		}
		if parsed.Confidence != nil {
			v := int(*parsed.Confidence)
			meta.Confidence = &v
		}
		if parsed.ConfidenceSource != nil {
			meta.Source = model.NormalizeConfidenceSource(*parsed.ConfidenceSource)
		}

		return strings.TrimRight(raw[:start], " \t\r\n"), meta
	}

	return raw, nil
}
