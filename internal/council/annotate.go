package council

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/conclave-ai/conclave/internal/model"
)

// statusMarker maps an actionable verification status to its inline marker
func statusMarker(s model.VerificationStatus) string {
	switch s {
	case model.StatusVerified:
		return "✓"
	case model.StatusContradicted:
		return "✗"
	default:
		return "~"
	}
}

type annotationSpan struct {
	start  int // rune offset
	end    int
	marker string
}

// Annotate marks verified claim text inside the synthesis where it survived
// the chairman's rewording verbatim. Matching is case-insensitive and
// rune-based; longer claims are matched first so a short claim nested inside
// a longer one cannot steal its span, each claim takes its first occurrence
// that does not overlap an earlier match, and markers are applied
// rightmost-first so offsets stay valid. Claims the chairman reworded simply
// go unmarked; UNVERIFIABLE results never annotate.
func Annotate(synthesis string, results []model.VerificationResult) string {
	if synthesis == "" {
		return synthesis
	}

	text := []rune(synthesis)
	lower := lowerRunes(text)

	actionable := make([]model.VerificationResult, 0, len(results))
	for _, r := range results {
		if r.Status.Actionable() && strings.TrimSpace(r.Claim) != "" {
			actionable = append(actionable, r)
		}
	}
	sort.SliceStable(actionable, func(i, j int) bool {
		return len([]rune(actionable[i].Claim)) > len([]rune(actionable[j].Claim))
	})

	var spans []annotationSpan
	for _, r := range actionable {
		needle := lowerRunes([]rune(strings.TrimSpace(r.Claim)))
		start := findNonOverlapping(lower, needle, spans)
		if start < 0 {
			continue
		}
		spans = append(spans, annotationSpan{
			start:  start,
			end:    start + len(needle),
			marker: statusMarker(r.Status),
		})
	}
	if len(spans) == 0 {
		return synthesis
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start > spans[j].start })
	for _, s := range spans {
		annotated := fmt.Sprintf("[%s %s]", s.marker, string(text[s.start:s.end]))
		text = append(text[:s.start], append([]rune(annotated), text[s.end:]...)...)
	}
	return string(text)
}

// findNonOverlapping returns the rune offset of the first occurrence of
// needle in haystack that does not intersect any existing span, or -1.
func findNonOverlapping(haystack, needle []rune, spans []annotationSpan) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if !runesEqual(haystack[i:i+len(needle)], needle) {
			continue
		}
		if overlapsAny(i, i+len(needle), spans) {
			continue
		}
		return i
	}
	return -1
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func overlapsAny(start, end int, spans []annotationSpan) bool {
	for _, s := range spans {
		if start < s.end && s.start < end {
			return true
		}
	}
	return false
}

// lowerRunes lowercases rune-by-rune, preserving length
func lowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

// Verdict derives the turn's reliability verdict. External evidence always
// wins: any contradiction disputes the turn, and a fully verified claim set
// certifies it. Only when evidence is absent or mixed do the agreement and
// confidence heuristics decide.
func Verdict(results []model.VerificationResult, stage1 []model.ModelResponse, heur model.HeuristicsConfig) model.ReliabilityVerdict {
	actionable := 0
	verified := 0
	for _, r := range results {
		if r.Status == model.StatusContradicted {
			return model.VerdictDisputed
		}
		if r.Status.Actionable() {
			actionable++
			if r.Status == model.StatusVerified {
				verified++
			}
		}
	}
	if actionable > 0 && verified == actionable {
		return model.VerdictVerified
	}

	if len(stage1) == 0 {
		return model.VerdictUnknown
	}

	overlap := claimOverlapRatio(stage1)
	mean, ok := meanConfidence(stage1)
	if !ok {
		return model.VerdictUnknown
	}

	switch {
	case mean < heur.UncertainConfidence:
		return model.VerdictUncertain
	case overlap >= heur.OverlapThreshold && mean >= heur.ConsensusConfidence:
		return model.VerdictConsensus
	case mean < heur.SplitConfidence:
		return model.VerdictUncertain
	default:
		return model.VerdictSplit
	}
}

// claimOverlapRatio measures agreement across the council: the share of
// distinct normalized claims asserted by at least two different models.
func claimOverlapRatio(stage1 []model.ModelResponse) float64 {
	claimModels := make(map[string]map[string]bool)
	for _, r := range stage1 {
		for _, c := range r.FactualClaims {
			key := normalizeClaim(c)
			if key == "" {
				continue
			}
			if claimModels[key] == nil {
				claimModels[key] = make(map[string]bool)
			}
			claimModels[key][r.Model] = true
		}
	}
	if len(claimModels) == 0 {
		return 0
	}

	shared := 0
	for _, models := range claimModels {
		if len(models) >= 2 {
			shared++
		}
	}
	return float64(shared) / float64(len(claimModels))
}

// normalizeClaim canonicalizes claim text for overlap comparison:
// lowercased, punctuation stripped, whitespace collapsed.
func normalizeClaim(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// meanConfidence averages declared confidence over responses that declared
// one; ok is false when none did.
func meanConfidence(stage1 []model.ModelResponse) (float64, bool) {
	sum, n := 0, 0
	for _, r := range stage1 {
		if r.Confidence != nil {
			sum += *r.Confidence
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}
