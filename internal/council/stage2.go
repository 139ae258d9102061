package council

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/conclave-ai/conclave/internal/llm"
	"github.com/conclave-ai/conclave/internal/model"
)

// labelAssignment is the session-scoped 1:1 mapping between anonymous
// labels ("Response A".."Response N") and model ids. It is regenerated for
// every turn, lives only for the duration of Stage 2, and leaves the stage
// only inside the stage2_complete event payload.
type labelAssignment struct {
	toModel map[string]string // label -> model
	toLabel map[string]string // model -> label
	ordered []string          // labels in alphabetical order
}

func (la labelAssignment) byLabel() map[string]string {
	out := make(map[string]string, len(la.toModel))
	for k, v := range la.toModel {
		out[k] = v
	}
	return out
}

// peerSet returns the labels a voter may rank: every label except its own
func (la labelAssignment) peerSet(voter string) map[string]bool {
	peers := make(map[string]bool, len(la.ordered))
	own := la.toLabel[voter]
	for _, l := range la.ordered {
		if l != own {
			peers[l] = true
		}
	}
	return peers
}

// assignLabels draws a fresh random ordering over the responses and labels
// them "Response A" onward. Stable for the turn, never reused across turns.
func (c *Council) assignLabels(stage1 []model.ModelResponse) (labelAssignment, []int) {
	perm := c.rng.Perm(len(stage1))

	la := labelAssignment{
		toModel: make(map[string]string, len(stage1)),
		toLabel: make(map[string]string, len(stage1)),
	}
	order := make([]int, len(stage1))
	for i, idx := range perm {
		label := fmt.Sprintf("Response %c", 'A'+i)
		la.toModel[label] = stage1[idx].Model
		la.toLabel[stage1[idx].Model] = label
		la.ordered = append(la.ordered, label)
		order[i] = idx
	}
	return la, order
}

// neutralizedMeta carries the style-scrubbed claim and assumption texts,
// indexed parallel to the Stage 1 responses.
type neutralizedMeta struct {
	claims      [][]string
	assumptions [][]string
}

// neutralizeMetadata runs the Stage 2 scrub pre-pass: the flattened union
// of all claim and assumption strings goes through one rewrite call, and
// the output is reconstructed into per-model slots by an index map built
// before the call. On scrub failure the original texts are used; rankers
// then see unscrubbed text rather than losing it.
func (c *Council) neutralizeMetadata(ctx context.Context, stage1 []model.ModelResponse) neutralizedMeta {
	meta := neutralizedMeta{
		claims:      make([][]string, len(stage1)),
		assumptions: make([][]string, len(stage1)),
	}

	type slot struct {
		response int
		claim    bool
		position int
	}

	var flat []string
	var slots []slot
	for i, r := range stage1 {
		meta.claims[i] = make([]string, len(r.FactualClaims))
		meta.assumptions[i] = make([]string, len(r.KeyAssumptions))
		for j, t := range r.FactualClaims {
			flat = append(flat, t)
			slots = append(slots, slot{response: i, claim: true, position: j})
		}
		for j, t := range r.KeyAssumptions {
			flat = append(flat, t)
			slots = append(slots, slot{response: i, claim: false, position: j})
		}
	}

	rewritten := c.scrubber.NeutralizeAll(ctx, flat)

	for k, s := range slots {
		if s.claim {
			meta.claims[s.response][s.position] = rewritten[k]
		} else {
			meta.assumptions[s.response][s.position] = rewritten[k]
		}
	}
	return meta
}

// buildRankingBlocks renders the anonymized response blocks a voter sees,
// in label order, always excluding the voter's own response. Claims and
// assumptions appear as neutralized full text; unknowns appear as a count
// only.
func buildRankingBlocks(stage1 []model.ModelResponse, la labelAssignment, order []int, meta neutralizedMeta, voter string) string {
	var blocks []string
	for i, idx := range order {
		r := stage1[idx]
		if r.Model == voter {
			continue
		}

		label := la.ordered[i]
		block := fmt.Sprintf("%s:\n%s", label, r.Response)

		var lines []string
		if r.Confidence != nil {
			tag := ""
			if r.ConfidenceSource != "" {
				tag = fmt.Sprintf(" (%s)", r.ConfidenceSource)
			}
			lines = append(lines, fmt.Sprintf("Confidence: %d/100%s", *r.Confidence, tag))
		}
		if len(meta.claims[idx]) > 0 {
			lines = append(lines, "Factual claims:")
			for _, t := range meta.claims[idx] {
				lines = append(lines, "- "+t)
			}
		}
		if len(meta.assumptions[idx]) > 0 {
			lines = append(lines, "Key assumptions:")
			for _, t := range meta.assumptions[idx] {
				lines = append(lines, "- "+t)
			}
		}
		if n := len(r.KnownUnknowns); n > 0 {
			lines = append(lines, fmt.Sprintf("Unknowns listed: %d", n))
		}
		if len(lines) > 0 {
			block += "\n\n" + strings.Join(lines, "\n")
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// CollectRankings runs Stage 2: the scrub pre-pass, label assignment, and
// a concurrent ranking fan-out where every council model votes on its
// peers. The scrub completes before any ranking call is issued. Voters that
// fail to reply are omitted; ballot validity is checked at aggregation.
func (c *Council) CollectRankings(ctx context.Context, query string, stage1 []model.ModelResponse) ([]model.RankingResult, labelAssignment) {
	meta := c.neutralizeMetadata(ctx, stage1)
	la, order := c.assignLabels(stage1)

	voters := c.cfg.Models
	if len(voters) == 0 {
		for _, r := range stage1 {
			voters = append(voters, r.Model)
		}
	}

	prompts := make([][]llm.Message, len(voters))
	for i, voter := range voters {
		blocks := buildRankingBlocks(stage1, la, order, meta, voter)
		prompts[i] = llm.SystemUser("", fmt.Sprintf(c.prompts.Ranking, query, blocks))
	}

	replies := llm.CallEach(ctx, c.provider, voters, prompts)

	var rankings []model.RankingResult
	for _, reply := range replies {
		if reply.Err != nil || reply.Text == "" {
			continue
		}
		rankings = append(rankings, model.RankingResult{
			Model:   reply.Model,
			Ranking: reply.Text,
			Parsed:  ParseRanking(reply.Text),
		})
	}
	return rankings, la
}

var (
	numberedLabelPattern = regexp.MustCompile(`\d+\.\s*Response [A-Z]`)
	labelPattern         = regexp.MustCompile(`Response [A-Z]`)
)

// ParseRanking extracts the ordered label list from a ballot. It prefers
// the numbered list under "FINAL RANKING:", falling back to bare label
// mentions in order of appearance.
func ParseRanking(text string) []string {
	section := text
	if idx := strings.Index(text, "FINAL RANKING:"); idx != -1 {
		section = text[idx+len("FINAL RANKING:"):]
		if matches := numberedLabelPattern.FindAllString(section, -1); len(matches) > 0 {
			labels := make([]string, len(matches))
			for i, m := range matches {
				labels[i] = labelPattern.FindString(m)
			}
			return labels
		}
	}
	return labelPattern.FindAllString(section, -1)
}

// validVote reports whether a parsed ballot is a bijection over exactly the
// voter's peer set: every peer ranked once, the voter's own label absent.
// Anything else makes the ballot unusable for aggregation.
func validVote(parsed []string, peers map[string]bool) bool {
	if len(parsed) != len(peers) {
		return false
	}
	seen := make(map[string]bool, len(parsed))
	for _, label := range parsed {
		if !peers[label] || seen[label] {
			return false
		}
		seen[label] = true
	}
	return true
}

// AggregateRankings computes each model's mean 1-indexed position across
// all valid ballots in which it appeared. The denominator is the count of
// votes actually received: a model some ballots missed still gets a
// well-defined average, and a model no valid ballot ranked is excluded
// rather than assigned rank zero. Aggregation is order-independent over
// the ballot set.
func AggregateRankings(rankings []model.RankingResult, la labelAssignment) []model.AggregateRanking {
	positions := make(map[string][]int)

	for _, r := range rankings {
		if !validVote(r.Parsed, la.peerSet(r.Model)) {
			continue
		}
		for pos, label := range r.Parsed {
			positions[la.toModel[label]] = append(positions[la.toModel[label]], pos+1)
		}
	}

	aggregate := make([]model.AggregateRanking, 0, len(positions))
	for m, ps := range positions {
		sum := 0
		for _, p := range ps {
			sum += p
		}
		avg := float64(sum) / float64(len(ps))
		aggregate = append(aggregate, model.AggregateRanking{
			Model:         m,
			AverageRank:   math.Round(avg*100) / 100,
			RankingsCount: len(ps),
		})
	}

	sort.Slice(aggregate, func(i, j int) bool {
		if aggregate[i].AverageRank != aggregate[j].AverageRank {
			return aggregate[i].AverageRank < aggregate[j].AverageRank
		}
		return aggregate[i].Model < aggregate[j].Model
	})
	return aggregate
}
