package model

// RankingResult is one voter's Stage 2 ballot: the full evaluation text and
// the ordered labels parsed out of its FINAL RANKING section. Parsed is nil
// when no ranking could be recovered; validity against the voter's peer set
// is checked during aggregation, not here.
type RankingResult struct {
	Model   string   `json:"model"`
	Ranking string   `json:"ranking"`
	Parsed  []string `json:"parsed_ranking,omitempty"`
}

// AggregateRanking is a model's mean 1-indexed position across every valid
// vote in which it appeared as a peer. Lower is better.
type AggregateRanking struct {
	Model         string  `json:"model"`
	AverageRank   float64 `json:"average_rank"`
	RankingsCount int     `json:"rankings_count"`
}
