package domain

import "time"

// Default search tuning values. These are configuration, not hardcoded law:
// every one of them can be overridden per call through SearchOptions.
const (
	DefaultSearchLimit       = 10
	DefaultMinSimilarity     = 0.3
	DefaultRecencyWindowDays = 30.0
	DefaultRecencyMaxBoost   = 0.1
	DefaultSyncTimeout       = 15 * time.Second

	// OverFetchMultiplier sizes the KNN candidate set relative to the
	// requested limit, leaving room for the similarity filter.
	OverFetchMultiplier = 3

	millisPerDay = 86_400_000.0
)

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of results.
	Limit int

	// MinSimilarity drops candidates whose raw similarity is below this
	// threshold. It applies before the recency boost, so recency cannot
	// rescue an irrelevant match.
	MinSimilarity float64

	// RecencyWindowDays is the width of the recency boost window.
	// Blocks older than this receive no boost.
	RecencyWindowDays float64

	// RecencyMaxBoost is the additive boost for a block edited right now.
	RecencyMaxBoost float64

	// SkipSync disables the incremental sync normally triggered before
	// the query runs.
	SkipSync bool

	// SyncTimeout bounds the pre-query incremental sync. On expiry the
	// search proceeds against the existing index.
	SyncTimeout time.Duration
}

// DefaultSearchOptions returns SearchOptions populated with the default
// tuning values.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Limit:             DefaultSearchLimit,
		MinSimilarity:     DefaultMinSimilarity,
		RecencyWindowDays: DefaultRecencyWindowDays,
		RecencyMaxBoost:   DefaultRecencyMaxBoost,
		SyncTimeout:       DefaultSyncTimeout,
	}
}

// SearchResult represents a single ranked search hit. It is ephemeral,
// produced at query time and never persisted.
type SearchResult struct {
	// Block is the matched block.
	Block Block

	// Similarity is the raw similarity derived from vector distance, in [0,1].
	Similarity float64

	// Score is Similarity plus the recency boost. Results are ordered by it.
	Score float64

	// Rank is the 1-based position in the result set.
	Rank int
}

// SimilarityFromDistance converts a squared Euclidean distance to a bounded
// similarity in (0,1]. The transform is monotonic and fixed for the lifetime
// of the index: downstream thresholds are expressed in its units.
func SimilarityFromDistance(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

// RecencyBoost computes the additive score boost for a block edited at
// editTime (epoch ms), evaluated at now. The boost decays linearly from
// maxBoost at age zero to zero at windowDays, and stays zero beyond.
func RecencyBoost(editTime, now int64, windowDays, maxBoost float64) float64 {
	if windowDays <= 0 || maxBoost <= 0 {
		return 0
	}
	ageDays := float64(now-editTime) / millisPerDay
	if ageDays < 0 {
		ageDays = 0
	}
	decay := 1.0 - ageDays/windowDays
	if decay < 0 {
		return 0
	}
	return maxBoost * decay
}
