package compare

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"dejavu/internal/domain"
)

// Candidate is one historical day offered to the ranker: its normalized
// window pattern plus the raw bars used for display context.
type Candidate struct {
	Date        time.Time
	Pattern     domain.Pattern
	WindowBars  []domain.Bar
	FullDayBars []domain.Bar
}

// CosineSimilarity returns the cosine of the angle between two equal-length
// vectors, clamped to [0,1]. With min-max normalized inputs every component
// is non-negative, so the dot product cannot go below zero; the clamp guards
// the upper bound against floating-point drift. A zero-norm vector has no
// direction and scores 0.0 instead of dividing by zero.
func CosineSimilarity(a, b domain.Pattern) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0.0
	}

	sim := floats.Dot(a, b) / (na * nb)
	if sim > 1 {
		sim = 1
	}
	if sim < 0 {
		sim = 0
	}
	return sim
}

// Rank scores every candidate against the query pattern and returns the
// qualifying results, best first, truncated to limit.
//
// A candidate is skipped when its pattern length differs from the query's
// (shortened sessions and data gaps make windows incomparable), or when its
// date equals queryDate (a day never matches itself). Survivors need a score
// of at least threshold. Ties keep the original candidate order, making the
// output deterministic for identical inputs.
func Rank(query domain.Pattern, queryDate time.Time, candidates []Candidate, threshold float64, limit int) []domain.SimilarityResult {
	queryDay := domain.DateOf(queryDate)

	var results []domain.SimilarityResult
	for _, c := range candidates {
		if len(c.Pattern) != len(query) || len(c.Pattern) == 0 {
			continue
		}
		if domain.DateOf(c.Date) == queryDay {
			continue
		}

		sim := CosineSimilarity(query, c.Pattern)
		if sim < threshold {
			continue
		}

		results = append(results, domain.SimilarityResult{
			Date:            domain.DateOf(c.Date),
			SimilarityScore: sim,
			WindowBars:      domain.CloneBars(c.WindowBars),
			FullDayBars:     domain.CloneBars(c.FullDayBars),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
