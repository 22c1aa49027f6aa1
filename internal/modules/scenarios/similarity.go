package scenarios

import (
	"sort"

	"github.com/aristath/governor/internal/domain"
)

// Similarity is the tag overlap |a ∩ b| / max(|a|, |b|) over deduplicated tag sets.
// Two empty sets have similarity 0.
func Similarity(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)

	total := len(setA)
	if len(setB) > total {
		total = len(setB)
	}
	if total == 0 {
		return 0
	}

	overlap := 0
	for tag := range setA {
		if _, ok := setB[tag]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(total)
}

// Rank scores records against tags and returns those at or above threshold, most
// similar first. Ties go to the newer record, then to the smaller scenario id.
// maxResults <= 0 means no limit.
func Rank(records []domain.ScenarioRecord, tags []string, threshold float64, maxResults int) []domain.ScoredScenario {
	scored := make([]domain.ScoredScenario, 0)
	for _, rec := range records {
		similarity := Similarity(tags, rec.MarketTags)
		if similarity == 0 || similarity < threshold {
			continue
		}
		scored = append(scored, domain.ScoredScenario{Record: rec, Similarity: similarity})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.Record.CreatedAt.Equal(b.Record.CreatedAt) {
			return a.Record.CreatedAt.After(b.Record.CreatedAt)
		}
		return a.Record.ScenarioID < b.Record.ScenarioID
	})

	if maxResults > 0 && len(scored) > maxResults {
		scored = scored[:maxResults]
	}
	return scored
}

func toSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}
