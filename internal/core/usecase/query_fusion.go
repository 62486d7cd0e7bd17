package usecase

import (
	"fmt"
	"sort"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

const defaultRRFK = 40

type fusedCandidate struct {
	candidate domain.SearchCandidate
	order     int
}

// fuseCandidatesRRF combines the ranked lists with reciprocal rank fusion: each list a hit
// appears in contributes 1/(k+rank), rank 1-based. Ties keep first-seen order, lexical list first.
func fuseCandidatesRRF(lexical, vector []domain.SearchHit, rrfK int) []domain.SearchCandidate {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}

	acc := make(map[string]*fusedCandidate, len(lexical)+len(vector))
	addList := func(hits []domain.SearchHit, lexicalList bool) {
		for i, hit := range hits {
			key := searchHitKey(hit)
			c, ok := acc[key]
			if !ok {
				c = &fusedCandidate{order: len(acc)}
				acc[key] = c
			}
			rank := &c.candidate.VectorRank
			if lexicalList {
				rank = &c.candidate.LexicalRank
			}
			// a hit repeated within one list counts once, at its best rank
			if *rank != 0 {
				continue
			}
			*rank = i + 1
			c.candidate.Hit = preferRicherHit(c.candidate.Hit, hit)
			c.candidate.Score += 1.0 / float64(rrfK+i+1)
		}
	}

	addList(lexical, true)
	addList(vector, false)

	ordered := make([]*fusedCandidate, 0, len(acc))
	for _, c := range acc {
		ordered = append(ordered, c)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].candidate.Score != ordered[j].candidate.Score {
			return ordered[i].candidate.Score > ordered[j].candidate.Score
		}
		return ordered[i].order < ordered[j].order
	})

	out := make([]domain.SearchCandidate, 0, len(ordered))
	for _, c := range ordered {
		candidate := c.candidate
		candidate.Hit.Score = candidate.Score
		out = append(out, candidate)
	}
	return out
}

func trimCandidates(candidates []domain.SearchCandidate, limit int) []domain.SearchCandidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}

func searchHitKey(hit domain.SearchHit) string {
	return fmt.Sprintf("%s|%s|%d", hit.ArchiveFilename, hit.Member, hit.ChunkIndex)
}

func preferRicherHit(current, candidate domain.SearchHit) domain.SearchHit {
	if current.ArchiveFilename == "" && current.Member == "" && current.Content == "" {
		return candidate
	}
	if current.Content == "" && candidate.Content != "" {
		current.Content = candidate.Content
	}
	if current.Title == "" && candidate.Title != "" {
		current.Title = candidate.Title
	}
	if current.SectionTitle == "" && candidate.SectionTitle != "" {
		current.SectionTitle = candidate.SectionTitle
	}
	if current.SectionNumber == "" && candidate.SectionNumber != "" {
		current.SectionNumber = candidate.SectionNumber
	}
	if current.LawType == "" && candidate.LawType != "" {
		current.LawType = candidate.LawType
	}
	if current.Year == 0 && candidate.Year != 0 {
		current.Year = candidate.Year
	}
	if current.Ministry == "" && candidate.Ministry != "" {
		current.Ministry = candidate.Ministry
	}
	if current.PublishedAt == "" && candidate.PublishedAt != "" {
		current.PublishedAt = candidate.PublishedAt
	}
	return current
}
