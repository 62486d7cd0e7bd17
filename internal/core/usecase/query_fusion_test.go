package usecase

import (
	"math"
	"testing"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

func docHit(member string) domain.SearchHit {
	return domain.SearchHit{ArchiveFilename: "gjeldende-lover.tar.bz2", Member: member, Content: member}
}

func TestFuseCandidatesRRFOppsigelseScenario(t *testing.T) {
	lexical := []domain.SearchHit{docHit("docA"), docHit("docB"), docHit("docC")}
	vector := []domain.SearchHit{docHit("docB"), docHit("docD")}

	fused := fuseCandidatesRRF(lexical, vector, 40)
	if len(fused) != 4 {
		t.Fatalf("expected 4 fused candidates, got %d", len(fused))
	}

	wantOrder := []string{"docB", "docA", "docD", "docC"}
	for i, want := range wantOrder {
		if fused[i].Hit.Member != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, fused[i].Hit.Member)
		}
	}

	wantScores := map[string]float64{
		"docB": 1.0/42 + 1.0/41,
		"docA": 1.0 / 41,
		"docD": 1.0 / 42,
		"docC": 1.0 / 43,
	}
	for _, c := range fused {
		if math.Abs(c.Score-wantScores[c.Hit.Member]) > 1e-12 {
			t.Fatalf("%s: expected score %.6f, got %.6f", c.Hit.Member, wantScores[c.Hit.Member], c.Score)
		}
		if c.Hit.Score != c.Score {
			t.Fatalf("%s: hit score not propagated", c.Hit.Member)
		}
	}
	if math.Abs(fused[0].Score-0.0482) > 0.0001 {
		t.Fatalf("expected docB score about 0.0482, got %.4f", fused[0].Score)
	}
	if fused[0].LexicalRank != 2 || fused[0].VectorRank != 1 {
		t.Fatalf("expected docB ranks 2/1, got %d/%d", fused[0].LexicalRank, fused[0].VectorRank)
	}
	if fused[1].VectorRank != 0 {
		t.Fatalf("expected docA absent from vector list")
	}
}

func TestFuseCandidatesRRFTieBreaksLexicalFirst(t *testing.T) {
	lexical := []domain.SearchHit{docHit("lex-only")}
	vector := []domain.SearchHit{docHit("vec-only")}

	fused := fuseCandidatesRRF(lexical, vector, 40)
	if len(fused) != 2 {
		t.Fatalf("expected 2 fused candidates, got %d", len(fused))
	}
	if fused[0].Hit.Member != "lex-only" {
		t.Fatalf("expected lexical candidate first on tie, got %s", fused[0].Hit.Member)
	}
}

func TestFuseCandidatesRRFCountsDuplicateWithinListOnce(t *testing.T) {
	lexical := []domain.SearchHit{docHit("a"), docHit("a")}

	fused := fuseCandidatesRRF(lexical, nil, 40)
	if len(fused) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(fused))
	}
	if math.Abs(fused[0].Score-1.0/41) > 1e-12 {
		t.Fatalf("expected single contribution, got %.6f", fused[0].Score)
	}
}

func TestFuseCandidatesRRFKeepsRicherHit(t *testing.T) {
	lexical := []domain.SearchHit{{ArchiveFilename: "a", Member: "m", Content: "tekst"}}
	vector := []domain.SearchHit{{ArchiveFilename: "a", Member: "m", Content: "tekst", Title: "Lov om ferie", Year: 1988}}

	fused := fuseCandidatesRRF(lexical, vector, 0)
	if fused[0].Hit.Title != "Lov om ferie" || fused[0].Hit.Year != 1988 {
		t.Fatalf("expected vector metadata merged, got %+v", fused[0].Hit)
	}
}

func TestTrimCandidates(t *testing.T) {
	fused := fuseCandidatesRRF([]domain.SearchHit{docHit("a"), docHit("b"), docHit("c")}, nil, 40)
	if got := trimCandidates(fused, 2); len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got := trimCandidates(fused, 0); len(got) != 3 {
		t.Fatalf("expected no trim for zero limit, got %d", len(got))
	}
}
