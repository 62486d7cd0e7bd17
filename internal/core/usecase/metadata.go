package usecase

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

const (
	minLegalYear      = 1660
	maxLegalYear      = 2100
	ministryScanChars = 4000
)

var (
	yearPattern          = regexp.MustCompile(`(?:^|[^0-9])(1[6-9][0-9]{2}|20[0-9]{2})(?:[01][0-9][0-3][0-9])?(?:[^0-9]|$)`)
	ministryLinePattern  = regexp.MustCompile(`(?mi)^\s*(?:departement|utgitt av|ansvarlig)\s*:\s*(.+?)\s*$`)
	ministryNamePattern  = regexp.MustCompile(`([A-ZÆØÅ][\p{L}-]*(?: og [\p{L}-]+)?departementet)`)
	memberPrefixLawTypes = map[string]domain.LawType{
		"nl":  domain.LawTypeLov,
		"lov": domain.LawTypeLov,
		"sf":  domain.LawTypeForskrift,
		"lf":  domain.LawTypeForskrift,
		"for": domain.LawTypeForskrift,
	}
)

// titleLawTypes is checked in order; more specific prefixes come first.
var titleLawTypes = []struct {
	prefix  string
	lawType domain.LawType
}{
	{"lov om endring", domain.LawTypeEndring},
	{"endringslov", domain.LawTypeEndring},
	{"endring i", domain.LawTypeEndring},
	{"endringer i", domain.LawTypeEndring},
	{"ikrafttredelse", domain.LawTypeIkrafttredelse},
	{"ikraftsetting", domain.LawTypeIkrafttredelse},
	{"delegering", domain.LawTypeDelegering},
	{"delegasjon", domain.LawTypeDelegering},
	{"instruks", domain.LawTypeInstruks},
	{"reglement", domain.LawTypeReglement},
	{"vedtak", domain.LawTypeVedtak},
	{"forskrift", domain.LawTypeForskrift},
	{"lov", domain.LawTypeLov},
}

// deriveDocumentMetadata fills law type, year and ministry from the member name, title and text.
func deriveDocumentMetadata(member string, extracted domain.ExtractedDocument) (domain.LawType, int, string) {
	return deriveLawType(member, extracted.Title), deriveYear(member, extracted), deriveMinistry(extracted)
}

func deriveLawType(member, title string) domain.LawType {
	lowerTitle := strings.ToLower(strings.TrimSpace(title))
	for _, candidate := range titleLawTypes {
		if strings.HasPrefix(lowerTitle, candidate.prefix) {
			return candidate.lawType
		}
	}

	base := strings.ToLower(path.Base(member))
	if idx := strings.IndexAny(base, "-_."); idx > 0 {
		if lt, ok := memberPrefixLawTypes[base[:idx]]; ok {
			return lt
		}
	}
	return ""
}

func deriveYear(member string, extracted domain.ExtractedDocument) int {
	if year := firstYear(path.Base(member)); year > 0 {
		return year
	}
	if extracted.PublishedAt != nil {
		return extracted.PublishedAt.Year()
	}
	return firstYear(extracted.Title)
}

func firstYear(s string) int {
	for _, m := range yearPattern.FindAllStringSubmatch(s, -1) {
		year, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if year >= minLegalYear && year <= maxLegalYear {
			return year
		}
	}
	return 0
}

func deriveMinistry(extracted domain.ExtractedDocument) string {
	if m := strings.TrimSpace(extracted.Ministry); m != "" {
		return m
	}
	head := extracted.Text
	if runes := []rune(head); len(runes) > ministryScanChars {
		head = string(runes[:ministryScanChars])
	}
	if m := ministryLinePattern.FindStringSubmatch(head); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := ministryNamePattern.FindStringSubmatch(head); m != nil {
		return m[1]
	}
	return ""
}
