package chunking

import (
	"html"
	"regexp"
	"strings"
)

var (
	sectionNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<(?:span|a|div|p)[^>]*class="[^"]*(?:paragraf|kapittel|section)[^"]*"[^>]*>\s*([^<]{1,40}?)\s*</`),
		regexp.MustCompile(`§{1,2}\s*\d+[a-zA-Z]?(?:\s*-\s*\d+[a-zA-Z]?)?`),
		regexp.MustCompile(`(?i)\b(?:paragraf|kapittel|kap\.)\s*\d+[a-zA-Z]?(?:\s*-\s*\d+[a-zA-Z]?)?`),
	}

	htmlHeadingPattern     = regexp.MustCompile(`(?is)<h[1-6][^>]*>(.*?)</h[1-6]>`)
	markdownHeadingPattern = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+?)[ \t#]*$`)
	setextHeadingPattern   = regexp.MustCompile(`(?m)^([^\n<#][^\n]*)\n[ \t]*(?:={3,}|-{3,})[ \t]*$`)
	tagPattern             = regexp.MustCompile(`<[^>]+>`)
	spacePattern           = regexp.MustCompile(`\s+`)
)

// extractSectionNumber returns the earliest section number reference, such as "§ 15-7" or "Kapittel 4".
func extractSectionNumber(text string) string {
	text = html.UnescapeString(text)
	best, bestPos := "", -1
	for _, pattern := range sectionNumberPatterns {
		loc := pattern.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		if bestPos >= 0 && loc[0] >= bestPos {
			continue
		}
		match := text[loc[0]:loc[1]]
		if len(loc) >= 4 && loc[2] >= 0 {
			match = text[loc[2]:loc[3]]
		}
		best, bestPos = normalizeSpace(match), loc[0]
	}
	return best
}

// extractSectionTitle returns the earliest heading: an HTML heading tag, a markdown heading or an underlined heading.
func extractSectionTitle(text string) string {
	best, bestPos := "", -1
	for _, pattern := range []*regexp.Regexp{htmlHeadingPattern, markdownHeadingPattern, setextHeadingPattern} {
		loc := pattern.FindStringSubmatchIndex(text)
		if loc == nil || loc[2] < 0 {
			continue
		}
		if bestPos >= 0 && loc[0] >= bestPos {
			continue
		}
		title := cleanTitle(text[loc[2]:loc[3]])
		if title == "" {
			continue
		}
		best, bestPos = title, loc[0]
	}
	return best
}

func cleanTitle(raw string) string {
	raw = tagPattern.ReplaceAllString(raw, " ")
	raw = html.UnescapeString(raw)
	return normalizeSpace(raw)
}

func normalizeSpace(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}
