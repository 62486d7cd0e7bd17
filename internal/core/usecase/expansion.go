package usecase

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed legal_terms.yaml
var defaultLegalTerms []byte

type legalVocabulary struct {
	Version int                 `yaml:"version"`
	Terms   map[string][]string `yaml:"terms"`
}

// QueryExpander maps colloquial legal tokens to official title fragments.
type QueryExpander struct {
	terms map[string][]string
}

// ExpandedQuery is the result of expanding one search query.
type ExpandedQuery struct {
	Tokens     []string
	TSQuery    string
	VectorText string
}

func NewQueryExpander(raw []byte) (*QueryExpander, error) {
	var vocab legalVocabulary
	if err := yaml.Unmarshal(raw, &vocab); err != nil {
		return nil, fmt.Errorf("parse legal vocabulary: %w", err)
	}
	terms := make(map[string][]string, len(vocab.Terms))
	for key, expansions := range vocab.Terms {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		for _, expansion := range expansions {
			if expansion = strings.TrimSpace(expansion); expansion != "" {
				terms[key] = append(terms[key], expansion)
			}
		}
	}
	return &QueryExpander{terms: terms}, nil
}

// DefaultQueryExpander uses the vocabulary compiled into the binary.
func DefaultQueryExpander() (*QueryExpander, error) {
	return NewQueryExpander(defaultLegalTerms)
}

// Expand tokenizes the query and builds the lexical query: each token becomes an OR group
// of its prefix and its expansions, and groups are AND-ed. Zero tokens yield an empty result.
func (e *QueryExpander) Expand(query string) ExpandedQuery {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return ExpandedQuery{}
	}

	groups := make([]string, 0, len(tokens))
	phrases := make([]string, 0)
	seenPhrases := make(map[string]struct{})
	for _, token := range tokens {
		alternatives := []string{token + ":*"}
		if e != nil {
			for _, expansion := range e.terms[token] {
				words := splitAlphaNumLower(expansion)
				if len(words) == 0 {
					continue
				}
				alternatives = append(alternatives, tsPhrase(words))
				if _, ok := seenPhrases[expansion]; !ok {
					seenPhrases[expansion] = struct{}{}
					phrases = append(phrases, expansion)
				}
			}
		}
		if len(alternatives) == 1 {
			groups = append(groups, alternatives[0])
			continue
		}
		groups = append(groups, "("+strings.Join(alternatives, " | ")+")")
	}

	vectorText := strings.TrimSpace(query)
	if len(phrases) > 0 {
		vectorText += " " + strings.Join(phrases, " ")
	}

	return ExpandedQuery{
		Tokens:     tokens,
		TSQuery:    strings.Join(groups, " & "),
		VectorText: vectorText,
	}
}

func tsPhrase(words []string) string {
	if len(words) == 1 {
		return words[0] + ":*"
	}
	return "(" + strings.Join(words, " <-> ") + ")"
}
