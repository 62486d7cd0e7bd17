package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

const maxPromptSnippetRunes = 1200

func buildAnswerPrompt(question string, evidence []domain.Evidence) string {
	return fmt.Sprintf(`Du er en juridisk assistent for norsk rett.
Svar på spørsmålet kun ut fra kildene under, på norsk.
Henvis til kildene med nummer i hakeparentes, for eksempel [1].
Hvis kildene ikke er tilstrekkelige, si det direkte.

Spørsmål:
%s

Kilder:
%s
`, question, formatEvidence(evidence))
}

func buildReasonerSystemPrompt(evidence []domain.Evidence) string {
	var b strings.Builder
	b.WriteString(`Du er en juridisk assistent for norsk rett med tilgang til søkeverktøy.
Bruk search_legal_documents for å finne lover og forskrifter før du svarer.
Når kildene er tilstrekkelige, gi et endelig svar på norsk med henvisninger som [1].
`)
	if len(evidence) > 0 {
		b.WriteString("\nKilder funnet så langt:\n")
		b.WriteString(formatEvidence(evidence))
	}
	return b.String()
}

func formatEvidence(evidence []domain.Evidence) string {
	var b strings.Builder
	for idx, item := range evidence {
		text := item.Content
		if text == "" {
			text = item.Snippet
		}
		if runes := []rune(text); len(runes) > maxPromptSnippetRunes {
			text = string(runes[:maxPromptSnippetRunes]) + "…"
		}
		fmt.Fprintf(&b, "[%d] %s", idx+1, item.Title)
		if section := item.Metadata[domain.MetaSectionNumber]; section != "" {
			fmt.Fprintf(&b, " (%s)", section)
		}
		if item.Link != "" {
			fmt.Fprintf(&b, " <%s>", item.Link)
		}
		fmt.Fprintf(&b, " source=%s\n%s\n\n", item.Source, text)
	}
	return b.String()
}
