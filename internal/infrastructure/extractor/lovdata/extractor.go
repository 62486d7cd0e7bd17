package lovdata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

var (
	errUnsupportedMember = errors.New("unsupported member type")
	blankLines           = regexp.MustCompile(`\n{3,}`)
	dateLayouts          = []string{"2006-01-02", "02.01.2006", "2.1.2006", "20060102"}
)

// Extractor converts Lovdata archive members (XML/HTML, PDF, plain text) to text
// plus the header metadata Lovdata puts in its document key-info block.
type Extractor struct {
	converter *md.Converter
}

func NewExtractor() *Extractor {
	return &Extractor{converter: md.NewConverter("", true, nil)}
}

func (e *Extractor) Extract(_ context.Context, member domain.ArchiveMember) (domain.ExtractedDocument, error) {
	switch strings.ToLower(path.Ext(member.Name)) {
	case ".xml", ".html", ".htm", ".xhtml":
		return e.extractMarkup(member)
	case ".pdf":
		return extractPDF(member)
	case ".txt", ".md":
		return extractPlainText(member)
	default:
		return domain.ExtractedDocument{}, domain.WrapError(domain.ErrInvalidInput, "extract "+member.Name, errUnsupportedMember)
	}
}

func (e *Extractor) extractMarkup(member domain.ArchiveMember) (domain.ExtractedDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(member.Data))
	if err != nil {
		return domain.ExtractedDocument{}, domain.WrapError(domain.ErrInvalidInput, "parse "+member.Name, err)
	}

	out := domain.ExtractedDocument{Title: documentTitle(doc)}
	readKeyInfo(doc, &out)

	doc.Find("script, style, nav, footer").Remove()
	doc.Find("dl.data-document-key-info, header.documentHeader").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	html, err := body.Html()
	if err != nil {
		return domain.ExtractedDocument{}, fmt.Errorf("render %s body: %w", member.Name, err)
	}
	text, err := e.converter.ConvertString(html)
	if err != nil {
		// Fall back to plain node text; the converter rejects some malformed tables.
		text = body.Text()
	}
	out.Text = normalizeText(text)
	return out, nil
}

func documentTitle(doc *goquery.Document) string {
	for _, selector := range []string{"title", "h1", "dd.title", "dd.legacyTitle"} {
		if title := cleanSpace(doc.Find(selector).First().Text()); title != "" {
			return title
		}
	}
	return ""
}

// readKeyInfo reads the <dt>/<dd> header pairs (Departement, Dato, Ikrafttredelse…).
func readKeyInfo(doc *goquery.Document, out *domain.ExtractedDocument) {
	doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		key := strings.ToLower(strings.TrimSuffix(cleanSpace(dt.Text()), ":"))
		value := cleanSpace(dt.NextFiltered("dd").Text())
		if value == "" {
			return
		}
		switch key {
		case "departement":
			if out.Ministry == "" {
				out.Ministry = value
			}
		case "dato", "publisert", "kunngjort":
			if out.PublishedAt == nil {
				out.PublishedAt = parseDate(value)
			}
		case "tittel":
			if out.Title == "" {
				out.Title = value
			}
		}
	})
}

func extractPDF(member domain.ArchiveMember) (domain.ExtractedDocument, error) {
	reader, err := pdf.NewReader(bytes.NewReader(member.Data), int64(len(member.Data)))
	if err != nil {
		return domain.ExtractedDocument{}, domain.WrapError(domain.ErrInvalidInput, "open pdf "+member.Name, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return domain.ExtractedDocument{}, domain.WrapError(domain.ErrInvalidInput, "read pdf "+member.Name, err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return domain.ExtractedDocument{}, fmt.Errorf("read pdf text %s: %w", member.Name, err)
	}
	text := normalizeText(string(raw))
	return domain.ExtractedDocument{Title: firstLine(text), Text: text}, nil
}

func extractPlainText(member domain.ArchiveMember) (domain.ExtractedDocument, error) {
	if !utf8.Valid(member.Data) {
		return domain.ExtractedDocument{}, domain.WrapError(domain.ErrInvalidInput, "extract "+member.Name, errors.New("text member is not valid utf-8"))
	}
	text := normalizeText(string(member.Data))
	return domain.ExtractedDocument{Title: firstLine(text), Text: text}, nil
}

func parseDate(value string) *time.Time {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return nil
	}
	value = fields[0]
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n\n"))
}

func cleanSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return cleanSpace(line)
}
