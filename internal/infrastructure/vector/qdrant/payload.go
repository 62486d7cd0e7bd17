package qdrant

import (
	"fmt"
	"strconv"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

var payloadIndexes = map[string]string{
	"archive_filename": "keyword",
	"law_type":         "keyword",
	"year":             "integer",
	"ministry":         "text",
}

func chunkPayload(chunk domain.Chunk) map[string]any {
	return map[string]any{
		"archive_filename": chunk.ArchiveFilename,
		"member":           chunk.Member,
		"chunk_index":      chunk.Index,
		"start_char":       chunk.StartChar,
		"end_char":         chunk.EndChar,
		"title":            chunkTitle(chunk),
		"text":             chunk.Content,
		"section_title":    chunk.SectionTitle,
		"section_number":   chunk.SectionNumber,
		"law_type":         string(chunk.LawType),
		"year":             chunk.Year,
		"ministry":         chunk.Ministry,
	}
}

// chunkTitle falls back to the member name; documents without a title still
// need something to cite.
func chunkTitle(chunk domain.Chunk) string {
	if chunk.Title != "" {
		return chunk.Title
	}
	return chunk.Member
}

func buildFilter(filter domain.SearchFilter) map[string]any {
	if filter.IsZero() {
		return nil
	}
	must := make([]map[string]any, 0, 3)
	if filter.LawType != "" {
		must = append(must, matchValue("law_type", string(filter.LawType)))
	}
	if filter.Year != 0 {
		must = append(must, matchValue("year", filter.Year))
	}
	if filter.Ministry != "" {
		must = append(must, map[string]any{
			"key":   "ministry",
			"match": map[string]any{"text": filter.Ministry},
		})
	}
	return map[string]any{"must": must}
}

func matchValue(key string, value any) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
