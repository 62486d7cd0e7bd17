package httpadapter

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

type filterPayload struct {
	LawType  string `json:"law_type"`
	Year     int    `json:"year"`
	Ministry string `json:"ministry"`
}

func (p filterPayload) toDomain() (domain.SearchFilter, error) {
	filter := domain.SearchFilter{
		Year:     p.Year,
		Ministry: strings.TrimSpace(p.Ministry),
	}
	if strings.TrimSpace(p.LawType) != "" {
		lawType, ok := domain.ParseLawType(p.LawType)
		if !ok {
			return domain.SearchFilter{}, fmt.Errorf("unknown law_type %q", p.LawType)
		}
		filter.LawType = lawType
	}
	if filter.Year < 0 {
		return domain.SearchFilter{}, fmt.Errorf("year must not be negative")
	}
	return filter, nil
}

type searchPayload struct {
	Query    string        `json:"query"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Filter   filterPayload `json:"filter"`
}

type answerPayload struct {
	Question string        `json:"question"`
	Limit    int           `json:"limit"`
	Filter   filterPayload `json:"filter"`
}

type assistantPayload struct {
	Question string        `json:"question"`
	Filter   filterPayload `json:"filter"`
}

func (rt *Router) uploadArchive(w http.ResponseWriter, r *http.Request) {
	if rt.services.Archives == nil {
		notImplemented(w, "archive upload")
		return
	}
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(uploadMemoryBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "upload archive", err)
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart body with field 'file' is required"})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, fileHeader, err := r.FormFile(multipartFileField)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	archive, err := rt.services.Archives.Upload(r.Context(), fileHeader.Filename, file)
	if err != nil {
		writeError(w, r, "upload archive", err)
		return
	}
	writeJSON(w, http.StatusAccepted, archive)
}

func (rt *Router) listArchives(w http.ResponseWriter, r *http.Request) {
	if rt.services.Documents == nil {
		notImplemented(w, "document store")
		return
	}
	archives, err := rt.services.Documents.ListArchives(r.Context())
	if err != nil {
		writeError(w, r, "list archives", err)
		return
	}
	if archives == nil {
		archives = []domain.Archive{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": archives})
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	if rt.services.Documents == nil {
		notImplemented(w, "document store")
		return
	}
	archive := strings.TrimSpace(r.URL.Query().Get("archive"))
	member := strings.TrimSpace(r.URL.Query().Get("member"))
	if archive == "" || member == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameters 'archive' and 'member' are required"})
		return
	}

	doc, err := rt.services.Documents.GetByKey(r.Context(), archive, member)
	if err != nil {
		writeError(w, r, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if rt.services.Search == nil {
		notImplemented(w, "search")
		return
	}
	var req searchPayload
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeBadJSON(w, r, "search", err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	if req.Page < 0 || req.PageSize < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "page and page_size must not be negative"})
		return
	}
	filter, err := req.Filter.toDomain()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := rt.services.Search.Search(r.Context(), domain.SearchRequest{
		Query:    req.Query,
		Page:     req.Page,
		PageSize: req.PageSize,
		Filter:   filter,
	})
	if err != nil {
		writeError(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	if rt.services.Query == nil {
		notImplemented(w, "answer generation")
		return
	}
	var req answerPayload
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeBadJSON(w, r, "answer", err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}
	filter, err := req.Filter.toDomain()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = rt.cfg.QueryAnswerLimit
	}

	answer, err := rt.services.Query.Answer(r.Context(), req.Question, limit, filter)
	if err != nil {
		writeError(w, r, "answer", err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) runAssistant(w http.ResponseWriter, r *http.Request) {
	if rt.services.Assistant == nil {
		notImplemented(w, "assistant")
		return
	}
	var req assistantPayload
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeBadJSON(w, r, "assistant run", err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}
	filter, err := req.Filter.toDomain()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := rt.services.Assistant.Run(r.Context(), domain.AgentRunRequest{
		Question: req.Question,
		Filter:   filter,
	})
	if err != nil {
		writeError(w, r, "assistant run", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeBadJSON(w http.ResponseWriter, r *http.Request, op string, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
}
