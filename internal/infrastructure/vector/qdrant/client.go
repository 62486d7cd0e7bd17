package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/resilience"
)

const defaultUpsertBatch = 128

// pointNamespace seeds deterministic point ids so re-indexing an archive
// overwrites the same points.
var pointNamespace = uuid.MustParse("6f1c1b0e-6a53-4b8e-9a51-2d6a3c0f4e71")

var errCollectionMissing = errors.New("qdrant collection missing")

type Client struct {
	baseURL     string
	collection  string
	apiKey      string
	upsertBatch int
	httpClient  *http.Client
	executor    *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

type Options struct {
	APIKey             string
	UpsertBatch        int
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, collection string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	batch := opts.UpsertBatch
	if batch <= 0 {
		batch = defaultUpsertBatch
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		collection:  collection,
		apiKey:      opts.APIKey,
		upsertBatch: batch,
		httpClient:  &http.Client{Timeout: timeout},
		executor:    opts.ResilienceExecutor,
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// ReplaceArchive drops every point of the archive and upserts the new chunks.
// Between the two steps readers may see the archive as empty.
func (c *Client) ReplaceArchive(ctx context.Context, archiveFilename string, chunks []domain.Chunk) error {
	if len(chunks) > 0 {
		if len(chunks[0].Embedding) == 0 {
			return domain.WrapError(domain.ErrInvalidInput, "qdrant replace archive", errors.New("chunk has no embedding"))
		}
		if err := c.ensureCollection(ctx, len(chunks[0].Embedding)); err != nil {
			return err
		}
	}

	if err := c.deleteArchive(ctx, archiveFilename); err != nil {
		if errors.Is(err, errCollectionMissing) {
			return nil
		}
		return err
	}

	for start := 0; start < len(chunks); start += c.upsertBatch {
		end := min(start+c.upsertBatch, len(chunks))
		points := make([]point, 0, end-start)
		for _, chunk := range chunks[start:end] {
			points = append(points, point{
				ID:      PointID(chunk.ArchiveFilename, chunk.Member, chunk.Index),
				Vector:  chunk.Embedding,
				Payload: chunkPayload(chunk),
			})
		}
		path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
		if err := c.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Search(ctx context.Context, queryVector []float32, filter domain.SearchFilter, limit int) ([]domain.SearchHit, error) {
	if len(queryVector) == 0 || limit <= 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		reqBody["filter"] = f
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.do(ctx, http.MethodPost, path, reqBody, &searchResp, "search"); err != nil {
		if errors.Is(err, errCollectionMissing) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]domain.SearchHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.SearchHit{
			ArchiveFilename: getStringPayload(r.Payload, "archive_filename"),
			Member:          getStringPayload(r.Payload, "member"),
			ChunkIndex:      getIntPayload(r.Payload, "chunk_index"),
			Title:           getStringPayload(r.Payload, "title"),
			Content:         getStringPayload(r.Payload, "text"),
			SectionTitle:    getStringPayload(r.Payload, "section_title"),
			SectionNumber:   getStringPayload(r.Payload, "section_number"),
			LawType:         domain.LawType(getStringPayload(r.Payload, "law_type")),
			Year:            getIntPayload(r.Payload, "year"),
			Ministry:        getStringPayload(r.Payload, "ministry"),
			Score:           r.Score,
		})
	}
	return out, nil
}

func (c *Client) deleteArchive(ctx context.Context, archiveFilename string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{matchValue("archive_filename", archiveFilename)},
		},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	return c.do(ctx, http.MethodPost, path, body, nil, "delete")
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	err := c.do(ctx, http.MethodPut, "/collections/"+c.collection, reqBody, nil, "ensure collection")
	var statusErr *resilience.HTTPStatusError
	// 409 when the collection already exists (depends on version/config).
	if err != nil && !(errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict) {
		return err
	}

	for field, schema := range payloadIndexes {
		index := map[string]any{"field_name": field, "field_schema": schema}
		path := fmt.Sprintf("/collections/%s/index?wait=true", c.collection)
		if err := c.do(ctx, http.MethodPut, path, index, nil, "create payload index"); err != nil {
			return err
		}
	}

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal qdrant %s body: %w", operation, err)
	}

	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create qdrant %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError("qdrant", operation, resp)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode qdrant %s response: %w", operation, err)
		}
		return nil
	}

	err = resilience.Run(ctx, c.executor, "qdrant."+strings.ReplaceAll(operation, " ", "_"), call, resilience.ClassifyHTTPError)
	var statusErr *resilience.HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound && operation != "ensure collection" {
		return fmt.Errorf("%w: %w", errCollectionMissing, err)
	}
	return resilience.WrapProviderError("qdrant "+operation, err)
}

// PointID derives the stable point id of one chunk.
func PointID(archiveFilename, member string, chunkIndex int) string {
	key := fmt.Sprintf("%s|%s|%d", archiveFilename, member, chunkIndex)
	return uuid.NewSHA1(pointNamespace, []byte(key)).String()
}

// Ping checks that the Qdrant node is ready to serve requests.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/readyz", nil)
	if err != nil {
		return fmt.Errorf("create qdrant ping request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "qdrant ping", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return resilience.WrapProviderError("qdrant ping", resilience.NewHTTPStatusError("qdrant", "ping", resp))
	}
	return nil
}
