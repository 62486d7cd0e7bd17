package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

// textSearchConfig is the Postgres text search configuration used for both the
// generated chunk vectors and query parsing.
const textSearchConfig = "norwegian"

// defaultBatchRows keeps the widest insert (12 columns) far below the
// 65535 bind parameter limit of the Postgres protocol.
const defaultBatchRows = 500

const (
	insertDocumentsSQL = `INSERT INTO legal_documents (archive_filename, member, title, published_at, content, law_type, year, ministry) VALUES `
	insertChunksSQL    = `INSERT INTO legal_chunks (archive_filename, member, chunk_index, start_char, end_char, title, content, section_title, section_number, law_type, year, ministry) VALUES `
)

type DocumentRepository struct {
	db        *sql.DB
	batchRows int
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db, batchRows: defaultBatchRows}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS archives (
	filename TEXT PRIMARY KEY,
	document_count INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS legal_documents (
	archive_filename TEXT NOT NULL,
	member TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	published_at DATE,
	content TEXT NOT NULL,
	law_type TEXT NOT NULL DEFAULT '',
	year INTEGER NOT NULL DEFAULT 0,
	ministry TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (archive_filename, member)
);

CREATE TABLE IF NOT EXISTS legal_chunks (
	archive_filename TEXT NOT NULL,
	member TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	start_char INTEGER NOT NULL,
	end_char INTEGER NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	section_title TEXT NOT NULL DEFAULT '',
	section_number TEXT NOT NULL DEFAULT '',
	law_type TEXT NOT NULL DEFAULT '',
	year INTEGER NOT NULL DEFAULT 0,
	ministry TEXT NOT NULL DEFAULT '',
	search_vector tsvector GENERATED ALWAYS AS (
		setweight(to_tsvector('norwegian', title), 'A') ||
		setweight(to_tsvector('norwegian', section_title), 'A') ||
		setweight(to_tsvector('norwegian', content), 'B')
	) STORED,
	PRIMARY KEY (archive_filename, member, chunk_index),
	FOREIGN KEY (archive_filename, member)
		REFERENCES legal_documents (archive_filename, member) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_legal_chunks_search ON legal_chunks USING GIN (search_vector);
CREATE INDEX IF NOT EXISTS idx_legal_chunks_filters ON legal_chunks (law_type, year);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) UpsertArchive(ctx context.Context, filename string, documentCount int) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO archives (filename, document_count, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (filename) DO UPDATE
SET document_count = EXCLUDED.document_count, updated_at = EXCLUDED.updated_at
`, filename, documentCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert archive: %w", err)
	}
	return nil
}

// ReplaceDocuments swaps every document of an archive in one transaction;
// chunks go with their documents through the cascading foreign key.
func (r *DocumentRepository) ReplaceDocuments(ctx context.Context, filename string, docs []domain.IndexedDocument) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM legal_documents WHERE archive_filename = $1`, filename); err != nil {
		return fmt.Errorf("delete archive documents: %w", err)
	}

	docRows := make([][]any, 0, len(docs))
	var chunkRows [][]any
	for _, indexed := range docs {
		doc := indexed.Document
		docRows = append(docRows, []any{
			filename, doc.Member, doc.Title, nullableTime(doc.PublishedAt), doc.Content, string(doc.LawType), doc.Year, doc.Ministry,
		})
		for _, chunk := range indexed.Chunks {
			chunkRows = append(chunkRows, []any{
				filename, doc.Member, chunk.Index, chunk.StartChar, chunk.EndChar, doc.Title, chunk.Content,
				chunk.SectionTitle, chunk.SectionNumber, string(chunk.LawType), chunk.Year, chunk.Ministry,
			})
		}
	}

	if err := r.insertBatches(ctx, tx, insertDocumentsSQL, docRows); err != nil {
		return fmt.Errorf("insert documents: %w", err)
	}
	if err := r.insertBatches(ctx, tx, insertChunksSQL, chunkRows); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

// insertBatches writes rows with multi-row VALUES statements of at most batchRows rows.
func (r *DocumentRepository) insertBatches(ctx context.Context, tx *sql.Tx, prefix string, rows [][]any) error {
	size := r.batchRows
	if size <= 0 {
		size = defaultBatchRows
	}
	for start := 0; start < len(rows); start += size {
		batch := rows[start:min(start+size, len(rows))]
		query, args := buildMultiRowInsert(prefix, batch)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("rows %d-%d: %w", start, start+len(batch)-1, err)
		}
	}
	return nil
}

func buildMultiRowInsert(prefix string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString(prefix)
	args := make([]any, 0, len(rows)*len(rows[0]))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for j, value := range row {
			if j > 0 {
				b.WriteString(",")
			}
			args = append(args, value)
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteString(")")
	}
	return b.String(), args
}

// LexicalSearch ranks chunks with ts_rank_cd against a prepared tsquery string.
// The total is the full match count independent of limit and offset.
func (r *DocumentRepository) LexicalSearch(ctx context.Context, tsQuery string, filter domain.SearchFilter, limit, offset int) ([]domain.SearchHit, int, error) {
	if strings.TrimSpace(tsQuery) == "" || limit <= 0 {
		return nil, 0, nil
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
WITH q AS (SELECT to_tsquery('`+textSearchConfig+`', $1) AS query)
SELECT c.archive_filename, c.member, c.chunk_index, c.title, c.content, c.section_title,
	c.section_number, c.law_type, c.year, c.ministry, d.published_at,
	ts_rank_cd(c.search_vector, q.query) AS rank,
	COUNT(*) OVER () AS total
FROM legal_chunks c
JOIN legal_documents d ON d.archive_filename = c.archive_filename AND d.member = c.member
CROSS JOIN q
WHERE c.search_vector @@ q.query
	AND ($2::text = '' OR c.law_type = $2::text)
	AND ($3::int = 0 OR c.year = $3::int)
	AND ($4::text = '' OR c.ministry ILIKE '%' || $4::text || '%')
ORDER BY rank DESC, c.archive_filename, c.member, c.chunk_index
LIMIT $5 OFFSET $6
`, tsQuery, string(filter.LawType), filter.Year, filter.Ministry, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var (
		hits  []domain.SearchHit
		total int
	)
	for rows.Next() {
		var (
			hit       domain.SearchHit
			lawType   string
			published sql.NullTime
		)
		if err := rows.Scan(
			&hit.ArchiveFilename, &hit.Member, &hit.ChunkIndex, &hit.Title, &hit.Content, &hit.SectionTitle,
			&hit.SectionNumber, &lawType, &hit.Year, &hit.Ministry, &published, &hit.Score, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan lexical hit: %w", err)
		}
		hit.LawType = domain.LawType(lawType)
		if published.Valid {
			hit.PublishedAt = published.Time.Format("2006-01-02")
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate lexical hits: %w", err)
	}
	return hits, total, nil
}

func (r *DocumentRepository) GetByKey(ctx context.Context, archiveFilename, member string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT archive_filename, member, title, published_at, content, law_type, year, ministry
FROM legal_documents
WHERE archive_filename = $1 AND member = $2
`, archiveFilename, member)

	var (
		doc       domain.Document
		lawType   string
		published sql.NullTime
	)
	err := row.Scan(&doc.ArchiveFilename, &doc.Member, &doc.Title, &published, &doc.Content, &lawType, &doc.Year, &doc.Ministry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("%s/%s", archiveFilename, member))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.LawType = domain.LawType(lawType)
	if published.Valid {
		t := published.Time
		doc.PublishedAt = &t
	}
	return &doc, nil
}

func (r *DocumentRepository) ListArchives(ctx context.Context) ([]domain.Archive, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT filename, document_count, updated_at
FROM archives
ORDER BY filename
`)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	archives := make([]domain.Archive, 0)
	for rows.Next() {
		var a domain.Archive
		if err := rows.Scan(&a.Filename, &a.DocumentCount, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		archives = append(archives, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archives: %w", err)
	}
	return archives, nil
}

func (r *DocumentRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
