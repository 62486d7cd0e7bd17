package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByKeyReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT archive_filename, member, title").
		WithArgs("lover.tar.bz2", "missing.xml").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByKey(context.Background(), "lover.tar.bz2", "missing.xml")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplaceDocumentsRunsInOneTransaction(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	published := time.Date(2005, 6, 17, 0, 0, 0, 0, time.UTC)
	docs := []domain.IndexedDocument{{
		Document: domain.Document{
			ArchiveFilename: "lover.tar.bz2",
			Member:          "nl/nl-20050617-062.xml",
			Title:           "Arbeidsmiljøloven",
			PublishedAt:     &published,
			Content:         "tekst",
			LawType:         domain.LawTypeLov,
			Year:            2005,
		},
		Chunks: []domain.Chunk{
			{Index: 0, StartChar: 0, EndChar: 3, Content: "tek", LawType: domain.LawTypeLov, Year: 2005},
			{Index: 1, StartChar: 2, EndChar: 5, Content: "kst", SectionNumber: "§ 1", LawType: domain.LawTypeLov, Year: 2005},
		},
	}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM legal_documents WHERE archive_filename = $1")).
		WithArgs("lover.tar.bz2").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO legal_documents (archive_filename, member, title, published_at, content, law_type, year, ministry) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)")).
		WithArgs("lover.tar.bz2", "nl/nl-20050617-062.xml", "Arbeidsmiljøloven", published, "tekst", "lov", 2005, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12),($13,")).
		WithArgs(
			"lover.tar.bz2", "nl/nl-20050617-062.xml", 0, 0, 3, "Arbeidsmiljøloven", "tek", "", "", "lov", 2005, "",
			"lover.tar.bz2", "nl/nl-20050617-062.xml", 1, 2, 5, "Arbeidsmiljøloven", "kst", "", "§ 1", "lov", 2005, "",
		).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	if err := repo.ReplaceDocuments(context.Background(), "lover.tar.bz2", docs); err != nil {
		t.Fatalf("ReplaceDocuments() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplaceDocumentsSplitsInsertsIntoBatches(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()
	repo.batchRows = 2

	docs := make([]domain.IndexedDocument, 3)
	for i := range docs {
		docs[i] = domain.IndexedDocument{
			Document: domain.Document{Member: fmt.Sprintf("m%d.xml", i), Content: "x"},
			Chunks:   []domain.Chunk{{Index: 0, EndChar: 1, Content: "x"}},
		}
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM legal_documents").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO legal_documents") + ".*" + regexp.QuoteMeta("($9,$10,$11,$12,$13,$14,$15,$16)$")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO legal_documents") + ".*" + regexp.QuoteMeta("VALUES ($1,$2,$3,$4,$5,$6,$7,$8)$")).
		WithArgs("a.tar.bz2", "m2.xml", "", nil, "x", "", 0, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO legal_chunks")).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO legal_chunks")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.ReplaceDocuments(context.Background(), "a.tar.bz2", docs); err != nil {
		t.Fatalf("ReplaceDocuments() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplaceDocumentsRollsBackOnInsertError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM legal_documents").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO legal_documents").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := repo.ReplaceDocuments(context.Background(), "a.zip", []domain.IndexedDocument{{
		Document: domain.Document{Member: "x.xml", Content: "x"},
	}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLexicalSearchAppliesFiltersAndScansTotal(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	published := time.Date(2005, 6, 17, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"archive_filename", "member", "chunk_index", "title", "content", "section_title",
		"section_number", "law_type", "year", "ministry", "published_at", "rank", "total",
	}).
		AddRow("lover.tar.bz2", "nl/aml.xml", 3, "Arbeidsmiljøloven", "oppsigelse", "", "§ 15-7", "lov", 2005, "Arbeidsdepartementet", published, 0.8, 12).
		AddRow("lover.tar.bz2", "nl/aml.xml", 4, "Arbeidsmiljøloven", "oppsigelse", "", "§ 15-8", "lov", 2005, "Arbeidsdepartementet", nil, 0.5, 12)

	mock.ExpectQuery(regexp.QuoteMeta("to_tsquery('norwegian', $1)")).
		WithArgs("oppsigelse:*", "lov", 2005, "arbeid", 2, 0).
		WillReturnRows(rows)

	hits, total, err := repo.LexicalSearch(context.Background(), "oppsigelse:*", domain.SearchFilter{
		LawType:  domain.LawTypeLov,
		Year:     2005,
		Ministry: "arbeid",
	}, 2, 0)
	if err != nil {
		t.Fatalf("LexicalSearch() error = %v", err)
	}
	if total != 12 || len(hits) != 2 {
		t.Fatalf("expected 2 hits of 12, got %d of %d", len(hits), total)
	}
	if hits[0].SectionNumber != "§ 15-7" || hits[0].PublishedAt != "2005-06-17" || hits[0].Score != 0.8 {
		t.Fatalf("unexpected first hit %+v", hits[0])
	}
	if hits[1].PublishedAt != "" {
		t.Fatalf("expected empty published date, got %q", hits[1].PublishedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLexicalSearchSkipsEmptyQuery(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	hits, total, err := repo.LexicalSearch(context.Background(), "  ", domain.SearchFilter{}, 10, 0)
	if err != nil || hits != nil || total != 0 {
		t.Fatalf("expected empty result, got %v %d %v", hits, total, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertArchiveAndList(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO archives").
		WithArgs("lover.tar.bz2", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	updated := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT filename, document_count, updated_at").
		WillReturnRows(sqlmock.NewRows([]string{"filename", "document_count", "updated_at"}).
			AddRow("lover.tar.bz2", 2, updated))

	if err := repo.UpsertArchive(context.Background(), "lover.tar.bz2", 2); err != nil {
		t.Fatalf("UpsertArchive() error = %v", err)
	}
	archives, err := repo.ListArchives(context.Background())
	if err != nil {
		t.Fatalf("ListArchives() error = %v", err)
	}
	if len(archives) != 1 || archives[0].DocumentCount != 2 || !archives[0].UpdatedAt.Equal(updated) {
		t.Fatalf("unexpected archives %+v", archives)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
