package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/docflow/docflow/internal/core/domain"
	"github.com/docflow/docflow/internal/core/ports"
)

// statusRank mirrors domain.DocumentStatus.Rank in SQL so status writes can
// be guarded monotonic inside a single statement.
const statusRankExpr = `CASE documents.status
	WHEN 'uploaded' THEN 1
	WHEN 'processing' THEN 2
	WHEN 'pending_review' THEN 3
	WHEN 'approved' THEN 4
	WHEN 'rejected' THEN 4
	WHEN 'failed' THEN 5
	ELSE 0 END`

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
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
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	document_id TEXT PRIMARY KEY,
	filename TEXT NOT NULL DEFAULT '',
	document_type TEXT NOT NULL,
	status TEXT NOT NULL,
	file_path TEXT NOT NULL DEFAULT '',
	file_size BIGINT NOT NULL DEFAULT 0,
	file_type TEXT NOT NULL DEFAULT '',
	extracted_text TEXT,
	ai_summary TEXT,
	risk_score DOUBLE PRECISION,
	classification JSONB,
	reviewer_id TEXT,
	reviewer_comments TEXT,
	uploaded_at TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ,
	approved_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents(uploaded_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Create inserts the upload record. On conflict it only backfills upload
// metadata a racing classification upsert could not know, leaving status and
// artifacts untouched, and reports ErrDuplicateDocument so the caller can
// treat redelivery as a no-op.
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO documents (
	document_id, filename, document_type, status, file_path, file_size, file_type, extracted_text, uploaded_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (document_id) DO UPDATE SET
	filename = CASE WHEN documents.filename = '' THEN EXCLUDED.filename ELSE documents.filename END,
	file_path = CASE WHEN documents.file_path = '' THEN EXCLUDED.file_path ELSE documents.file_path END,
	file_size = CASE WHEN documents.file_size = 0 THEN EXCLUDED.file_size ELSE documents.file_size END,
	file_type = CASE WHEN documents.file_type = '' THEN EXCLUDED.file_type ELSE documents.file_type END,
	extracted_text = COALESCE(documents.extracted_text, EXCLUDED.extracted_text),
	uploaded_at = LEAST(documents.uploaded_at, EXCLUDED.uploaded_at)
RETURNING (xmax = 0) AS inserted
`,
		doc.DocumentID, doc.Filename, string(doc.DocumentType), string(doc.Status),
		doc.FilePath, doc.FileSize, doc.FileType, nullString(doc.ExtractedText), doc.UploadedAt,
	)

	var inserted bool
	if err := row.Scan(&inserted); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	if !inserted {
		return domain.WrapError(domain.ErrDuplicateDocument, "insert document",
			fmt.Errorf("document_id %s", doc.DocumentID))
	}
	return nil
}

const documentColumns = `document_id, filename, document_type, status, file_path, file_size, file_type,
	extracted_text, ai_summary, risk_score, classification, reviewer_id, reviewer_comments,
	uploaded_at, processed_at, approved_at`

func (r *DocumentRepository) GetByID(ctx context.Context, documentID string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE document_id = $1
`, documentID)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("document_id %s", documentID))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

// UpsertClassification persists the classification artifact and advances
// status to processing. It is an upsert keyed by document_id: Save and
// Classify react to the same root event with no mutual ordering, so the row
// may not exist yet when the classification commit lands.
func (r *DocumentRepository) UpsertClassification(ctx context.Context, documentID string, docType domain.DocumentType, cls domain.Classification) error {
	clsJSON, err := json.Marshal(cls)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (document_id, document_type, status, classification, uploaded_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (document_id) DO UPDATE SET
	classification = EXCLUDED.classification,
	status = CASE WHEN `+statusRankExpr+` < 2 THEN 'processing' ELSE documents.status END
`, documentID, string(docType), string(domain.StatusProcessing), clsJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert classification: %w", err)
	}
	return nil
}

func (r *DocumentRepository) SaveSummary(ctx context.Context, documentID, summary string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET ai_summary = $2
WHERE document_id = $1
`, documentID, summary)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return requireRow(result, "save summary", documentID)
}

// SaveRiskResult applies the terminal routing decision in one atomic
// field-level merge. The status write is guarded monotonic.
func (r *DocumentRepository) SaveRiskResult(ctx context.Context, documentID string, res ports.RiskResult) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET risk_score = $2,
	processed_at = COALESCE(documents.processed_at, $3),
	approved_at = COALESCE(documents.approved_at, $4),
	reviewer_comments = $5,
	status = CASE WHEN `+statusRankExpr+` < $6 THEN $7 ELSE documents.status END
WHERE document_id = $1
`, documentID, res.Score, res.ProcessedAt, nullTime(res.ApprovedAt), res.ReviewerComments,
		res.Status.Rank(), string(res.Status))
	if err != nil {
		return fmt.Errorf("save risk result: %w", err)
	}
	return requireRow(result, "save risk result", documentID)
}

// SaveReview records a human decision. Unlike stage writes it overwrites
// status unconditionally: manual review is the authority past
// pending_review.
func (r *DocumentRepository) SaveReview(ctx context.Context, documentID string, res ports.ReviewResult) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2,
	reviewer_id = $3,
	reviewer_comments = $4,
	approved_at = $5
WHERE document_id = $1
`, documentID, string(res.Status), res.ReviewerID, res.ReviewerComments, res.ApprovedAt)
	if err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	return requireRow(result, "save review", documentID)
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, documentID string, status domain.DocumentStatus) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = CASE WHEN `+statusRankExpr+` < $2 THEN $3 ELSE documents.status END
WHERE document_id = $1
`, documentID, status.Rank(), string(status))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return requireRow(result, "update status", documentID)
}

func (r *DocumentRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.DocumentSummary, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
SELECT document_id, filename, document_type, status, risk_score, uploaded_at
FROM documents
`
	args := []any{}
	if filter.Status != nil {
		query += `WHERE status = $1
`
		args = append(args, string(*filter.Status))
	}
	query += fmt.Sprintf(`ORDER BY uploaded_at DESC
LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	summaries := []domain.DocumentSummary{}
	for rows.Next() {
		var (
			summary   domain.DocumentSummary
			docType   string
			status    string
			riskScore sql.NullFloat64
		)
		if err := rows.Scan(&summary.DocumentID, &summary.Filename, &docType, &status, &riskScore, &summary.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document summary: %w", err)
		}
		summary.DocumentType = domain.DocumentType(docType)
		summary.Status = domain.DocumentStatus(status)
		if riskScore.Valid {
			score := riskScore.Float64
			summary.RiskScore = &score
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return summaries, nil
}

func (r *DocumentRepository) ListPendingReview(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE status = $1
ORDER BY uploaded_at DESC
`, string(domain.StatusPendingReview))
	if err != nil {
		return nil, fmt.Errorf("list pending review: %w", err)
	}
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, documentID string) error {
	result, err := r.db.ExecContext(ctx, `
DELETE FROM documents
WHERE document_id = $1
`, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireRow(result, "delete document", documentID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc              domain.Document
		docType          string
		status           string
		extractedText    sql.NullString
		aiSummary        sql.NullString
		riskScore        sql.NullFloat64
		classification   sql.NullString
		reviewerID       sql.NullString
		reviewerComments sql.NullString
		processedAt      sql.NullTime
		approvedAt       sql.NullTime
	)

	err := row.Scan(
		&doc.DocumentID, &doc.Filename, &docType, &status, &doc.FilePath, &doc.FileSize, &doc.FileType,
		&extractedText, &aiSummary, &riskScore, &classification, &reviewerID, &reviewerComments,
		&doc.UploadedAt, &processedAt, &approvedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.DocumentType = domain.DocumentType(docType)
	doc.Status = domain.DocumentStatus(status)
	doc.ExtractedText = extractedText.String
	doc.AISummary = aiSummary.String
	doc.Classification = classification.String
	doc.ReviewerID = reviewerID.String
	doc.ReviewerComments = reviewerComments.String
	if riskScore.Valid {
		score := riskScore.Float64
		doc.RiskScore = &score
	}
	if processedAt.Valid {
		t := processedAt.Time
		doc.ProcessedAt = &t
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		doc.ApprovedAt = &t
	}
	return &doc, nil
}

func requireRow(result sql.Result, operation, documentID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("document_id %s", documentID))
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
