package ports

import (
	"context"
	"io"
	"time"

	"github.com/docflow/docflow/internal/core/domain"
)

// ListFilter narrows and bounds document listings.
type ListFilter struct {
	Status *domain.DocumentStatus
	Limit  int
}

// RiskResult carries everything the terminal risk stage persists in one
// atomic write.
type RiskResult struct {
	Score            float64
	Status           domain.DocumentStatus
	ReviewerComments string
	ProcessedAt      time.Time
	ApprovedAt       *time.Time
}

// ReviewResult is the outcome of a human review action.
type ReviewResult struct {
	Status           domain.DocumentStatus
	ReviewerID       string
	ReviewerComments string
	ApprovedAt       time.Time
}

// DocumentRepository persists and reads document state. All writes are
// field-level merges scoped to one document_id.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, documentID string) (*domain.Document, error)
	UpsertClassification(ctx context.Context, documentID string, docType domain.DocumentType, cls domain.Classification) error
	SaveSummary(ctx context.Context, documentID, summary string) error
	SaveRiskResult(ctx context.Context, documentID string, result RiskResult) error
	SaveReview(ctx context.Context, documentID string, result ReviewResult) error
	UpdateStatus(ctx context.Context, documentID string, status domain.DocumentStatus) error
	List(ctx context.Context, filter ListFilter) ([]domain.DocumentSummary, error)
	ListPendingReview(ctx context.Context) ([]domain.Document, error)
	Delete(ctx context.Context, documentID string) error
}

// EventBus delivers topic events to subscribers. Payloads are opaque bytes;
// stages own their own decoding.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler func(context.Context, []byte)) error
}

// DocumentAnalyzer performs the three independent AI analyses.
type DocumentAnalyzer interface {
	Classify(ctx context.Context, docType domain.DocumentType, excerpt string) (domain.Classification, error)
	Summarize(ctx context.Context, docType domain.DocumentType, excerpt string, keyEntities []string) (string, error)
	AssessRisk(ctx context.Context, docType domain.DocumentType, summary string, cls domain.Classification) (domain.RiskAssessment, error)
}

// ObjectStorage stores raw uploaded payloads.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor converts a stored payload into plain text for a declared
// file type.
type TextExtractor interface {
	Extract(ctx context.Context, storageKey, fileType string) (string, error)
}

// ReviewNotifier delivers human-readable review notifications. Delivery
// failure is non-fatal to the pipeline.
type ReviewNotifier interface {
	NotifyReviewed(ctx context.Context, event domain.DocumentReviewed) error
}
