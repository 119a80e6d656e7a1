package ports

import (
	"context"
	"io"

	"github.com/docflow/docflow/internal/core/domain"
)

// UploadRequest is the inbound upload surface. Content and Payload are
// alternatives: inline text, or a raw file to store and extract.
type UploadRequest struct {
	Filename     string
	DocumentType string
	Content      string
	Payload      io.Reader
	FileSize     int64
	FileType     string
}

// DocumentUploader accepts an upload and triggers the processing pipeline.
type DocumentUploader interface {
	Upload(ctx context.Context, req UploadRequest) (*domain.Document, error)
}

// ReviewRequest carries a human review decision for a document.
type ReviewRequest struct {
	DocumentID   string
	Decision     string
	ReviewerName string
	Comments     string
}

// DocumentReviewer applies a review decision and announces it.
type DocumentReviewer interface {
	Review(ctx context.Context, req ReviewRequest) (*domain.Document, error)
}
