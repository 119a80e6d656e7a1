package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/docflow/docflow/internal/core/domain"
	"github.com/docflow/docflow/internal/core/ports"
)

// SaveStage creates the document record for a fresh upload. It is a leaf of
// the subscription graph: classification is triggered independently by the
// same root event, so Save never emits.
type SaveStage struct {
	repo   ports.DocumentRepository
	logger *slog.Logger
}

func NewSaveStage(repo ports.DocumentRepository, logger *slog.Logger) *SaveStage {
	return &SaveStage{repo: repo, logger: logger}
}

func (s *SaveStage) Name() string  { return "save" }
func (s *SaveStage) Topic() string { return domain.TopicDocumentUploaded }

func (s *SaveStage) Handle(ctx context.Context, payload []byte) error {
	var event domain.DocumentUploaded
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode uploaded event: %w", err)
	}

	docType, err := domain.ParseDocumentType(event.DocumentType)
	if err != nil {
		// Invalid type means the document is never created; upstream must
		// treat the upload as rejected.
		return fmt.Errorf("save document %s: %w", event.DocumentID, err)
	}

	doc := &domain.Document{
		DocumentID:    event.DocumentID,
		Filename:      event.Filename,
		DocumentType:  docType,
		Status:        domain.StatusUploaded,
		FilePath:      event.FilePath,
		FileSize:      event.FileSize,
		FileType:      event.FileType,
		ExtractedText: event.Content,
		UploadedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		if domain.IsKind(err, domain.ErrDuplicateDocument) {
			s.logger.Warn("document_already_exists", "document_id", event.DocumentID)
			return nil
		}
		return fmt.Errorf("create document %s: %w", event.DocumentID, err)
	}

	s.logger.Info("document_saved", "document_id", event.DocumentID, "document_type", docType.String())
	return nil
}
