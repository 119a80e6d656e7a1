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

const classifyExcerptLimit = 2000

// ClassifyStage runs AI classification on a fresh upload. On any failure it
// logs and does not emit: the document stays in `uploaded`, visible as a
// monitoring gap rather than silently retried.
type ClassifyStage struct {
	repo      ports.DocumentRepository
	analyzer  ports.DocumentAnalyzer
	emitter   Emitter
	logger    *slog.Logger
	aiTimeout time.Duration
}

func NewClassifyStage(
	repo ports.DocumentRepository,
	analyzer ports.DocumentAnalyzer,
	emitter Emitter,
	logger *slog.Logger,
	aiTimeout time.Duration,
) *ClassifyStage {
	return &ClassifyStage{
		repo:      repo,
		analyzer:  analyzer,
		emitter:   emitter,
		logger:    logger,
		aiTimeout: aiTimeout,
	}
}

func (s *ClassifyStage) Name() string  { return "classify" }
func (s *ClassifyStage) Topic() string { return domain.TopicDocumentUploaded }

func (s *ClassifyStage) Handle(ctx context.Context, payload []byte) error {
	var event domain.DocumentUploaded
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode uploaded event: %w", err)
	}

	docType, err := domain.ParseDocumentType(event.DocumentType)
	if err != nil {
		return fmt.Errorf("classify document %s: %w", event.DocumentID, err)
	}

	aiCtx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()

	cls, err := s.analyzer.Classify(aiCtx, docType, excerpt(event.Content, classifyExcerptLimit))
	if err != nil {
		return fmt.Errorf("classify document %s: %w", event.DocumentID, err)
	}

	// Upsert keyed by document_id: Save is a sibling subscriber on the same
	// root event and may not have created the row yet.
	if err := s.repo.UpsertClassification(ctx, event.DocumentID, docType, cls); err != nil {
		return fmt.Errorf("persist classification for %s: %w", event.DocumentID, err)
	}

	s.logger.Info("document_classified",
		"document_id", event.DocumentID,
		"category", cls.DocumentCategory,
		"confidence", cls.Confidence,
	)

	return s.emitter.Emit(ctx, domain.TopicDocumentClassified, domain.DocumentClassified{
		DocumentID:     event.DocumentID,
		DocumentType:   docType.String(),
		Content:        event.Content,
		Classification: cls,
	})
}
