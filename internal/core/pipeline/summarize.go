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

const summarizeExcerptLimit = 3000

// SummarizeStage generates the AI summary once classification is durable.
// It only ever runs after Classify's commit because it is triggered by the
// event Classify emits.
type SummarizeStage struct {
	repo      ports.DocumentRepository
	analyzer  ports.DocumentAnalyzer
	emitter   Emitter
	logger    *slog.Logger
	aiTimeout time.Duration
}

func NewSummarizeStage(
	repo ports.DocumentRepository,
	analyzer ports.DocumentAnalyzer,
	emitter Emitter,
	logger *slog.Logger,
	aiTimeout time.Duration,
) *SummarizeStage {
	return &SummarizeStage{
		repo:      repo,
		analyzer:  analyzer,
		emitter:   emitter,
		logger:    logger,
		aiTimeout: aiTimeout,
	}
}

func (s *SummarizeStage) Name() string  { return "summarize" }
func (s *SummarizeStage) Topic() string { return domain.TopicDocumentClassified }

func (s *SummarizeStage) Handle(ctx context.Context, payload []byte) error {
	var event domain.DocumentClassified
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode classified event: %w", err)
	}

	docType, err := domain.ParseDocumentType(event.DocumentType)
	if err != nil {
		return fmt.Errorf("summarize document %s: %w", event.DocumentID, err)
	}

	aiCtx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()

	summary, err := s.analyzer.Summarize(aiCtx, docType, excerpt(event.Content, summarizeExcerptLimit), event.Classification.KeyEntities)
	if err != nil {
		return fmt.Errorf("summarize document %s: %w", event.DocumentID, err)
	}

	if err := s.repo.SaveSummary(ctx, event.DocumentID, summary); err != nil {
		return fmt.Errorf("persist summary for %s: %w", event.DocumentID, err)
	}

	s.logger.Info("document_summarized", "document_id", event.DocumentID, "summary_chars", len(summary))

	return s.emitter.Emit(ctx, domain.TopicDocumentSummarized, domain.DocumentSummarized{
		DocumentID:     event.DocumentID,
		DocumentType:   docType.String(),
		Content:        event.Content,
		Classification: event.Classification,
		Summary:        summary,
	})
}
