package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/docflow/docflow/internal/core/domain"
	"github.com/docflow/docflow/internal/core/ports"
)

// NotifyStage reacts to human review decisions made outside the pipeline.
// Delivery failure is logged and swallowed; there is no retry and nothing
// downstream to emit.
type NotifyStage struct {
	notifier ports.ReviewNotifier
	logger   *slog.Logger
}

func NewNotifyStage(notifier ports.ReviewNotifier, logger *slog.Logger) *NotifyStage {
	return &NotifyStage{notifier: notifier, logger: logger}
}

func (s *NotifyStage) Name() string  { return "notify" }
func (s *NotifyStage) Topic() string { return domain.TopicDocumentReviewed }

func (s *NotifyStage) Handle(ctx context.Context, payload []byte) error {
	var event domain.DocumentReviewed
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode reviewed event: %w", err)
	}

	if err := s.notifier.NotifyReviewed(ctx, event); err != nil {
		s.logger.Error("review_notification_failed", "document_id", event.DocumentID, "error", err)
		return nil
	}

	s.logger.Info("review_notification_sent", "document_id", event.DocumentID, "decision", event.Decision)
	return nil
}
