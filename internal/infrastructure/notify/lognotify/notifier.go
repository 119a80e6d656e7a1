package lognotify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docflow/docflow/internal/core/domain"
)

// Notifier renders the review notification and delivers it to the log.
// Real delivery channels (email, Slack) plug in behind the same port.
type Notifier struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger}
}

func (n *Notifier) NotifyReviewed(_ context.Context, event domain.DocumentReviewed) error {
	n.logger.Info("review_notification",
		"document_id", event.DocumentID,
		"message", FormatMessage(event),
	)
	return nil
}

// FormatMessage builds the human-readable review summary block.
func FormatMessage(event domain.DocumentReviewed) string {
	reviewer := event.ReviewerName
	if reviewer == "" {
		reviewer = "Unknown"
	}
	comments := event.Comments
	if comments == "" {
		comments = "No comments"
	}

	return fmt.Sprintf(`Document Review Complete
========================
Document ID: %s
Decision: %s
Reviewer: %s
Comments: %s
Final Status: %s`,
		event.DocumentID,
		strings.ToUpper(event.Decision),
		reviewer,
		comments,
		event.Status,
	)
}
