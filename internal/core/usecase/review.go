package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docflow/docflow/internal/core/domain"
	"github.com/docflow/docflow/internal/core/ports"
)

// ReviewDocumentUseCase applies a human review decision to a document in
// `pending_review` and publishes `document.reviewed` for the notify stage.
type ReviewDocumentUseCase struct {
	repo ports.DocumentRepository
	bus  ports.EventBus
}

func NewReviewDocumentUseCase(repo ports.DocumentRepository, bus ports.EventBus) *ReviewDocumentUseCase {
	return &ReviewDocumentUseCase{repo: repo, bus: bus}
}

func (uc *ReviewDocumentUseCase) Review(ctx context.Context, req ports.ReviewRequest) (*domain.Document, error) {
	decision := strings.ToLower(strings.TrimSpace(req.Decision))
	if decision != "approve" && decision != "reject" {
		return nil, domain.WrapError(domain.ErrInvalidDocumentStatus, "review document",
			errors.New(`decision must be "approve" or "reject"`))
	}

	doc, err := uc.repo.GetByID(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load document for review: %w", err)
	}

	status := domain.StatusApproved
	if decision == "reject" {
		status = domain.StatusRejected
	}
	reviewer := req.ReviewerName
	if reviewer == "" {
		reviewer = "Unknown"
	}
	comments := req.Comments
	if comments == "" {
		comments = "No comments provided."
	}

	result := ports.ReviewResult{
		Status:           status,
		ReviewerID:       reviewer,
		ReviewerComments: fmt.Sprintf("Human Review by %s: %s. %s", reviewer, strings.ToUpper(decision), comments),
		ApprovedAt:       time.Now().UTC(),
	}
	if err := uc.repo.SaveReview(ctx, req.DocumentID, result); err != nil {
		return nil, fmt.Errorf("persist review decision: %w", err)
	}

	event := domain.DocumentReviewed{
		DocumentID:   req.DocumentID,
		Decision:     decision,
		ReviewerName: req.ReviewerName,
		Comments:     req.Comments,
		Status:       status.String(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal reviewed event: %w", err)
	}
	if err := uc.bus.Publish(ctx, domain.TopicDocumentReviewed, payload); err != nil {
		return nil, fmt.Errorf("publish reviewed event: %w", err)
	}

	doc.Status = status
	doc.ReviewerID = reviewer
	doc.ReviewerComments = result.ReviewerComments
	doc.ApprovedAt = &result.ApprovedAt
	return doc, nil
}
