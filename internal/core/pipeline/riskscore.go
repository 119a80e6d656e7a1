package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/docflow/docflow/internal/core/domain"
	"github.com/docflow/docflow/internal/core/ports"
)

// RoutingObserver records terminal routing decisions, typically for metrics.
type RoutingObserver interface {
	DocumentRouted(status domain.DocumentStatus)
}

// RiskScoreStage is the terminal automated decision point. Unlike the
// upstream stages it must never stall: any scoring failure falls back to a
// fixed neutral assessment so every summarized document reaches a decision.
type RiskScoreStage struct {
	repo      ports.DocumentRepository
	analyzer  ports.DocumentAnalyzer
	logger    *slog.Logger
	routing   RoutingObserver
	threshold float64
	aiTimeout time.Duration
}

func NewRiskScoreStage(
	repo ports.DocumentRepository,
	analyzer ports.DocumentAnalyzer,
	logger *slog.Logger,
	routing RoutingObserver,
	threshold float64,
	aiTimeout time.Duration,
) *RiskScoreStage {
	return &RiskScoreStage{
		repo:      repo,
		analyzer:  analyzer,
		logger:    logger,
		routing:   routing,
		threshold: threshold,
		aiTimeout: aiTimeout,
	}
}

func (s *RiskScoreStage) Name() string  { return "risk_score" }
func (s *RiskScoreStage) Topic() string { return domain.TopicDocumentSummarized }

func (s *RiskScoreStage) Handle(ctx context.Context, payload []byte) error {
	var event domain.DocumentSummarized
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode summarized event: %w", err)
	}

	docType, err := domain.ParseDocumentType(event.DocumentType)
	if err != nil {
		return fmt.Errorf("risk score document %s: %w", event.DocumentID, err)
	}

	aiCtx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()

	assessment, err := s.analyzer.AssessRisk(aiCtx, docType, event.Summary, event.Classification)
	if err != nil {
		s.logger.Warn("risk_scoring_fallback", "document_id", event.DocumentID, "error", err)
		assessment = domain.NeutralRiskAssessment()
	}

	now := time.Now().UTC()
	result := ports.RiskResult{
		Score:       assessment.TotalScore,
		ProcessedAt: now,
	}

	if assessment.TotalScore >= s.threshold {
		result.Status = domain.StatusPendingReview
		result.ReviewerComments = reviewWarning(assessment)
		s.logger.Warn("document_routed_to_review",
			"document_id", event.DocumentID,
			"risk_score", assessment.TotalScore,
			"risk_level", string(assessment.RiskLevel),
		)
	} else {
		approvedAt := now
		result.Status = domain.StatusApproved
		result.ApprovedAt = &approvedAt
		result.ReviewerComments = approvalNote(assessment)
		s.logger.Info("document_auto_approved",
			"document_id", event.DocumentID,
			"risk_score", assessment.TotalScore,
			"risk_level", string(assessment.RiskLevel),
		)
	}

	if err := s.repo.SaveRiskResult(ctx, event.DocumentID, result); err != nil {
		return fmt.Errorf("persist risk result for %s: %w", event.DocumentID, err)
	}
	if s.routing != nil {
		s.routing.DocumentRouted(result.Status)
	}
	return nil
}

func reviewWarning(a domain.RiskAssessment) string {
	return fmt.Sprintf("High risk detected (Score: %g/100, Level: %s). %s",
		a.TotalScore, a.RiskLevel, strings.Join(a.Concerns, ", "))
}

func approvalNote(a domain.RiskAssessment) string {
	return fmt.Sprintf("Auto-approved (Risk Score: %g/100, Level: %s). Lower score = lower risk.",
		a.TotalScore, a.RiskLevel)
}
