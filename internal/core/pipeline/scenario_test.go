package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/docflow/docflow/internal/core/domain"
	"github.com/docflow/docflow/internal/infrastructure/bus/memory"
)

// buildPipeline wires all five stages over a synchronous in-process bus, the
// same graph the worker runs in production.
func buildPipeline(t *testing.T, repo *fakeRepo, analyzer *fakeAnalyzer, notifier *fakeNotifier) *memory.Bus {
	t.Helper()

	bus := memory.New()
	emitter := NewEmitter(bus)
	logger := testLogger()

	router := NewRouter(bus, logger, nil)
	router.Register(
		NewSaveStage(repo, logger),
		NewClassifyStage(repo, analyzer, emitter, logger, time.Second),
		NewSummarizeStage(repo, analyzer, emitter, logger, time.Second),
		NewRiskScoreStage(repo, analyzer, logger, nil, 70, time.Second),
		NewNotifyStage(notifier, logger),
	)
	if err := router.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return bus
}

func publishUploaded(t *testing.T, bus *memory.Bus, id string) {
	t.Helper()
	payload, err := json.Marshal(domain.DocumentUploaded{
		DocumentID:   id,
		Filename:     "loan.txt",
		DocumentType: "loan_application",
		Content:      "applicant requests a loan of 50000",
		FileSize:     34,
		FileType:     "txt",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := bus.Publish(context.Background(), domain.TopicDocumentUploaded, payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestPipelineHighRiskDocumentReachesReview(t *testing.T) {
	repo := newFakeRepo()
	analyzer := &fakeAnalyzer{
		classification: domain.Classification{DocumentCategory: "jumbo loan", Confidence: 0.9},
		summary:        "Large unsecured loan request.",
		assessment: domain.RiskAssessment{
			TotalScore: 85,
			RiskLevel:  domain.RiskHigh,
			Concerns:   []string{"no collateral", "thin credit file"},
		},
	}

	bus := buildPipeline(t, repo, analyzer, &fakeNotifier{})
	publishUploaded(t, bus, "doc-high")

	doc := repo.get("doc-high")
	if doc == nil {
		t.Fatal("document missing after pipeline run")
	}
	if doc.Status != domain.StatusPendingReview {
		t.Errorf("status = %s, want %s", doc.Status, domain.StatusPendingReview)
	}
	if doc.RiskScore == nil || *doc.RiskScore != 85 {
		t.Errorf("risk score = %v, want 85", doc.RiskScore)
	}
	if doc.ApprovedAt != nil {
		t.Error("approved_at must stay unset for review routing")
	}
	if doc.ProcessedAt == nil {
		t.Error("processed_at must be set")
	}
	if !strings.Contains(doc.ReviewerComments, "High risk detected") {
		t.Errorf("reviewer comments = %q", doc.ReviewerComments)
	}
	if !strings.Contains(doc.ReviewerComments, "no collateral, thin credit file") {
		t.Errorf("concerns missing from comments: %q", doc.ReviewerComments)
	}
	if doc.AISummary != "Large unsecured loan request." {
		t.Errorf("summary = %q", doc.AISummary)
	}
}

func TestPipelineLowRiskDocumentAutoApproves(t *testing.T) {
	repo := newFakeRepo()
	analyzer := &fakeAnalyzer{
		classification: domain.Classification{DocumentCategory: "standard loan", Confidence: 0.95},
		summary:        "Routine application.",
		assessment: domain.RiskAssessment{
			TotalScore: 40,
			RiskLevel:  domain.RiskLow,
		},
	}

	bus := buildPipeline(t, repo, analyzer, &fakeNotifier{})
	publishUploaded(t, bus, "doc-low")

	doc := repo.get("doc-low")
	if doc == nil {
		t.Fatal("document missing after pipeline run")
	}
	if doc.Status != domain.StatusApproved {
		t.Errorf("status = %s, want %s", doc.Status, domain.StatusApproved)
	}
	if doc.ApprovedAt == nil {
		t.Error("approved_at must be set on auto-approval")
	}
	if !strings.Contains(doc.ReviewerComments, "Auto-approved") {
		t.Errorf("reviewer comments = %q", doc.ReviewerComments)
	}
}

func TestPipelineStallsWhenClassificationFails(t *testing.T) {
	repo := newFakeRepo()
	analyzer := &fakeAnalyzer{classifyErr: errors.New("model unavailable")}

	bus := buildPipeline(t, repo, analyzer, &fakeNotifier{})
	publishUploaded(t, bus, "doc-stall")

	doc := repo.get("doc-stall")
	if doc == nil {
		t.Fatal("save must still create the document")
	}
	if doc.Status != domain.StatusUploaded {
		t.Errorf("status = %s, want %s", doc.Status, domain.StatusUploaded)
	}
	if analyzer.summarizeCalls != 0 || analyzer.assessCalls != 0 {
		t.Errorf("downstream stages must not run, summarize=%d assess=%d",
			analyzer.summarizeCalls, analyzer.assessCalls)
	}
}

func TestPipelineNotifiesOnReviewEvent(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	bus := buildPipeline(t, repo, &fakeAnalyzer{}, notifier)

	payload, err := json.Marshal(domain.DocumentReviewed{
		DocumentID:   "doc-1",
		Decision:     "approve",
		ReviewerName: "Dana",
		Status:       "approved",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := bus.Publish(context.Background(), domain.TopicDocumentReviewed, payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(notifier.events) != 1 || notifier.events[0].ReviewerName != "Dana" {
		t.Fatalf("notified events = %+v", notifier.events)
	}
}
