package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/docflow/docflow/internal/core/domain"
	"github.com/docflow/docflow/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRepo is an in-memory DocumentRepository with per-method error
// injection.
type fakeRepo struct {
	mu   sync.Mutex
	docs map[string]*domain.Document

	createErr         error
	upsertErr         error
	saveSummaryErr    error
	saveRiskErr       error
	duplicateOnCreate bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{docs: make(map[string]*domain.Document)}
}

func (r *fakeRepo) Create(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, exists := r.docs[doc.DocumentID]; exists || r.duplicateOnCreate {
		return domain.ErrDuplicateDocument
	}
	copied := *doc
	r.docs[doc.DocumentID] = &copied
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, documentID string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeRepo) UpsertClassification(_ context.Context, documentID string, docType domain.DocumentType, cls domain.Classification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	doc, ok := r.docs[documentID]
	if !ok {
		doc = &domain.Document{DocumentID: documentID, DocumentType: docType, Status: domain.StatusUploaded}
		r.docs[documentID] = doc
	}
	doc.Classification = cls.DocumentCategory
	if doc.Status.Rank() < domain.StatusProcessing.Rank() {
		doc.Status = domain.StatusProcessing
	}
	return nil
}

func (r *fakeRepo) SaveSummary(_ context.Context, documentID, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveSummaryErr != nil {
		return r.saveSummaryErr
	}
	doc, ok := r.docs[documentID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	doc.AISummary = summary
	return nil
}

func (r *fakeRepo) SaveRiskResult(_ context.Context, documentID string, result ports.RiskResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveRiskErr != nil {
		return r.saveRiskErr
	}
	doc, ok := r.docs[documentID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	score := result.Score
	doc.RiskScore = &score
	doc.ReviewerComments = result.ReviewerComments
	processedAt := result.ProcessedAt
	doc.ProcessedAt = &processedAt
	doc.ApprovedAt = result.ApprovedAt
	if doc.Status.Rank() <= result.Status.Rank() {
		doc.Status = result.Status
	}
	return nil
}

func (r *fakeRepo) SaveReview(_ context.Context, documentID string, result ports.ReviewResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	doc.Status = result.Status
	doc.ReviewerID = result.ReviewerID
	doc.ReviewerComments = result.ReviewerComments
	return nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, documentID string, status domain.DocumentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if doc.Status.Rank() <= status.Rank() {
		doc.Status = status
	}
	return nil
}

func (r *fakeRepo) List(_ context.Context, _ ports.ListFilter) ([]domain.DocumentSummary, error) {
	return nil, nil
}

func (r *fakeRepo) ListPendingReview(_ context.Context) ([]domain.Document, error) {
	return nil, nil
}

func (r *fakeRepo) Delete(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[documentID]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(r.docs, documentID)
	return nil
}

func (r *fakeRepo) get(documentID string) *domain.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[documentID]
}

// fakeAnalyzer returns canned results and records the excerpts it saw.
type fakeAnalyzer struct {
	mu sync.Mutex

	classification domain.Classification
	classifyErr    error
	summary        string
	summarizeErr   error
	assessment     domain.RiskAssessment
	assessErr      error

	classifyExcerpt  string
	summarizeExcerpt string
	classifyCalls    int
	summarizeCalls   int
	assessCalls      int
}

func (a *fakeAnalyzer) Classify(_ context.Context, _ domain.DocumentType, excerpt string) (domain.Classification, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.classifyCalls++
	a.classifyExcerpt = excerpt
	if a.classifyErr != nil {
		return domain.Classification{}, a.classifyErr
	}
	return a.classification, nil
}

func (a *fakeAnalyzer) Summarize(_ context.Context, _ domain.DocumentType, excerpt string, _ []string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summarizeCalls++
	a.summarizeExcerpt = excerpt
	if a.summarizeErr != nil {
		return "", a.summarizeErr
	}
	return a.summary, nil
}

func (a *fakeAnalyzer) AssessRisk(_ context.Context, _ domain.DocumentType, _ string, _ domain.Classification) (domain.RiskAssessment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.assessCalls++
	if a.assessErr != nil {
		return domain.RiskAssessment{}, a.assessErr
	}
	return a.assessment, nil
}

// fakeEmitter records emitted events instead of publishing.
type fakeEmitter struct {
	mu     sync.Mutex
	topics []string
	events []any
	err    error
}

func (e *fakeEmitter) Emit(_ context.Context, topic string, event any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.topics = append(e.topics, topic)
	e.events = append(e.events, event)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.DocumentReviewed
	err    error
}

func (n *fakeNotifier) NotifyReviewed(_ context.Context, event domain.DocumentReviewed) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

type routingRecorder struct {
	mu     sync.Mutex
	routed []domain.DocumentStatus
}

func (r *routingRecorder) DocumentRouted(status domain.DocumentStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routed = append(r.routed, status)
}
