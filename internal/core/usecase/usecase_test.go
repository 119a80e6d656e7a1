package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/docflow/docflow/internal/core/domain"
	"github.com/docflow/docflow/internal/core/ports"
)

type capturingBus struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
}

func (b *capturingBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.topics = append(b.topics, topic)
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *capturingBus) Subscribe(context.Context, string, func(context.Context, []byte)) error {
	return nil
}

type fakeStorage struct {
	saved map[string][]byte
	err   error
}

func (s *fakeStorage) Save(_ context.Context, key string, data io.Reader) error {
	if s.err != nil {
		return s.err
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if s.saved == nil {
		s.saved = map[string][]byte{}
	}
	s.saved[key] = buf
	return nil
}

func (s *fakeStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.saved[key]
	if !ok {
		return nil, errors.New("not stored")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fakeExtractor struct {
	text string
	err  error
	key  string
}

func (e *fakeExtractor) Extract(_ context.Context, storageKey, _ string) (string, error) {
	e.key = storageKey
	if e.err != nil {
		return "", e.err
	}
	return e.text, nil
}

type reviewRepo struct {
	doc       *domain.Document
	getErr    error
	saveErr   error
	lastSaved ports.ReviewResult
}

func (r *reviewRepo) Create(context.Context, *domain.Document) error { return nil }

func (r *reviewRepo) GetByID(context.Context, string) (*domain.Document, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	copied := *r.doc
	return &copied, nil
}

func (r *reviewRepo) UpsertClassification(context.Context, string, domain.DocumentType, domain.Classification) error {
	return nil
}
func (r *reviewRepo) SaveSummary(context.Context, string, string) error { return nil }
func (r *reviewRepo) SaveRiskResult(context.Context, string, ports.RiskResult) error {
	return nil
}

func (r *reviewRepo) SaveReview(_ context.Context, _ string, result ports.ReviewResult) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.lastSaved = result
	return nil
}

func (r *reviewRepo) UpdateStatus(context.Context, string, domain.DocumentStatus) error {
	return nil
}
func (r *reviewRepo) List(context.Context, ports.ListFilter) ([]domain.DocumentSummary, error) {
	return nil, nil
}
func (r *reviewRepo) ListPendingReview(context.Context) ([]domain.Document, error) {
	return nil, nil
}
func (r *reviewRepo) Delete(context.Context, string) error { return nil }

func TestUploadInlineContentPublishesRootEvent(t *testing.T) {
	bus := &capturingBus{}
	uc := NewUploadDocumentUseCase(&fakeStorage{}, &fakeExtractor{}, bus)

	doc, err := uc.Upload(context.Background(), ports.UploadRequest{
		Filename:     "loan.txt",
		DocumentType: "Loan_Application",
		Content:      "please approve",
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.DocumentID == "" {
		t.Fatal("document id must be assigned")
	}
	if doc.Status != domain.StatusUploaded {
		t.Errorf("status = %s", doc.Status)
	}

	if len(bus.topics) != 1 || bus.topics[0] != domain.TopicDocumentUploaded {
		t.Fatalf("published topics = %v", bus.topics)
	}
	var event domain.DocumentUploaded
	if err := json.Unmarshal(bus.payloads[0], &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Content != "please approve" {
		t.Errorf("event content = %q", event.Content)
	}
	if event.DocumentType != "loan_application" {
		t.Errorf("event document type = %q, want canonical lowercase", event.DocumentType)
	}
	if event.FilePath != "" {
		t.Errorf("inline upload must not have a file path, got %q", event.FilePath)
	}
}

func TestUploadFilePayloadStoresAndExtracts(t *testing.T) {
	bus := &capturingBus{}
	storage := &fakeStorage{}
	extractor := &fakeExtractor{text: "extracted body"}
	uc := NewUploadDocumentUseCase(storage, extractor, bus)

	doc, err := uc.Upload(context.Background(), ports.UploadRequest{
		Filename:     "my claim (final).pdf",
		DocumentType: "insurance_claim",
		Payload:      strings.NewReader("%PDF-1.4"),
		FileSize:     8,
		FileType:     "pdf",
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if len(storage.saved) != 1 {
		t.Fatalf("saved objects = %d, want 1", len(storage.saved))
	}
	if !strings.HasPrefix(doc.FilePath, doc.DocumentID+"_") {
		t.Errorf("file path = %q, want prefixed with document id", doc.FilePath)
	}
	if strings.ContainsAny(doc.FilePath, " ()") {
		t.Errorf("file path must be sanitized, got %q", doc.FilePath)
	}
	if extractor.key != doc.FilePath {
		t.Errorf("extractor key = %q, want %q", extractor.key, doc.FilePath)
	}

	var event domain.DocumentUploaded
	if err := json.Unmarshal(bus.payloads[0], &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Content != "extracted body" {
		t.Errorf("event content = %q, want extracted text", event.Content)
	}
}

func TestUploadRejectsUnknownType(t *testing.T) {
	bus := &capturingBus{}
	uc := NewUploadDocumentUseCase(&fakeStorage{}, &fakeExtractor{}, bus)

	_, err := uc.Upload(context.Background(), ports.UploadRequest{
		Filename:     "doc.txt",
		DocumentType: "tax_return",
	})
	if !domain.IsKind(err, domain.ErrInvalidDocumentType) {
		t.Fatalf("error = %v, want invalid document type", err)
	}
	if len(bus.topics) != 0 {
		t.Fatal("nothing must be published for a rejected upload")
	}
}

func TestUploadFailsWhenExtractionFails(t *testing.T) {
	bus := &capturingBus{}
	extractor := &fakeExtractor{err: domain.ErrUnsupportedFileType}
	uc := NewUploadDocumentUseCase(&fakeStorage{}, extractor, bus)

	_, err := uc.Upload(context.Background(), ports.UploadRequest{
		Filename:     "doc.docx",
		DocumentType: "legal_contract",
		Payload:      strings.NewReader("zip"),
		FileType:     "docx",
	})
	if !domain.IsKind(err, domain.ErrUnsupportedFileType) {
		t.Fatalf("error = %v, want unsupported file type", err)
	}
	if len(bus.topics) != 0 {
		t.Fatal("nothing must be published when extraction fails")
	}
}

func TestReviewApproveUpdatesAndPublishes(t *testing.T) {
	bus := &capturingBus{}
	repo := &reviewRepo{doc: &domain.Document{
		DocumentID: "doc-1",
		Status:     domain.StatusPendingReview,
	}}
	uc := NewReviewDocumentUseCase(repo, bus)

	doc, err := uc.Review(context.Background(), ports.ReviewRequest{
		DocumentID:   "doc-1",
		Decision:     "Approve",
		ReviewerName: "Dana",
		Comments:     "Collateral verified",
	})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if doc.Status != domain.StatusApproved {
		t.Errorf("status = %s", doc.Status)
	}
	if repo.lastSaved.Status != domain.StatusApproved {
		t.Errorf("saved status = %s", repo.lastSaved.Status)
	}
	if !strings.Contains(repo.lastSaved.ReviewerComments, "Human Review by Dana: APPROVE") {
		t.Errorf("saved comments = %q", repo.lastSaved.ReviewerComments)
	}

	if len(bus.topics) != 1 || bus.topics[0] != domain.TopicDocumentReviewed {
		t.Fatalf("published topics = %v", bus.topics)
	}
	var event domain.DocumentReviewed
	if err := json.Unmarshal(bus.payloads[0], &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Decision != "approve" || event.Status != "approved" {
		t.Errorf("event = %+v", event)
	}
}

func TestReviewRejectSetsRejected(t *testing.T) {
	bus := &capturingBus{}
	repo := &reviewRepo{doc: &domain.Document{
		DocumentID: "doc-1",
		Status:     domain.StatusPendingReview,
	}}
	uc := NewReviewDocumentUseCase(repo, bus)

	doc, err := uc.Review(context.Background(), ports.ReviewRequest{
		DocumentID: "doc-1",
		Decision:   "reject",
	})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if doc.Status != domain.StatusRejected {
		t.Errorf("status = %s", doc.Status)
	}
	if repo.lastSaved.ReviewerID != "Unknown" {
		t.Errorf("reviewer id = %q, want Unknown default", repo.lastSaved.ReviewerID)
	}
	if !strings.Contains(repo.lastSaved.ReviewerComments, "No comments provided.") {
		t.Errorf("comments = %q", repo.lastSaved.ReviewerComments)
	}
}

func TestReviewRejectsInvalidDecision(t *testing.T) {
	bus := &capturingBus{}
	repo := &reviewRepo{doc: &domain.Document{DocumentID: "doc-1"}}
	uc := NewReviewDocumentUseCase(repo, bus)

	_, err := uc.Review(context.Background(), ports.ReviewRequest{
		DocumentID: "doc-1",
		Decision:   "maybe",
	})
	if !domain.IsKind(err, domain.ErrInvalidDocumentStatus) {
		t.Fatalf("error = %v, want invalid status kind", err)
	}
	if len(bus.topics) != 0 {
		t.Fatal("nothing must be published for an invalid decision")
	}
}

func TestReviewMissingDocument(t *testing.T) {
	bus := &capturingBus{}
	repo := &reviewRepo{getErr: domain.ErrDocumentNotFound}
	uc := NewReviewDocumentUseCase(repo, bus)

	_, err := uc.Review(context.Background(), ports.ReviewRequest{
		DocumentID: "missing",
		Decision:   "approve",
	})
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}
