package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docflow/docflow/internal/core/domain"
	"github.com/docflow/docflow/internal/core/ports"
)

// UploadDocumentUseCase accepts an upload and publishes the root
// `document.uploaded` event. The document row itself is created by the Save
// stage reacting to that event.
type UploadDocumentUseCase struct {
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	bus       ports.EventBus
}

func NewUploadDocumentUseCase(
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	bus ports.EventBus,
) *UploadDocumentUseCase {
	return &UploadDocumentUseCase{
		storage:   storage,
		extractor: extractor,
		bus:       bus,
	}
}

func (uc *UploadDocumentUseCase) Upload(ctx context.Context, req ports.UploadRequest) (*domain.Document, error) {
	docType, err := domain.ParseDocumentType(req.DocumentType)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	content := req.Content
	filePath := ""

	if req.Payload != nil {
		filePath = fmt.Sprintf("%s_%s", id, sanitizeFilename(req.Filename))
		if err := uc.storage.Save(ctx, filePath, req.Payload); err != nil {
			return nil, fmt.Errorf("save upload payload: %w", err)
		}
		content, err = uc.extractor.Extract(ctx, filePath, req.FileType)
		if err != nil {
			return nil, fmt.Errorf("extract upload text: %w", err)
		}
	}

	event := domain.DocumentUploaded{
		DocumentID:   id,
		Filename:     req.Filename,
		DocumentType: docType.String(),
		FilePath:     filePath,
		Content:      content,
		FileSize:     req.FileSize,
		FileType:     req.FileType,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal uploaded event: %w", err)
	}
	if err := uc.bus.Publish(ctx, domain.TopicDocumentUploaded, payload); err != nil {
		return nil, fmt.Errorf("publish uploaded event: %w", err)
	}

	return &domain.Document{
		DocumentID:   id,
		Filename:     req.Filename,
		DocumentType: docType,
		Status:       domain.StatusUploaded,
		FilePath:     filePath,
		FileSize:     req.FileSize,
		FileType:     req.FileType,
		UploadedAt:   time.Now().UTC(),
	}, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
