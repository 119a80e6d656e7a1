package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/docflow/docflow/internal/core/domain"
	"github.com/docflow/docflow/internal/core/ports"
)

// Extractor converts stored upload payloads into plain text for the
// declared file type. DOCX is not supported and is rejected with a typed
// error rather than guessed at.
type Extractor struct {
	storage ports.ObjectStorage
}

func New(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, storageKey, fileType string) (string, error) {
	reader, err := e.storage.Open(ctx, storageKey)
	if err != nil {
		return "", fmt.Errorf("open stored payload: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read stored payload: %w", err)
	}

	switch normalizeFileType(storageKey, fileType) {
	case "txt":
		return extractPlainText(raw)
	case "pdf":
		return extractPDF(raw)
	case "xlsx":
		return extractXLSX(raw)
	default:
		return "", domain.WrapError(domain.ErrUnsupportedFileType, "extract text",
			fmt.Errorf("file type %q (key %s)", fileType, storageKey))
	}
}

func normalizeFileType(storageKey, fileType string) string {
	switch strings.ToLower(strings.TrimSpace(fileType)) {
	case "txt", "text", "text/plain":
		return "txt"
	case "pdf", "application/pdf":
		return "pdf"
	case "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "xlsx"
	case "":
		return strings.TrimPrefix(strings.ToLower(filepath.Ext(storageKey)), ".")
	default:
		return strings.ToLower(strings.TrimSpace(fileType))
	}
}

func extractPlainText(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrUnsupportedFileType, "extract text",
			fmt.Errorf("payload is not valid UTF-8 text"))
	}
	return strings.TrimSpace(string(raw)), nil
}

func extractPDF(raw []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var builder strings.Builder
	if _, err := io.Copy(&builder, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(builder.String()), nil
}

func extractXLSX(raw []byte) (string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer file.Close()

	var builder strings.Builder
	for _, sheet := range file.GetSheetList() {
		rows, err := file.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read xlsx sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			builder.WriteString(strings.Join(row, "\t"))
			builder.WriteString("\n")
		}
	}
	return strings.TrimSpace(builder.String()), nil
}
