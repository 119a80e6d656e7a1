package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound      = errors.New("document not found")
	ErrDuplicateDocument     = errors.New("document already exists")
	ErrInvalidDocumentType   = errors.New("invalid document type")
	ErrInvalidDocumentStatus = errors.New("invalid document status")
	ErrMalformedAIResponse   = errors.New("malformed ai response")
	ErrUnsupportedFileType   = errors.New("unsupported file type")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
