package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrProjectNotFound    = errors.New("project not found")
	ErrComparisonNotFound = errors.New("comparison not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUploadFailed       = errors.New("upload failed")
	ErrHandleExpired      = errors.New("remote file handle expired")
	ErrExtractionParse    = errors.New("extraction parse failure")
	ErrSourceFileMissing  = errors.New("source file missing")
	ErrWeightValidation   = errors.New("weight validation failure")
	ErrTemporary          = errors.New("temporary failure")
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
