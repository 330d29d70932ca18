package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound       = errors.New("document not found")
	ErrInvalidInput           = errors.New("invalid input")
	ErrTemporary              = errors.New("temporary failure")
	ErrInvalidImage           = errors.New("invalid image")
	ErrUnsupportedLanguage    = errors.New("unsupported ocr language")
	ErrOCRBackend             = errors.New("ocr backend failure")
	ErrClassificationRejected = errors.New("classification rejected")
	ErrFieldValidation        = errors.New("field validation failed")
	ErrIllegalTransition      = errors.New("illegal status transition")
	ErrConcurrentProcessing   = errors.New("document already processing")
	ErrQueueSaturated         = errors.New("work queue saturated")
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
