package httpadapter

import (
	"net/http"

	"github.com/fundingstack/docintake/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrInvalidImage),
		domain.IsKind(err, domain.ErrUnsupportedLanguage):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrIllegalTransition),
		domain.IsKind(err, domain.ErrConcurrentProcessing):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrClassificationRejected),
		domain.IsKind(err, domain.ErrFieldValidation):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrQueueSaturated),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
