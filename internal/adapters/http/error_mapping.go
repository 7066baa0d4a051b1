package httpadapter

import (
	"net/http"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrWeightValidation):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound),
		domain.IsKind(err, domain.ErrProjectNotFound),
		domain.IsKind(err, domain.ErrComparisonNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrSourceFileMissing):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrUploadFailed),
		domain.IsKind(err, domain.ErrHandleExpired),
		domain.IsKind(err, domain.ErrExtractionParse):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
