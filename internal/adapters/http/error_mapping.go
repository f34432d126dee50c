package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

type errorResponse struct {
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

func mapErrorToHTTPStatus(err error) int {
	return statusForKind(domain.KindOf(err))
}

func statusForKind(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "not_ready":
		return http.StatusConflict
	case "invalid_input":
		return http.StatusBadRequest
	case "unsupported_format":
		return http.StatusUnsupportedMediaType
	case "temporary":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func kindOrInternal(kind string) string {
	if kind == "" {
		return "internal"
	}
	return kind
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", "error_kind", domain.KindOf(err), "error", err)
	}
	writeJSON(w, status, errorResponse{
		ErrorKind: domain.KindOf(err),
		Message:   err.Error(),
	})
}
