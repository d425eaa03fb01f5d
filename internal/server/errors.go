package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joseph-ayodele/docintel/internal/common"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error         errorDetail `json:"error"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

var codeStatus = map[string]int{
	common.CodeValidationFailed:       http.StatusBadRequest,
	common.CodeProfileNotFound:        http.StatusNotFound,
	common.CodeProfileInactive:        http.StatusConflict,
	common.CodeNotFound:               http.StatusNotFound,
	common.CodeInvalidStateTransition: http.StatusConflict,
	common.CodeAlreadyReviewed:        http.StatusConflict,
	common.CodeUnauthorized:           http.StatusUnauthorized,
	common.CodeForbidden:              http.StatusForbidden,
	common.CodeExtractionFailed:       http.StatusBadGateway,
}

// exposesMessage lists the codes whose message is safe to show callers.
// Everything else is reported by code only.
var exposesMessage = map[string]bool{
	common.CodeValidationFailed:       true,
	common.CodeProfileNotFound:        true,
	common.CodeProfileInactive:        true,
	common.CodeNotFound:               true,
	common.CodeInvalidStateTransition: true,
	common.CodeAlreadyReviewed:        true,
	common.CodeUnauthorized:           true,
	common.CodeForbidden:              true,
}

func statusFor(code string) int {
	if st, ok := codeStatus[code]; ok {
		return st
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := common.CodeOf(err)
	if code == "" {
		code = common.CodeInternal
	}
	status := statusFor(code)

	detail := errorDetail{Code: code, Message: http.StatusText(status)}
	if exposesMessage[code] {
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			detail.Message = appErr.Message
		}
	}
	if status >= http.StatusInternalServerError {
		slog.Default().Error("request failed", "code", code, "error", err,
			"correlation_id", common.CorrelationIDFromContext(r.Context()))
	}
	writeJSON(w, status, errorBody{Error: detail, CorrelationID: common.CorrelationIDFromContext(r.Context())})
}
