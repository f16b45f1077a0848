package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error     bool                   `json:"error"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ErrorHandler writes errors as JSON responses. Anything that is not an
// AppError is reported as INTERNAL and its text is withheld unless debug
// is set.
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

// NewErrorHandler creates an error handler
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{logger: logger, debug: debug}
}

// Handle writes err. A nil error writes nothing.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	appErr := GetAppError(err)
	if appErr == nil {
		appErr = &AppError{
			Type:       ErrorTypeInternal,
			Message:    "internal error",
			Cause:      err,
			HTTPStatus: http.StatusInternalServerError,
		}
		if h.debug {
			appErr.Message = err.Error()
		}
	}
	h.write(w, r, appErr)
}

// HandleStatus writes a bare message under status
func (h *ErrorHandler) HandleStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.write(w, r, &AppError{
		Type:       typeForStatus(status),
		Message:    message,
		HTTPStatus: status,
	})
}

func (h *ErrorHandler) write(w http.ResponseWriter, r *http.Request, err *AppError) {
	status := err.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	body := ErrorResponse{
		Error:     true,
		Type:      string(err.Type),
		Message:   err.Message,
		Code:      err.Code,
		Details:   err.Details,
		RequestID: requestID(r),
	}
	if h.debug && err.StackTrace != "" {
		details := make(map[string]interface{}, len(err.Details)+1)
		for k, v := range err.Details {
			details[k] = v
		}
		details["stack_trace"] = err.StackTrace
		body.Details = details
	}

	h.log(r, err, status, body.RequestID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		h.logger.Warn("Failed to write error response", zap.Error(encErr))
	}
}

// log reports server-side failures as errors and rejected requests as
// warnings
func (h *ErrorHandler) log(r *http.Request, err *AppError, status int, reqID string) {
	fields := []zap.Field{
		zap.String("error_type", string(err.Type)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
	}
	if reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	if err.Cause != nil {
		fields = append(fields, zap.NamedError("cause", err.Cause))
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(err.Message, fields...)
		return
	}
	h.logger.Warn(err.Message, fields...)
}

// requestID prefers the id chi assigned to the request
func requestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

var statusTypes = map[int]ErrorType{
	http.StatusBadRequest:          ErrorTypeValidation,
	http.StatusNotFound:            ErrorTypeNotFound,
	http.StatusConflict:            ErrorTypeConflict,
	http.StatusUnprocessableEntity: ErrorTypeMalformedDocument,
	http.StatusServiceUnavailable:  ErrorTypeUnavailable,
	http.StatusBadGateway:          ErrorTypeExternal,
}

func typeForStatus(status int) ErrorType {
	if t, ok := statusTypes[status]; ok {
		return t
	}
	return ErrorTypeInternal
}
