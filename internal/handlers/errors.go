package handlers

import (
	"errors"
	"net/http"

	"todoTracker/internal/logger"
	"todoTracker/internal/middleware"
	"todoTracker/internal/service"

	"go.uber.org/zap"
)

// handleError renders the error page for err. Business errors get their
// mapped status; anything else is logged and shown as a generic 500.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var businessErr *service.BusinessError
	if errors.As(err, &businessErr) {
		statusCode := mapBusinessErrorToHTTP(businessErr.Code)

		logger.Warn("HTTP: Business error",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("error_code", businessErr.Code),
			zap.Int("http_status", statusCode))

		h.errorPage(w, r, statusCode)
		return
	}

	logger.Error("HTTP: Request failed", err,
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("path", r.URL.Path))
	h.errorPage(w, r, http.StatusInternalServerError)
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation, service.CodeInvalidCredentials:
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

var errorMessages = map[int]string{
	http.StatusNotFound:            "The page you are looking for does not exist.",
	http.StatusMethodNotAllowed:    "This action is not allowed here.",
	http.StatusForbidden:           "You do not have access to this page.",
	http.StatusBadRequest:          "The request could not be processed.",
	http.StatusInternalServerError: "Something went wrong on our side. Please try again later.",
}

func (h *Handler) errorPage(w http.ResponseWriter, r *http.Request, status int) {
	msg, ok := errorMessages[status]
	if !ok {
		msg = http.StatusText(status)
	}
	h.render(w, r, status, "error.html", map[string]any{
		"Status":  status,
		"Heading": http.StatusText(status),
		"Message": msg,
	})
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.errorPage(w, r, http.StatusNotFound)
}

func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.errorPage(w, r, http.StatusMethodNotAllowed)
}
