package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"newsreader/internal/ai"
	"newsreader/internal/domain"
)

const maxBodyBytes = 1 << 20

// RespondJSON writes data as JSON. The payload is marshalled first so an
// encoding failure still yields a clean 500.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// ProblemDetail is an RFC 7807 error body.
type ProblemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// RespondError writes an RFC 7807 problem response.
func RespondError(w http.ResponseWriter, status int, detail string) {
	payload, err := json.Marshal(ProblemDetail{
		Type:   errorTypeFromStatus(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
		return
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	w.Write(payload)
}

func errorTypeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.1"
	case http.StatusNotFound:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.4"
	case http.StatusConflict:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.8"
	case http.StatusInternalServerError:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.6.1"
	case http.StatusBadGateway:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.6.3"
	default:
		return "about:blank"
	}
}

// handleError converts domain errors to HTTP responses. Anything unknown is
// logged and reported as a bare 500.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		httpErr     domain.HTTPError
		upstreamErr *ai.UpstreamError
	)
	switch {
	case errors.As(err, &httpErr):
		RespondError(w, httpErr.StatusCode(), httpErr.Error())
	case errors.Is(err, domain.ErrValidation):
		RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ai.ErrModelNotConfigured):
		RespondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &upstreamErr):
		s.requestLog(r).WithError(err).Warn("LLM call failed")
		RespondError(w, http.StatusBadGateway, "AI service error")
	default:
		s.requestLog(r).WithError(err).Error("Request failed")
		RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) requestLog(r *http.Request) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path})
}

// parseJSON decodes the request body into dest. An empty body leaves dest
// untouched.
func parseJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dest)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return &domain.ValidationError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

func notFound(format string, args ...any) error {
	return &domain.NotFoundError{Message: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) error {
	return &domain.ValidationError{Message: fmt.Sprintf(format, args...)}
}
