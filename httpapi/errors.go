package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

const msgInternal = "An error occurred while processing the request."

// HTTPError is an error type used for representing a non-nil error with a status code.
// Its message is shown to the caller.
type HTTPError struct {
	Code int
	Err  error // Not nil.
}

func (h HTTPError) Error() string { return h.Err.Error() }

func (h HTTPError) Unwrap() error { return h.Err }

func badRequest(msg string) error {
	return HTTPError{Code: http.StatusBadRequest, Err: errors.New(msg)}
}

// MethodError is an error type used for methods that aren't allowed.
type MethodError struct {
	Allowed []string
}

func (m MethodError) Error() string {
	return "method should be " + strings.Join(m.Allowed, " or ")
}

// errorHandler adapts a handler returning an error to http.Handler.
// Errors other than HTTPError and MethodError are logged and answered with a
// generic 500 so upstream and storage detail never reaches the caller.
type errorHandler func(w http.ResponseWriter, req *http.Request) error

func (h errorHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	err := h(w, req)
	if err == nil {
		return
	}

	var (
		httpErr   HTTPError
		methodErr MethodError
	)
	switch {
	case errors.As(err, &methodErr):
		w.Header().Set("Allow", strings.Join(methodErr.Allowed, ", "))
		http.Error(w, methodErr.Error(), http.StatusMethodNotAllowed)
	case errors.As(err, &httpErr):
		http.Error(w, httpErr.Error(), httpErr.Code)
	default:
		slog.Error("request failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Any("error", err))
		http.Error(w, msgInternal, http.StatusInternalServerError)
	}
}
