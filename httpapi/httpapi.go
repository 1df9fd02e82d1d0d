// Package httpapi exposes sync sessions over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/rasha-hantash/confluence-mirror/steps/types"
	"github.com/rasha-hantash/confluence-mirror/syncer"
)

const (
	msgMissingParams = "Please pass both 'space' and 'type' parameters in the query string."
	msgInvalidType   = "Invalid 'type' parameter. Please use 'full' or 'incremental'."

	maxBodyBytes = 1 << 20
)

// Runner runs one sync session.
type Runner interface {
	Run(ctx context.Context, space string, mode syncer.Mode) (*types.Summary, error)
}

type Handler struct {
	runner Runner
	mux    *http.ServeMux
}

func NewHandler(runner Runner) *Handler {
	h := &Handler{runner: runner, mux: http.NewServeMux()}
	h.mux.Handle("/api/ConfluenceSync", errorHandler(h.confluenceSync))
	h.mux.Handle("/api/HttpTrigger", errorHandler(h.httpTrigger))
	h.mux.Handle("/healthz", errorHandler(healthz))
	return h
}

// Handle mounts an additional handler, such as the MCP endpoint.
func (h *Handler) Handle(pattern string, handler http.Handler) {
	h.mux.Handle(pattern, handler)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.mux.ServeHTTP(w, req)
}

type syncRequest struct {
	Space string
	Type  string
}

// syncBody keeps absent keys distinguishable from empty values.
type syncBody struct {
	Space *string `json:"space"`
	Type  *string `json:"type"`
}

// confluenceSync takes its parameters from a JSON body holding exactly one object.
func (h *Handler) confluenceSync(w http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodPost {
		return MethodError{Allowed: []string{http.MethodPost}}
	}

	r, err := decodeBody(io.LimitReader(req.Body, maxBodyBytes))
	if err != nil {
		slog.Warn("decoding request body", slog.Any("error", err))
		return HTTPError{Code: http.StatusBadRequest, Err: err}
	}
	return h.sync(w, req, r)
}

func decodeBody(rd io.Reader) (syncRequest, error) {
	var body syncBody
	dec := json.NewDecoder(rd)
	if err := dec.Decode(&body); err != nil {
		return syncRequest{}, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return syncRequest{}, errors.New("unexpected data after the JSON object")
	}

	switch {
	case body.Space == nil:
		return syncRequest{}, errors.New("missing key 'space'")
	case body.Type == nil:
		return syncRequest{}, errors.New("missing key 'type'")
	}
	return syncRequest{Space: *body.Space, Type: *body.Type}, nil
}

// httpTrigger takes its parameters from the query string.
func (h *Handler) httpTrigger(w http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodGet && req.Method != http.MethodPost {
		return MethodError{Allowed: []string{http.MethodGet, http.MethodPost}}
	}

	q := req.URL.Query()
	return h.sync(w, req, syncRequest{Space: q.Get("space"), Type: q.Get("type")})
}

func (h *Handler) sync(w http.ResponseWriter, req *http.Request, r syncRequest) error {
	slog.Info("sync requested",
		slog.String("path", req.URL.Path),
		slog.String("space", r.Space),
		slog.String("type", r.Type))

	if r.Space == "" || r.Type == "" {
		return badRequest(msgMissingParams)
	}
	mode, err := syncer.ParseMode(r.Type)
	if err != nil {
		return badRequest(msgInvalidType)
	}

	summary, err := h.runner.Run(req.Context(), r.Space, mode)
	if err != nil {
		if errors.Is(err, syncer.ErrInvalidMode) {
			return badRequest(msgInvalidType)
		}
		return err
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err = io.WriteString(w, Message(r.Space, mode, summary))
	return err
}

// Message is the success body for a completed session.
func Message(space string, mode syncer.Mode, s *types.Summary) string {
	var head string
	switch mode {
	case syncer.ModeFull:
		head = fmt.Sprintf("Full sync completed for space: %s.", space)
	default:
		head = fmt.Sprintf("Incremental sync completed for space: %s.", space)
	}
	if s == nil {
		return head + "\n"
	}
	return fmt.Sprintf("%s\nUploaded: %d, failed: %d, ambiguous titles: %d.\n", head, s.Uploaded, s.Failed, s.Ambiguous)
}

func healthz(w http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return MethodError{Allowed: []string{http.MethodGet, http.MethodHead}}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err := io.WriteString(w, "ok")
	return err
}
