// Package syncer assembles and runs one mirror session per request.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rasha-hantash/confluence-mirror/config"
	"github.com/rasha-hantash/confluence-mirror/pipeline"
	"github.com/rasha-hantash/confluence-mirror/steps/incremental"
	"github.com/rasha-hantash/confluence-mirror/steps/manifest"
	"github.com/rasha-hantash/confluence-mirror/steps/reader"
	"github.com/rasha-hantash/confluence-mirror/steps/render"
	"github.com/rasha-hantash/confluence-mirror/steps/types"
	"github.com/rasha-hantash/confluence-mirror/steps/uploader"
	"github.com/rasha-hantash/confluence-mirror/steps/walker"
)

type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

var (
	ErrInvalidMode  = errors.New("invalid sync mode")
	ErrMissingSpace = errors.New("space key is required")
)

// ParseMode accepts exactly "full" or "incremental".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, ModeIncremental:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// PageSource is everything a session reads from Confluence.
type PageSource interface {
	walker.PageReader
	incremental.PageReader
}

type (
	ReaderFactory func(cfg config.Config) PageSource
	SinkFactory   func(ctx context.Context, cfg uploader.Config, container string) (uploader.Sink, error)
)

// Service runs sync sessions. It holds configuration only; every Run builds
// its own reader, sink and pipeline.
type Service struct {
	cfg       config.Config
	newReader ReaderFactory
	newSink   SinkFactory
	now       func() time.Time
	newRunID  func() string
}

type Option func(*Service)

func WithReaderFactory(f ReaderFactory) Option { return func(s *Service) { s.newReader = f } }

func WithSinkFactory(f SinkFactory) Option { return func(s *Service) { s.newSink = f } }

// WithClock sets the clock the incremental window is computed from.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithRunIDs(f func() string) Option { return func(s *Service) { s.newRunID = f } }

func New(cfg config.Config, opts ...Option) *Service {
	s := &Service{
		cfg: cfg,
		newReader: func(cfg config.Config) PageSource {
			return reader.NewReader(cfg.ConfluenceBaseURL, cfg.ConfluenceRestURL, cfg.Username, cfg.Token, cfg.HTTPTimeout)
		},
		newSink:  uploader.New,
		now:      time.Now,
		newRunID: func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run mirrors space in the given mode. The returned summary is non-nil
// whenever the session got far enough to start, including on error.
func (s *Service) Run(ctx context.Context, space string, mode Mode) (*types.Summary, error) {
	if space == "" {
		return nil, ErrMissingSpace
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	container := s.cfg.Container(space)
	summary := &types.Summary{
		RunID:     s.newRunID(),
		Space:     space,
		Mode:      string(mode),
		Container: container,
		StartedAt: s.now(),
	}
	logger := slog.With(
		slog.String("run_id", summary.RunID),
		slog.String("space", space),
		slog.String("mode", string(mode)))

	sink, err := s.newSink(ctx, s.cfg.Storage(), container)
	if err != nil {
		return summary, fmt.Errorf("opening %s sink for container %s: %w", s.cfg.StorageBackend, container, err)
	}

	var renditions []uploader.Rendition
	if s.cfg.MarkdownRendition {
		renditions = append(renditions, render.MarkdownRendition)
	}
	publisher := uploader.NewPublisher(sink, s.cfg.EscapeTitleSeparators, renditions...)
	src := s.newReader(s.cfg)

	steps := []pipeline.Step{
		pipeline.StepFunc{StepName: "prepare", Fn: sink.EnsureContainer},
	}
	switch mode {
	case ModeFull:
		steps = append(steps, walker.NewWalker(src, publisher, space, summary))
	case ModeIncremental:
		steps = append(steps, incremental.New(src, publisher, space, summary, s.now))
	}
	if s.cfg.ManifestEnabled {
		steps = append(steps, manifest.NewWriter(sink, summary))
	}

	logger.Info("starting sync", slog.String("container", container))
	err = pipeline.NewPipeline(steps...).WithLogger(logger).Run(ctx)
	summary.FinishedAt = s.now()
	if err != nil {
		logger.Error("sync failed", slog.Any("error", err))
		return summary, err
	}

	logger.Info("sync completed",
		slog.Int("visited", summary.Visited),
		slog.Int("uploaded", summary.Uploaded),
		slog.Int("failed", summary.Failed),
		slog.Int("ambiguous", summary.Ambiguous),
		slog.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)))
	return summary, nil
}
