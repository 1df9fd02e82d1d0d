// Package incremental re-uploads the pages of a space modified during the previous day.
package incremental

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rasha-hantash/confluence-mirror/steps/types"
	"github.com/rasha-hantash/confluence-mirror/steps/uploader"
)

// PageReader is the subset of reader.Reader used by an incremental run.
type PageReader interface {
	ModifiedSince(ctx context.Context, space string, since, until time.Time) ([]string, error)
	Page(ctx context.Context, pageID string) (types.Page, error)
	AncestorTitles(ctx context.Context, pageID string) ([]string, error)
}

// Incremental uploads pages modified in [yesterday, today), local time.
// Deleted pages are not reported by the query and are never pruned.
type Incremental struct {
	reader    PageReader
	publisher *uploader.Publisher
	space     string
	summary   *types.Summary
	now       func() time.Time
}

func New(reader PageReader, publisher *uploader.Publisher, space string, summary *types.Summary, now func() time.Time) *Incremental {
	if now == nil {
		now = time.Now
	}
	return &Incremental{
		reader:    reader,
		publisher: publisher,
		space:     space,
		summary:   summary,
		now:       now,
	}
}

// Window returns midnight yesterday and midnight today in t's location.
func Window(t time.Time) (since, until time.Time) {
	y, m, d := t.Date()
	until = time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return until.AddDate(0, 0, -1), until
}

// Name implements the pipeline Step interface
func (in *Incremental) Name() string {
	return "incremental"
}

// Run queries the modified pages and uploads each one at its ancestor path.
// Only a failing query aborts the run.
func (in *Incremental) Run(ctx context.Context) error {
	since, until := Window(in.now())
	start := time.Now()

	ids, err := in.reader.ModifiedSince(ctx, in.space, since, until)
	if err != nil {
		return fmt.Errorf("querying modified pages: %w", err)
	}

	slog.Info("starting incremental sync",
		slog.String("space", in.space),
		slog.Time("since", since),
		slog.Time("until", until),
		slog.Int("modified", len(ids)))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		in.syncPage(ctx, id)
	}

	slog.Info("incremental sync completed",
		slog.String("space", in.space),
		slog.Duration("duration", time.Since(start)),
		slog.Int("uploaded", in.summary.Uploaded),
		slog.Int("failed", in.summary.Failed))
	return nil
}

func (in *Incremental) syncPage(ctx context.Context, pageID string) {
	in.summary.Visited++

	page, err := in.reader.Page(ctx, pageID)
	if err != nil {
		in.fail(pageID, "", types.StageFetch, err)
		return
	}

	ancestors, err := in.reader.AncestorTitles(ctx, pageID)
	if err != nil {
		in.fail(pageID, page.Title, types.StageAncestors, err)
		return
	}
	page.Ancestors = ancestors

	prefix := types.AncestorPrefix(ancestors, in.publisher.Escape())
	in.publisher.Publish(ctx, prefix, page, in.summary)
}

func (in *Incremental) fail(pageID, title string, stage types.Stage, err error) {
	slog.Warn("incremental page failed",
		slog.String("page_id", pageID),
		slog.String("stage", string(stage)),
		slog.Any("error", err))
	in.summary.Record(types.PageResult{
		PageID: pageID,
		Title:  title,
		Status: types.StatusFailed,
		Stage:  stage,
		Err:    err,
	})
}
