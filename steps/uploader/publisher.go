package uploader

import (
	"context"
	"log/slog"

	"github.com/rasha-hantash/confluence-mirror/steps/types"
)

// Rendition derives an additional object from a page, stored next to its HTML.
type Rendition func(prefix string, p types.Page, escape bool) (types.StorageObject, error)

// Publisher turns a page into storage objects and records the outcome of each upload.
type Publisher struct {
	sink       Sink
	escape     bool
	renditions []Rendition
}

func NewPublisher(sink Sink, escape bool, renditions ...Rendition) *Publisher {
	return &Publisher{sink: sink, escape: escape, renditions: renditions}
}

// Escape reports whether "/" in titles is escaped in path segments.
func (p *Publisher) Escape() bool { return p.escape }

// Sink returns the sink objects are written to.
func (p *Publisher) Sink() Sink { return p.sink }

// Publish uploads page under prefix and records one result for the HTML object
// plus one per failed rendition. The HTML result is returned.
func (p *Publisher) Publish(ctx context.Context, prefix string, page types.Page, s *types.Summary) types.PageResult {
	obj := types.NewStorageObject(prefix, page, p.escape)

	if types.Ambiguous(page.Title) {
		s.Ambiguous++
		slog.Warn("page title contains a path separator",
			slog.String("page_id", page.ID),
			slog.String("title", page.Title),
			slog.String("path", obj.Path),
			slog.Bool("escaped", p.escape))
	}

	res := types.PageResult{PageID: page.ID, Title: page.Title, Path: obj.Path, Status: types.StatusUploaded}
	if err := p.sink.Upload(ctx, obj); err != nil {
		slog.Warn("upload failed",
			slog.String("page_id", page.ID),
			slog.String("path", obj.Path),
			slog.Any("error", err))
		res.Status, res.Stage, res.Err = types.StatusFailed, types.StageUpload, err
	} else {
		slog.Info("uploaded page",
			slog.String("page_id", page.ID),
			slog.String("path", obj.Path),
			slog.String("created_date", page.LastModified))
	}
	s.Record(res)

	for _, render := range p.renditions {
		extra, err := render(prefix, page, p.escape)
		if err == nil {
			err = p.sink.Upload(ctx, extra)
		}
		if err != nil {
			slog.Warn("rendition failed",
				slog.String("page_id", page.ID),
				slog.String("path", extra.Path),
				slog.Any("error", err))
			s.Record(types.PageResult{
				PageID: page.ID,
				Title:  page.Title,
				Path:   extra.Path,
				Status: types.StatusFailed,
				Stage:  types.StageUpload,
				Err:    err,
			})
		}
	}
	return res
}
