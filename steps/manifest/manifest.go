// Package manifest writes a Parquet record of a sync run's per-page results.
package manifest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/parquet-go/parquet-go"

	"github.com/rasha-hantash/confluence-mirror/steps/types"
	"github.com/rasha-hantash/confluence-mirror/steps/uploader"
)

const ContentType = "application/vnd.apache.parquet"

// Row is one page result in the manifest.
type Row struct {
	RunID  string `parquet:"run_id"`
	Space  string `parquet:"space"`
	Mode   string `parquet:"mode"`
	PageID string `parquet:"page_id"`
	Title  string `parquet:"title"`
	Path   string `parquet:"path"`
	Status string `parquet:"status"`
	Stage  string `parquet:"stage"`
	Error  string `parquet:"error"`
}

// Rows flattens the results of s.
func Rows(s *types.Summary) []Row {
	rows := make([]Row, 0, len(s.Results))
	for _, r := range s.Results {
		row := Row{
			RunID:  s.RunID,
			Space:  s.Space,
			Mode:   s.Mode,
			PageID: r.PageID,
			Title:  r.Title,
			Path:   r.Path,
			Status: string(r.Status),
			Stage:  string(r.Stage),
		}
		if r.Err != nil {
			row.Error = r.Err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

// Encode renders the rows of s as a snappy-compressed Parquet file.
func Encode(s *types.Summary) ([]byte, error) {
	var buf bytes.Buffer
	schema := parquet.SchemaOf(new(Row))
	w := parquet.NewGenericWriter[Row](&buf, schema, &parquet.WriterConfig{Compression: &parquet.Snappy})

	if _, err := w.Write(Rows(s)); err != nil {
		return nil, fmt.Errorf("writing manifest rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing manifest writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Path is where the manifest of a run is stored inside the container.
func Path(space, runID string) string {
	return types.JoinPath("_manifests", space, runID+".parquet")
}

// Writer is the pipeline step uploading the manifest once the sync step has finished.
type Writer struct {
	sink    uploader.Sink
	summary *types.Summary
}

func NewWriter(sink uploader.Sink, summary *types.Summary) *Writer {
	return &Writer{sink: sink, summary: summary}
}

func (w *Writer) Name() string { return "manifest" }

func (w *Writer) Run(ctx context.Context) error {
	data, err := Encode(w.summary)
	if err != nil {
		return err
	}

	obj := types.StorageObject{
		Path:        Path(w.summary.Space, w.summary.RunID),
		Content:     data,
		ContentType: ContentType,
		Metadata: map[string]string{
			"run_id": w.summary.RunID,
			"mode":   w.summary.Mode,
		},
	}
	if err := w.sink.Upload(ctx, obj); err != nil {
		return fmt.Errorf("uploading manifest: %w", err)
	}

	slog.Info("wrote manifest",
		slog.String("path", obj.Path),
		slog.Int("rows", len(w.summary.Results)),
		slog.Int("bytes", len(data)))
	return nil
}
