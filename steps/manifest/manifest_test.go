package manifest_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/rasha-hantash/confluence-mirror/steps/manifest"
	"github.com/rasha-hantash/confluence-mirror/steps/types"
	"github.com/rasha-hantash/confluence-mirror/steps/uploader/uploadertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummary() *types.Summary {
	s := &types.Summary{RunID: "run-1", Space: "ENG", Mode: "full", Container: "private"}
	s.Record(types.PageResult{PageID: "1", Title: "Home", Path: "Home.html", Status: types.StatusUploaded})
	s.Record(types.PageResult{
		PageID: "2",
		Title:  "Platform",
		Status: types.StatusFailed,
		Stage:  types.StageFetch,
		Err:    errors.New("GET /rest/api/content/2: 500 Internal Server Error"),
	})
	return s
}

func decode(t *testing.T, data []byte) []manifest.Row {
	t.Helper()
	r := parquet.NewGenericReader[manifest.Row](bytes.NewReader(data))
	defer r.Close()

	rows := make([]manifest.Row, r.NumRows())
	n, err := r.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		require.NoError(t, err)
	}
	return rows[:n]
}

func TestEncode(t *testing.T) {
	data, err := manifest.Encode(sampleSummary())
	require.NoError(t, err)

	rows := decode(t, data)
	require.Len(t, rows, 2)
	assert.Equal(t, manifest.Row{
		RunID: "run-1", Space: "ENG", Mode: "full",
		PageID: "1", Title: "Home", Path: "Home.html", Status: "uploaded",
	}, rows[0])
	assert.Equal(t, "failed", rows[1].Status)
	assert.Equal(t, "fetch", rows[1].Stage)
	assert.Contains(t, rows[1].Error, "500 Internal Server Error")
}

func TestWriterUploads(t *testing.T) {
	sink := uploadertest.NewMemory()
	w := manifest.NewWriter(sink, sampleSummary())
	assert.Equal(t, "manifest", w.Name())

	require.NoError(t, w.Run(context.Background()))

	obj, ok := sink.Object("_manifests/ENG/run-1.parquet")
	require.True(t, ok)
	assert.Equal(t, manifest.ContentType, obj.ContentType)
	assert.Equal(t, "run-1", obj.Metadata["run_id"])
	assert.Len(t, decode(t, obj.Content), 2)
}

func TestWriterUploadFailure(t *testing.T) {
	sink := uploadertest.NewMemory()
	sink.FailPath("_manifests/ENG/run-1.parquet")

	err := manifest.NewWriter(sink, sampleSummary()).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, uploadertest.ErrInjected)
}
