package walker_test

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"testing"

	"github.com/rasha-hantash/confluence-mirror/steps/reader"
	"github.com/rasha-hantash/confluence-mirror/steps/reader/readertest"
	"github.com/rasha-hantash/confluence-mirror/steps/types"
	"github.com/rasha-hantash/confluence-mirror/steps/uploader"
	"github.com/rasha-hantash/confluence-mirror/steps/uploader/uploadertest"
	"github.com/rasha-hantash/confluence-mirror/steps/walker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const when = "2026-10-15T09:30:00.000Z"

func run(t *testing.T, srv *readertest.Server, sink *uploadertest.Memory, space string) (*types.Summary, error) {
	t.Helper()
	summary := &types.Summary{Space: space}
	w := walker.NewWalker(srv.Reader(), uploader.NewPublisher(sink, false), space, summary)
	return summary, w.Run(context.Background())
}

// company builds:
//
//	Home
//	├── Engineering
//	│   ├── Runbooks
//	│   └── Architecture
//	└── Sales
func company(t *testing.T) *readertest.Server {
	srv := readertest.NewServer(t)
	srv.AddPage("SIA", "1", "", "Home", "<p>home</p>", when)
	srv.AddPage("SIA", "2", "1", "Engineering", "<p>eng</p>", when)
	srv.AddPage("SIA", "3", "2", "Runbooks", "<p>runbooks</p>", when)
	srv.AddPage("SIA", "4", "2", "Architecture", "<p>arch</p>", when)
	srv.AddPage("SIA", "5", "1", "Sales", "<p>sales</p>", when)
	return srv
}

func TestSinglePageSpace(t *testing.T) {
	srv := readertest.NewServer(t)
	srv.AddPage("SIA", "42", "", "Home", "<h1>Welcome</h1>", "2026-10-15T09:30:00.000+02:00")
	sink := uploadertest.NewMemory()

	summary, err := run(t, srv, sink, "SIA")
	require.NoError(t, err)

	assert.Equal(t, []string{"Home.html"}, sink.Paths())
	obj, ok := sink.Object("Home.html")
	require.True(t, ok)
	assert.Equal(t, "<h1>Welcome</h1>", string(obj.Content))
	assert.Equal(t, map[string]string{"created_date": "2026-10-15T09:30:00.000+02:00"}, obj.Metadata)

	assert.Equal(t, 1, summary.Visited)
	assert.Equal(t, 1, summary.Uploaded)
	assert.Equal(t, 0, summary.Failed)

	var childCalls int
	for _, req := range srv.Requests() {
		if strings.Contains(req, "/child/page") {
			childCalls++
		}
	}
	assert.Equal(t, 1, childCalls, "a leaf lists its children once and recurses zero times")
}

func TestFullTreePreOrder(t *testing.T) {
	srv := company(t)
	sink := uploadertest.NewMemory()

	summary, err := run(t, srv, sink, "SIA")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Home.html",
		"Home/Engineering.html",
		"Home/Engineering/Runbooks.html",
		"Home/Engineering/Architecture.html",
		"Home/Sales.html",
	}, sink.Paths())
	assert.Equal(t, 5, summary.Visited)
	assert.Equal(t, 5, summary.Uploaded)
	assert.Empty(t, summary.Failures())
}

func TestFullSyncIsIdempotent(t *testing.T) {
	srv := company(t)
	sink := uploadertest.NewMemory()

	_, err := run(t, srv, sink, "SIA")
	require.NoError(t, err)
	first := sink.Snapshot()

	_, err = run(t, srv, sink, "SIA")
	require.NoError(t, err)

	assert.Equal(t, first, sink.Snapshot())
	assert.Len(t, sink.Paths(), 5)
	assert.Equal(t, 10, sink.Uploads)
}

func TestFetchFailureSkipsOnlyThatSubtree(t *testing.T) {
	srv := company(t)
	srv.FailContent("2", http.StatusInternalServerError)
	sink := uploadertest.NewMemory()

	summary, err := run(t, srv, sink, "SIA")
	require.NoError(t, err)

	assert.Equal(t, []string{"Home.html", "Home/Sales.html"}, sink.Paths())
	for _, req := range srv.Requests() {
		assert.NotContains(t, req, "/content/3", "children of the failed page must not be visited")
		assert.NotContains(t, req, "/content/4", "children of the failed page must not be visited")
		assert.NotContains(t, req, "/content/2/child/page")
	}

	failures := summary.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "2", failures[0].PageID)
	assert.Equal(t, types.StageFetch, failures[0].Stage)
	var upstream *reader.UpstreamError
	assert.ErrorAs(t, failures[0].Err, &upstream)
}

func TestUploadFailureStillVisitsChildren(t *testing.T) {
	srv := company(t)
	sink := uploadertest.NewMemory()
	sink.FailPath("Home/Engineering.html")

	summary, err := run(t, srv, sink, "SIA")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Home.html",
		"Home/Engineering/Runbooks.html",
		"Home/Engineering/Architecture.html",
		"Home/Sales.html",
	}, sink.Paths())
	require.Len(t, summary.Failures(), 1)
	assert.Equal(t, types.StageUpload, summary.Failures()[0].Stage)
	assert.ErrorIs(t, summary.Failures()[0].Err, uploadertest.ErrInjected)
	assert.Equal(t, 4, summary.Uploaded)
}

func TestChildrenFailureKeepsSiblings(t *testing.T) {
	srv := company(t)
	srv.FailChildren("2", http.StatusBadGateway)
	sink := uploadertest.NewMemory()

	summary, err := run(t, srv, sink, "SIA")
	require.NoError(t, err)

	assert.Equal(t, []string{"Home.html", "Home/Engineering.html", "Home/Sales.html"}, sink.Paths())
	require.Len(t, summary.Failures(), 1)
	assert.Equal(t, types.StageChildren, summary.Failures()[0].Stage)
	assert.Equal(t, 2, summary.Uploaded)
	assert.Equal(t, 1, summary.Failed, "Engineering is failed, not also uploaded")
}

func TestRootNotFound(t *testing.T) {
	srv := company(t)
	sink := uploadertest.NewMemory()

	_, err := run(t, srv, sink, "EMPTY")
	require.Error(t, err)
	assert.ErrorIs(t, err, reader.ErrNotFound)
	assert.Empty(t, sink.Paths())
}

func TestCanceledContext(t *testing.T) {
	srv := company(t)
	sink := uploadertest.NewMemory()
	summary := &types.Summary{}
	w := walker.NewWalker(srv.Reader(), uploader.NewPublisher(sink, false), "SIA", summary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.Walk(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.Paths())
}

func TestAmbiguousTitles(t *testing.T) {
	srv := readertest.NewServer(t)
	srv.AddPage("SIA", "1", "", "Home", "", when)
	srv.AddPage("SIA", "2", "1", "CI/CD", "", when)
	srv.AddPage("SIA", "3", "2", "Pipelines", "", when)

	t.Run("verbatim", func(t *testing.T) {
		sink := uploadertest.NewMemory()
		summary, err := run(t, srv, sink, "SIA")
		require.NoError(t, err)
		assert.Equal(t, []string{"Home.html", "Home/CI/CD.html", "Home/CI/CD/Pipelines.html"}, sink.Paths())
		assert.Equal(t, 1, summary.Ambiguous)
	})

	t.Run("escaped", func(t *testing.T) {
		sink := uploadertest.NewMemory()
		summary := &types.Summary{}
		w := walker.NewWalker(srv.Reader(), uploader.NewPublisher(sink, true), "SIA", summary)
		require.NoError(t, w.Run(context.Background()))
		assert.Equal(t, []string{"Home.html", "Home/CI%2FCD.html", "Home/CI%2FCD/Pipelines.html"}, sink.Paths())
	})
}

// TestRandomTrees checks that every page of a generated tree is uploaded at the
// path formed by its ancestor titles.
func TestRandomTrees(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 10; i++ {
		t.Run(fmt.Sprintf("tree %d", i), func(t *testing.T) {
			srv := readertest.NewServer(t)
			srv.AddPage("RND", "p0", "", "Root", "<p>p0</p>", when)
			expected := map[string]string{"Root.html": "<p>p0</p>"}
			prefixes := map[string]string{"p0": "Root"}
			ids := []string{"p0"}

			n := 1 + rng.Intn(30)
			for j := 1; j <= n; j++ {
				id := fmt.Sprintf("p%d", j)
				parent := ids[rng.Intn(len(ids))]
				title := fmt.Sprintf("Page %d", j)
				body := "<p>" + id + "</p>"
				srv.AddPage("RND", id, parent, title, body, when)

				prefixes[id] = prefixes[parent] + "/" + title
				expected[prefixes[parent]+"/"+title+".html"] = body
				ids = append(ids, id)
			}

			sink := uploadertest.NewMemory()
			summary, err := run(t, srv, sink, "RND")
			require.NoError(t, err)

			got := map[string]string{}
			for p, obj := range sink.Snapshot() {
				got[p] = string(obj.Content)
			}
			assert.Equal(t, expected, got)
			assert.Equal(t, n+1, summary.Visited)
		})
	}
}
