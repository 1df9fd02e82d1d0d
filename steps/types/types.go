package types

import "time"

// MetaCreatedDate is the metadata key carrying a page's last-modified timestamp.
const MetaCreatedDate = "created_date"

// Page is a wiki page as read from Confluence. It is fetched per request and never cached.
type Page struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	LastModified string   `json:"last_modified"`
	Ancestors    []string `json:"ancestors,omitempty"`
}

// StorageObject is one blob written to a sink.
type StorageObject struct {
	Path        string
	Content     []byte
	ContentType string
	Metadata    map[string]string
}

// NewStorageObject builds the HTML object for page p stored under prefix.
func NewStorageObject(prefix string, p Page, escape bool) StorageObject {
	return StorageObject{
		Path:        BlobPath(prefix, p.Title, ".html", escape),
		Content:     []byte(p.Body),
		ContentType: "text/html; charset=utf-8",
		Metadata:    map[string]string{MetaCreatedDate: p.LastModified},
	}
}

type Status string

const (
	StatusUploaded Status = "uploaded"
	StatusFailed   Status = "failed"
)

// Stage names the step of a page's processing that produced a result.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageUpload    Stage = "upload"
	StageChildren  Stage = "children"
	StageAncestors Stage = "ancestors"
)

// PageResult records the outcome for a single page.
type PageResult struct {
	PageID string
	Title  string
	Path   string
	Status Status
	Stage  Stage
	Err    error
}

// Summary aggregates the per-page results of one sync run.
//
// Uploaded and Failed count pages, not results: a page is failed once any of
// its results failed (HTML, a rendition or its children listing) and uploaded
// otherwise, so Uploaded+Failed is the number of distinct pages recorded.
// Results and Failures keep every individual outcome.
type Summary struct {
	RunID      string
	Space      string
	Mode       string
	Container  string
	StartedAt  time.Time
	FinishedAt time.Time

	Visited   int
	Uploaded  int
	Failed    int
	Ambiguous int

	Results []PageResult

	pages map[string]Status
}

// Record appends r and updates the per-page counters.
func (s *Summary) Record(r PageResult) {
	s.Results = append(s.Results, r)
	if s.pages == nil {
		s.pages = map[string]Status{}
	}

	prev, seen := s.pages[r.PageID]
	switch r.Status {
	case StatusUploaded:
		if !seen {
			s.pages[r.PageID] = StatusUploaded
			s.Uploaded++
		}
	case StatusFailed:
		switch {
		case !seen:
			s.Failed++
		case prev == StatusUploaded:
			s.Uploaded--
			s.Failed++
		}
		s.pages[r.PageID] = StatusFailed
	}
}

// Failures returns the failed results in the order they were recorded.
func (s *Summary) Failures() []PageResult {
	var out []PageResult
	for _, r := range s.Results {
		if r.Status == StatusFailed {
			out = append(out, r)
		}
	}
	return out
}

// Paths returns the paths of every uploaded object.
func (s *Summary) Paths() []string {
	var out []string
	for _, r := range s.Results {
		if r.Status == StatusUploaded {
			out = append(out, r.Path)
		}
	}
	return out
}
