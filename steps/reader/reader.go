// Package reader reads pages, their children and ancestors from the Confluence REST API.
package reader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rasha-hantash/confluence-mirror/steps/types"
)

const (
	defaultPageSize = 25
	dateLayout      = "2006-01-02"
)

// ErrNotFound is wrapped by NotFoundError.
var ErrNotFound = errors.New("not found")

// NotFoundError is returned when a space has no pages to start from.
type NotFoundError struct {
	Space string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("space %q has no pages", e.Space)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// UpstreamError is returned for any non-2xx response from Confluence.
type UpstreamError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
}

// Reader is a Confluence REST client scoped to one service account.
type Reader struct {
	httpClient *http.Client
	baseURL    string
	restURL    string
	username   string
	token      string

	// PageSize is the limit sent on paginated listings.
	PageSize int
}

// NewReader creates a reader. restURL is the content endpoint, usually
// baseURL + "/rest/api/content".
func NewReader(baseURL, restURL, username, token string, httpTimeout time.Duration) *Reader {
	baseURL = strings.TrimRight(baseURL, "/")
	if restURL == "" {
		restURL = baseURL + "/rest/api/content"
	}
	return &Reader{
		httpClient: &http.Client{Timeout: httpTimeout},
		baseURL:    baseURL,
		restURL:    strings.TrimRight(restURL, "/"),
		username:   username,
		token:      token,
		PageSize:   defaultPageSize,
	}
}

type contentRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type contentList struct {
	Results []contentRef `json:"results"`
	Size    int          `json:"size"`
}

type contentPage struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Version struct {
		When string `json:"when"`
	} `json:"version"`
	Ancestors []contentRef `json:"ancestors"`
}

type searchList struct {
	Results []struct {
		Content contentRef `json:"content"`
	} `json:"results"`
	Size int `json:"size"`
}

// RootPageID resolves space to the top-most ancestor of an arbitrary page in it.
func (r *Reader) RootPageID(ctx context.Context, space string) (string, error) {
	q := url.Values{}
	q.Set("spaceKey", space)
	q.Set("type", "page")
	q.Set("start", "0")
	q.Set("limit", "1")

	var list contentList
	if err := r.getJSON(ctx, r.baseURL+"/rest/api/content", q, &list); err != nil {
		return "", fmt.Errorf("listing pages of space %s: %w", space, err)
	}
	if len(list.Results) == 0 {
		return "", &NotFoundError{Space: space}
	}

	pageID := list.Results[0].ID
	ancestors, err := r.ancestors(ctx, pageID)
	if err != nil {
		return "", err
	}
	if len(ancestors) == 0 {
		return pageID, nil
	}

	slog.Debug("resolved root page",
		slog.String("space", space),
		slog.String("sample_page", pageID),
		slog.String("root_page", ancestors[0].ID))
	return ancestors[0].ID, nil
}

// Page fetches the current title, storage-format body and last-modified timestamp.
func (r *Reader) Page(ctx context.Context, pageID string) (types.Page, error) {
	q := url.Values{}
	q.Set("expand", "body.storage,version")

	var c contentPage
	if err := r.getJSON(ctx, r.contentURL(pageID), q, &c); err != nil {
		return types.Page{}, fmt.Errorf("fetching page %s: %w", pageID, err)
	}
	return types.Page{
		ID:           pageID,
		Title:        c.Title,
		Body:         c.Body.Storage.Value,
		LastModified: c.Version.When,
	}, nil
}

// Children lists the direct child pages of pageID in upstream order.
func (r *Reader) Children(ctx context.Context, pageID string) ([]string, error) {
	var ids []string
	err := r.paginate(ctx, r.contentURL(pageID)+"/child/page", url.Values{}, func(data []byte) error {
		var list contentList
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		for _, c := range list.Results {
			ids = append(ids, c.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing children of %s: %w", pageID, err)
	}
	return ids, nil
}

// AncestorTitles returns the titles of pageID's ancestors, root first.
func (r *Reader) AncestorTitles(ctx context.Context, pageID string) ([]string, error) {
	ancestors, err := r.ancestors(ctx, pageID)
	if err != nil {
		return nil, err
	}
	titles := make([]string, len(ancestors))
	for i, a := range ancestors {
		titles[i] = a.Title
	}
	return titles, nil
}

// ModifiedSince runs a CQL search for pages in space last modified in [since, until).
func (r *Reader) ModifiedSince(ctx context.Context, space string, since, until time.Time) ([]string, error) {
	q := url.Values{}
	q.Set("cql", ModifiedCQL(space, since, until))

	var ids []string
	err := r.paginate(ctx, r.baseURL+"/rest/api/search", q, func(data []byte) error {
		var list searchList
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		for _, res := range list.Results {
			ids = append(ids, res.Content.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching modified pages in %s: %w", space, err)
	}
	return ids, nil
}

// ModifiedCQL builds the query used by ModifiedSince. Dates are compared at day granularity.
func ModifiedCQL(space string, since, until time.Time) string {
	return fmt.Sprintf(`space = "%s" AND type = page AND lastmodified >= "%s" AND lastmodified < "%s"`,
		strings.ReplaceAll(space, `"`, `\"`),
		since.Format(dateLayout),
		until.Format(dateLayout))
}

func (r *Reader) ancestors(ctx context.Context, pageID string) ([]contentRef, error) {
	q := url.Values{}
	q.Set("expand", "ancestors")

	var c contentPage
	if err := r.getJSON(ctx, r.contentURL(pageID), q, &c); err != nil {
		return nil, fmt.Errorf("fetching ancestors of %s: %w", pageID, err)
	}
	return c.Ancestors, nil
}

func (r *Reader) contentURL(pageID string) string {
	return r.restURL + "/" + url.PathEscape(pageID)
}

// paginate requests the first page of u and then follows _links.next until a
// response has none. Result counts are not used to detect the end: search
// drops results the account may not view, so a short page can precede more.
func (r *Reader) paginate(ctx context.Context, u string, q url.Values, decode func([]byte) error) error {
	limit := r.PageSize
	if limit <= 0 {
		limit = defaultPageSize
	}
	q.Set("start", "0")
	q.Set("limit", strconv.Itoa(limit))

	seen := map[string]bool{}
	for next := u + "?" + q.Encode(); next != ""; {
		if seen[next] {
			return fmt.Errorf("pagination of %s loops at %s", u, next)
		}
		seen[next] = true

		var raw json.RawMessage
		if err := r.getJSON(ctx, next, nil, &raw); err != nil {
			return err
		}
		if err := decode(raw); err != nil {
			return fmt.Errorf("decoding %s: %w", next, err)
		}

		var page pageLinks
		if err := json.Unmarshal(raw, &page); err != nil {
			return fmt.Errorf("decoding links of %s: %w", next, err)
		}
		next = r.resolveNext(page.Links.Base, page.Links.Next)
	}
	return nil
}

type pageLinks struct {
	Links struct {
		Base string `json:"base"`
		Next string `json:"next"`
	} `json:"_links"`
}

// resolveNext turns a _links.next value, relative to _links.base, into a URL.
func (r *Reader) resolveNext(base, next string) string {
	if next == "" {
		return ""
	}
	if u, err := url.Parse(next); err == nil && u.IsAbs() {
		return next
	}
	if base == "" {
		base = r.baseURL
	}
	return strings.TrimRight(base, "/") + next
}

// -------------------- HTTP helpers ------------------

func (r *Reader) getJSON(ctx context.Context, u string, q url.Values, out any) error {
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	resp, err := r.httpGet(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", u, err)
	}
	return nil
}

func (r *Reader) httpGet(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(r.username, r.token)
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &UpstreamError{
			Method:     http.MethodGet,
			URL:        u,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}
	return resp, nil
}
