// Package render derives alternate renditions of a page body.
package render

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	"github.com/rasha-hantash/confluence-mirror/steps/types"
)

// Confluence macro elements whose content is configuration, not prose.
var droppedElements = map[string]bool{
	"ac:parameter":  true,
	"ri:attachment": true,
	"ri:user":       true,
}

// Markdown converts a storage-format body to Markdown.
func Markdown(body string) (string, error) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing page body: %w", err)
	}
	prune(root)

	md, err := htmltomarkdown.ConvertNode(root)
	if err != nil {
		return "", fmt.Errorf("converting page body to markdown: %w", err)
	}
	return strings.TrimSpace(string(md)), nil
}

// MarkdownRendition stores the Markdown of a page as "<title>.md" next to its HTML.
func MarkdownRendition(prefix string, p types.Page, escape bool) (types.StorageObject, error) {
	md, err := Markdown(p.Body)
	if err != nil {
		return types.StorageObject{Path: types.BlobPath(prefix, p.Title, ".md", escape)}, err
	}
	return types.StorageObject{
		Path:        types.BlobPath(prefix, p.Title, ".md", escape),
		Content:     []byte(md),
		ContentType: "text/markdown; charset=utf-8",
		Metadata:    map[string]string{types.MetaCreatedDate: p.LastModified},
	}, nil
}

func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && droppedElements[c.Data] {
			n.RemoveChild(c)
		} else {
			prune(c)
		}
		c = next
	}
}
