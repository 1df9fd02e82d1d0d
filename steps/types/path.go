package types

import "strings"

const (
	separator        = "/"
	escapedSeparator = "%2F"
)

// JoinPath joins non-empty segments with "/". Segments are used verbatim.
func JoinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, separator)
}

// Segment returns title as a path segment. When escape is set, a "/" inside the
// title is replaced so it cannot introduce an extra level.
func Segment(title string, escape bool) string {
	if escape {
		return strings.ReplaceAll(title, separator, escapedSeparator)
	}
	return title
}

// BlobPath is prefix + "/" + title + ext, without a leading slash for the root.
func BlobPath(prefix, title, ext string, escape bool) string {
	return JoinPath(prefix, Segment(title, escape)+ext)
}

// ChildPrefix is the prefix handed to the children of a page titled title.
func ChildPrefix(prefix, title string, escape bool) string {
	return JoinPath(prefix, Segment(title, escape))
}

// AncestorPrefix joins root-to-parent ancestor titles into a prefix.
func AncestorPrefix(titles []string, escape bool) string {
	segs := make([]string, len(titles))
	for i, t := range titles {
		segs[i] = Segment(t, escape)
	}
	return JoinPath(segs...)
}

// Ambiguous reports whether title would be split into several path levels.
func Ambiguous(title string) bool {
	return strings.Contains(title, separator)
}
