package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aluiziolira/go-asset-picker/models"
)

// IsFolderHref reports whether a listing href names a sub-folder.
// The check runs on the href as written, not on the resolved URL.
func IsFolderHref(href string) bool {
	return strings.HasSuffix(href, "/")
}

// IsPNGHref reports whether a listing href names a PNG file.
func IsPNGHref(href string) bool {
	return strings.HasSuffix(strings.ToLower(href), ".png")
}

// Resolve resolves href against an absolute base URL.
func Resolve(base *url.URL, href string) (*url.URL, error) {
	if base == nil {
		return nil, fmt.Errorf("resolve %q: nil base", href)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("parse href %q: %w", href, err)
	}
	return base.ResolveReference(ref), nil
}

// ResolveString resolves ref against a base URL string.
func ResolveString(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", base, err)
	}
	resolved, err := Resolve(b, ref)
	if err != nil {
		return "", err
	}
	return resolved.String(), nil
}

// FilenameFromURL returns the percent-decoded last path segment of resolved.
func FilenameFromURL(resolved *url.URL) (string, error) {
	if resolved == nil {
		return "", fmt.Errorf("nil url")
	}
	escaped := resolved.EscapedPath()
	segment := escaped[strings.LastIndex(escaped, "/")+1:]
	name, err := url.PathUnescape(segment)
	if err != nil {
		return "", fmt.Errorf("decode filename %q: %w", segment, err)
	}
	return name, nil
}

// ValidateItem ensures an item carries a filename and an absolute source.
func ValidateItem(item *models.ImageItem) error {
	if item == nil {
		return fmt.Errorf("item is nil")
	}
	if strings.TrimSpace(item.Filename) == "" {
		return fmt.Errorf("item missing filename")
	}
	if strings.TrimSpace(item.Src) == "" {
		return fmt.Errorf("item missing src for %s", item.Filename)
	}
	parsed, err := url.Parse(item.Src)
	if err != nil || !parsed.IsAbs() {
		return fmt.Errorf("item src is not absolute for %s", item.Filename)
	}
	return nil
}

// FolderPath builds the folder key for a folder identifier under root.
func FolderPath(root, folder string) string {
	if root != "" && !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return root + strings.Trim(folder, "/") + "/"
}
