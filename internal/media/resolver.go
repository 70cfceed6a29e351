// Package media resolves portable media descriptors to store file handles,
// downloading and deduplicating binary assets as needed.
package media

import (
	"context"
	"strings"
)

// Resolver finds an existing file matching a portable media descriptor or
// imports it. A (nil, nil) result means the descriptor could not be
// resolved; callers drop the reference and record a failure.
type Resolver interface {
	FindOrImportFile(ctx context.Context, descriptor map[string]any, allowedTypes []string) (map[string]any, error)
}

// AbsoluteURL prefixes relative URLs with the configured public host.
// Already-absolute URLs pass through unchanged.
func AbsoluteURL(publicHost, url string) string {
	if url == "" || IsAbsoluteURL(url) {
		return url
	}
	host := strings.TrimSuffix(publicHost, "/")
	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}
	return host + url
}

// IsAbsoluteURL reports whether a URL carries a scheme.
func IsAbsoluteURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
