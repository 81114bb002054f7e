// Package fetcher retrieves spreadsheet sources over HTTP, FTP or the local
// filesystem and converts them between XLSX/CSV bytes and table datasets.
package fetcher

import (
	"context"
	"io"
	"strings"
)

// Fetcher downloads a remote source.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// SharedLink turns a OneDrive/SharePoint share link into a direct download
// link by adding download=1. Links that already carry it are unchanged.
func SharedLink(url string) string {
	if url == "" || strings.Contains(url, "download=1") {
		return url
	}
	if strings.Contains(url, "?") {
		return url + "&download=1"
	}
	return url + "?download=1"
}
