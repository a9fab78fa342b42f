// Package models defines data structures shared by the crawler, picker and output pipeline.
package models

import "time"

// ImageItem is a PNG discovered in a directory listing.
type ImageItem struct {
	Filename string `json:"filename"`
	Src      string `json:"src"`
}

// Key returns the exact-string dedup key for the item.
func (i ImageItem) Key() string {
	return i.Filename + "::" + i.Src
}

// ImageRecord is one output row: an image and the crawl that found it.
type ImageRecord struct {
	CrawlID  string `json:"crawl_id,omitempty"`
	Folder   string `json:"folder,omitempty"`
	Filename string `json:"filename"`
	Src      string `json:"src"`
}

// NewImageRecord tags item with the crawl it came from.
func NewImageRecord(item ImageItem, crawlID, folder string) *ImageRecord {
	return &ImageRecord{CrawlID: crawlID, Folder: folder, Filename: item.Filename, Src: item.Src}
}

// Item returns the image without crawl metadata.
func (r *ImageRecord) Item() ImageItem {
	return ImageItem{Filename: r.Filename, Src: r.Src}
}

// CrawlResult holds the overall result of one directory crawl.
type CrawlResult struct {
	CrawlID        string
	StartURL       string
	Items          []ImageItem
	StartTime      time.Time
	EndTime        time.Time
	FolderCount    int
	RequestCount   int
	SkippedFolders int
	FailedURLs     []string
	ErrorsByType   map[string]int
}

// Duration reports how long the crawl ran.
func (r *CrawlResult) Duration() time.Duration {
	if r == nil || r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
