package models

import "time"

// UploadedFile describes a stored upload. StoredName is derived from the
// sanitized original name plus a second-resolution timestamp and never
// contains path separators.
type UploadedFile struct {
	StoredName   string    `json:"filename"`
	OriginalName string    `json:"original_filename"`
	Path         string    `json:"filepath"`
	URL          string    `json:"url"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"type"`
	StoredAt     time.Time `json:"timestamp"`
}

// FileEntry is one row of the upload listing.
type FileEntry struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	Modified int64  `json:"modified"`
}
