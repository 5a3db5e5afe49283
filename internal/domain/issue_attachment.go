package domain

import "time"

// IssueAttachment stores a file uploaded against an issue along with denormalized metadata.
type IssueAttachment struct {
	ID           string
	IssueID      string
	StorageKey   string
	URL          string
	FileName     string
	FileSize     int64
	FileType     string
	UploadedByID *string
	UploadedAt   time.Time
}

// UploadInfo describes what the storage layer reported for an upload.
type UploadInfo struct {
	Name        string
	Size        int64
	ContentType string
}

// ApplyUploadDefaults fills file name, size and type from the upload when not set explicitly.
func (a *IssueAttachment) ApplyUploadDefaults(info UploadInfo) {
	if a.FileName == "" {
		a.FileName = info.Name
	}
	if a.FileType == "" {
		a.FileType = info.ContentType
	}
	if a.FileSize == 0 {
		a.FileSize = info.Size
	}
}
