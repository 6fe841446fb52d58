package models

import "time"

// FileRecord represents metadata of an uploaded file in the database
type FileRecord struct {
	ID           int       `json:"id"`
	StoredName   string    `json:"-"`
	OriginalName string    `json:"originalName"`
	UploaderID   int       `json:"uploaderId"`
	UploadedAt   time.Time `json:"uploadedAt"`
	Size         int64     `json:"size"`
}

// FileWithUploader is a file record joined with the username of its uploader
type FileWithUploader struct {
	FileRecord
	UploaderUsername string `json:"uploader"`
}

// FileListItem represents a file row of the dashboards
type FileListItem struct {
	ID           int       `json:"id"`
	OriginalName string    `json:"originalName"`
	Uploader     string    `json:"uploader"`
	UploadedAt   time.Time `json:"uploadedAt"`
	Size         int64     `json:"size"`
	SizeDisplay  string    `json:"sizeDisplay"`
}
