package sitemsg

import "time"

// LiveSync is a browser-to-browser content relay. Never written to disk.
type LiveSync struct {
	File   string `json:"file"`
	HTML   string `json:"html"`
	Sender string `json:"sender"`
}

// FileSaved carries full content of a site saved on another device.
type FileSaved struct {
	NodeID     int64     `json:"nodeId"`
	File       string    `json:"file"`
	Content    string    `json:"content"`
	Checksum   string    `json:"checksum"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

type FileRenamed struct {
	NodeID  int64  `json:"nodeId"`
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

type FileMoved struct {
	NodeID   int64  `json:"nodeId"`
	FromPath string `json:"fromPath"`
	ToPath   string `json:"toPath"`
}

type FileDeleted struct {
	NodeID int64  `json:"nodeId"`
	File   string `json:"file"`
}
