package sitemsg

type MessageType string

const (
	MsgLiveSync    MessageType = "live-sync"
	MsgFileSaved   MessageType = "file-saved"
	MsgFileRenamed MessageType = "file-renamed"
	MsgFileMoved   MessageType = "file-moved"
	MsgFileDeleted MessageType = "file-deleted"
)
