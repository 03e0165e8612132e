package sitesdk

import "time"

// StatusResponse reports the authenticated user and the server wall clock.
// ServerTime feeds the clock calibrator.
type StatusResponse struct {
	Username   string    `json:"username"`
	ServerTime time.Time `json:"serverTime"`
}

// SiteInfo is one entry of the server's site listing. Path is the full
// server path without the .html suffix; Filename is its last segment.
type SiteInfo struct {
	NodeID     int64     `json:"nodeId"`
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	Checksum   string    `json:"checksum"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

type ListSitesResponse struct {
	Files []SiteInfo `json:"files"`
}

// DownloadSiteResponse carries full site content as UTF-8 text.
type DownloadSiteResponse struct {
	Content    string    `json:"content"`
	Checksum   string    `json:"checksum"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

type UploadSiteParams struct {
	Filename     string    `json:"filename"`
	Content      string    `json:"content"`
	ModifiedAt   time.Time `json:"modifiedAt"`
	SnapshotHTML string    `json:"snapshotHtml,omitempty"`
	SenderID     string    `json:"senderId,omitempty"`
}

type UploadSiteResponse struct {
	NodeID int64 `json:"nodeId"`
}

type DeleteSiteParams struct {
	NodeID int64 `json:"nodeId"`
}

type RenameSiteParams struct {
	NodeID  int64  `json:"nodeId"`
	NewName string `json:"newName"`
}

type MoveSiteParams struct {
	NodeID           int64  `json:"nodeId"`
	TargetFolderPath string `json:"targetFolderPath"`
}

// UploadInfo is one entry of the server's upload listing. Uploads are
// addressed by path; they have no node id.
type UploadInfo struct {
	Path       string    `json:"path"`
	Checksum   string    `json:"checksum"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

type ListUploadsResponse struct {
	Files []UploadInfo `json:"files"`
}

// DownloadUploadResponse carries opaque bytes (base64 on the wire).
type DownloadUploadResponse struct {
	Content    []byte    `json:"content"`
	Checksum   string    `json:"checksum"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

type UploadUploadParams struct {
	Path       string    `json:"path"`
	Content    []byte    `json:"content"`
	ModifiedAt time.Time `json:"modifiedAt"`
}
