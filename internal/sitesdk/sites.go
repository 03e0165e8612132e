package sitesdk

import (
	"context"

	"github.com/imroc/req/v3"
)

const (
	v1Sites        = "/api/v1/sites"
	v1SiteDownload = "/api/v1/sites/download"
	v1SiteUpload   = "/api/v1/sites/upload"
	v1SiteDelete   = "/api/v1/sites/delete"
	v1SiteRename   = "/api/v1/sites/rename"
	v1SiteMove     = "/api/v1/sites/move"
)

// SitesAPI covers the HTML site endpoints.
type SitesAPI struct {
	client *req.Client
}

func newSitesAPI(client *req.Client) *SitesAPI {
	return &SitesAPI{client: client}
}

func (s *SitesAPI) List(ctx context.Context) ([]SiteInfo, error) {
	var listing *ListSitesResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetSuccessResult(&listing).
		Get(v1Sites)

	if err := handleAPIError(resp, err, "list sites"); err != nil {
		return nil, err
	}

	return listing.Files, nil
}

// Download fetches one site by its server path without the .html suffix.
func (s *SitesAPI) Download(ctx context.Context, path string) (*DownloadSiteResponse, error) {
	var site *DownloadSiteResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("path", path).
		SetSuccessResult(&site).
		Get(v1SiteDownload)

	if err := handleAPIError(resp, err, "download site"); err != nil {
		return nil, err
	}

	return site, nil
}

func (s *SitesAPI) Upload(ctx context.Context, params *UploadSiteParams) (*UploadSiteResponse, error) {
	var uploaded *UploadSiteResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&uploaded).
		Post(v1SiteUpload)

	if err := handleAPIError(resp, err, "upload site"); err != nil {
		return nil, err
	}

	return uploaded, nil
}

func (s *SitesAPI) Delete(ctx context.Context, nodeID int64) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(&DeleteSiteParams{NodeID: nodeID}).
		Delete(v1SiteDelete)

	return handleAPIError(resp, err, "delete site")
}

func (s *SitesAPI) Rename(ctx context.Context, nodeID int64, newName string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(&RenameSiteParams{NodeID: nodeID, NewName: newName}).
		Patch(v1SiteRename)

	return handleAPIError(resp, err, "rename site")
}

func (s *SitesAPI) Move(ctx context.Context, nodeID int64, targetFolderPath string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(&MoveSiteParams{NodeID: nodeID, TargetFolderPath: targetFolderPath}).
		Patch(v1SiteMove)

	return handleAPIError(resp, err, "move site")
}
