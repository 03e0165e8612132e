package sitesdk

import (
	"context"

	"github.com/imroc/req/v3"
)

const (
	v1Uploads        = "/api/v1/uploads"
	v1UploadDownload = "/api/v1/uploads/download"
	v1UploadUpload   = "/api/v1/uploads/upload"
)

// UploadsAPI covers the opaque binary file endpoints. Content travels as
// base64 in JSON bodies.
type UploadsAPI struct {
	client *req.Client
}

func newUploadsAPI(client *req.Client) *UploadsAPI {
	return &UploadsAPI{client: client}
}

func (u *UploadsAPI) List(ctx context.Context) ([]UploadInfo, error) {
	var listing *ListUploadsResponse
	resp, err := u.client.R().
		SetContext(ctx).
		SetSuccessResult(&listing).
		Get(v1Uploads)

	if err := handleAPIError(resp, err, "list uploads"); err != nil {
		return nil, err
	}

	return listing.Files, nil
}

func (u *UploadsAPI) Download(ctx context.Context, path string) (*DownloadUploadResponse, error) {
	var file *DownloadUploadResponse
	resp, err := u.client.R().
		SetContext(ctx).
		SetQueryParam("path", path).
		SetSuccessResult(&file).
		Get(v1UploadDownload)

	if err := handleAPIError(resp, err, "download upload"); err != nil {
		return nil, err
	}

	return file, nil
}

func (u *UploadsAPI) Upload(ctx context.Context, params *UploadUploadParams) error {
	resp, err := u.client.R().
		SetContext(ctx).
		SetBody(params).
		Post(v1UploadUpload)

	return handleAPIError(resp, err, "upload upload")
}
