package sitesdk

import (
	"context"

	"github.com/imroc/req/v3"
)

const v1Status = "/api/v1/status"

// SiteSDK is the typed client for the content service. It owns no retry
// policy; retries live in the sync engine's upload queue.
type SiteSDK struct {
	client  *req.Client
	baseURL string
	Sites   *SitesAPI
	Uploads *UploadsAPI
	Events  *EventsAPI
}

// New creates a new SiteSDK client.
func New(cfg *Config) (*SiteSDK, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := req.C().
		SetBaseURL(cfg.BaseURL).
		SetUserAgent(UserAgent).
		SetCommonHeader(HeaderAPIKey, cfg.APIKey).
		SetCommonHeader(HeaderDeviceID, cfg.DeviceID).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &SiteSDK{
		client:  client,
		baseURL: cfg.BaseURL,
		Sites:   newSitesAPI(client),
		Uploads: newUploadsAPI(client),
		Events:  newEventsAPI(cfg),
	}, nil
}

// Status returns the authenticated user and server time.
func (s *SiteSDK) Status(ctx context.Context) (*StatusResponse, error) {
	var status *StatusResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetSuccessResult(&status).
		Get(v1Status)

	if err := handleAPIError(resp, err, "status"); err != nil {
		return nil, err
	}

	return status, nil
}

// Close terminates the event stream and releases the transport.
func (s *SiteSDK) Close() {
	if s.Events.IsConnected() {
		s.Events.Close()
	}
}
