package sitesdk

import (
	"fmt"
	"runtime"

	"github.com/littleweb/sitebox/internal/version"
)

const (
	HeaderUserAgent = "User-Agent"
	HeaderAPIKey    = "X-API-Key"
	HeaderDeviceID  = "X-Device-Id"

	DefaultBaseURL = "https://api.littleweb.net"
)

var UserAgent = fmt.Sprintf("SiteBox/%s (%s; %s/%s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// Config is the configuration for the SiteSDK.
type Config struct {
	BaseURL  string // BaseURL is required
	APIKey   string // APIKey is required
	Username string
	DeviceID string // stable per-installation id, used for live-sync echo suppression
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoServerURL
	}
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}
