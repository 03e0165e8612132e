package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/littleweb/sitebox/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".sitebox", "config.json")
	DefaultSyncDir    = filepath.Join(home, "SiteBox")
	DefaultServerURL  = "https://api.littleweb.net"
)

var (
	ErrNoAPIKey   = errors.New("config: api key is required")
	ErrNoUsername = errors.New("config: username is required")
	ErrNoSyncDir  = errors.New("config: sync folder is required")
)

type Config struct {
	Username  string `json:"username"`
	APIKey    string `json:"api_key"`
	SyncDir   string `json:"sync_dir"`
	ServerURL string `json:"server_url"`
	DeviceID  string `json:"device_id"`
	Path      string `json:"-"`
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	if c.Username == "" {
		return ErrNoUsername
	}
	if c.SyncDir == "" {
		return ErrNoSyncDir
	}
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if c.DeviceID == "" {
		c.DeviceID = utils.HWID
	}

	resolved, err := utils.ResolvePath(c.SyncDir)
	if err != nil {
		return err
	}
	c.SyncDir = resolved

	return nil
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Path = path

	return &cfg, nil
}
