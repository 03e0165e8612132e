package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/littleweb/sitebox/internal/client/config"
	"github.com/littleweb/sitebox/internal/client/sync"
	"github.com/littleweb/sitebox/internal/client/workspace"
	"github.com/littleweb/sitebox/internal/sitesdk"
)

// Client ties the config, workspace, SDK and sync engine together into one
// long-running process.
type Client struct {
	cfg    *config.Config
	ws     *workspace.Workspace
	sdk    *sitesdk.SiteSDK
	engine *sync.SyncEngine
}

func New(cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ws, err := workspace.New(cfg.SyncDir)
	if err != nil {
		return nil, err
	}

	sdk, err := sitesdk.New(&sitesdk.Config{
		BaseURL:  cfg.ServerURL,
		APIKey:   cfg.APIKey,
		Username: cfg.Username,
		DeviceID: cfg.DeviceID,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:    cfg,
		ws:     ws,
		sdk:    sdk,
		engine: sync.NewEngine(cfg, ws, sdk),
	}, nil
}

// Engine exposes the sync engine for event subscription and live relay.
func (c *Client) Engine() *sync.SyncEngine {
	return c.engine
}

// Start bootstraps the workspace, runs the engine and blocks until ctx is
// canceled.
func (c *Client) Start(ctx context.Context) error {
	if err := c.ws.Bootstrap(); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	defer c.ws.Close()

	if err := c.engine.Start(ctx); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	defer c.engine.Stop()

	go c.logEvents(ctx)

	slog.Info("client running", "user", c.cfg.Username, "dir", c.cfg.SyncDir, "server", c.cfg.ServerURL)
	<-ctx.Done()

	stats := c.engine.Stats()
	slog.Info("client shutting down",
		"uploads", stats.Uploads,
		"downloads", stats.Downloads,
		"deletes", stats.Deletes,
		"conflicts", stats.Conflicts,
		"errors", stats.Errors)
	return nil
}

// logEvents surfaces engine activity at info level for the console.
func (c *Client) logEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-c.engine.Events():
			if event.Err != nil {
				slog.Warn("sync", "event", event.Type, "path", event.Path, "error", event.Err)
			} else {
				slog.Debug("sync", "event", event.Type, "path", event.Path)
			}
		}
	}
}
