package main

import (
	"fmt"

	"github.com/littleweb/sitebox/internal/client/config"
	"github.com/littleweb/sitebox/internal/sitesdk"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newLoginCmd())
}

func newLoginCmd() *cobra.Command {
	var username string
	var apiKey string
	var syncDir string
	var serverURL string

	cmd := &cobra.Command{
		Use:     "login",
		Aliases: []string{"init"},
		Short:   "Verify credentials and write the SiteBox config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			configPath := resolveConfigPath(cmd)

			cfg := &config.Config{
				Username:  username,
				APIKey:    apiKey,
				SyncDir:   syncDir,
				ServerURL: serverURL,
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			sdk, err := sitesdk.New(&sitesdk.Config{
				BaseURL:  cfg.ServerURL,
				APIKey:   cfg.APIKey,
				Username: cfg.Username,
				DeviceID: cfg.DeviceID,
			})
			if err != nil {
				return err
			}
			defer sdk.Close()

			status, err := sdk.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			if err := cfg.Save(configPath); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\nConfig saved to %s\n", status.Username, configPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "SiteBox account username")
	cmd.Flags().StringVarP(&apiKey, "apikey", "k", "", "SiteBox API key")
	cmd.Flags().StringVarP(&syncDir, "dir", "d", config.DefaultSyncDir, "Folder to keep in sync")
	cmd.Flags().StringVarP(&serverURL, "server", "s", config.DefaultServerURL, "SiteBox server URL")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("apikey")

	return cmd
}
