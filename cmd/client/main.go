package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/littleweb/sitebox/internal/client"
	"github.com/littleweb/sitebox/internal/client/config"
	"github.com/littleweb/sitebox/internal/utils"
	"github.com/littleweb/sitebox/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	home, _        = os.UserHomeDir()
	configFileName = "config"
)

var rootCmd = &cobra.Command{
	Use:     "sitebox",
	Short:   "SiteBox sync client",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &config.Config{
			Path:      viper.ConfigFileUsed(),
			Username:  viper.GetString("username"),
			APIKey:    viper.GetString("api_key"),
			SyncDir:   viper.GetString("sync_dir"),
			ServerURL: viper.GetString("server_url"),
			DeviceID:  viper.GetString("device_id"),
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		cmd.SilenceUsage = true
		slog.Info("sitebox", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

		c, err := client.New(cfg)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		if err := c.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("username", "u", "", "SiteBox account username")
	rootCmd.Flags().StringP("apikey", "k", "", "SiteBox API key")
	rootCmd.Flags().StringP("dir", "d", config.DefaultSyncDir, "Folder to keep in sync")
	rootCmd.Flags().StringP("server", "s", config.DefaultServerURL, "SiteBox server URL")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "SiteBox config file")
}

func main() {
	logFile := filepath.Join(home, ".sitebox", "logs", "client.log")
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create log directory: %v\n", err)
		os.Exit(1)
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".sitebox"))
		viper.AddConfigPath(filepath.Join(home, ".config", "sitebox"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("username", cmd.Flags().Lookup("username"))
	viper.BindPFlag("api_key", cmd.Flags().Lookup("apikey"))
	viper.BindPFlag("sync_dir", cmd.Flags().Lookup("dir"))
	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))

	viper.SetEnvPrefix("SITEBOX")
	viper.AutomaticEnv()

	return nil
}
