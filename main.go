package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"node-monitor/internal/config"
	"node-monitor/internal/constants"
	"node-monitor/internal/initapp"
	"node-monitor/internal/utils"
)

var (
	version = "dev"

	configFile string
	envFile    string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "node-monitor",
		Short:        "HTTP server monitoring with a plain-text report endpoint",
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "node-monitor.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env file loaded before the config")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the report server and the monitored servers",
		RunE:  runServe,
	})
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	setupLogging(config.LogConfig{Level: "info"})

	configManager, err := config.Init(configFile, envFile)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}
	cfg := configManager.GetConfig()

	logCfg := cfg.Log
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	if err := setupLogging(logCfg); err != nil {
		return err
	}

	// 更新常量配置
	constants.UpdateFromConfig(cfg)
	config.RegisterUpdateCallback(constants.UpdateFromConfig)

	app, err := initapp.New(cfg)
	if err != nil {
		return err
	}
	if err := app.Start(); err != nil {
		shutdown(app)
		return err
	}

	config.RegisterUpdateCallback(app.ApplyConfig)

	// SIGHUP 重新加载配置
	stopReload := make(chan struct{})
	utils.SetupReloadHandler(func() {
		if err := config.ReloadConfig(); err != nil {
			log.Error().Err(err).Msg("[Config] 重新加载配置失败，继续使用当前配置")
		}
	}, stopReload)

	// 优雅关闭
	utils.SetupCloseHandler(func(os.Signal) {
		close(stopReload)
		shutdown(app)
	})

	select {}
}

func shutdown(app *initapp.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

func setupLogging(cfg config.LogConfig) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "node-monitor %s\n", version)
		},
	}
}
