package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/client"
	"inferd/internal/config"
	"inferd/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect a client and serve the HTTP API",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("config", "", "Path to config file (.yaml, .json, or .toml)")
	f.String("addr", "", "HTTP listen address, e.g. :8080")
	f.String("model", "", "Model identity")
	f.String("model-path", "", "Path to the on-disk model for the direct variant")
	f.String("remote-url", "", "Base URL of the remote inference endpoint")
	f.String("prefer", "direct", "Preferred client variant: direct or remote")
	f.Bool("fallback", true, "Fall back to the other variant on connection failure")
	f.Bool("gpu-monitoring", false, "Enable the GPU monitor (direct variant)")
	f.Bool("json-log", false, "Log JSON instead of console output")
	f.String("log-level", "info", "Log level: debug, info, warn, error")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := buildLogger(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg = cfg.WithDefaults()

	factory := client.NewFactory(cfg, log)
	for _, c := range factory.Preflight() {
		ev := log.Info()
		if !c.OK {
			ev = log.Warn()
		}
		ev.Str("check", c.Name).Bool("ok", c.OK).Str("detail", c.Detail).Msg("preflight")
	}

	preferred := client.VariantDirect
	if v, _ := cmd.Flags().GetString("prefer"); v == string(client.VariantRemote) {
		preferred = client.VariantRemote
	}
	enableFallback, _ := cmd.Flags().GetBool("fallback")

	baseCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli, err := factory.CreateClient(baseCtx, preferred, enableFallback)
	if err != nil {
		log.Error().Err(err).Msg("no client variant could connect")
		return err
	}
	defer func() {
		if err := cli.Disconnect(); err != nil {
			log.Warn().Err(err).Msg("disconnect error")
		}
	}()

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(baseCtx)
	mux := httpapi.NewMux(cli, cfg.Model)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Addr).
			Str("variant", string(cli.Variant())).
			Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-baseCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

// loadConfig reads the config file (when given) and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.Addr = v
	}
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		cfg.Model = v
	}
	if v, _ := cmd.Flags().GetString("model-path"); v != "" {
		cfg.ModelPath = v
	}
	if v, _ := cmd.Flags().GetString("remote-url"); v != "" {
		cfg.RemoteURL = v
	}
	if v, _ := cmd.Flags().GetBool("gpu-monitoring"); v {
		cfg.EnableGPUMonitoring = true
	}
	return cfg, nil
}

func buildLogger(cmd *cobra.Command) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if s, _ := cmd.Flags().GetString("log-level"); s != "" {
		if parsed, err := zerolog.ParseLevel(s); err == nil {
			lvl = parsed
		}
	}
	jsonLog, _ := cmd.Flags().GetBool("json-log")
	if jsonLog {
		return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()
}
