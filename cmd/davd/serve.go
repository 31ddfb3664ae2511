// Copyright applies per repository root license (none required; this
// file has no teacher-supplied header to preserve).

package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	webdav "github.com/opendav/core"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WebDAV server until interrupted.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadConfigOrDefault(&logger)
	if err != nil {
		return err
	}

	rt, err := buildRouter(cfg, &logger)
	if err != nil {
		return err
	}

	dispatcher := webdav.NewDispatcher(rt)
	dispatcher.Logger = logger

	if cfg.MetricsListen != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info().Str("addr", cfg.MetricsListen).Msg("serving metrics")
			if err := http.ListenAndServe(cfg.MetricsListen, mux); err != nil {
				logger.Error().Err(err).Msg("metrics listener stopped")
			}
		}()
	}

	logger.Info().Str("addr", cfg.Listen).Int("locations", len(rt.Locations)).Msg("serving webdav")
	return http.ListenAndServe(cfg.Listen, dispatcher)
}
