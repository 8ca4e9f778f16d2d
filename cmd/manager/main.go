// Command manager runs the MapReduce framework's coordinator process:
// it accepts job submissions, tracks Workers via heartbeats, and
// schedules map and reduce tasks across the live pool.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/alicklee/mapreduce/internal/config"
	"github.com/alicklee/mapreduce/internal/logging"
	"github.com/alicklee/mapreduce/internal/manager"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func main() {
	var (
		host        string
		port        int
		logfile     string
		loglevel    string
		sharedDir   string
		configFile  string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "manager",
		Short: "Run the MapReduce Manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if host == "" {
				host = defaults.Host
			}
			if port == 0 {
				port = defaults.Port
			}
			if loglevel == "" {
				loglevel = defaults.LogLevel
			}
			if sharedDir == "" {
				sharedDir = defaults.SharedDir
			}

			logger := logging.Init(logging.Config{Level: loglevel, LogFile: logfile, Component: "manager"})

			registry := prometheus.NewRegistry()
			metrics := manager.NewMetrics(registry)

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
				go func() {
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						logger.Warn().Err(err).Msg("metrics server stopped")
					}
				}()
			}

			mgr := manager.NewManager(host, port, sharedDir, metrics, logger)
			return mgr.Run()
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "address to bind the control sockets on (default localhost)")
	cmd.Flags().IntVar(&port, "port", 0, "port to bind the control sockets on (default 6000)")
	cmd.Flags().StringVar(&logfile, "logfile", "", "write logs to this file instead of stderr")
	cmd.Flags().StringVar(&loglevel, "loglevel", "", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&sharedDir, "shared_dir", "", "base directory for per-job scratch directories")
	cmd.Flags().StringVar(&configFile, "config", "", "optional YAML file supplying defaults")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
