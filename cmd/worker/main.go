// Command worker runs a single MapReduce Worker process: it registers
// with the Manager, emits heartbeats, and executes one map or reduce
// task at a time.
package main

import (
	"fmt"
	"os"

	"github.com/alicklee/mapreduce/internal/config"
	"github.com/alicklee/mapreduce/internal/logging"
	"github.com/alicklee/mapreduce/internal/worker"
	"github.com/spf13/cobra"
)

func main() {
	var (
		host        string
		port        int
		managerHost string
		managerPort int
		logfile     string
		loglevel    string
		scratchDir  string
		configFile  string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a MapReduce Worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if managerHost == "" {
				managerHost = defaults.ManagerHost
			}
			if managerPort == 0 {
				managerPort = defaults.ManagerPort
			}
			if loglevel == "" {
				loglevel = defaults.LogLevel
			}
			if scratchDir == "" {
				scratchDir = defaults.SharedDir
			}

			logger := logging.Init(logging.Config{Level: loglevel, LogFile: logfile, Component: "worker"})

			w := worker.NewWorker(host, port, managerHost, managerPort, scratchDir, logger)
			return w.Run()
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "address to bind this worker's listener on")
	cmd.Flags().IntVar(&port, "port", 6001, "port to bind this worker's listener on")
	cmd.Flags().StringVar(&managerHost, "manager-host", "", "Manager's control-plane host (default localhost)")
	cmd.Flags().IntVar(&managerPort, "manager-port", 0, "Manager's control-plane port (default 6000)")
	cmd.Flags().StringVar(&logfile, "logfile", "", "write logs to this file instead of stderr")
	cmd.Flags().StringVar(&loglevel, "loglevel", "", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&scratchDir, "shared_dir", "", "base directory for per-task scratch directories")
	cmd.Flags().StringVar(&configFile, "config", "", "optional YAML file supplying defaults")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
