// Command submit sends a single new_manager_job message to a running
// Manager and exits. It is the one-shot job-submission client the
// core framework treats as an external collaborator.
package main

import (
	"fmt"
	"os"

	"github.com/alicklee/mapreduce/internal/protocol"
	"github.com/spf13/cobra"
)

func main() {
	var (
		managerHost string
		managerPort int
		inputDir    string
		outputDir   string
		mapper      string
		reducer     string
		numMappers  int
		numReducers int
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a MapReduce job to a running Manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := protocol.Message{
				Type:              protocol.NewManagerJob,
				InputDirectory:    inputDir,
				OutputDirectory:   outputDir,
				MapperExecutable:  mapper,
				ReducerExecutable: reducer,
				NumMappers:        numMappers,
				NumReducers:       numReducers,
			}
			if !protocol.Send(managerHost, managerPort, msg) {
				return fmt.Errorf("could not reach manager at %s:%d", managerHost, managerPort)
			}
			fmt.Println("job submitted")
			return nil
		},
	}

	cmd.Flags().StringVar(&managerHost, "manager-host", "localhost", "Manager's control-plane host")
	cmd.Flags().IntVar(&managerPort, "manager-port", 6000, "Manager's control-plane port")
	cmd.Flags().StringVar(&inputDir, "input", "", "input directory (required)")
	cmd.Flags().StringVar(&outputDir, "output", "", "output directory (required)")
	cmd.Flags().StringVar(&mapper, "mapper", "", "mapper executable path (required)")
	cmd.Flags().StringVar(&reducer, "reducer", "", "reducer executable path (required)")
	cmd.Flags().IntVar(&numMappers, "nmappers", 1, "number of map tasks")
	cmd.Flags().IntVar(&numReducers, "nreducers", 1, "number of reduce tasks")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	cmd.MarkFlagRequired("mapper")
	cmd.MarkFlagRequired("reducer")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
