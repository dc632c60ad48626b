// Command uthreads-demo drives the uthreads library through one of a
// handful of canned scenarios, the Go-native replacement for
// original_source/main.cpp's three hardcoded demonstration threads.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nullfetch/uthreads"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		quantumUsec int
		quantums    int
		scenarioArg string
		configPath  string
		trace       bool
	)

	cmd := &cobra.Command{
		Use:   "uthreads-demo",
		Short: "Run a canned uthreads scheduling scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			name := scenarioArg
			if configPath != "" {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				if cfg.Scenario != "" {
					name = cfg.Scenario
				}
				if cfg.QuantumUsec != 0 {
					quantumUsec = cfg.QuantumUsec
				}
				if cfg.Quantums != 0 {
					quantums = cfg.Quantums
				}
			}

			run, ok := scenarios[name]
			if !ok {
				names := make([]string, 0, len(scenarios))
				for n := range scenarios {
					names = append(names, n)
				}
				sort.Strings(names)
				return fmt.Errorf("unknown scenario %q (have: %v)", name, names)
			}

			if trace {
				uthreads.EnableTrace()
			}
			run(quantumUsec, quantums)
			return nil
		},
	}

	cmd.Flags().IntVar(&quantumUsec, "quantum", 2000, "quantum length in microseconds")
	cmd.Flags().IntVar(&quantums, "quantums", 5, "number of quantums each demo worker runs for")
	cmd.Flags().StringVar(&scenarioArg, "scenario", "round-robin", "scenario to run: round-robin, sleep, block-resume, terminate")
	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML file overriding scenario/quantum/quantums")
	cmd.Flags().BoolVar(&trace, "trace", false, "enable verbose scheduler tracing")

	return cmd
}
