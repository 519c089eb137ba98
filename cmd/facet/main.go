// Package main implements the facet CLI - the host around the FACET
// compiler core.
//
// Command implementations are split across cmd_*.go files:
//   - main.go        - entry point, rootCmd, global flags
//   - cmd_compile.go - compileCmd, batch compilation
//   - cmd_check.go   - checkCmd (parse + resolve + validate only)
//   - cmd_watch.go   - watchCmd, recompile-on-change loop
//   - cmd_lenses.go  - lensesCmd, dispatch-table listing
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"facet/internal/config"
	"facet/internal/logging"
)

var (
	verbose    bool
	configPath string
	budget     int
	gasLimit   int64
	pretty     bool
	inputs     []string

	opts *config.Options
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "facet",
	Short: "facet - compiler for declarative AI-agent request payloads",
	Long: `facet compiles declarative configuration documents into canonical JSON
request payloads: variables and pipelines evaluate under a gas budget,
sections pack into a bounded token window, and identical inputs always
produce byte-identical output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Init(verbose); err != nil {
			return err
		}
		var err error
		opts, err = config.LoadIfPresent(configPath)
		if err != nil {
			return err
		}
		if budget > 0 {
			opts.Budget = budget
		}
		if gasLimit > 0 {
			opts.GasLimit = gasLimit
		}
		if pretty {
			opts.Pretty = true
		}
		for _, kv := range inputs {
			k, v, found := strings.Cut(kv, "=")
			if !found {
				return fmt.Errorf("invalid --input %q, expected name=value", kv)
			}
			opts.Inputs[k] = v
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "facet.yaml", "Options file path")
	rootCmd.PersistentFlags().IntVar(&budget, "budget", 0, "Token budget (overrides config and @meta)")
	rootCmd.PersistentFlags().Int64Var(&gasLimit, "gas-limit", 0, "Gas limit (overrides config and @meta)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Pretty-print canonical output")
	rootCmd.PersistentFlags().StringArrayVar(&inputs, "input", nil, "Input value as name=value (repeatable)")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(lensesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
