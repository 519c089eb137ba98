package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"facet/internal/compiler"
)

var checkCmd = &cobra.Command{
	Use:   "check <file> [files...]",
	Short: "Parse, resolve, and validate without compiling",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := false
		for _, path := range args {
			if err := compiler.New(opts).CheckFile(path); err != nil {
				fmt.Fprintln(os.Stderr, compiler.Envelope(err))
				failed = true
				continue
			}
			fmt.Fprintf(os.Stderr, "%s: ok\n", path)
		}
		if failed {
			return fmt.Errorf("check failed")
		}
		return nil
	},
}
