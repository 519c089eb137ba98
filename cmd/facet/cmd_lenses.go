package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"facet/internal/lens"
)

var lensesCmd = &cobra.Command{
	Use:   "lenses",
	Short: "List the lens dispatch table",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range lens.Names() {
			l, _ := lens.Get(name)
			kind := "pure"
			if l.External {
				kind = "external (mock required)"
			}
			fmt.Printf("%-12s input=%-15s %s\n", name, l.Input, kind)
		}
		return nil
	},
}
