package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"facet/internal/compiler"
)

var outPath string

var compileCmd = &cobra.Command{
	Use:   "compile <file> [files...]",
	Short: "Compile documents to canonical JSON",
	Long: `Compile one or more facet documents. A single input writes canonical
JSON to stdout (or --out). Multiple inputs compile in parallel, each
writing a sibling .json file; the core stays single-threaded per document.

Exit status is 0 when canonical JSON was produced and 1 on any compile
error, with a single-line JSON diagnostic on stderr.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path (single input only)")
}

func runCompile(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return compileOne(args[0], outPath)
	}
	if outPath != "" {
		return fmt.Errorf("--out applies to a single input only")
	}

	// Documents are independent; compile them in parallel, one compiler
	// per goroutine.
	var g errgroup.Group
	for _, path := range args {
		path := path
		g.Go(func() error {
			return compileOne(path, siblingJSON(path))
		})
	}
	return g.Wait()
}

func compileOne(path, out string) error {
	res, err := compiler.New(opts).CompileFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, compiler.Envelope(err))
		return fmt.Errorf("compile %s failed", path)
	}
	if out == "" {
		fmt.Println(res.JSON)
		return nil
	}
	if werr := os.WriteFile(out, []byte(res.JSON+"\n"), 0644); werr != nil {
		return fmt.Errorf("write %s: %w", out, werr)
	}
	return nil
}

func siblingJSON(path string) string {
	if i := strings.LastIndex(path, "."); i > strings.LastIndex(path, "/") {
		return path[:i] + ".json"
	}
	return path + ".json"
}
