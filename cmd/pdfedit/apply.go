package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/wudi/pdfedit/observability"
)

var (
	applyPlan      string
	applyScript    string
	applyGlob      string
	applySelectAll bool
	applyOut       string
)

var applyCmd = &cobra.Command{
	Use:   "apply [file]",
	Short: "Apply a plan or script and save the flattened PDF",
	Long: `apply edits a document and writes edited_<name> next to it. With
--glob every matching PDF is processed; files that already carry the output
prefix are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		inputs, err := applyInputs(args, applyGlob)
		if err != nil {
			return err
		}
		if applyOut != "" && len(inputs) > 1 {
			return fmt.Errorf("--output needs a single input, got %d", len(inputs))
		}
		r, err := loadRecipe(applyPlan, applyScript, applySelectAll)
		if err != nil {
			return err
		}

		var errs []error
		for _, in := range inputs {
			out := applyOut
			if out == "" {
				out = outputPath(in)
			}
			res, err := applyFile(ctx, r, in, out)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Error("apply failed", observability.String("file", in), observability.Error("error", err))
				errs = append(errs, fmt.Errorf("%s: %w", in, err))
				continue
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", in, w)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
		}
		return errors.Join(errs...)
	},
}

// applyInputs resolves the positional file or the --glob pattern.
func applyInputs(args []string, pattern string) ([]string, error) {
	switch {
	case pattern != "" && len(args) > 0:
		return nil, errors.New("pass a file or --glob, not both")
	case pattern == "" && len(args) == 0:
		return nil, errors.New("no input: pass a file or --glob")
	case pattern == "":
		return args, nil
	}
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	prefix := appCfg.Export.OutputPrefix
	var inputs []string
	for _, m := range matches {
		if prefix != "" && strings.HasPrefix(filepath.Base(m), prefix) {
			logger.Debug("skipping output file", observability.String("file", m))
			continue
		}
		inputs = append(inputs, m)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("glob %q matched no files", pattern)
	}
	sort.Strings(inputs)
	return inputs, nil
}

func init() {
	applyCmd.Flags().StringVar(&applyPlan, "plan", "", "YAML edit plan")
	applyCmd.Flags().StringVar(&applyScript, "script", "", "JavaScript edit script, run after the plan")
	applyCmd.Flags().StringVar(&applyGlob, "glob", "", "Process every file matching the pattern (supports **)")
	applyCmd.Flags().BoolVar(&applySelectAll, "select-all", false, "Convert every text run before the plan runs")
	applyCmd.Flags().StringVarP(&applyOut, "output", "o", "", "Output file (default edited_<name> next to the input)")
	rootCmd.AddCommand(applyCmd)
}
