package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/wudi/pdfedit/observability"
)

var (
	watchPlan      string
	watchScript    string
	watchSelectAll bool
	watchOut       string
	watchDebounce  time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Re-apply a plan whenever the document, plan or script changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		in := args[0]
		out := watchOut
		if out == "" {
			out = outputPath(in)
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer watcher.Close()

		targets, err := watchTargets(watcher, in, watchPlan, watchScript)
		if err != nil {
			return err
		}

		rebuild := func() {
			r, err := loadRecipe(watchPlan, watchScript, watchSelectAll)
			if err != nil {
				logger.Error("recipe invalid", observability.Error("error", err))
				return
			}
			res, err := applyFile(ctx, r, in, out)
			if err != nil {
				logger.Error("apply failed", observability.String("file", in), observability.Error("error", err))
				return
			}
			logger.Info("document rebuilt",
				observability.String("output", out),
				observability.Int("warnings", len(res.Warnings)),
			)
			fmt.Fprintln(cmd.OutOrStdout(), out)
		}

		rebuild()
		return watchLoop(ctx, watcher, targets, watchDebounce, rebuild)
	},
}

// watchTargets watches the directories holding the given files, so that
// editors replacing a file by rename are still seen. It returns the cleaned
// absolute paths of the files.
func watchTargets(w *fsnotify.Watcher, files ...string) (map[string]bool, error) {
	targets := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, f := range files {
		if f == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, err
		}
		targets[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}
	return targets, nil
}

// watchLoop calls fire once the targets have been quiet for delay after a
// change. It returns when ctx is done or the watcher closes.
func watchLoop(ctx context.Context, w *fsnotify.Watcher, targets map[string]bool, delay time.Duration, fire func()) error {
	timer := time.NewTimer(delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !targets[name] {
				continue
			}
			logger.Debug("change detected", observability.String("file", name), observability.String("op", event.Op.String()))
			timer.Reset(delay)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("fsnotify error", observability.Error("error", err))
		case <-timer.C:
			fire()
		}
	}
}

func init() {
	watchCmd.Flags().StringVar(&watchPlan, "plan", "", "YAML edit plan")
	watchCmd.Flags().StringVar(&watchScript, "script", "", "JavaScript edit script, run after the plan")
	watchCmd.Flags().BoolVar(&watchSelectAll, "select-all", false, "Convert every text run before the plan runs")
	watchCmd.Flags().StringVarP(&watchOut, "output", "o", "", "Output file (default edited_<name> next to the input)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 200*time.Millisecond, "Quiet period before re-applying")
	rootCmd.AddCommand(watchCmd)
}
