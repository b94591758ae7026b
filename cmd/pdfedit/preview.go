package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/render"
)

var (
	previewPlan      string
	previewScript    string
	previewSelectAll bool
	previewPage      int
	previewZoom      float64
	previewOut       string
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Render a page with the edits of a plan or script painted over it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := loadRecipe(previewPlan, previewScript, previewSelectAll)
		if err != nil {
			return err
		}
		doc, err := openDocument(ctx, args[0])
		if err != nil {
			return err
		}
		w, err := r.apply(ctx, doc)
		if err != nil {
			return err
		}
		view, err := doc.Render(ctx, previewPage, zoomFlag(cmd, previewZoom))
		if err != nil {
			return err
		}
		edits, strokes := w.session().Snapshot().Overlay(previewPage, appCfg.Export.CoverPadding)
		render.Overlay(view.Image, view.Viewport(), edits, strokes)

		out := previewOut
		if out == "" {
			out = imagePath(args[0], previewPage)
		}
		if err := writePNG(out, view.Image); err != nil {
			return err
		}
		logger.Info("preview rendered",
			observability.Int("page", previewPage),
			observability.Int("edits", len(edits)),
			observability.Int("strokes", len(strokes)),
			observability.String("output", out),
		)
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	previewCmd.Flags().StringVar(&previewPlan, "plan", "", "YAML edit plan")
	previewCmd.Flags().StringVar(&previewScript, "script", "", "JavaScript edit script")
	previewCmd.Flags().BoolVar(&previewSelectAll, "select-all", false, "Convert every text run before the plan runs")
	previewCmd.Flags().IntVarP(&previewPage, "page", "p", 1, "Page number (1-based)")
	previewCmd.Flags().Float64VarP(&previewZoom, "zoom", "z", 0, "Zoom factor (default from config)")
	previewCmd.Flags().StringVarP(&previewOut, "output", "o", "", "Output PNG (default <name>-p<page>.png)")
	rootCmd.AddCommand(previewCmd)
}
