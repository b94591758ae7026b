package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdfedit/controller"
	"github.com/wudi/pdfedit/internal/testpdf"
	"github.com/wudi/pdfedit/loader"
)

func writeFixture(t *testing.T, dir, name string) string {
	t.Helper()
	data := testpdf.Generate(
		testpdf.Page{Texts: []testpdf.Text{{X: 72, Y: 700, Str: "Hello"}, {X: 72, Y: 650, Str: "World"}}},
	)
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// resetFlags restores every flag to its default; cobra keeps values in
// package variables between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "absent.toml")))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func loadRuns(t *testing.T, path string) []loader.TextRun {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := loader.Load(context.Background(), data)
	require.NoError(t, err)
	runs, err := doc.TextRuns(context.Background(), 1)
	require.NoError(t, err)
	return runs
}

func TestRunsJSON(t *testing.T) {
	in := writeFixture(t, t.TempDir(), "doc.pdf")
	out, err := execute(t, "runs", in, "--json")
	require.NoError(t, err)

	var runs []runSummary
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "p1-r0", runs[0].ID)
	assert.Equal(t, "Hello", runs[0].Text)
	assert.InDelta(t, 72, runs[0].X, 1e-9)
	assert.InDelta(t, 700, runs[0].Y, 1e-9)
}

func TestRunsTable(t *testing.T) {
	in := writeFixture(t, t.TempDir(), "doc.pdf")
	out, err := execute(t, "runs", in)
	require.NoError(t, err)
	assert.Contains(t, out, "TEXT")
	assert.Contains(t, out, "p1-r1")
	assert.Contains(t, out, "World")

	_, err = execute(t, "runs", in, "--page", "4")
	assert.ErrorIs(t, err, loader.ErrPageOutOfRange)
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir, "doc.pdf")
	target := filepath.Join(dir, "page.png")
	_, err := execute(t, "render", in, "--zoom", "1", "-o", target)
	require.NoError(t, err)

	f, err := os.Open(target)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 612, img.Bounds().Dx())
	assert.Equal(t, 792, img.Bounds().Dy())
}

func TestPreviewPaintsStrokes(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir, "doc.pdf")
	planPath := writeFile(t, dir, "plan.yaml", "steps:\n  - draw: {tool: highlight, points: [[280,300],[320,300]]}\n")
	target := filepath.Join(dir, "preview.png")
	_, err := execute(t, "preview", in, "--plan", planPath, "--zoom", "1", "-o", target)
	require.NoError(t, err)

	f, err := os.Open(target)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	_, _, b, _ := img.At(300, 492).RGBA()
	assert.Less(t, b>>8, uint32(200), "highlight should tint the page")
	_, _, b, _ = img.At(300, 100).RGBA()
	assert.Equal(t, uint32(255), b>>8)
}

func TestApplyPlan(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir, "doc.pdf")
	planPath := writeFile(t, dir, "plan.yaml", "steps:\n  - set_text: {run: p1-r0, text: Goodbye}\n")

	out, err := execute(t, "apply", in, "--plan", planPath)
	require.NoError(t, err)
	want := filepath.Join(dir, "edited_doc.pdf")
	assert.Equal(t, want, strings.TrimSpace(out))

	var texts []string
	for _, r := range loadRuns(t, want) {
		texts = append(texts, r.Text)
	}
	assert.Contains(t, texts, "Goodbye")
	assert.Contains(t, texts, "Hello", "the original content stays under the cover")
}

func TestApplyScript(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir, "doc.pdf")
	script := writeFile(t, dir, "edit.js", `insert(1, 300, 400, "Scripted");`)
	target := filepath.Join(dir, "out.pdf")

	_, err := execute(t, "apply", in, "--script", script, "-o", target)
	require.NoError(t, err)
	var found bool
	for _, r := range loadRuns(t, target) {
		found = found || r.Text == "Scripted"
	}
	assert.True(t, found)
}

func TestApplyGlob(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "a.pdf")
	writeFixture(t, dir, "sub/b.pdf")
	pattern := filepath.Join(dir, "**", "*.pdf")

	out, err := execute(t, "apply", "--glob", pattern, "--select-all")
	require.NoError(t, err)
	assert.Len(t, strings.Fields(out), 2)
	assert.FileExists(t, filepath.Join(dir, "edited_a.pdf"))
	assert.FileExists(t, filepath.Join(dir, "sub", "edited_b.pdf"))

	// outputs of the first pass are not picked up again
	_, err = execute(t, "apply", "--glob", pattern, "--select-all")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "edited_edited_a.pdf"))
}

func TestApplyErrors(t *testing.T) {
	dir := t.TempDir()
	in := writeFixture(t, dir, "doc.pdf")

	_, err := execute(t, "apply", in)
	assert.ErrorIs(t, err, errNoRecipe)

	_, err = execute(t, "apply", "--select-all")
	assert.ErrorContains(t, err, "no input")

	_, err = execute(t, "apply", in, "--glob", "*.pdf", "--select-all")
	assert.ErrorContains(t, err, "not both")

	bad := writeFile(t, dir, "bad.pdf", "not a pdf")
	_, err = execute(t, "apply", bad, "--select-all")
	assert.ErrorIs(t, err, loader.ErrDocumentLoad)

	script := writeFile(t, dir, "bad.js", `activate("p1-r9")`)
	_, err = execute(t, "apply", in, "--script", script)
	assert.ErrorContains(t, err, "script")
}

func TestWorkspaceHoldsController(t *testing.T) {
	ctx := context.Background()
	doc, err := openDocument(ctx, writeFixture(t, t.TempDir(), "doc.pdf"))
	require.NoError(t, err)
	w := newWorkspace(doc)

	release, err := w.ctrl.Begin("save")
	require.NoError(t, err)
	assert.ErrorIs(t, convertAll(ctx, w), controller.ErrBusy)
	_, err = w.export(ctx)
	assert.ErrorIs(t, err, controller.ErrBusy)
	release()

	require.NoError(t, convertAll(ctx, w))
	assert.Len(t, w.session().Edits(1), 2)
	res, err := w.export(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Data)
	_, busy := w.ctrl.Busy()
	assert.False(t, busy, "export releases the controller")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "日本…", truncate("日本語の文", 6))
}

func TestWatchLoopDebounces(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plan.yaml", "steps: []\n")

	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer w.Close()
	targets, err := watchTargets(w, path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fired := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- watchLoop(ctx, w, targets, 50*time.Millisecond, func() { fired <- struct{}{} })
	}()

	writeFile(t, dir, "other.txt", "ignored")
	for i := 0; i < 3; i++ {
		writeFile(t, dir, "plan.yaml", "steps: []\n")
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatalf("watch loop never fired")
	}
	select {
	case <-fired:
		t.Fatalf("burst of writes should fire once")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
}
