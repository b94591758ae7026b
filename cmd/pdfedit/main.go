// Command pdfedit converts PDF text into editable overlays, adds text and
// free-hand strokes, and flattens the edits into a new document.
package main

func main() {
	Execute()
}
