// Package ui implements an interactive terminal interface for imports using bubbletea's Elm architecture.
//
// The TUI walks through one import:
//  1. [PreviewView] : Browse the normalized listening history
//  2. [ConfirmView] : Confirm the target page and database title
//  3. [ImportView] : Watch stage progress and the upload bar
//  4. [ResultView] : Review the outcome and any failed records
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the ImportEngine; cancelling with ctrl+c stops the run after the
// in-flight batch settles.
package ui
