package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cloudnote/internal/models"
	"github.com/desertthunder/cloudnote/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgRecordsFetched MsgKind = iota
	MsgProgressUpdate
	MsgImportComplete
)

type recordsFetched struct {
	records []models.NormalizedRecord
	err     error
}

type importComplete struct {
	result *tasks.ImportResult
	err    error
}

// recordsFetchedMsg is the constructor for [MsgRecordsFetched]
func recordsFetchedMsg(records []models.NormalizedRecord, err error) Msg {
	return Msg{kind: MsgRecordsFetched, data: recordsFetched{records, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// importCompleteMsg is the constructor for [MsgImportComplete]
func importCompleteMsg(result *tasks.ImportResult, err error) Msg {
	return Msg{kind: MsgImportComplete, data: importComplete{result, err}}
}
